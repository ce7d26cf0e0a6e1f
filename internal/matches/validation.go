package matches

import "time"

// ResolutionVerdict is a second opinion on whether a matched pair settles
// on the same outcome. The JSON keys are the ones the model is asked to
// answer with.
type ResolutionVerdict struct {
	ValidResolution  bool   `json:"ValidResolution"`
	ResolutionReason string `json:"ResolutionReason"`

	Model     string    `json:"model,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
}

func NewResolutionVerdict(valid bool, reason string) *ResolutionVerdict {
	return &ResolutionVerdict{ValidResolution: valid, ResolutionReason: reason}
}

// Rejects reports whether the verdict rules the pair out. A missing verdict
// rejects nothing.
func (v *ResolutionVerdict) Rejects() bool {
	return v != nil && !v.ValidResolution
}
