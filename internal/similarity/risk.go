package similarity

// Risk grades how likely two matched contracts are to resolve differently.
type Risk string

const (
	RiskSafe      Risk = "SAFE"
	RiskRisky     Risk = "RISKY"
	RiskDangerous Risk = "DANGEROUS"
)

// AssessRisk grades a scored pair. Strong topical overlap with no date
// agreement is the classic trap: same subject, different release.
func AssessRisk(r Result) Risk {
	switch {
	case r.Final > 0.8 && r.DateAlignment > 0.7:
		return RiskSafe
	case r.KeywordScore > 0.7 && r.DateAlignment < 0.3:
		return RiskDangerous
	case r.Final > 0.5 && r.Final <= 0.8:
		return RiskRisky
	default:
		return RiskSafe
	}
}
