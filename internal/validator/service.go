package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/matches"
)

const systemPrompt = "You are a strict arbitrage validator. Determine if two binary markets resolve identically with no ambiguity. Reject if timing, definitions, or data sources differ. Respond only with JSON."

const instructions = `Compare the following two prediction market contracts. A cross-venue arbitrage is only risk-free if both resolve identically.
They must represent the exact same binary outcome with matching cutoff and resolution criteria.
Different resolution sources are acceptable only when they agree on the exact definition.
If either contract allows outcomes other than strictly YES/NO for the same event, answer false.
Pay special attention to timing, release months, thresholds, settlement sources, tiebreakers, cancellations and alternate clauses.
If unsure, treat it as invalid. Keep the reason short.
Return EXACTLY this JSON format:
{
  "ValidResolution": true|false,
  "ResolutionReason": "short explanation"
}

Input JSON:
`

// Completer is a single-shot chat model.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config controls the validator behavior.
type Config struct {
	LLM          Completer
	SystemPrompt string
	Now          func() time.Time
}

// Service asks a language model whether a matched pair resolves identically.
type Service struct {
	llm          Completer
	systemPrompt string
	model        string
	now          func() time.Time
}

// NewService creates a validator.
func NewService(cfg Config) (*Service, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("validator: llm client is required")
	}
	system := cfg.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = systemPrompt
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	svc := &Service{llm: cfg.LLM, systemPrompt: system, now: now}
	if named, ok := cfg.LLM.(interface{ Model() string }); ok {
		svc.model = named.Model()
	}
	return svc, nil
}

// Validate runs the prompt for one match and returns the verdict.
func (s *Service) Validate(ctx context.Context, m matches.Match) (*matches.ResolutionVerdict, error) {
	if s == nil {
		return nil, fmt.Errorf("validator: service is nil")
	}
	input, err := json.MarshalIndent(buildPromptPayload(m), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("validator: marshal prompt input: %w", err)
	}

	raw, err := s.llm.Complete(ctx, s.systemPrompt, instructions+string(input))
	if err != nil {
		return nil, fmt.Errorf("validator: llm call: %w", err)
	}

	res, err := parseResult(raw)
	if err != nil {
		return nil, fmt.Errorf("validator: parse response: %w", err)
	}
	res.Model = s.model
	res.CheckedAt = s.now().UTC()
	return res, nil
}

func parseResult(raw string) (*matches.ResolutionVerdict, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty llm response")
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	var res matches.ResolutionVerdict
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, err
	}
	return &res, nil
}
