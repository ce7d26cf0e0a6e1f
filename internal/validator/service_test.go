package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/matches"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/similarity"
)

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, _, user string) (string, error) {
	f.prompt = user
	return f.reply, f.err
}

func (f *fakeCompleter) Model() string {
	return "test-model"
}

func testMatch() matches.Match {
	a := models.Contract{
		Venue:             collectors.VenueKalshi,
		ContractID:        "KXCPI-25SEP-T3.0",
		Question:          "Will CPI be above 3.0% in September 2025?",
		ResolutionSource:  "Bureau of Labor Statistics",
		ResolutionDetails: "Resolves per the CPI release at https://www.bls.gov/cpi/ on Oct 15.",
		CloseTime:         time.Date(2025, 10, 15, 12, 30, 0, 0, time.UTC),
	}
	b := models.Contract{
		Venue:      collectors.VenuePolymarket,
		ContractID: "0xcpi-sep",
		Question:   "CPI above 3.0% for September 2025?",
	}
	return matches.NewMatch(a, b, similarity.Score(a.Question, b.Question, ""), time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))
}

func TestValidateParsesVerdict(t *testing.T) {
	llm := &fakeCompleter{reply: "Sure.\n```json\n{\"ValidResolution\": false, \"ResolutionReason\": \"different months\"}\n```"}
	checked := time.Date(2025, 9, 2, 8, 0, 0, 0, time.UTC)
	svc, err := NewService(Config{LLM: llm, Now: func() time.Time { return checked }})
	require.NoError(t, err)

	verdict, err := svc.Validate(context.Background(), testMatch())
	require.NoError(t, err)
	assert.False(t, verdict.ValidResolution)
	assert.True(t, verdict.Rejects())
	assert.Equal(t, "different months", verdict.ResolutionReason)
	assert.Equal(t, "test-model", verdict.Model)
	assert.Equal(t, checked, verdict.CheckedAt)

	assert.Contains(t, llm.prompt, "KXCPI-25SEP-T3.0")
	assert.Contains(t, llm.prompt, "0xcpi-sep")
	assert.Contains(t, llm.prompt, "www.bls.gov")
	assert.Contains(t, llm.prompt, "2025-10-15T12:30:00Z")
}

func TestValidateErrors(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)

	boom := errors.New("rate limited")
	svc, err := NewService(Config{LLM: &fakeCompleter{err: boom}})
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), testMatch())
	assert.ErrorIs(t, err, boom)

	svc, err = NewService(Config{LLM: &fakeCompleter{reply: "no json here"}})
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), testMatch())
	assert.Error(t, err)
}

func TestParseResult(t *testing.T) {
	res, err := parseResult(`{"ValidResolution": true, "ResolutionReason": "same BLS print"}`)
	require.NoError(t, err)
	assert.True(t, res.ValidResolution)

	_, err = parseResult("   ")
	assert.Error(t, err)
}

func TestCollectDomains(t *testing.T) {
	got := collectDomains("https://www.BLS.gov/cpi", "see (https://fred.stlouisfed.org/series/CPIAUCSL) and https://www.bls.gov/x")
	assert.Equal(t, []string{"fred.stlouisfed.org", "www.bls.gov"}, got)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "abc", truncateText(" abc ", 10))
	assert.Equal(t, "ab ... (truncated)", truncateText("abcdef", 2))
}
