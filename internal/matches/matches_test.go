package matches

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/models"
)

func TestStrategySides(t *testing.T) {
	assert.Equal(t, collectors.SideYes, StrategyYes.SideA())
	assert.Equal(t, collectors.SideNo, StrategyYes.SideB())
	assert.Equal(t, collectors.SideNo, StrategyNo.SideA())
	assert.Equal(t, collectors.SideYes, StrategyNo.SideB())
}

func TestPairIDIsOrderIndependent(t *testing.T) {
	a := models.Contract{Venue: collectors.VenueKalshi, ContractID: "K1"}
	b := models.Contract{Venue: collectors.VenuePolymarket, ContractID: "P1"}
	assert.Equal(t, PairID(a, b), PairID(b, a))
	assert.Len(t, PairID(a, b), 16)
	assert.NotEqual(t, PairID(a, b), PairID(a, models.Contract{Venue: collectors.VenuePolymarket, ContractID: "P2"}))
}

func TestVerdictCacheKeyChangesWithRules(t *testing.T) {
	a := models.Contract{Venue: collectors.VenueKalshi, ContractID: "K1", Question: "Q", CloseTime: time.Date(2025, 9, 17, 0, 0, 0, 0, time.UTC)}
	b := models.Contract{Venue: collectors.VenuePolymarket, ContractID: "P1", Question: "Q"}

	key := VerdictCacheKey(a, b)
	assert.Equal(t, key, VerdictCacheKey(b, a))

	b.ResolutionDetails = "resolves per BLS release"
	assert.NotEqual(t, key, VerdictCacheKey(a, b))
	assert.Empty(t, VerdictCacheKey(a, models.Contract{}))
}
