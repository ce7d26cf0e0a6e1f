package matches

import (
	"fmt"
	"sort"

	"github.com/hetulpatel/crossarb/internal/hashutil"
	"github.com/hetulpatel/crossarb/internal/models"
)

func textDigest(c models.Contract) string {
	return hashutil.HashStrings(
		c.EventTitle,
		c.Question,
		c.ResolutionSource,
		c.ResolutionDetails,
		c.CloseTime.UTC().Format("2006-01-02"),
	)
}

// VerdictCacheKey builds an order-independent cache key for a pair based on
// venue, contract, and a hash of the resolution-relevant text. Edited rules
// produce a new key.
func VerdictCacheKey(a, b models.Contract) string {
	if a.ContractID == "" || b.ContractID == "" {
		return ""
	}
	left := fmt.Sprintf("%s:%s:%s", a.Venue, a.ContractID, textDigest(a))
	right := fmt.Sprintf("%s:%s:%s", b.Venue, b.ContractID, textDigest(b))
	parts := []string{left, right}
	sort.Strings(parts)
	return fmt.Sprintf("%s|%s", parts[0], parts[1])
}
