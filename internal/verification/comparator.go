package verification

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"

	"healthcert/internal/domain"
)

// Comparator decides whether two keys pass one verification step. It is a
// pluggable capability: the engine does not choose the underlying primitive.
// Implementations must be deterministic so identical inputs always reproduce
// the same run outcome.
type Comparator interface {
	Compare(keyA, keyB string, stepID string, tier domain.SecurityTier) bool
}

// hmacComparator is the default capability. Each step derives fresh material
// from both keys with HMAC-SHA256 keyed on the step id and tier, then
// compares in constant time. The standard tier forgives whitespace and case
// differences; enhanced and government compare the exact bytes.
type hmacComparator struct{}

// NewHMACComparator returns the default key comparison capability.
func NewHMACComparator() Comparator { return hmacComparator{} }

func (hmacComparator) Compare(keyA, keyB string, stepID string, tier domain.SecurityTier) bool {
	if tier == domain.TierStandard {
		keyA = strings.ToUpper(strings.TrimSpace(keyA))
		keyB = strings.ToUpper(strings.TrimSpace(keyB))
	}
	a := deriveMaterial(keyA, stepID, tier)
	b := deriveMaterial(keyB, stepID, tier)
	return hmac.Equal(a, b)
}

func deriveMaterial(key, stepID string, tier domain.SecurityTier) []byte {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(stepID))
	mac.Write([]byte{0})
	mac.Write([]byte(tier))
	return mac.Sum(nil)
}
