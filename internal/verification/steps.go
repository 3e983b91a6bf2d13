package verification

import "healthcert/internal/domain"

// stepKind distinguishes checks that only inspect key shape from checks that
// compare derived key material.
type stepKind int

const (
	kindPresence stepKind = iota
	kindComparison
)

// stepSpec is one entry in a tier's step table. The order of specs is the
// execution order: each step's description assumes the previous checks held.
type stepSpec struct {
	id          string
	name        string
	description string
	kind        stepKind
}

// Tier step tables. The engine owns these; call sites never assemble step
// sets themselves. Higher tiers extend lower ones rather than replacing them
// so the shared steps keep identical ids across tiers.
var (
	standardSteps = []stepSpec{
		{
			id:          "key-integrity",
			name:        "Key integrity check",
			description: "Confirms both comparison keys are present and well formed",
			kind:        kindPresence,
		},
		{
			id:          "digest-match",
			name:        "Digest comparison",
			description: "Compares key digests derived for this verification run",
			kind:        kindComparison,
		},
		{
			id:          "signature-chain",
			name:        "Signature chain validation",
			description: "Validates the derived signature material against the submitted keys",
			kind:        kindComparison,
		},
		{
			id:          "final-attestation",
			name:        "Final attestation",
			description: "Re-derives and cross-checks all prior material before attesting",
			kind:        kindComparison,
		},
	}

	biometricStep = stepSpec{
		id:          "biometric-pattern",
		name:        "Biometric pattern check",
		description: "Matches biometric-derived key material between both parties",
		kind:        kindComparison,
	}

	authorityStep = stepSpec{
		id:          "authority-crosscheck",
		name:        "Authority cross-check",
		description: "Cross-references the attestation with the issuing authority record",
		kind:        kindComparison,
	}
)

// stepsForTier returns a fresh copy of the tier's step table.
func stepsForTier(tier domain.SecurityTier) []stepSpec {
	specs := make([]stepSpec, 0, len(standardSteps)+2)
	specs = append(specs, standardSteps...)
	switch tier {
	case domain.TierEnhanced:
		specs = append(specs, biometricStep)
	case domain.TierGovernment:
		specs = append(specs, biometricStep, authorityStep)
	}
	return specs
}
