package domain

import dErrors "healthcert/pkg/domain-errors"

// SecurityTier selects which verification steps run and how strict key
// comparison is.
type SecurityTier string

const (
	TierStandard   SecurityTier = "standard"
	TierEnhanced   SecurityTier = "enhanced"
	TierGovernment SecurityTier = "government"
)

func (t SecurityTier) IsValid() bool {
	switch t {
	case TierStandard, TierEnhanced, TierGovernment:
		return true
	}
	return false
}

// ParseSecurityTier constructs a SecurityTier from external input.
func ParseSecurityTier(s string) (SecurityTier, error) {
	t := SecurityTier(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown security tier %q", s)
	}
	return t, nil
}

// StepStatus is the lifecycle of a single verification step.
// Transitions: pending -> processing -> (success | error).
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepSuccess    StepStatus = "success"
	StepError      StepStatus = "error"
)

// VerificationStep is one check in an ordered verification run. Steps are
// run-scoped: only the terminal run outcome outlives the run.
type VerificationStep struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	Description string     `json:"description"`
}

// RunOutcome is the terminal state of a verification run.
type RunOutcome string

const (
	OutcomeVerified RunOutcome = "verified"
	OutcomeFailed   RunOutcome = "failed"
)
