package scanner

import "healthcert/internal/domain"

// Confidence model. The confidence track follows the percent track at a 0.95
// ratio and is capped at 95; enhanced-mode captures override the terminal
// value to 98. Below the reporting threshold the signal is too noisy to show.
const (
	confidenceRatio     = 0.95
	confidenceCap       = 95
	enhancedConfidence  = 98
	confidenceThreshold = 30
)

// Stage labels by percent band. Informational only: they never feed back into
// percent or confidence.
var stages = []struct {
	below int
	label string
}{
	{30, "Analyzing image"},
	{60, "Detecting text regions"},
	{90, "Identifying document fields"},
	{101, "Processing complete"},
}

func stageLabel(percent int) string {
	for _, s := range stages {
		if percent < s.below {
			return s.label
		}
	}
	return stages[len(stages)-1].label
}

func confidenceAt(percent int) float64 {
	c := float64(percent) * confidenceRatio
	if c > confidenceCap {
		return confidenceCap
	}
	return c
}

// progressAt builds the tick for a given percent. terminal selects the
// enhanced-mode override.
func progressAt(percent int, enhanced, terminal bool) domain.ScanProgress {
	p := domain.ScanProgress{
		PercentComplete: percent,
		StageLabel:      stageLabel(percent),
	}
	if percent >= confidenceThreshold {
		p.Confidence = confidenceAt(percent)
	}
	if terminal && enhanced {
		p.Confidence = enhancedConfidence
	}
	return p
}
