package domain

// ScanJob describes one scan of a document image. Jobs are ephemeral: the
// scanner owns them for the duration of a run and discards them afterwards.
type ScanJob struct {
	ID           ScanJobID
	DocumentType DocumentType
	ImageRef     string
	EnhancedMode bool
}

// ScanProgress is one tick of a running scan. Emitted repeatedly, never
// persisted. PercentComplete is monotonically non-decreasing within a job and
// reaches exactly 100 on completion. Confidence is only reported once the
// scan is far enough along for it to be meaningful.
type ScanProgress struct {
	PercentComplete int     `json:"percent_complete"`
	Confidence      float64 `json:"confidence,omitempty"`
	StageLabel      string  `json:"stage_label"`
}

// Field is a single extracted key/value pair. Extraction order is part of the
// result contract, so fields are a slice rather than a map.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ScanResult is the terminal product of a successful scan job.
type ScanResult struct {
	ImageRef      string  `json:"image_ref"`
	ExtractedText string  `json:"extracted_text"`
	Fields        []Field `json:"fields"`
	Confidence    float64 `json:"confidence"`
}

// FieldValue returns the value for a named field, or "" when absent.
func (r ScanResult) FieldValue(name string) string {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}
