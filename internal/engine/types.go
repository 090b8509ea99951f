// Package engine drives individual calculator pages: snapshotting an empty
// form, applying caller-supplied field values against an unpredictable DOM,
// and reading the computed result back out.
package engine

// CalculatorRef identifies one calculator for the duration of a request.
type CalculatorRef struct {
	ID  string
	URL string
}

// FieldDescriptor is a best-effort structural description of one form field.
// Discovery may miss fields entirely on heavily dynamic pages; callers are
// expected to rely on the capture, not this list.
type FieldDescriptor struct {
	Label   string             `json:"label"`
	Kind    string             `json:"kind"` // "numeric" or "discrete"
	Options []OptionDescriptor `json:"options,omitempty"`
}

// OptionDescriptor is one clickable option of a discrete field.
type OptionDescriptor struct {
	DisplayText string `json:"text"`
	Selected    bool   `json:"selected"`
}

// Assignment maps a visible field label to the value the caller wants
// applied. Value is either a numeric literal or the exact visible text of a
// discrete option. No normalization or synonym mapping is applied.
type Assignment struct {
	Field string
	Value string
}

// Snapshot is the inspection view of an empty calculator form.
type Snapshot struct {
	Title   string
	URL     string
	Fields  []FieldDescriptor
	Capture []byte
	Zoom    int
}

// ExecutionOutcome is the terminal result of one calculator execution.
// Succeeded reflects structured extraction only; Capture is populated
// whenever navigation succeeded, regardless of extraction.
type ExecutionOutcome struct {
	Succeeded      bool
	ScoreText      string
	RiskText       string
	Interpretation string
	Capture        []byte
	Zoom           int
}

// SearchHit is one result from the target site's own search.
type SearchHit struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}
