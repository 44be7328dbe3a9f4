// Package intent classifies free-text requests into the fixed category set
// used to route between the works search path and the knowledge base path.
package intent

// Intent is the caller's classified purpose category.
type Intent string

const (
	WorkSearch Intent = "WORK_SEARCH"
	QA         Intent = "APRA_QA"
	Ambiguous  Intent = "AMBIGUOUS"
	OutOfScope Intent = "OUT_OF_SCOPE"
)

// Valid reports whether i is one of the fixed categories.
func (i Intent) Valid() bool {
	switch i {
	case WorkSearch, QA, Ambiguous, OutOfScope:
		return true
	}
	return false
}

// Result is produced once per request and never updated.
type Result struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}
