// Package bulk reports the outcome of multi-record operations where each record succeeds or fails on its own.
package bulk

// Failure names one identifier that could not be processed.
type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Result collects per-identifier outcomes.
type Result struct {
	Succeeded []string  `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

// NewResult returns an empty result with non-nil slices so it encodes as arrays.
func NewResult() Result {
	return Result{Succeeded: []string{}, Failed: []Failure{}}
}

// Succeed records a processed identifier.
func (r *Result) Succeed(id string) {
	r.Succeeded = append(r.Succeeded, id)
}

// Fail records an identifier together with the reason it was not processed.
func (r *Result) Fail(id, reason string) {
	r.Failed = append(r.Failed, Failure{ID: id, Reason: reason})
}

func (r Result) SuccessCount() int {
	return len(r.Succeeded)
}

func (r Result) FailureCount() int {
	return len(r.Failed)
}

// Partial reports whether some but not all identifiers were processed.
func (r Result) Partial() bool {
	return len(r.Succeeded) > 0 && len(r.Failed) > 0
}
