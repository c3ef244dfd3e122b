package engine

// Result is the outcome of one fragment. Every field is text.
type Result struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Return    string `json:"return"`
	Traceback string `json:"traceback,omitempty"`
}

// Failed reports whether the fragment raised an unhandled error.
func (r Result) Failed() bool {
	return r.Traceback != ""
}

// HasOutput reports whether the fragment wrote anything or set a return value.
func (r Result) HasOutput() bool {
	return r.Stdout != "" || r.Stderr != "" || r.Return != ""
}

// Executor runs fragments. Implementations are not safe for concurrent use;
// callers serialize Execute calls.
type Executor interface {
	Execute(fragment string) Result
}
