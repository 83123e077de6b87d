package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq int    `json:"seq"`
	Op  string `json:"op"`

	// IDs lists the record ids submitted by append and batch.
	IDs []string `json:"ids,omitempty"`

	// Hashes lists the hashes returned on success.
	Hashes []string `json:"hashes,omitempty"`

	// Error is the engine error kind, empty on success.
	Error string `json:"error,omitempty"`

	// Length is the ledger length after the step.
	Length int `json:"length"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Tip is the hex hash of the last entry, empty for an empty ledger.
	Tip string `json:"tip,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addEvent(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
