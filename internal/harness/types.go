package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// TraceEvent is one line of a scenario trace: a flow step being invoked
// on a replica, or its outcome.
type TraceEvent struct {
	Type    string         `json:"type"`
	Seq     int64          `json:"seq"`
	Replica string         `json:"replica,omitempty"`
	Action  string         `json:"action,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome string         `json:"outcome,omitempty"` // "ok" or an error code
	Result  map[string]any `json:"result,omitempty"`
}

// OutcomeOK is the outcome of a step that returned no error.
const OutcomeOK = "ok"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Views holds the rendered sidebar of each replica after the flow,
	// keyed by replica name.
	Views map[string]string `json:"views,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Views:  make(map[string]string),
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace appends an invocation event.
func (r *Result) AddInvocationTrace(replica, action string, args map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    EventInvocation,
		Seq:     seq,
		Replica: replica,
		Action:  action,
		Args:    args,
	})
}

// AddCompletionTrace appends a completion event.
func (r *Result) AddCompletionTrace(replica, outcome string, result map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    EventCompletion,
		Seq:     seq,
		Replica: replica,
		Outcome: outcome,
		Result:  result,
	})
}
