package harness

import "github.com/roach88/cbind/internal/store"

// Step is one session call of a scenario run.
type Step struct {
	Op string `json:"op"`

	// Seq is the session clock after the call.
	Seq int64 `json:"seq"`

	// Outcome is "ok" or the session error code.
	Outcome string `json:"outcome"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Pass   bool     `json:"pass"`
	Trace  []Step   `json:"trace"`
	Errors []string `json:"errors,omitempty"`

	// Tree lists the written elements in document order, indented by depth.
	Tree []string `json:"tree,omitempty"`

	Snapshot store.Snapshot `json:"snapshot"`

	// Intents counts applied mapping intents by kind.
	Intents map[string]int `json:"intents,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []Step{},
		Errors:  []string{},
		Intents: map[string]int{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addStep(op string, seq int64, outcome string) {
	r.Trace = append(r.Trace, Step{Op: op, Seq: seq, Outcome: outcome})
}
