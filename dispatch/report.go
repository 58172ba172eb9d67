package dispatch

import (
	"time"

	"github.com/pure-golang/sheetmail/sheet"
)

// State is where a row ended up after a run.
type State string

const (
	StatePending    State = "pending"    // not processed yet
	StateSkipped    State = "skipped"    // status was not pending
	StateDryRun     State = "dry_run"    // would have been sent
	StateSent       State = "sent"       // delivered and marked Sent
	StateUnresolved State = "unresolved" // send or writeback failed, row stays pending
)

// States lists every terminal state.
var States = []State{StateSkipped, StateDryRun, StateSent, StateUnresolved}

// Outcome is the result for one row.
type Outcome struct {
	Row   sheet.Row
	State State
	Err   error // *Error when State is StateUnresolved
	// Recovered is set when the send was skipped because an earlier run had
	// already delivered the message.
	Recovered    bool
	SendDuration time.Duration
}

// Report collects every outcome of a run in snapshot order.
type Report struct {
	RunID    string
	Outcomes []Outcome
}

func (r *Report) Count(s State) int {
	var n int
	for _, o := range r.Outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}

func (r *Report) Sent() []Outcome {
	return r.filter(StateSent)
}

func (r *Report) Unresolved() []Outcome {
	return r.filter(StateUnresolved)
}

func (r *Report) filter(s State) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.State == s {
			out = append(out, o)
		}
	}
	return out
}
