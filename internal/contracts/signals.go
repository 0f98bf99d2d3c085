package contracts

import "time"

// Action is the decision for one (instrument, session)
type Action string

const (
	ActionNone Action = ""     // no signal
	ActionHold Action = "HOLD" // evaluated, nothing to do
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Emits reports whether the action should reach the execution host
func (a Action) Emits() bool {
	return a == ActionBuy || a == ActionSell
}

// String renders ActionNone as NONE for logs and tables
func (a Action) String() string {
	if a == ActionNone {
		return "NONE"
	}
	return string(a)
}

// Signal is a derived decision; it is recomputed on demand and never stored as a source of truth
type Signal struct {
	Instrument string    `json:"instrument"`
	Session    time.Time `json:"session"`
	Position   int       `json:"position"`
	Score      float64   `json:"score"`
	InTopK     bool      `json:"in_top_k"`
	Action     Action    `json:"action"`
}
