package delivery

// State is a step of a delivery attempt.
type State int

const (
	StateLocate State = iota
	StateClear
	StateWrite
	StateSettle
	StateDispatch
	StateVerify
	StateFallback
	StateDone
)

var stateNames = [...]string{
	StateLocate:   "LOCATE",
	StateClear:    "CLEAR",
	StateWrite:    "WRITE",
	StateSettle:   "SETTLE",
	StateDispatch: "DISPATCH",
	StateVerify:   "VERIFY",
	StateFallback: "FALLBACK",
	StateDone:     "DONE",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// transitions lists the legal successors of each state. Every state may end
// the attempt early on error.
var transitions = map[State][]State{
	StateLocate:   {StateClear, StateDone},
	StateClear:    {StateWrite, StateDone},
	StateWrite:    {StateSettle, StateDone},
	StateSettle:   {StateDispatch, StateDone},
	StateDispatch: {StateVerify, StateFallback, StateDone},
	StateVerify:   {StateFallback, StateDone},
	StateFallback: {StateDone},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
