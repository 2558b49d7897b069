package reservation

// State is the reservation flow state.
type State string

const (
	StateIdle       State = "idle"
	StateDrafting   State = "drafting"
	StateSubmitting State = "submitting"
)

// transitions lists the moves callers may request. Drafting -> Drafting
// covers a new selection replacing the current draft. Submitting has no
// entries: only the running submission leaves it.
var transitions = map[State][]State{
	StateIdle:       {StateDrafting},
	StateDrafting:   {StateDrafting, StateSubmitting, StateIdle},
	StateSubmitting: nil,
}

// CanTransition checks if transition is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
