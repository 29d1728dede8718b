package mapview

// State is a style lifecycle state.
type State int

// Style lifecycle states. Aborted ends a sequence; Start begins a new one.
const (
	StateIdle State = iota
	StateStyleFetching
	StateStyleReady
	StateAttached
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStyleFetching:
		return "style_fetching"
	case StateStyleReady:
		return "style_ready"
	case StateAttached:
		return "attached"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
