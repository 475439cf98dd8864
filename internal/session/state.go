package session

// State is a step of the coordinator's lifecycle.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateSelecting
	StateResolving
	StateActive
	StateTerminating
	StateClosed
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateScanning:    "scanning",
	StateSelecting:   "selecting",
	StateResolving:   "resolving",
	StateActive:      "active",
	StateTerminating: "terminating",
	StateClosed:      "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
