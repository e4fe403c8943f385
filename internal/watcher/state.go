package watcher

// State is a lifecycle state of the agent or a stage of one file's pipeline.
type State int

// Agent states run Starting → Preflight → Watching → Stopped, or end in
// FailedStartup. Settling, Transcoding and Disposing are per-file stages
// entered from Watching.
const (
	StateStarting State = iota
	StatePreflight
	StateWatching
	StateSettling
	StateTranscoding
	StateDisposing
	StateStopped
	StateFailedStartup
)

var stateNames = map[State]string{
	StateStarting:      "starting",
	StatePreflight:     "preflight",
	StateWatching:      "watching",
	StateSettling:      "settling",
	StateTranscoding:   "transcoding",
	StateDisposing:     "disposing",
	StateStopped:       "stopped",
	StateFailedStartup: "failed_startup",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transitions happen from s.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailedStartup
}

// AgentStates lists the states the agent as a whole can be in, in order.
func AgentStates() []string {
	return []string{
		StateStarting.String(),
		StatePreflight.String(),
		StateWatching.String(),
		StateStopped.String(),
		StateFailedStartup.String(),
	}
}
