package session

// State is a step of the session lifecycle. States only move forward.
type State int

const (
	Idle State = iota
	SchemaLoaded
	AwaitingTerminalMessage
	Reconciling
	Persisted
	HandoffToUpload
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SchemaLoaded:
		return "schema-loaded"
	case AwaitingTerminalMessage:
		return "awaiting-terminal-message"
	case Reconciling:
		return "reconciling"
	case Persisted:
		return "persisted"
	case HandoffToUpload:
		return "handoff-to-upload"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Finished reports whether the session has processed its terminal message.
func (s State) Finished() bool {
	return s >= Persisted
}
