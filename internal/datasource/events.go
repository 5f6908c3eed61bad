package datasource

// Node run statuses carried on completion events.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// NodeEvent is one event emitted while a datasource node runs.
type NodeEvent interface {
	nodeEvent()
}

// StreamChunkEvent is an incremental piece of a node output channel. The
// selector addresses the channel, e.g. [node_id, "text"].
type StreamChunkEvent struct {
	Selector []string
	Chunk    string
	IsFinal  bool
}

func (StreamChunkEvent) nodeEvent() {}

// CompletedEvent terminates a node run, successfully or not. Variables are
// values bound onto the node, Outputs the structured result.
type CompletedEvent struct {
	Status      string
	Variables   map[string]any
	Outputs     map[string]any
	ProcessData map[string]any
	Error       string
	ErrorType   string
}

func (CompletedEvent) nodeEvent() {}
