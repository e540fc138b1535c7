package types

// StreamEventType defines the type of event emitted on an agent response stream.
type StreamEventType string

const (
	EventTypeToken     StreamEventType = "token"     // EventTypeToken carries one incremental piece of answer text.
	EventTypeCitations StreamEventType = "citations" // EventTypeCitations carries the citation list for the answer.
	EventTypeDone      StreamEventType = "done"      // EventTypeDone marks the end of a successful response stream.
	EventTypeError     StreamEventType = "error"     // EventTypeError marks a failed response stream.
)

// Citation references the captured material an answer drew from.
type Citation struct {
	// EventSeq is the sequence number of the command event the material came from.
	EventSeq uint64 `json:"event_seq"`

	// ChunkID identifies the memory chunk, when the source was the retrieval store.
	ChunkID string `json:"chunk_id,omitempty"`

	// Snippet is a short excerpt of the cited material.
	Snippet string `json:"snippet,omitempty"`
}

// StreamEvent is one element of an agent response stream.
//
// A well-formed stream is zero or more token events, optionally one citations
// event, then exactly one done or error event. Nothing follows done or error.
type StreamEvent struct {
	// Type indicates the kind of event.
	Type StreamEventType

	// Token holds answer text for token events.
	Token string

	// Agent names the responding agent, set on every event.
	Agent string

	// Citations holds the citation list for citations events.
	Citations []Citation

	// Err contains error information for error events.
	Err error
}

// NewTokenEvent creates a token event.
func NewTokenEvent(agent, token string) *StreamEvent {
	return &StreamEvent{Type: EventTypeToken, Agent: agent, Token: token}
}

// NewCitationsEvent creates a citations event.
func NewCitationsEvent(agent string, citations []Citation) *StreamEvent {
	return &StreamEvent{Type: EventTypeCitations, Agent: agent, Citations: citations}
}

// NewDoneEvent creates a done event.
func NewDoneEvent(agent string) *StreamEvent {
	return &StreamEvent{Type: EventTypeDone, Agent: agent}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(agent string, err error) *StreamEvent {
	return &StreamEvent{Type: EventTypeError, Agent: agent, Err: err}
}

// IsTerminal returns true if no further events follow this one.
func (e *StreamEvent) IsTerminal() bool {
	return e.Type == EventTypeDone || e.Type == EventTypeError
}

// IsError returns true if this is an error event.
func (e *StreamEvent) IsError() bool {
	return e.Type == EventTypeError
}
