// Package protocol defines the request/response types for aegish IPC.
// Messages are JSON-encoded and sent over a Unix domain socket, one per line.
//
// Every message travels inside an Envelope carrying a correlation id so that
// concurrent calls can share a single connection. A unary exchange is one
// request envelope answered by one reply envelope with the same id; a chat
// exchange is one request envelope answered by a sequence of chunk envelopes
// ending with a chunk marked final or an error reply.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message kinds carried in Envelope.Kind.
const (
	KindIngest    = "ingest"
	KindIngestAck = "ingest_ack"
	KindChat      = "chat"
	KindChatChunk = "chat_chunk"
	KindCancel    = "cancel"
	KindError     = "error"
)

// Envelope frames every message on the wire.
type Envelope struct {
	// ID correlates replies with their originating request.
	ID uint64 `json:"id"`

	// Kind identifies the payload type.
	Kind string `json:"kind"`

	// Payload is the JSON-encoded message body.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IngestRequest submits one completed command event for ingestion.
type IngestRequest struct {
	SessionID  string    `json:"session_id"`
	Seq        uint64    `json:"seq"`
	Command    string    `json:"command"`
	Stdout     string    `json:"stdout"`
	ExitCode   int       `json:"exit_code"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// IngestAck acknowledges a stored command event.
type IngestAck struct {
	Seq    uint64 `json:"seq"`
	Chunks int    `json:"chunks"`
}

// ChatRequest submits one operator query for a streamed answer.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
	Query     string `json:"query"`
}

// Citation references captured material an answer drew from.
type Citation struct {
	EventSeq uint64 `json:"event_seq"`
	ChunkID  string `json:"chunk_id,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// ChatChunk is one increment of a streamed answer.
type ChatChunk struct {
	Token     string     `json:"token,omitempty"`
	Agent     string     `json:"agent,omitempty"`
	Final     bool       `json:"final,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
}

// CancelRequest tears down the in-flight chat stream for a session.
type CancelRequest struct {
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
}

// ErrorReply terminates a correlation id with an error.
type ErrorReply struct {
	Message string `json:"message"`
}

// NewEnvelope wraps a payload into an envelope of the given kind.
func NewEnvelope(id uint64, kind string, payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return &Envelope{ID: id, Kind: kind, Payload: raw}, nil
}

// DecodePayload unmarshals the envelope payload into dst.
func (e *Envelope) DecodePayload(dst interface{}) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Kind, err)
	}
	return nil
}
