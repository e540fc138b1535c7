package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aegish/aegish/pkg/logging"
)

// Chunk is one indexed slice of a command transcript.
type Chunk struct {
	ID        string
	SessionID string
	// EventSeq is the capture sequence number of the source command.
	EventSeq uint64
	Command  string
	Text     string

	vector []float32
}

// Result pairs a chunk with its similarity to a query.
type Result struct {
	Chunk Chunk
	Score float32
}

// Store is the in-memory retrieval index. Insertions append; chunks are
// never mutated or removed for the lifetime of a session. A single writer
// (the ingest path) and many readers (agents) share it.
type Store struct {
	chunker *Chunker
	logger  *logging.Logger

	mu       sync.RWMutex
	sessions map[string][]Chunk
}

// NewStore creates an empty store.
func NewStore() *Store {
	logger, _ := logging.NewLogger("memory")
	return &Store{
		chunker:  NewChunker(),
		logger:   logger,
		sessions: make(map[string][]Chunk),
	}
}

// Add indexes one captured command for a session and returns the number of
// chunks inserted. Re-ingested commands insert fresh chunks; the store
// does not deduplicate.
func (s *Store) Add(sessionID string, eventSeq uint64, command, output string) int {
	text := command
	if output != "" {
		text += "\n" + output
	}
	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return 0
	}

	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		chunks = append(chunks, Chunk{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			EventSeq:  eventSeq,
			Command:   command,
			Text:      piece,
			vector:    embed(piece),
		})
	}

	s.mu.Lock()
	s.sessions[sessionID] = append(s.sessions[sessionID], chunks...)
	total := len(s.sessions[sessionID])
	s.mu.Unlock()

	s.logger.Debugf("indexed %d chunks for session %s (total %d)", len(chunks), sessionID, total)
	return len(chunks)
}

// Search returns up to topK chunks from the session most similar to query,
// best first. An unknown session or empty index yields an empty result,
// never an error.
func (s *Store) Search(sessionID, query string, topK int) []Result {
	if topK <= 0 {
		return nil
	}
	qvec := embed(query)

	s.mu.RLock()
	chunks := s.sessions[sessionID]
	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, Result{Chunk: c, Score: cosine(qvec, c.vector)})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Len returns the number of chunks indexed for a session.
func (s *Store) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}

// History returns the commands of the most recent n indexed events for a
// session, oldest first, one entry per event.
func (s *Store) History(sessionID string, n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	var lastSeq uint64
	seen := false
	for _, c := range s.sessions[sessionID] {
		if seen && c.EventSeq == lastSeq {
			continue
		}
		out = append(out, c.Command)
		lastSeq = c.EventSeq
		seen = true
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
