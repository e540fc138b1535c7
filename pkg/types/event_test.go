package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamEventConstructors(t *testing.T) {
	tok := NewTokenEvent("scribe", "hello")
	assert.Equal(t, EventTypeToken, tok.Type)
	assert.Equal(t, "scribe", tok.Agent)
	assert.Equal(t, "hello", tok.Token)
	assert.False(t, tok.IsTerminal())

	cits := NewCitationsEvent("scribe", []Citation{{EventSeq: 7, ChunkID: "c1"}})
	assert.Equal(t, EventTypeCitations, cits.Type)
	assert.Len(t, cits.Citations, 1)
	assert.Equal(t, uint64(7), cits.Citations[0].EventSeq)

	done := NewDoneEvent("scribe")
	assert.True(t, done.IsTerminal())
	assert.False(t, done.IsError())

	failed := NewErrorEvent("researcher", errors.New("timeout"))
	assert.True(t, failed.IsTerminal())
	assert.True(t, failed.IsError())
	assert.EqualError(t, failed.Err, "timeout")
}
