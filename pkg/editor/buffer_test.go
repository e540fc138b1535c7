package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func typeString(b *EditBuffer, s string) {
	for _, r := range s {
		b.Insert(r)
	}
}

func TestEditBufferInsertAndCursor(t *testing.T) {
	b := NewEditBuffer()
	typeString(b, "hello")
	assert.Equal(t, "hello", b.String())
	assert.Equal(t, 5, b.Cursor())

	b.MoveLeft()
	b.MoveLeft()
	b.Insert('X')
	assert.Equal(t, "helXlo", b.String())
	assert.Equal(t, 4, b.Cursor())
}

func TestEditBufferBackspace(t *testing.T) {
	b := NewEditBuffer()
	typeString(b, "abc")
	b.Backspace()
	assert.Equal(t, "ab", b.String())

	b.Home()
	b.Backspace() // no-op at start
	assert.Equal(t, "ab", b.String())
	assert.Equal(t, 0, b.Cursor())
}

func TestEditBufferKills(t *testing.T) {
	b := NewEditBuffer()
	typeString(b, "one two three")

	b.Home()
	for range "one " {
		b.MoveRight()
	}
	b.KillToEnd()
	assert.Equal(t, "one ", b.String())

	typeString(b, "four")
	b.KillToStart()
	assert.Equal(t, "", b.String())
	assert.Equal(t, 0, b.Cursor())
}

func TestEditBufferKillPrevWord(t *testing.T) {
	b := NewEditBuffer()
	typeString(b, "git commit -m")
	b.KillPrevWord()
	assert.Equal(t, "git commit ", b.String())
	b.KillPrevWord()
	assert.Equal(t, "git ", b.String())

	// Trailing spaces are eaten along with the word.
	b.Reset()
	typeString(b, "ls   ")
	b.KillPrevWord()
	assert.Equal(t, "", b.String())
}

func TestEditBufferUnicode(t *testing.T) {
	b := NewEditBuffer()
	typeString(b, "héllo")
	assert.Equal(t, 5, b.Len())
	b.Backspace()
	b.Backspace()
	b.Backspace()
	b.Backspace()
	assert.Equal(t, "h", b.String())
}
