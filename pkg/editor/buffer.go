// Package editor implements the input interceptor and line editor sitting
// between the operator's keystrokes and the child shell. In line-editing
// mode keystrokes mutate a local buffer and nothing reaches the shell until
// Enter; in raw passthrough mode every byte is forwarded untouched.
package editor

import "unicode"

// EditBuffer is the operator's in-progress command line: an ordered rune
// sequence plus a cursor offset. Mutated only by the interceptor; reset on
// submit.
type EditBuffer struct {
	runes  []rune
	cursor int
}

// NewEditBuffer creates an empty buffer.
func NewEditBuffer() *EditBuffer {
	return &EditBuffer{}
}

// String returns the buffer contents.
func (b *EditBuffer) String() string {
	return string(b.runes)
}

// Runes returns the buffer contents as runes. The slice is shared; callers
// must not mutate it.
func (b *EditBuffer) Runes() []rune {
	return b.runes
}

// Len returns the number of runes in the buffer.
func (b *EditBuffer) Len() int {
	return len(b.runes)
}

// Cursor returns the cursor offset in runes.
func (b *EditBuffer) Cursor() int {
	return b.cursor
}

// Insert places r at the cursor and advances it.
func (b *EditBuffer) Insert(r rune) {
	b.runes = append(b.runes, 0)
	copy(b.runes[b.cursor+1:], b.runes[b.cursor:])
	b.runes[b.cursor] = r
	b.cursor++
}

// InsertString places s at the cursor.
func (b *EditBuffer) InsertString(s string) {
	for _, r := range s {
		b.Insert(r)
	}
}

// Backspace removes the rune before the cursor.
func (b *EditBuffer) Backspace() {
	if b.cursor == 0 {
		return
	}
	copy(b.runes[b.cursor-1:], b.runes[b.cursor:])
	b.runes = b.runes[:len(b.runes)-1]
	b.cursor--
}

// MoveLeft moves the cursor one rune left.
func (b *EditBuffer) MoveLeft() {
	if b.cursor > 0 {
		b.cursor--
	}
}

// MoveRight moves the cursor one rune right.
func (b *EditBuffer) MoveRight() {
	if b.cursor < len(b.runes) {
		b.cursor++
	}
}

// Home moves the cursor to the start of the line.
func (b *EditBuffer) Home() {
	b.cursor = 0
}

// End moves the cursor past the last rune.
func (b *EditBuffer) End() {
	b.cursor = len(b.runes)
}

// KillToStart deletes everything before the cursor.
func (b *EditBuffer) KillToStart() {
	b.runes = append(b.runes[:0], b.runes[b.cursor:]...)
	b.cursor = 0
}

// KillToEnd deletes everything at and after the cursor.
func (b *EditBuffer) KillToEnd() {
	b.runes = b.runes[:b.cursor]
}

// KillPrevWord deletes the word before the cursor, including any spaces
// between it and the cursor.
func (b *EditBuffer) KillPrevWord() {
	start := b.cursor
	for start > 0 && unicode.IsSpace(b.runes[start-1]) {
		start--
	}
	for start > 0 && !unicode.IsSpace(b.runes[start-1]) {
		start--
	}
	b.runes = append(b.runes[:start], b.runes[b.cursor:]...)
	b.cursor = start
}

// Set replaces the buffer contents and puts the cursor at the end.
func (b *EditBuffer) Set(s string) {
	b.runes = []rune(s)
	b.cursor = len(b.runes)
}

// Reset clears the buffer.
func (b *EditBuffer) Reset() {
	b.runes = b.runes[:0]
	b.cursor = 0
}

// AtEnd reports whether the cursor is past the last rune.
func (b *EditBuffer) AtEnd() bool {
	return b.cursor == len(b.runes)
}
