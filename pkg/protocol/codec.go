package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MaxLineBytes bounds a single wire message. Command output is truncated by
// the capturer well below this, so hitting the bound means a broken peer.
const MaxLineBytes = 1 << 20

// Encoder writes envelopes as newline-delimited JSON. Safe for concurrent use.
type Encoder struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes one envelope followed by a newline and flushes.
func (e *Encoder) Encode(env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("failed to write envelope: %w", err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write delimiter: %w", err)
	}
	return e.w.Flush()
}

// Decoder reads newline-delimited envelopes.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	return &Decoder{scanner: scanner}
}

// Decode reads the next envelope. Returns io.EOF when the stream ends.
// A malformed line is reported as an error without consuming the stream's
// remaining lines; callers decide how many malformed lines to tolerate.
func (d *Decoder) Decode() (*Envelope, error) {
	if !d.scanner.Scan() {
		if err := d.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	line := d.scanner.Bytes()
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, &MalformedError{Line: string(line), Err: err}
	}
	if env.Kind == "" {
		return nil, &MalformedError{Line: string(line), Err: fmt.Errorf("missing kind")}
	}
	return &env, nil
}

// MalformedError reports an undecodable wire line. The connection stays
// usable; repeated occurrences are grounds for teardown.
type MalformedError struct {
	Line string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed message: %v", e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}
