// Package transport carries traffic between the shell wrapper and the
// background reasoning daemon over a Unix domain socket.
//
// One connection multiplexes concurrent calls using envelope correlation ids.
// Ingest calls are buffered through a drop-oldest ring and replayed in order
// after a reconnect; chat calls fail fast while the daemon is unreachable,
// since a stale answer to a stale question is worse than a visible failure.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/aegish/aegish/pkg/logging"
	"github.com/aegish/aegish/pkg/protocol"
)

var (
	// ErrDisconnected is returned when the daemon is unreachable.
	ErrDisconnected = errors.New("reasoning service unavailable")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport closed")
)

const (
	defaultReplayCapacity = 256
	defaultDialTimeout    = time.Second

	reconnectBase = 250 * time.Millisecond
	reconnectCap  = 8 * time.Second

	// maxConsecutiveMalformed is how many undecodable lines in a row are
	// tolerated before the connection is torn down.
	maxConsecutiveMalformed = 5
)

// ChatEvent is one element of a chat response stream, or a terminal error.
type ChatEvent struct {
	Chunk protocol.ChatChunk
	Err   error
}

// WarnFunc receives non-fatal operational warnings, e.g. buffer overflow.
type WarnFunc func(format string, args ...interface{})

// Option configures a Client.
type Option func(*Client)

// WithReplayCapacity sets the ingest replay buffer capacity.
func WithReplayCapacity(n int) Option {
	return func(c *Client) {
		c.pending = newReplayRing(n)
	}
}

// WithDialTimeout sets the per-attempt dial timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// WithWarnFunc sets the sink for operator-visible warnings.
func WithWarnFunc(fn WarnFunc) Option {
	return func(c *Client) {
		c.warn = fn
	}
}

type chatStream struct {
	ch        chan ChatEvent
	sessionID string
}

// Client is the wrapper-side endpoint of the daemon connection.
type Client struct {
	socketPath  string
	dialTimeout time.Duration
	warn        WarnFunc
	logger      *logging.Logger

	mu      sync.Mutex
	conn    net.Conn
	enc     *protocol.Encoder
	nextID  uint64
	streams map[uint64]*chatStream
	pending *replayRing
	closed  bool

	kick     chan struct{}
	shutdown chan struct{}
	done     sync.WaitGroup
}

// NewClient creates a client for the daemon socket at socketPath.
// The connection is established lazily on first use.
func NewClient(socketPath string, opts ...Option) *Client {
	logger, _ := logging.NewLogger("transport")

	c := &Client{
		socketPath:  socketPath,
		dialTimeout: defaultDialTimeout,
		warn:        func(format string, args ...interface{}) {},
		logger:      logger,
		streams:     make(map[uint64]*chatStream),
		pending:     newReplayRing(defaultReplayCapacity),
		kick:        make(chan struct{}, 1),
		shutdown:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.done.Add(1)
	go c.senderLoop()

	return c
}

// Ingest queues one command event for delivery. It never blocks on the
// network: the event goes into the replay ring and a background sender
// drains it, dropping the oldest entry on overflow.
func (c *Client) Ingest(req *protocol.IngestRequest) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	dropped := c.pending.push(req)
	c.mu.Unlock()

	if dropped {
		c.warn("ingest buffer full, oldest event dropped")
		c.logger.Warnf("ingest replay ring overflow, dropped oldest event")
	}

	select {
	case c.kick <- struct{}{}:
	default:
	}
	return nil
}

// Chat submits a query and returns its response stream. Fails immediately
// with ErrDisconnected when the daemon cannot be reached; queries are never
// queued for later delivery.
func (c *Client) Chat(ctx context.Context, req *protocol.ChatRequest) (<-chan ChatEvent, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if err := c.ensureConnLocked(); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}

	c.nextID++
	id := c.nextID
	stream := &chatStream{
		ch:        make(chan ChatEvent, 16),
		sessionID: req.SessionID,
	}
	c.streams[id] = stream
	enc := c.enc
	c.mu.Unlock()

	env, err := protocol.NewEnvelope(id, protocol.KindChat, req)
	if err != nil {
		c.dropStream(id)
		return nil, err
	}
	if err := enc.Encode(env); err != nil {
		c.dropStream(id)
		c.handleDisconnect(err)
		return nil, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}

	go c.watchCancel(ctx, id, req)

	return stream.ch, nil
}

// watchCancel propagates context cancellation as a cancel message and tears
// down the local stream.
func (c *Client) watchCancel(ctx context.Context, id uint64, req *protocol.ChatRequest) {
	select {
	case <-ctx.Done():
	case <-c.shutdown:
		return
	}

	c.mu.Lock()
	stream, ok := c.streams[id]
	if ok {
		delete(c.streams, id)
	}
	enc := c.enc
	c.mu.Unlock()

	if !ok {
		return // stream already finished
	}

	if enc != nil {
		cancel := &protocol.CancelRequest{SessionID: req.SessionID, Seq: req.Seq}
		if env, err := protocol.NewEnvelope(id, protocol.KindCancel, cancel); err == nil {
			if err := enc.Encode(env); err != nil {
				c.logger.Debugf("cancel send failed: %v", err)
			}
		}
	}

	stream.ch <- ChatEvent{Err: ctx.Err()}
	close(stream.ch)
}

// Close shuts down the client and fails all in-flight streams.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.enc = nil
	streams := c.streams
	c.streams = make(map[uint64]*chatStream)
	c.mu.Unlock()

	close(c.shutdown)
	if conn != nil {
		conn.Close()
	}
	for _, s := range streams {
		s.ch <- ChatEvent{Err: ErrClosed}
		close(s.ch)
	}
	c.done.Wait()
	return c.logger.Close()
}

// PendingIngests reports how many events await delivery.
func (c *Client) PendingIngests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.len()
}

// ensureConnLocked dials the socket if there is no live connection.
// Caller holds c.mu.
func (c *Client) ensureConnLocked() error {
	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", c.socketPath, c.dialTimeout)
	if err != nil {
		return err
	}

	c.conn = conn
	c.enc = protocol.NewEncoder(conn)

	c.done.Add(1)
	go c.readLoop(conn)

	c.logger.Infof("connected to %s", c.socketPath)
	return nil
}

// senderLoop drains the replay ring, reconnecting with exponential backoff.
func (c *Client) senderLoop() {
	defer c.done.Done()

	backoff := reconnectBase
	for {
		select {
		case <-c.shutdown:
			return
		case <-c.kick:
		}

		for {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			req := c.pending.pop()
			if req == nil {
				c.mu.Unlock()
				backoff = reconnectBase
				break
			}
			if err := c.ensureConnLocked(); err != nil {
				c.pending.unpop(req)
				c.mu.Unlock()
				c.logger.Debugf("dial failed, retrying in %v: %v", backoff, err)
				if !c.sleep(backoff) {
					return
				}
				backoff = nextBackoff(backoff)
				continue
			}
			enc := c.enc
			c.mu.Unlock()

			env, err := protocol.NewEnvelope(c.nextIngestID(), protocol.KindIngest, req)
			if err != nil {
				c.logger.Errorf("dropping unencodable ingest event: %v", err)
				continue
			}
			if err := enc.Encode(env); err != nil {
				c.mu.Lock()
				c.pending.unpop(req)
				c.mu.Unlock()
				c.handleDisconnect(err)
				if !c.sleep(backoff) {
					return
				}
				backoff = nextBackoff(backoff)
				continue
			}
			backoff = reconnectBase
		}
	}
}

func (c *Client) nextIngestID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

// sleep waits for d or until shutdown; returns false on shutdown.
func (c *Client) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.shutdown:
		return false
	case <-timer.C:
		// retry pending sends after the wait
		select {
		case c.kick <- struct{}{}:
		default:
		}
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > reconnectCap {
		return reconnectCap
	}
	return d
}

// readLoop routes incoming envelopes to their streams until the connection
// drops or emits too many malformed lines in a row.
func (c *Client) readLoop(conn net.Conn) {
	defer c.done.Done()

	dec := protocol.NewDecoder(conn)
	malformed := 0

	for {
		env, err := dec.Decode()
		if err != nil {
			var bad *protocol.MalformedError
			if errors.As(err, &bad) {
				malformed++
				c.logger.Warnf("discarding malformed message (%d consecutive): %v", malformed, err)
				if malformed < maxConsecutiveMalformed {
					continue
				}
				c.logger.Errorf("too many malformed messages, dropping connection")
			} else if err != io.EOF {
				c.logger.Warnf("read error: %v", err)
			}
			c.handleDisconnect(err)
			return
		}
		malformed = 0

		switch env.Kind {
		case protocol.KindIngestAck:
			var ack protocol.IngestAck
			if err := env.DecodePayload(&ack); err != nil {
				c.logger.Warnf("bad ingest ack: %v", err)
				continue
			}
			c.logger.Debugf("event %d ingested as %d chunks", ack.Seq, ack.Chunks)

		case protocol.KindChatChunk:
			var chunk protocol.ChatChunk
			if err := env.DecodePayload(&chunk); err != nil {
				c.logger.Warnf("bad chat chunk: %v", err)
				continue
			}
			c.deliverChunk(env.ID, chunk)

		case protocol.KindError:
			var reply protocol.ErrorReply
			if err := env.DecodePayload(&reply); err != nil {
				c.logger.Warnf("bad error reply: %v", err)
				continue
			}
			c.failStream(env.ID, errors.New(reply.Message))

		default:
			c.logger.Warnf("discarding message of unknown kind %q", env.Kind)
		}
	}
}

func (c *Client) deliverChunk(id uint64, chunk protocol.ChatChunk) {
	c.mu.Lock()
	stream, ok := c.streams[id]
	if ok && chunk.Final {
		delete(c.streams, id)
	}
	c.mu.Unlock()

	if !ok {
		return // canceled or unknown; drop
	}

	stream.ch <- ChatEvent{Chunk: chunk}
	if chunk.Final {
		close(stream.ch)
	}
}

func (c *Client) failStream(id uint64, err error) {
	c.mu.Lock()
	stream, ok := c.streams[id]
	if ok {
		delete(c.streams, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	stream.ch <- ChatEvent{Err: err}
	close(stream.ch)
}

func (c *Client) dropStream(id uint64) {
	c.mu.Lock()
	delete(c.streams, id)
	c.mu.Unlock()
}

// handleDisconnect tears down the connection and fails every in-flight chat.
// Buffered ingest events stay queued for replay after reconnect.
func (c *Client) handleDisconnect(cause error) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.enc = nil
	streams := c.streams
	c.streams = make(map[uint64]*chatStream)
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
		c.logger.Infof("disconnected: %v", cause)
	}

	for _, s := range streams {
		s.ch <- ChatEvent{Err: ErrDisconnected}
		close(s.ch)
	}

	select {
	case c.kick <- struct{}{}:
	default:
	}
}
