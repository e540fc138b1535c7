package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/aegish/aegish/pkg/logging"
	"github.com/aegish/aegish/pkg/protocol"
)

// Handler processes requests arriving on the daemon side of the socket.
type Handler interface {
	// HandleIngest stores one command event and reports how many memory
	// chunks it produced.
	HandleIngest(ctx context.Context, req *protocol.IngestRequest) (*protocol.IngestAck, error)

	// HandleChat answers one query, delivering increments through send.
	// The context is canceled when the client cancels the query, submits a
	// newer one for the same session, or drops the connection.
	HandleChat(ctx context.Context, req *protocol.ChatRequest, send func(protocol.ChatChunk) error) error

	// HandleCancel is informed of an explicit cancel for a session's query.
	HandleCancel(ctx context.Context, req *protocol.CancelRequest)
}

// Server accepts wrapper connections on a Unix domain socket.
type Server struct {
	socketPath string
	handler    Handler
	logger     *logging.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// NewServer creates a server that dispatches to handler.
func NewServer(socketPath string, handler Handler) *Server {
	logger, _ := logging.NewLogger("transport-server")
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger,
	}
}

// Serve listens on the socket and blocks until ctx is canceled or the
// listener fails. A stale socket file from a previous run is removed first.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return ErrClosed
	}
	s.listener = listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	s.logger.Infof("listening on %s", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go s.serveConn(ctx, conn)
	}
}

// Close stops the listener. In-flight chats are canceled by their
// connections closing.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	return nil
}

// chatReg is one in-flight chat registration. CancelFuncs are not
// comparable, so ownership checks go through the registration pointer.
type chatReg struct {
	cancel context.CancelFunc
}

// connState tracks the in-flight chat per session for one connection.
type connState struct {
	mu    sync.Mutex
	chats map[string]*chatReg // session id -> in-flight chat
}

// startChat registers a new chat for the session, canceling any previous one.
func (cs *connState) startChat(sessionID string, cancel context.CancelFunc) *chatReg {
	reg := &chatReg{cancel: cancel}
	cs.mu.Lock()
	prev := cs.chats[sessionID]
	cs.chats[sessionID] = reg
	cs.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
	return reg
}

// endChat clears the registration if it is still the session's current one;
// a newer chat may have replaced it.
func (cs *connState) endChat(sessionID string, reg *chatReg) {
	cs.mu.Lock()
	if cs.chats[sessionID] == reg {
		delete(cs.chats, sessionID)
	}
	cs.mu.Unlock()
}

func (cs *connState) cancelSession(sessionID string) {
	cs.mu.Lock()
	reg := cs.chats[sessionID]
	delete(cs.chats, sessionID)
	cs.mu.Unlock()
	if reg != nil {
		reg.cancel()
	}
}

func (cs *connState) cancelAll() {
	cs.mu.Lock()
	chats := cs.chats
	cs.chats = make(map[string]*chatReg)
	cs.mu.Unlock()
	for _, reg := range chats {
		reg.cancel()
	}
}

// serveConn handles one wrapper connection until it drops.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connCtx, cancelConn := context.WithCancel(ctx)
	defer cancelConn()

	enc := protocol.NewEncoder(conn)
	dec := protocol.NewDecoder(conn)
	state := &connState{chats: make(map[string]*chatReg)}
	defer state.cancelAll()

	malformed := 0
	for {
		env, err := dec.Decode()
		if err != nil {
			var bad *protocol.MalformedError
			if errors.As(err, &bad) {
				malformed++
				s.logger.Warnf("discarding malformed message (%d consecutive): %v", malformed, err)
				if malformed < maxConsecutiveMalformed {
					continue
				}
				s.logger.Errorf("too many malformed messages, closing connection")
			} else if err != io.EOF {
				s.logger.Warnf("connection read error: %v", err)
			}
			return
		}
		malformed = 0

		switch env.Kind {
		case protocol.KindIngest:
			s.handleIngest(connCtx, env, enc)

		case protocol.KindChat:
			s.handleChat(connCtx, env, enc, state)

		case protocol.KindCancel:
			var req protocol.CancelRequest
			if err := env.DecodePayload(&req); err != nil {
				s.logger.Warnf("bad cancel request: %v", err)
				continue
			}
			state.cancelSession(req.SessionID)
			s.handler.HandleCancel(connCtx, &req)

		default:
			s.logger.Warnf("discarding message of unknown kind %q", env.Kind)
		}
	}
}

func (s *Server) handleIngest(ctx context.Context, env *protocol.Envelope, enc *protocol.Encoder) {
	var req protocol.IngestRequest
	if err := env.DecodePayload(&req); err != nil {
		s.logger.Warnf("bad ingest request: %v", err)
		s.reply(enc, env.ID, protocol.KindError, &protocol.ErrorReply{Message: err.Error()})
		return
	}

	ack, err := s.handler.HandleIngest(ctx, &req)
	if err != nil {
		s.logger.Warnf("ingest of event %d failed: %v", req.Seq, err)
		s.reply(enc, env.ID, protocol.KindError, &protocol.ErrorReply{Message: err.Error()})
		return
	}
	s.reply(enc, env.ID, protocol.KindIngestAck, ack)
}

func (s *Server) handleChat(ctx context.Context, env *protocol.Envelope, enc *protocol.Encoder, state *connState) {
	var req protocol.ChatRequest
	if err := env.DecodePayload(&req); err != nil {
		s.logger.Warnf("bad chat request: %v", err)
		s.reply(enc, env.ID, protocol.KindError, &protocol.ErrorReply{Message: err.Error()})
		return
	}

	chatCtx, cancel := context.WithCancel(ctx)
	reg := state.startChat(req.SessionID, cancel)

	go func() {
		defer cancel()
		defer state.endChat(req.SessionID, reg)

		send := func(chunk protocol.ChatChunk) error {
			if chatCtx.Err() != nil {
				return chatCtx.Err()
			}
			return s.reply(enc, env.ID, protocol.KindChatChunk, &chunk)
		}

		if err := s.handler.HandleChat(chatCtx, &req, send); err != nil {
			if chatCtx.Err() != nil {
				return // canceled; the client no longer cares
			}
			s.reply(enc, env.ID, protocol.KindError, &protocol.ErrorReply{Message: err.Error()})
		}
	}()
}

func (s *Server) reply(enc *protocol.Encoder, id uint64, kind string, payload interface{}) error {
	env, err := protocol.NewEnvelope(id, kind, payload)
	if err != nil {
		s.logger.Errorf("failed to build %s reply: %v", kind, err)
		return err
	}
	if err := enc.Encode(env); err != nil {
		s.logger.Warnf("failed to send %s reply: %v", kind, err)
		return err
	}
	return nil
}
