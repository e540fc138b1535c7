// Package term owns the child shell process and the pseudo-terminal it runs
// on. It copies bytes bidirectionally between the outer terminal and the
// child on independent paths so a stall in one direction never blocks the
// other, forwards window resizes, and propagates the child's exit status.
package term

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/aegish/aegish/pkg/logging"
)

// OutputFunc observes raw child output before it reaches the outer terminal.
// Called from the read loop; implementations must not block.
type OutputFunc func(p []byte)

// Option configures a Session.
type Option func(*Session)

// WithShell overrides shell selection.
func WithShell(shell string) Option {
	return func(s *Session) {
		s.shell = shell
	}
}

// WithOutputObserver registers an observer of the child's output stream.
func WithOutputObserver(fn OutputFunc) Option {
	return func(s *Session) {
		s.observers = append(s.observers, fn)
	}
}

// WithStdio overrides the outer terminal streams, used by tests.
func WithStdio(stdin *os.File, stdout io.Writer) Option {
	return func(s *Session) {
		s.stdin = stdin
		s.stdout = stdout
	}
}

// Session is one running shell attached to a pseudo-terminal.
type Session struct {
	ID    string
	shell string

	stdin  *os.File
	stdout io.Writer

	cmd  *exec.Cmd
	ptmx *os.File

	observers []OutputFunc
	paused    atomic.Bool

	restoreState *term.State
	logger       *logging.Logger

	zdotdir string

	sigCh    chan os.Signal
	closed   chan struct{}
	closeOne sync.Once

	waitMu   sync.Mutex
	exitCode int
	waitErr  error
	waited   bool
}

// NewSession creates a session for the user's shell. The shell is taken from
// $SHELL, falling back to /bin/zsh then /bin/sh.
func NewSession(opts ...Option) *Session {
	logger, _ := logging.NewLogger("term")

	s := &Session{
		ID:     uuid.New().String(),
		shell:  defaultShell(),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		logger: logger,
		sigCh:  make(chan os.Signal, 4),
		closed: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	if _, err := os.Stat("/bin/zsh"); err == nil {
		return "/bin/zsh"
	}
	return "/bin/sh"
}

// Start spawns the shell on a PTY, puts the outer terminal into raw mode,
// and begins copying child output. Spawn failure is fatal to the caller.
func (s *Session) Start() error {
	cmd := exec.Command(s.shell)
	cmd.Env = os.Environ()

	// zsh sessions get command-boundary hooks through a wrapper ZDOTDIR.
	if isZsh(s.shell) {
		zdotdir, err := writeZshIntegration()
		if err != nil {
			s.logger.Warnf("shell integration unavailable: %v", err)
		} else {
			s.zdotdir = zdotdir
			cmd.Env = append(cmd.Env, "ZDOTDIR="+zdotdir)
		}
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("failed to spawn shell %s: %w", s.shell, err)
	}
	s.cmd = cmd
	s.ptmx = ptmx

	if term.IsTerminal(int(s.stdin.Fd())) {
		state, err := term.MakeRaw(int(s.stdin.Fd()))
		if err != nil {
			ptmx.Close()
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		s.restoreState = state
	}

	signal.Notify(s.sigCh, syscall.SIGWINCH)
	go s.resizeLoop()
	s.sigCh <- syscall.SIGWINCH // initial size

	go s.outputLoop()

	s.logger.Infof("session %s started shell %s (pid %d)", s.ID, s.shell, cmd.Process.Pid)
	return nil
}

// resizeLoop propagates terminal size changes to the child promptly,
// independent of any queued input processing.
func (s *Session) resizeLoop() {
	for {
		select {
		case <-s.closed:
			return
		case <-s.sigCh:
			if err := pty.InheritSize(s.stdin, s.ptmx); err != nil {
				s.logger.Warnf("resize failed: %v", err)
			}
		}
	}
}

// outputLoop copies child output to the outer terminal and feeds observers.
// A transient read error is retried once; a second failure is treated as
// child exit.
func (s *Session) outputLoop() {
	buf := make([]byte, 8192)
	failedOnce := false

	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			for _, fn := range s.observers {
				fn(chunk)
			}
			if !s.paused.Load() {
				if _, werr := s.stdout.Write(chunk); werr != nil {
					s.logger.Warnf("stdout write failed: %v", werr)
				}
			}
			failedOnce = false
		}
		if err != nil {
			if err == io.EOF || failedOnce {
				s.closeOnce()
				return
			}
			failedOnce = true
			s.logger.Debugf("pty read error, retrying once: %v", err)
		}
	}
}

// Write forwards input bytes to the child.
func (s *Session) Write(p []byte) (int, error) {
	return s.ptmx.Write(p)
}

// Resize triggers a size propagation outside of SIGWINCH delivery.
func (s *Session) Resize() {
	select {
	case s.sigCh <- syscall.SIGWINCH:
	default:
	}
}

// PauseOutput stops mirroring child output to the outer terminal while an
// overlay owns the screen. Observers keep receiving output.
func (s *Session) PauseOutput(paused bool) {
	s.paused.Store(paused)
}

// Done is closed when the child has exited.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Wait blocks until the child exits and returns its exit code.
func (s *Session) Wait() (int, error) {
	<-s.closed

	s.waitMu.Lock()
	defer s.waitMu.Unlock()
	if !s.waited {
		s.waited = true
		err := s.cmd.Wait()
		s.exitCode = 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				s.exitCode = exitErr.ExitCode()
			} else {
				s.waitErr = err
				s.exitCode = 1
			}
		}
	}
	return s.exitCode, s.waitErr
}

// Close restores the outer terminal and releases the PTY. Safe to call
// multiple times.
func (s *Session) Close() {
	s.closeOnce()
	signal.Stop(s.sigCh)
	if s.restoreState != nil {
		term.Restore(int(s.stdin.Fd()), s.restoreState)
		s.restoreState = nil
	}
	if s.ptmx != nil {
		s.ptmx.Close()
	}
	if s.zdotdir != "" {
		os.RemoveAll(s.zdotdir)
		s.zdotdir = ""
	}
	s.logger.Close()
}

func (s *Session) closeOnce() {
	s.closeOne.Do(func() {
		close(s.closed)
	})
}
