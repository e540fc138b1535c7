// Package main provides the aegish shell wrapper. It runs the user's shell
// on a PTY, adds local line editing with inline completions, captures
// command events for the reasoning daemon, and overlays streamed answers
// for !-prefixed queries.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aegish/aegish/pkg/capture"
	"github.com/aegish/aegish/pkg/complete"
	"github.com/aegish/aegish/pkg/config"
	"github.com/aegish/aegish/pkg/editor"
	"github.com/aegish/aegish/pkg/logging"
	"github.com/aegish/aegish/pkg/overlay"
	"github.com/aegish/aegish/pkg/protocol"
	"github.com/aegish/aegish/pkg/term"
	"github.com/aegish/aegish/pkg/transport"
)

const version = "0.1.0"

const (
	historyCapacity = 500
	eventQueueSize  = 64
)

type cliConfig struct {
	configPath  string
	socketPath  string
	shell       string
	model       string
	baseURL     string
	apiKey      string
	showVersion bool
}

func main() {
	cfg := parseFlags()
	if cfg.showVersion {
		fmt.Printf("aegish v%s\n", version)
		return
	}

	if err := config.Initialize(cfg.configPath); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	code, err := run(cfg)
	if err != nil {
		log.Fatalf("aegish: %v", err)
	}
	os.Exit(code)
}

func parseFlags() *cliConfig {
	cfg := &cliConfig{}
	flag.StringVar(&cfg.configPath, "config", "", "Config file path (default ~/.aegish/config.json)")
	flag.StringVar(&cfg.socketPath, "socket", "", "Daemon socket path (default from config)")
	flag.StringVar(&cfg.shell, "shell", "", "Shell to wrap (default $SHELL)")
	flag.StringVar(&cfg.model, "model", "", "Model for inline completions")
	flag.StringVar(&cfg.baseURL, "base-url", "", "API base URL")
	flag.StringVar(&cfg.apiKey, "api-key", "", "API key (or AEGISH_API_KEY)")
	flag.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")
	flag.Parse()
	return cfg
}

// app wires the wrapper's components for one session.
type app struct {
	session     *term.Session
	interceptor *editor.Interceptor
	engine      *complete.Engine
	capturer    *capture.Capturer
	queue       *capture.EventQueue
	client      *transport.Client
	logger      *logging.Logger

	querySeq uint64
	// overlayInput routes stdin to the overlay while one is open.
	overlayInput atomic.Pointer[io.PipeWriter]
}

func run(cfg *cliConfig) (int, error) {
	logger, _ := logging.NewLogger("aegish")
	defer logger.Close()

	socketPath := cfg.socketPath
	if socketPath == "" {
		var err error
		socketPath, err = config.GetDaemon().ResolveSocketPath()
		if err != nil {
			return 0, err
		}
	}

	a := &app{logger: logger}

	a.client = transport.NewClient(socketPath,
		transport.WithWarnFunc(logger.Warnf))
	defer a.client.Close()

	a.queue = capture.NewEventQueue(eventQueueSize)

	var sessionOpts []term.Option
	if cfg.shell != "" {
		sessionOpts = append(sessionOpts, term.WithShell(cfg.shell))
	}

	var captureOpts []capture.Option
	captureOpts = append(captureOpts, capture.WithWarnFunc(logger.Warnf))
	if !usesZsh(cfg.shell) {
		captureOpts = append(captureOpts, capture.WithPromptHeuristic())
	}
	a.capturer = capture.NewCapturer(a.queue, captureOpts...)

	a.interceptor = editor.NewInterceptor(historyCapacity, editor.Handlers{
		Forward:           a.forward,
		Echo:              func(p []byte) { os.Stdout.Write(p) },
		SubmitQuery:       a.submitQuery,
		RequestCompletion: func(prefix string) uint64 { return a.requestCompletion(prefix) },
	})

	a.engine = newEngine(cfg, a.interceptor.History(), logger)
	defer a.engine.Close()

	sessionOpts = append(sessionOpts,
		term.WithOutputObserver(a.capturer.ProcessOutput),
		term.WithOutputObserver(a.interceptor.ObserveOutput),
	)
	a.session = term.NewSession(sessionOpts...)
	if err := a.session.Start(); err != nil {
		return 0, err
	}
	defer a.session.Close()

	go a.suggestionLoop()
	go a.ingestLoop()
	go a.inputLoop()

	code, err := a.session.Wait()
	if err != nil {
		logger.Warnf("shell wait: %v", err)
	}
	return code, nil
}

// newEngine builds the completion engine from flags and config.
func newEngine(cfg *cliConfig, history *editor.History, logger *logging.Logger) *complete.Engine {
	var opts []complete.Option

	if section := config.GetCompletion(); section != nil {
		if budget := section.Budget(); budget > 0 {
			opts = append(opts, complete.WithBudget(budget))
		}
		if patterns := section.GetIgnorePatterns(); len(patterns) > 0 {
			opts = append(opts, complete.WithIgnorePatterns(patterns))
		}
		if section.ModelEnabled() {
			model := cfg.model
			if model == "" {
				model = completionModelFromConfig()
			}
			provider, err := config.BuildProvider(model, cfg.baseURL, cfg.apiKey)
			if err != nil {
				logger.Warnf("model completions disabled: %v", err)
			} else {
				opts = append(opts, complete.WithProvider(provider))
			}
		}
	}
	return complete.NewEngine(history, opts...)
}

func completionModelFromConfig() string {
	if llm := config.GetLLM(); llm != nil {
		if m := llm.GetCompletionModel(); m != "" {
			return m
		}
		return llm.GetModel()
	}
	return ""
}

func usesZsh(flagShell string) bool {
	shell := flagShell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	return strings.HasSuffix(shell, "zsh")
}

// forward sends editor output to the child shell, feeding the prompt
// heuristic when a full line goes down.
func (a *app) forward(p []byte) {
	if line, ok := submittedLine(p); ok {
		a.capturer.NoteSubmitted(line)
	}
	if _, err := a.session.Write(p); err != nil {
		a.logger.Warnf("forward to shell failed: %v", err)
	}
}

// submittedLine reports whether p is a complete submitted command line.
func submittedLine(p []byte) (string, bool) {
	if len(p) < 2 || p[len(p)-1] != '\r' {
		return "", false
	}
	line := string(p[:len(p)-1])
	for _, r := range line {
		if r < 0x20 || r == 0x7f {
			return "", false
		}
	}
	return line, true
}

func (a *app) requestCompletion(prefix string) uint64 {
	return a.engine.Request(prefix)
}

// suggestionLoop delivers completion results to the interceptor, which
// discards anything stale.
func (a *app) suggestionLoop() {
	for {
		select {
		case <-a.session.Done():
			return
		case s := <-a.engine.Results():
			a.interceptor.ApplySuggestion(s)
		}
	}
}

// ingestLoop drains captured command events into the transport client.
func (a *app) ingestLoop() {
	for {
		select {
		case <-a.session.Done():
			return
		case <-a.queue.Notify():
			for {
				ev, ok := a.queue.Pop()
				if !ok {
					break
				}
				err := a.client.Ingest(&protocol.IngestRequest{
					SessionID:  a.session.ID,
					Seq:        ev.Seq,
					Command:    ev.Command,
					Stdout:     ev.Output,
					ExitCode:   ev.ExitCode,
					StartedAt:  ev.StartedAt,
					FinishedAt: ev.FinishedAt,
				})
				if err != nil {
					a.logger.Warnf("ingest of event %d failed: %v", ev.Seq, err)
				}
			}
		}
	}
}

// inputLoop reads operator keystrokes and routes them to the interceptor,
// or to the overlay while one owns the screen.
func (a *app) inputLoop() {
	buf := make([]byte, 1024)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if w := a.overlayInput.Load(); w != nil {
				w.Write(buf[:n])
			} else {
				a.interceptor.ProcessInput(buf[:n])
			}
		}
		if err != nil {
			return
		}
	}
}

// submitQuery runs the overlay flow for one !-prefixed query and any
// follow-ups typed inside it. Called from the interceptor; the stream and
// UI run on their own goroutine.
func (a *app) submitQuery(query string) {
	go func() {
		ask := func(ctx context.Context, q string) (<-chan transport.ChatEvent, error) {
			return a.client.Chat(ctx, &protocol.ChatRequest{
				SessionID: a.session.ID,
				Seq:       atomic.AddUint64(&a.querySeq, 1),
				Query:     q,
			})
		}

		// Fail fast before taking over the screen: a down daemon is an
		// inline one-liner, not an empty overlay.
		probeCtx, probeCancel := context.WithCancel(context.Background())
		events, err := ask(probeCtx, query)
		if err != nil {
			probeCancel()
			fmt.Fprintf(os.Stdout, "\r\naegish: %v\r\n", err)
			return
		}

		a.session.PauseOutput(true)
		defer a.session.PauseOutput(false)

		pr, pw := io.Pipe()
		a.overlayInput.Store(pw)
		defer func() {
			a.overlayInput.Store(nil)
			pw.Close()
		}()

		first := true
		replay := func(ctx context.Context, q string) (<-chan transport.ChatEvent, error) {
			if first {
				first = false
				go func() {
					<-ctx.Done()
					probeCancel()
				}()
				return events, nil
			}
			return ask(ctx, q)
		}

		if _, err := overlay.Run(query, replay, tea.WithInput(pr), tea.WithOutput(os.Stdout)); err != nil {
			a.logger.Warnf("overlay failed: %v", err)
		}

		// The shell's screen content is stale after the alt screen closes.
		a.session.Resize()
	}()
}
