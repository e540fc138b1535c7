// Package main provides aegishd, the reasoning daemon behind the aegish
// shell wrapper. It listens on a Unix socket, indexes captured command
// events into a session-scoped retrieval store, and answers !-queries by
// routing them to specialist agents.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aegish/aegish/pkg/agents"
	"github.com/aegish/aegish/pkg/config"
	"github.com/aegish/aegish/pkg/llm"
	"github.com/aegish/aegish/pkg/logging"
	"github.com/aegish/aegish/pkg/memory"
	"github.com/aegish/aegish/pkg/orchestrator"
	"github.com/aegish/aegish/pkg/sanitize"
	"github.com/aegish/aegish/pkg/transport"
)

const version = "0.1.0"

type cliConfig struct {
	configPath  string
	socketPath  string
	model       string
	baseURL     string
	apiKey      string
	noSanitize  bool
	showVersion bool
}

func main() {
	cfg := parseFlags()
	if cfg.showVersion {
		fmt.Printf("aegishd v%s\n", version)
		return
	}

	if err := config.Initialize(cfg.configPath); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("aegishd: %v", err)
	}
}

func parseFlags() *cliConfig {
	cfg := &cliConfig{}
	flag.StringVar(&cfg.configPath, "config", "", "Config file path (default ~/.aegish/config.json)")
	flag.StringVar(&cfg.socketPath, "socket", "", "Socket path to listen on (default from config)")
	flag.StringVar(&cfg.model, "model", "", "Model for agent responses")
	flag.StringVar(&cfg.baseURL, "base-url", "", "API base URL")
	flag.StringVar(&cfg.apiKey, "api-key", "", "API key (or AEGISH_API_KEY)")
	flag.BoolVar(&cfg.noSanitize, "no-sanitize", false, "Disable egress redaction")
	flag.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")
	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg *cliConfig) error {
	logger, _ := logging.NewLogger("aegishd")
	defer logger.Close()

	socketPath := cfg.socketPath
	if socketPath == "" {
		var err error
		socketPath, err = config.GetDaemon().ResolveSocketPath()
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	var sanitizerOpts []sanitize.Option
	if cfg.noSanitize || !config.GetDaemon().SanitizerEnabled() {
		sanitizerOpts = append(sanitizerOpts, sanitize.WithDisabled())
		logger.Warnf("egress sanitizer disabled")
	}
	sanitizer := sanitize.New(sanitizerOpts...)

	// The networked agents degrade gracefully without a provider; the
	// syntax agent and the scribe's digest fallback stay available.
	var provider llm.Provider
	if p, err := config.BuildProvider(cfg.model, cfg.baseURL, cfg.apiKey); err != nil {
		logger.Warnf("running without a model provider: %v", err)
	} else {
		provider = p
		logger.Infof("model provider ready (%s)", p.GetModel())
	}

	store := memory.NewStore()
	orch := orchestrator.New(store,
		orchestrator.WithAgent(agents.NewSyntaxAgent()),
		orchestrator.WithAgent(agents.NewResearcherAgent(provider, sanitizer)),
		orchestrator.WithAgent(agents.NewScribeAgent(provider, store, sanitizer)),
		orchestrator.WithAgent(agents.NewGeneralAgent(provider, sanitizer)),
	)

	server := transport.NewServer(socketPath, orch)
	logger.Infof("aegishd v%s starting on %s", version, socketPath)
	return server.Serve(ctx)
}
