// Package main provides the entry point for the lareview server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lareview/lareview/internal/agent"
	"github.com/lareview/lareview/internal/config"
	"github.com/lareview/lareview/internal/event"
	"github.com/lareview/lareview/internal/gate"
	"github.com/lareview/lareview/internal/generate"
	"github.com/lareview/lareview/internal/logging"
	"github.com/lareview/lareview/internal/repolink"
	"github.com/lareview/lareview/internal/server"
	"github.com/lareview/lareview/internal/storage"
	"github.com/lareview/lareview/internal/timeline"
	"github.com/lareview/lareview/internal/vcs"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	flagPort      int
	flagHost      string
	flagDirectory string
	flagDataDir   string
	flagLogLevel  string
	flagPretty    bool
)

var rootCmd = &cobra.Command{
	Use:   "lareview-server",
	Short: "lareview - AI-assisted code review server",
	Long: `lareview-server hosts the review generation engine: it drives an
external reviewer agent over a diff, folds the agent's progress stream into a
live timeline, and mediates repository snapshot access behind a user
confirmation gate.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().IntVar(&flagPort, "port", 0, "Server port (overrides config)")
	rootCmd.Flags().StringVar(&flagHost, "host", "", "Bind address (overrides config)")
	rootCmd.Flags().StringVar(&flagDirectory, "directory", "", "Working directory for project config")
	rootCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "Data directory (overrides config)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.Flags().BoolVar(&flagPretty, "pretty", false, "Human-readable log output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("lareview-server %s (%s)\n", Version, BuildTime))
}

func run() error {
	workDir := flagDirectory
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if flagHost != "" {
		cfg.Host = flagHost
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Pretty: flagPretty || cfg.LogPretty,
	})

	if err := config.GetPaths().EnsurePaths(); err != nil {
		return fmt.Errorf("create data directories: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	bus := event.NewBus()
	defer bus.Close()

	store := storage.New(cfg.DataDir)
	repos := repolink.NewService(store, bus)

	agents := agent.NewRegistry()
	if err := agents.LoadOverrides(cfg.AgentsFile); err != nil {
		logging.Warn().Err(err).Str("path", cfg.AgentsFile).Msg("agent overrides not loaded")
	}
	agents.SetDefault(cfg.DefaultAgent)

	orch := generate.New(
		timeline.NewStore(bus),
		gate.New(bus),
		repos,
		agents,
		generate.NewProcessInvoker(),
		func(repoPath string) generate.Snapshotter { return vcs.NewManager(repoPath) },
		bus,
	)

	serverConfig := server.DefaultConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port

	srv := server.New(serverConfig, orch, repos, agents, bus)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("version", Version).
			Str("addr", fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)).
			Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	// A run in flight gets a stop signal before the listener closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orch.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logging.Info().Msg("server stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
