// Copyright 2026 The Keyrelay Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/keyrelay/keyrelay/control"
	"github.com/keyrelay/keyrelay/forward"
	"github.com/keyrelay/keyrelay/lib/config"
	"github.com/keyrelay/keyrelay/lib/process"
	"github.com/keyrelay/keyrelay/lib/version"
	"github.com/keyrelay/keyrelay/listener"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("keyrelay", pflag.ContinueOnError)
	flags.Usage = printUsage

	configPath := flags.String("config", "", "path to keyrelay.yaml (default: $KEYRELAY_CONFIG)")
	upstreamTarget := flags.String("upstream", "", "upstream agent endpoint (overrides config)")
	verbose := flags.BoolP("verbose", "v", false, "enable per-session debug logging")
	showVersion := flags.Bool("version", false, "print version and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Printf("keyrelay %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *upstreamTarget != "" {
		cfg.Upstream.Target = *upstreamTarget
	}

	// Configure logger: verbose enables Debug level for per-session
	// events; the configured level (default Info) shows only lifecycle
	// and errors.
	logLevel, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch flags.NArg() {
	case 0:
		return runDaemon(cfg, logger)
	case 1:
		if flags.Arg(0) == "status" {
			return runStatus(cfg)
		}
		return fmt.Errorf("unknown command %q (the only command is \"status\")", flags.Arg(0))
	default:
		return fmt.Errorf("too many arguments")
	}
}

// loadConfig resolves the configuration source: the --config flag, the
// KEYRELAY_CONFIG environment variable, or built-in defaults when
// neither is present.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("KEYRELAY_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

func printUsage() {
	fmt.Print(`keyrelay - conventional SSH agent endpoint, relayed to an upstream agent

USAGE
    keyrelay [flags]           run the daemon
    keyrelay [flags] status    query a running daemon

FLAGS
    --config <path>      config file (default: $KEYRELAY_CONFIG, else built-in defaults)
    --upstream <target>  upstream agent endpoint (overrides config; default: $SSH_AUTH_SOCK)
    -v, --verbose        enable per-session debug logging
    --version            print version and exit

The agent endpoint name itself is fixed: SSH client tooling finds the
agent by convention, so it is not configurable.
`)
}

// runDaemon binds the agent endpoint and serves until interrupted.
func runDaemon(cfg *config.Config, logger *slog.Logger) error {
	if cfg.Upstream.Target == "" {
		return fmt.Errorf("no upstream agent: set upstream.target in the config, pass --upstream, or export SSH_AUTH_SOCK")
	}
	dialTimeout, err := cfg.UpstreamDialTimeout()
	if err != nil {
		return err
	}

	forwarder := &forward.Forwarder{
		Target:      cfg.Upstream.Target,
		DialTimeout: dialTimeout,
		Logger:      logger,
	}
	if err := forwarder.Probe(); err != nil {
		return err
	}

	agentListener, err := listener.Listen(forwarder.Handle, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controlServer := control.NewServer(cfg.Control.SocketPath, func() control.Status {
		stats := agentListener.Stats()
		return control.Status{
			Version:        version.Short(),
			EndpointName:   listener.EndpointName(),
			UpstreamTarget: cfg.Upstream.Target,
			StartedAt:      stats.StartedAt,
			SessionsServed: stats.SessionsServed,
			ActivePeerPID:  stats.ActivePeerPID,
		}
	}, logger)

	controlDone := make(chan error, 1)
	go func() {
		controlDone <- controlServer.Serve(ctx)
	}()

	logger.Info("keyrelay running",
		"endpoint", listener.EndpointName(),
		"upstream", cfg.Upstream.Target,
		"version", version.Info(),
	)

	select {
	case <-shutdownSignal():
		logger.Info("shutting down")
	case <-agentListener.Done():
		// The accept loop died without a shutdown request; Close below
		// reports the fault and the daemon exits nonzero.
		logger.Error("agent endpoint stopped unexpectedly")
	}

	// Order matters: stop accepting agent sessions (and force-disconnect
	// an active one) before tearing down the control socket.
	closeErr := agentListener.Close()
	cancel()
	if err := <-controlDone; err != nil {
		logger.Error("control server shutdown fault", "error", err)
	}

	return closeErr
}

// runStatus queries a running daemon and prints its status.
func runStatus(cfg *config.Config) error {
	status, err := control.Query(cfg.Control.SocketPath, 5*time.Second)
	if err != nil {
		return err
	}

	fmt.Printf("keyrelay %s\n", status.Version)
	fmt.Printf("  endpoint:        %s\n", status.EndpointName)
	fmt.Printf("  upstream:        %s\n", status.UpstreamTarget)
	fmt.Printf("  running since:   %s (%s)\n",
		status.StartedAt.Format(time.RFC3339),
		time.Since(status.StartedAt).Round(time.Second))
	fmt.Printf("  sessions served: %d\n", status.SessionsServed)
	if status.ActivePeerPID != 0 {
		fmt.Printf("  active client:   pid %d\n", status.ActivePeerPID)
	}
	return nil
}
