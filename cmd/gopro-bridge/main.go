package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"gopro-bridge/internal/bridge"
	"gopro-bridge/internal/camera"
	"gopro-bridge/internal/infra/config"
	"gopro-bridge/internal/infra/logger"
	"gopro-bridge/internal/infra/tracer"
)

// Build-time variables (set via -ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Handle help flag first
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("gopro-bridge %s (commit %s, built %s)\n", version, commit, buildDate)
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'gopro-bridge --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`gopro-bridge - GoPro BLE camera bridge

USAGE:
    gopro-bridge [COMMAND] [FLAGS]

COMMANDS:
    version     Print version information
    doctor      Run health checks on your setup

    (no command) - Run the bridge: JSON commands in, JSON responses out

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./bridge.yaml)
    --backend NAME     Camera backend override (e.g. sim)
    --log-level LEVEL  Log level override (debug, info, warn, error)

PROTOCOL:
    The parent process writes one JSON command per line on stdin and
    reads exactly one JSON response per line on stdout.
    Commands: connect, disconnect, status, check_connection, take_photo
    Logs go to stderr or a file; stdout carries only responses.

CONFIGURATION:
    Config file: ./bridge.yaml
    Environment: GOPRO_BRIDGE_* variables override config

EXAMPLES:
    gopro-bridge                                 # Run with bridge.yaml
    gopro-bridge --config /path/to/bridge.yaml   # Run with custom config
    gopro-bridge --backend sim --log-level debug
    echo '{"command":"status","commandId":1}' | gopro-bridge
    gopro-bridge doctor                          # Check system health`)
}

// cliFlags holds optional CLI flags that override loaded config values.
type cliFlags struct {
	Backend  string
	LogLevel string
}

// parseFlags extracts --backend and --log-level from os.Args.
func parseFlags() cliFlags {
	var flags cliFlags
	for i := 1; i < len(os.Args); i++ {
		switch {
		case os.Args[i] == "--backend" && i+1 < len(os.Args):
			flags.Backend = os.Args[i+1]
			i++
		case strings.HasPrefix(os.Args[i], "--backend="):
			flags.Backend = strings.TrimPrefix(os.Args[i], "--backend=")
		case os.Args[i] == "--log-level" && i+1 < len(os.Args):
			flags.LogLevel = os.Args[i+1]
			i++
		case strings.HasPrefix(os.Args[i], "--log-level="):
			flags.LogLevel = strings.TrimPrefix(os.Args[i], "--log-level=")
		}
	}
	return flags
}

func run() error {
	// 1. Config
	flags := parseFlags()

	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if flags.Backend != "" {
		cfg.Camera.Backend = flags.Backend
	}
	if flags.LogLevel != "" {
		cfg.Logger.Level = flags.LogLevel
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		log.Warn("stdout is a terminal; responses are meant for a parent process pipe")
	}

	// 3. Camera backend
	factory, err := camera.NewBackend(cfg.Camera.Backend)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}

	// 4. Session and command loop
	sess := bridge.NewSession(factory, camera.Options{Target: cfg.Camera.Target}, log)
	loop := bridge.NewLoop(os.Stdin, os.Stdout, sess, log)

	// 5. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("gopro-bridge starting",
		"version", version,
		"backend", cfg.Camera.Backend,
		"target", cfg.Camera.Target,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	select {
	case err := <-errCh:
		if err == nil {
			// Clean EOF: the parent sequences its own disconnect before
			// closing the pipe, so the camera is left alone here.
			return nil
		}
		disconnectQuiet(sess, log)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("signal received, shutting down", "connected", sess.Connected())
		disconnectQuiet(sess, log)
		return nil
	}
}

// disconnectQuiet releases the camera on the way out. Failures are logged,
// not returned: the process is exiting either way.
func disconnectQuiet(sess *bridge.Session, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if resp := sess.Disconnect(ctx); !resp.Success {
		log.Warn("shutdown disconnect failed", "error", resp.Error)
	}
}

func configPath() string {
	// Check --config flag in os.Args.
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("GOPRO_BRIDGE_CONFIG"); p != "" {
		return p
	}
	return "bridge.yaml"
}
