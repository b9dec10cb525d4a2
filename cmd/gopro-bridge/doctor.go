package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"gopro-bridge/internal/camera"
	"gopro-bridge/internal/infra/config"
	"gopro-bridge/internal/infra/logger"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()

	// Try to load config; some checks work without it.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Log output", Fn: checkLogOutput},
		{Name: "Camera backend", Fn: checkCameraBackend},
		{Name: "Camera round trip", Fn: checkCameraRoundTrip},
		{Name: "Stdin pipe", Fn: checkStdinPipe},
	}

	fmt.Println("gopro-bridge doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	results := make([]CheckResult, 0, len(checks))

	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name
		results = append(results, result)

		icon := statusIcon(result.Status)
		fmt.Printf("  %s %s: %s\n", icon, result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Println("\nFix the FAIL issues above before wiring gopro-bridge to the parent process.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Println("\ngopro-bridge should work, but consider addressing the warnings.")
	} else {
		fmt.Println("\nAll checks passed! gopro-bridge is ready to run.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return color.New(color.FgGreen).Sprint("[PASS]")
	case StatusWarn:
		return color.New(color.FgYellow, color.Bold).Sprint("[WARN]")
	case StatusFail:
		return color.New(color.FgRed, color.Bold).Sprint("[FAIL]")
	default:
		return "[????]"
	}
}

// checkConfigFile returns a check that verifies the config file exists and parses correctly.
// A missing file is only a warning: Load falls back to defaults plus environment.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("config file not found at %s, defaults in effect", cfgPath),
				Fix:     "Create bridge.yaml, or rely on GOPRO_BRIDGE_* environment variables",
			}
		}

		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config file error: %v", cfgErr),
				Fix:     "Check bridge.yaml syntax and values",
			}
		}

		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkLogOutput verifies the configured log destination is usable.
func checkLogOutput(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: "cannot check — config not loaded",
		}
	}

	_, closer, err := logger.New(cfg.Logger)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("log output not usable: %v", err),
			Fix:     "Point logger.output at stderr or a writable file path",
		}
	}
	closer()

	out := cfg.Logger.Output
	if out == "" {
		out = "stderr"
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("log output %s writable", out),
	}
}

// checkCameraBackend verifies the configured backend is registered.
func checkCameraBackend(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: "cannot check — config not loaded",
		}
	}

	if _, err := camera.NewBackend(cfg.Camera.Backend); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("backend %q not registered", cfg.Camera.Backend),
			Fix:     fmt.Sprintf("Available backends: %s", strings.Join(camera.Backends(), ", ")),
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("backend %q registered", cfg.Camera.Backend),
	}
}

// checkCameraRoundTrip opens, queries, and closes a camera session.
// Only the sim backend is exercised; real backends would touch hardware.
func checkCameraRoundTrip(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: "cannot check — config not loaded",
		}
	}

	if cfg.Camera.Backend != "sim" {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("skipped for backend %q (drives real hardware)", cfg.Camera.Backend),
		}
	}

	factory, err := camera.NewBackend(cfg.Camera.Backend)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cam := factory(camera.Options{Target: cfg.Camera.Target})
	if err := cam.Open(ctx); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("open: %v", err),
		}
	}
	up, err := cam.BLEConnected(ctx)
	if err != nil {
		cam.Close(ctx)
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("link query: %v", err),
		}
	}
	if err := cam.Close(ctx); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("close: %v", err),
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("open/query/close round trip OK (link up: %v)", up),
	}
}

// checkStdinPipe warns when stdin is a terminal instead of the parent's pipe.
func checkStdinPipe(_ *config.Config) CheckResult {
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return CheckResult{
			Status:  StatusWarn,
			Message: "stdin is a terminal; the bridge expects commands on a pipe",
			Fix:     `Run under the parent process, or pipe commands in: echo '{"command":"status","commandId":1}' | gopro-bridge`,
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: "stdin is a pipe",
	}
}
