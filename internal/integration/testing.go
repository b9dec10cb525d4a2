package integration

import (
	"context"
	"os"
	"testing"
	"time"
)

// Config holds integration test configuration from environment
type Config struct {
	Backend     string
	Target      string
	TestTimeout time.Duration
	SkipSlow    bool
}

// LoadConfig loads integration test configuration from environment
func LoadConfig() *Config {
	backend := os.Getenv("GOPRO_BRIDGE_TEST_BACKEND")
	if backend == "" {
		backend = "sim"
	}
	return &Config{
		Backend:     backend,
		Target:      os.Getenv("GOPRO_BRIDGE_TEST_TARGET"),
		TestTimeout: 60 * time.Second,
		SkipSlow:    os.Getenv("SKIP_SLOW_TESTS") == "1",
	}
}

// SkipIfNoCamera skips the test unless a real camera target is configured
func SkipIfNoCamera(t *testing.T, target string) {
	t.Helper()
	if target == "" {
		t.Skip("Skipping hardware integration test: GOPRO_BRIDGE_TEST_TARGET not set")
	}
}

// SkipIfShort skips integration tests in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
