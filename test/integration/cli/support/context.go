package support

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	ProjectRoot string
	WorkingDir  string
	EnvVars     []string

	// Server management
	ServerProcess *os.Process
	ServerPort    int

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
}

// NewTestContext creates a scenario context working in a fresh temp directory.
// HOME and XDG_CONFIG_HOME point there too, so no user config leaks in.
func NewTestContext() (*TestContext, error) {
	root, err := testutil.GetProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to locate project root: %w", err)
	}
	dir, err := os.MkdirTemp("", "labelscan_cli_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &TestContext{
		ProjectRoot: root,
		WorkingDir:  dir,
		EnvVars: []string{
			"HOME=" + dir,
			"XDG_CONFIG_HOME=" + filepath.Join(dir, ".config"),
			"LABELSCAN_MODELS_DIR=" + filepath.Join(dir, "models"),
		},
	}, nil
}

// Path resolves name inside the scenario directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.WorkingDir, name)
}

// Cleanup stops a running server and removes the scenario directory.
func (testCtx *TestContext) Cleanup() error {
	var firstErr error
	if err := testCtx.StopServer(); err != nil {
		firstErr = err
	}
	if err := os.RemoveAll(testCtx.WorkingDir); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
