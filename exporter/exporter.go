// Package exporter manages the external 3D-authoring process that loads
// a model, wires resolved textures into material slots, and re-exports
// the model.
//
// The tool is invoked as: <bin> <model-file> <output-root> <image>...
// Its stdout is advisory (logged at debug level) except for the final
// line, which must be a JSON result summary; stderr is surfaced as
// warnings. Outcome is determined from the exit code plus the summary —
// a non-zero exit or a missing summary marks the bundle as failed rather
// than being silently swallowed.
package exporter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// PresetEnv is the environment variable carrying the optional export
// preset resource path to the tool.
const PresetEnv = "MASON_EXPORT_PRESET"

// Summary is the machine-readable result contract: the final stdout line
// of the exporter, JSON-encoded.
type Summary struct {
	// Status is "completed" or "error".
	Status string `json:"status"`
	// Message is a human-readable description.
	Message string `json:"message,omitempty"`
	// Assigned is the number of textures wired into material slots.
	Assigned int `json:"assigned"`
	// Skipped is the number of textures the tool could not wire.
	Skipped int `json:"skipped"`
}

// Completed reports whether the summary declares success.
func (s *Summary) Completed() bool {
	return s != nil && s.Status == "completed"
}

// Result is the outcome of one exporter invocation.
type Result struct {
	// ExitCode is the process exit code.
	ExitCode int
	// Summary is the parsed result summary, nil when the tool printed none.
	Summary *Summary
	// StdoutLines are the advisory stdout lines (summary line excluded).
	StdoutLines []string
	// Stderr is the captured stderr output.
	Stderr string
}

// Config configures exporter invocations.
type Config struct {
	// BinPath is the exporter binary (e.g. a mayapy wrapper).
	BinPath string
	// Preset is an optional export preset resource, passed via PresetEnv.
	Preset string
	// Timeout bounds one invocation. Zero means unbounded.
	Timeout time.Duration
}

// Manager runs one exporter invocation. Not reusable; create one per
// bundle.
type Manager struct {
	config *Config
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	cancel context.CancelFunc
}

// NewManager creates a manager for a single invocation.
func NewManager(config *Config) *Manager {
	return &Manager{config: config}
}

// Start launches the exporter with the model path, the output root and
// the full candidate image list as arguments.
func (m *Manager) Start(ctx context.Context, modelPath, outputRoot string, images []string) error {
	if m.config.Timeout > 0 {
		ctx, m.cancel = context.WithTimeout(ctx, m.config.Timeout)
	}

	args := append([]string{modelPath, outputRoot}, images...)
	m.cmd = exec.CommandContext(ctx, m.config.BinPath, args...)

	if m.config.Preset != "" {
		m.cmd.Env = append(os.Environ(), PresetEnv+"="+m.config.Preset)
	}

	stdout, err := m.cmd.StdoutPipe()
	if err != nil {
		m.release()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	m.stdout = stdout

	stderr, err := m.cmd.StderrPipe()
	if err != nil {
		m.release()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	m.stderr = stderr

	if err := m.cmd.Start(); err != nil {
		m.release()
		return fmt.Errorf("failed to start exporter: %w", err)
	}

	return nil
}

// release cancels the timeout context when Start fails; Wait handles the
// happy path.
func (m *Manager) release() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Wait drains both streams, reaps the process and returns the result.
// Must be called after Start.
func (m *Manager) Wait() (*Result, error) {
	if m.cmd == nil {
		return nil, errors.New("exporter not started")
	}
	if m.cancel != nil {
		defer m.cancel()
	}

	// Both streams must be drained before cmd.Wait closes the pipes, and
	// concurrently with each other: a tool that fills the stderr pipe
	// buffer while stdout is still open would otherwise block, and stdout
	// would never reach EOF.
	stderrCh := make(chan []byte, 1)
	go func() {
		b, _ := io.ReadAll(m.stderr)
		stderrCh <- b
	}()
	lines := readLines(m.stdout)
	stderrBytes := <-stderrCh

	err := m.cmd.Wait()

	result := &Result{
		Stderr: string(stderrBytes),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("exporter wait failed: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	result.Summary, result.StdoutLines = splitSummary(lines)

	return result, nil
}

// Kill terminates the exporter process.
func (m *Manager) Kill() error {
	if m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Kill()
	}
	return nil
}

// readLines collects non-empty lines from r.
func readLines(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// splitSummary parses the final line as a JSON summary when possible and
// returns the remaining advisory lines.
func splitSummary(lines []string) (*Summary, []string) {
	if len(lines) == 0 {
		return nil, nil
	}
	last := lines[len(lines)-1]

	var summary Summary
	if err := json.Unmarshal([]byte(last), &summary); err != nil || summary.Status == "" {
		return nil, lines
	}
	return &summary, lines[:len(lines)-1]
}

// Describe classifies an exporter result into success or a failure
// message. Success requires a zero exit AND a completed summary: absence
// of a crash is not treated as proof of success.
func Describe(result *Result) (ok bool, message string) {
	switch {
	case result.ExitCode != 0:
		return false, fmt.Sprintf("exporter exited with code %d", result.ExitCode)
	case result.Summary == nil:
		return false, "exporter exited cleanly without a result summary"
	case !result.Summary.Completed():
		if result.Summary.Message != "" {
			return false, result.Summary.Message
		}
		return false, fmt.Sprintf("exporter reported status %q", result.Summary.Status)
	default:
		if result.Summary.Message != "" {
			return true, result.Summary.Message
		}
		return true, "export completed"
	}
}
