package transport

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loomworks/mcpagent/internal/errors"
)

const (
	// maxScanTokenSize is the maximum buffer size for reading server output lines.
	maxScanTokenSize = 1024 * 1024 // 1MB
	// maxStderrBufferSize caps the stderr buffer used for error reporting.
	// Reading continues past the cap, but the buffer stops growing.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB
)

// StdioTransport spawns an MCP server subprocess and exchanges
// newline-delimited JSON records over its stdin/stdout pipes.
type StdioTransport struct {
	log     *slog.Logger
	command string
	args    []string
	env     []string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu          sync.Mutex // protects stdin writes and lifecycle flags
	closing     bool
	stdinClosed bool
}

// Compile-time verification that StdioTransport implements Transport.
var _ Transport = (*StdioTransport)(nil)

// NewStdioTransport creates a transport that will run the given server
// command. Extra environment entries are appended to the current process
// environment.
func NewStdioTransport(log *slog.Logger, command string, args []string, env []string) *StdioTransport {
	return &StdioTransport{
		log:     log.With("component", "stdio_transport"),
		command: command,
		args:    args,
		env:     env,
	}
}

// Start spawns the server process and wires up its pipes.
//
// Returns TransportError if any pipe cannot be created or the process
// fails to start.
func (t *StdioTransport) Start(ctx context.Context) error {
	t.log.Info("Starting MCP server subprocess", "command", t.command)

	//nolint:gosec // G204: the server command is operator-supplied by design
	cmd := exec.CommandContext(ctx, t.command, t.args...)
	if len(t.env) > 0 {
		cmd.Env = append(cmd.Environ(), t.env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.TransportError{Op: "stdin pipe", Err: err}
	}

	t.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.TransportError{Op: "stdout pipe", Err: err}
	}

	t.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.TransportError{Op: "stderr pipe", Err: err}
	}

	t.stderr = stderr

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start server process", "error", err)

		return &errors.TransportError{Op: "start process", Err: err}
	}

	t.cmd = cmd
	t.log.Info("MCP server subprocess started", "pid", cmd.Process.Pid)

	return nil
}

// Records reads newline-delimited JSON records from the server's stdout.
//
// A goroutine scans stdout line by line; each line that parses as JSON is
// delivered on the records channel. Lines that do not parse are logged and
// skipped. A second goroutine drains stderr into a capped buffer used for
// ProcessError reporting when the process exits abnormally. Both channels
// are closed when the process exits or the context is cancelled.
func (t *StdioTransport) Records(ctx context.Context) (<-chan json.RawMessage, <-chan error) {
	records := make(chan json.RawMessage)
	errs := make(chan error, 1)

	var stderrBuffer strings.Builder

	var stderrMu sync.Mutex

	// Stderr must be fully read before cmd.Wait().
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe
	pumps, _ := errgroup.WithContext(ctx)

	pumps.Go(func() error {
		scanner := bufio.NewScanner(t.stderr)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			line := scanner.Text()

			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()
		}

		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}

		return nil
	})

	go func() {
		defer close(records)
		defer close(errs)
		defer t.log.Debug("Records goroutine stopped")

		scanner := bufio.NewScanner(t.stdout)
		buf := make([]byte, maxScanTokenSize)
		scanner.Buffer(buf, maxScanTokenSize)

		recordCount := 0

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			if !json.Valid(line) {
				// Skipped, not fatal. Logged so protocol mismatches are diagnosable.
				t.log.Debug("Skipping malformed record", "record", string(line))

				continue
			}

			record := make(json.RawMessage, len(line))
			copy(record, line)

			recordCount++
			t.log.Debug("Received record from server", "record_count", recordCount)

			select {
			case records <- record:
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Error("Scanner error while reading server output", "error", err)

			errs <- &errors.TransportError{Op: "read stdout", Err: err}
		}

		_ = pumps.Wait()

		t.log.Debug("Waiting for server process to exit")

		if err := t.cmd.Wait(); err != nil {
			t.mu.Lock()
			isClosing := t.closing
			t.mu.Unlock()

			if isClosing {
				t.log.Debug("Server process terminated during shutdown")

				return
			}

			stderrMu.Lock()
			stderrOutput := stderrBuffer.String()
			stderrMu.Unlock()

			exitCode := 0

			if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
				exitCode = exitErr.ExitCode()
			}

			t.log.Error("Server process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

			errs <- &errors.ProcessError{
				ExitCode: exitCode,
				Stderr:   stderrOutput,
				Err:      err,
			}
		} else {
			t.log.Info("Server process exited cleanly")
		}
	}()

	return records, errs
}

// Send writes one JSON record to the server's stdin, appending the framing
// newline if missing.
//
// Safe for concurrent use. If the context is cancelled during a blocked
// write, stdin is closed to unblock the writer (safe since Go 1.9+) and
// subsequent calls return ErrStdinClosed.
func (t *StdioTransport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return errors.ErrNotConnected
	}

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Sending record to server", "data_len", len(data))

	// Copy before appending so the caller's backing array is never mutated.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		framed := make([]byte, len(data)+1)
		copy(framed, data)
		framed[len(data)] = '\n'
		data = framed
	}

	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write record to server", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		if t.stdin != nil {
			_ = t.stdin.Close()
			t.stdinClosed = true
		}

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// Close terminates the server process.
//
// Safe to call multiple times or on an already-terminated process.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closing = true
	t.stdinClosed = true

	if t.cmd != nil && t.cmd.Process != nil {
		t.log.Debug("Killing server process", "pid", t.cmd.Process.Pid)

		if err := t.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill server process (pid %d): %w", t.cmd.Process.Pid, err)
		}
	}

	return nil
}
