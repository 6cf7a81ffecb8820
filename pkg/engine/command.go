package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"nordic/internal/logger"
	"nordic/internal/models"
)

const component = "engine"

// stderrTail is how much of the engine's stderr is kept for error messages
const stderrTail = 2048

// Settings describes how to start the external engine
type Settings struct {
	// Command is the engine executable, looked up in PATH when it has no slash
	Command string

	// Args are passed before the positional engine arguments
	Args []string

	// Env is added to the inherited environment
	Env []string

	// Log receives the engine's output lines; nil discards them
	Log logger.Logger
}

// InitError reports that the engine could not be prepared. It matches
// models.ErrEngineInit with errors.Is.
type InitError struct {
	Command string
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("engine initialization failed for %q: %v", e.Command, e.Err)
}

func (e *InitError) Unwrap() []error {
	return []error{models.ErrEngineInit, e.Err}
}

// Open prepares an engine backed by an external executable. Nothing is
// started until Run; callers decide what to do with an *InitError.
func Open(s Settings) (*Command, error) {
	if strings.TrimSpace(s.Command) == "" {
		return nil, &InitError{Command: s.Command, Err: errors.New("no engine command configured")}
	}
	path, err := exec.LookPath(s.Command)
	if err != nil {
		return nil, &InitError{Command: s.Command, Err: err}
	}

	log := s.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Command{
		path: path,
		args: append([]string(nil), s.Args...),
		env:  append([]string(nil), s.Env...),
		log:  log,
	}, nil
}

// Command runs the engine as a child process:
//
//	<command> [args...] <magnitude> <phase> <output-name> <config.json>
//
// The configuration is written as a JSON object to a private temporary file
// that is removed when the call returns.
type Command struct {
	path string
	args []string
	env  []string
	log  logger.Logger
}

// Path returns the resolved executable
func (c *Command) Path() string { return c.path }

// Run starts the engine and blocks until it exits
func (c *Command) Run(ctx context.Context, inv Invocation) error {
	cfgPath, err := writeConfig(inv)
	if err != nil {
		return err
	}
	defer os.Remove(cfgPath)

	args := append(append([]string(nil), c.args...),
		inv.MagnitudePath, inv.PhasePath, inv.OutputName, cfgPath)
	cmd := exec.CommandContext(ctx, c.path, args...)
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}

	var stderr bytes.Buffer
	outLines := &lineLogger{log: c.log, stream: "stdout"}
	errLines := &lineLogger{log: c.log, stream: "stderr"}
	cmd.Stdout = outLines
	cmd.Stderr = &teeTail{buf: &stderr, next: errLines}

	c.log.Debug(component, "starting engine", map[string]interface{}{
		"command": c.path,
		"args":    args,
	})

	runErr := cmd.Run()
	outLines.Flush()
	errLines.Flush()
	if runErr == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		tail := strings.TrimSpace(stderr.String())
		if tail != "" {
			return fmt.Errorf("%s exited with code %d: %s", c.path, exitErr.ExitCode(), tail)
		}
		return fmt.Errorf("%s exited with code %d", c.path, exitErr.ExitCode())
	}
	return fmt.Errorf("failed to execute %s: %w", c.path, runErr)
}

func writeConfig(inv Invocation) (string, error) {
	data, err := json.Marshal(inv.Config)
	if err != nil {
		return "", fmt.Errorf("failed to encode engine config: %w", err)
	}

	f, err := os.CreateTemp("", "nordic-config-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create engine config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write engine config file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write engine config file: %w", err)
	}
	return f.Name(), nil
}

// lineLogger forwards complete output lines to the logger
type lineLogger struct {
	log     logger.Logger
	stream  string
	partial []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.partial = append(l.partial, p...)
	for {
		i := bytes.IndexByte(l.partial, '\n')
		if i < 0 {
			break
		}
		l.emit(l.partial[:i])
		l.partial = l.partial[i+1:]
	}
	return len(p), nil
}

// Flush emits any unterminated last line
func (l *lineLogger) Flush() {
	if len(l.partial) > 0 {
		l.emit(l.partial)
		l.partial = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if text == "" {
		return
	}
	l.log.Debug(component, text, map[string]interface{}{"stream": l.stream})
}

// teeTail keeps the last stderrTail bytes written while forwarding everything
type teeTail struct {
	buf  *bytes.Buffer
	next *lineLogger
}

func (t *teeTail) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if over := t.buf.Len() - stderrTail; over > 0 {
		t.buf.Next(over)
	}
	return t.next.Write(p)
}
