// Package tools runs the external programs a build step delegates to (postcss,
// sass, an external bundler) and reports their failures as ToolError.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
)

// ErrToolNotFound is returned when the program is not on PATH.
var ErrToolNotFound = errors.New("tool not found")

// ToolError is a failed collaborator invocation, tagged with the build step that
// invoked it.
type ToolError struct {
	Step   string
	Tool   string
	Err    error
	Output string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: %s failed: %v", e.Step, e.Tool, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// Wrap tags err with step and tool. A nil err stays nil and an existing ToolError
// is returned as is.
func Wrap(step, tool string, err error) error {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return err
	}
	return &ToolError{Step: step, Tool: tool, Err: err}
}

// Command is an external program with its arguments.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// FromArgv builds a command from a configured argument vector. Placeholders of
// the form {key} are substituted per argument, so values may contain spaces.
func FromArgv(argv []string, vars map[string]string) (Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return Command{}, errors.New("empty command")
	}
	words := make([]string, len(argv))
	for i, w := range argv {
		for k, v := range vars {
			w = strings.ReplaceAll(w, "{"+k+"}", v)
		}
		words[i] = w
	}
	return Command{Name: words[0], Args: words[1:]}, nil
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Run executes the command for step, feeding stdin when non-nil, and returns stdout.
// Stderr is logged at warn level and attached to the error on failure.
func (c Command) Run(ctx context.Context, step string, stdin []byte) ([]byte, error) {
	if _, err := exec.LookPath(c.Name); err != nil {
		return nil, &ToolError{Step: step, Tool: c.Name, Err: fmt.Errorf("%w: %w", ErrToolNotFound, err)}
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running tool", logfields.Task(step), logfields.Tool(c.Name), slog.String("args", strings.Join(c.Args, " ")))
	err := cmd.Run()

	errStr := strings.TrimSpace(stderr.String())
	if errStr != "" {
		slog.Warn("Tool wrote to stderr", logfields.Task(step), logfields.Tool(c.Name), slog.String("error_output", errStr))
	}
	if err != nil {
		output := errStr
		if output == "" {
			output = strings.TrimSpace(stdout.String())
		}
		return nil, &ToolError{Step: step, Tool: c.Name, Err: err, Output: output}
	}
	return stdout.Bytes(), nil
}
