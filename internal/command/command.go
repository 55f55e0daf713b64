// Package command runs the external conversion program to completion.
package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/samber/lo"
)

// Placeholder in an argument list is replaced with the path of the changed file.
const Placeholder = "{}"

type Invocation struct {
	Path string
	Args []string
	Dir  string
}

type Result struct {
	Output   []byte
	ExitCode int
}

// Runner blocks until the invoked program exits.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

type ExecRunner struct {
	// Timeout kills the program when exceeded. Zero waits forever.
	Timeout time.Duration
	// Stderr receives the program's standard error, os.Stderr when nil.
	Stderr io.Writer
}

func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{
		Timeout: timeout,
		Stderr:  nil,
	}
}

// Run starts the program and collects its standard output. A non-zero exit
// status is reported in Result, only a failure to start or wait is an error.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := lo.ErrorsAs[*exec.ExitError](err); ok {
			return Result{Output: output, ExitCode: exitErr.ExitCode()}, nil
		}
		return Result{Output: output, ExitCode: -1}, fmt.Errorf("can't run %s: %w", inv.Path, err)
	}

	return Result{Output: output, ExitCode: 0}, nil
}

// Expand substitutes Placeholder with path. When no argument is a
// placeholder the path is appended.
func Expand(args []string, path string) []string {
	if !lo.Contains(args, Placeholder) {
		return append(append(make([]string, 0, len(args)+1), args...), path)
	}

	return lo.Map(args, func(arg string, _ int) string {
		if arg == Placeholder {
			return path
		}
		return arg
	})
}
