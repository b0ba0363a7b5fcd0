// Package command runs external tools.
package command

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes external programs.
//
// Packaging shells out to tools that only exist on some hosts (iconutil,
// gtk-update-icon-cache, cargo), so the procedures talk to a Runner instead
// of os/exec directly.
type Runner interface {
	// Run name with args in dir, blocking until it exits.
	// The combined output is returned regardless of the error.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
	// LookPath resolves name against PATH.
	LookPath(name string) (string, error)
}

// Exec runs programs on the host.
type Exec struct {
	// Env is appended to the inherited environment.
	Env []string
}

// Run implements Runner.
func (e Exec) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), &Error{
			Name:   name,
			Args:   args,
			Output: out.String(),
			Err:    err,
		}
	}
	return out.Bytes(), nil
}

// LookPath implements Runner.
func (Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Error is returned when a program exits unsuccessfully.
type Error struct {
	Name   string
	Args   []string
	Output string
	Err    error
}

func (e *Error) Error() string {
	line := strings.TrimSpace(strings.Join(append([]string{e.Name}, e.Args...), " "))
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %v", line, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", line, e.Err, out)
}

func (e *Error) Unwrap() error {
	return e.Err
}
