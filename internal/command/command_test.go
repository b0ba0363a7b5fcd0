package command

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestExecRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	tests := []struct {
		Name    string
		Script  string
		Output  string
		WantErr bool
	}{
		{Name: "success", Script: "echo built", Output: "built\n"},
		{Name: "stderr is captured", Script: "echo oops >&2", Output: "oops\n"},
		{Name: "failure", Script: "echo broken; exit 3", Output: "broken\n", WantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			out, err := Exec{}.Run(context.Background(), t.TempDir(), "sh", "-c", tt.Script)
			if string(out) != tt.Output {
				t.Fatalf("output got=%q, want=%q", out, tt.Output)
			}
			if (err != nil) != tt.WantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.WantErr)
			}
			if err == nil {
				return
			}
			var cmdErr *Error
			if !errors.As(err, &cmdErr) {
				t.Fatalf("want *Error, got %T", err)
			}
			if !strings.Contains(err.Error(), "broken") {
				t.Fatalf("error should carry output: %v", err)
			}
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
				t.Fatalf("want exit status 3, got %v", err)
			}
		})
	}
}

func TestExecEnv(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	out, err := Exec{Env: []string{"NIGHTPACK_TEST=1"}}.Run(context.Background(), "", "sh", "-c", "echo $NIGHTPACK_TEST")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(out)) != "1" {
		t.Fatalf("env not passed: %q", out)
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Name: "iconutil", Args: []string{"-c", "icns"}, Err: errors.New("exit status 1")}
	if got, want := err.Error(), "iconutil -c icns: exit status 1"; got != want {
		t.Fatalf("got=%q, want=%q", got, want)
	}
}
