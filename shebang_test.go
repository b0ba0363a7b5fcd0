package nightpack

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFixShebang(t *testing.T) {
	tests := []struct {
		Name        string
		Python      string
		Input       string
		Want        string
		Interpreter string
	}{
		{
			Name:        "rewrites interpreter",
			Python:      "/opt/homebrew/bin/python3",
			Input:       "#!/usr/bin/env python3\nprint('hi')\n",
			Want:        "#!/opt/homebrew/bin/python3\nprint('hi')\n",
			Interpreter: "/opt/homebrew/bin/python3",
		},
		{
			Name:        "falls back to env lookup",
			Input:       "#!/usr/local/bin/python3.8\nprint('hi')\n",
			Want:        "#!/usr/bin/env python3\nprint('hi')\n",
			Interpreter: FallbackPython,
		},
		{
			Name:        "already current",
			Python:      "/usr/bin/python3",
			Input:       "#!/usr/bin/python3\nprint('hi')\n",
			Want:        "#!/usr/bin/python3\nprint('hi')\n",
			Interpreter: "/usr/bin/python3",
		},
		{
			Name:   "leaves binaries alone",
			Python: "/usr/bin/python3",
			Input:  "\x7fELF\x02\x01\x01",
			Want:   "\x7fELF\x02\x01\x01",
		},
		{
			Name:   "leaves relative shebangs alone",
			Python: "/usr/bin/python3",
			Input:  "#!python\nprint('hi')\n",
			Want:   "#!python\nprint('hi')\n",
		},
		{
			Name:   "needs a newline",
			Python: "/usr/bin/python3",
			Input:  "#!/usr/bin/python2",
			Want:   "#!/usr/bin/python2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			runner := newFakeRunner()
			if tt.Python != "" {
				runner.paths[Python] = tt.Python
			}
			path := filepath.Join(t.TempDir(), YTDLP)
			if err := os.WriteFile(path, []byte(tt.Input), 0755); err != nil {
				t.Fatalf("writing script: %v", err)
			}
			python, err := FixShebang(context.Background(), runner, path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if python != tt.Interpreter {
				t.Fatalf("interpreter=%q, want=%q", python, tt.Interpreter)
			}
			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("reading script: %v", err)
			}
			if string(got) != tt.Want {
				t.Fatalf("got=%q, want=%q", got, tt.Want)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("stat: %v", err)
			}
			if info.Mode().Perm() != 0755 {
				t.Fatalf("mode changed to %v", info.Mode().Perm())
			}
		})
	}
}

func TestFixShebangMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), YTDLP)
	python, err := FixShebang(context.Background(), newFakeRunner(), path)
	if err != nil {
		t.Fatalf("missing script must be tolerated: %v", err)
	}
	if python != "" {
		t.Fatalf("interpreter=%q for a missing script", python)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("script created: %v", err)
	}
}
