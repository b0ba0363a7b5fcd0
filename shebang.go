package nightpack

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"git.sr.ht/~nightingale/nightpack/internal/command"
	"git.sr.ht/~nightingale/nightpack/log"
)

// Interpreter used by the yt-dlp zipapp.
const (
	Python         = "python3"
	FallbackPython = "/usr/bin/env python3"
)

// FixShebang points the interpreter line of the script at path to the
// python3 found on PATH, or to FallbackPython when there is none. It returns
// the interpreter the script now runs with.
//
// A missing script is not an error and yields "". Only files that start with
// "#!/" are rewritten, and only their first line changes.
func FixShebang(ctx context.Context, runner command.Runner, path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		log.G(ctx).Debugf("%s not installed, leaving interpreter alone", path)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: not a regular file", path)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading: %w", err)
	}
	if !bytes.HasPrefix(contents, []byte("#!/")) {
		return "", nil
	}
	nl := bytes.IndexByte(contents, '\n')
	if nl < 0 {
		return "", nil
	}
	python, err := runner.LookPath(Python)
	if err != nil {
		log.G(ctx).Debugf("looking up %s: %v", Python, err)
		python = FallbackPython
	}
	shebang := "#!" + python
	if string(contents[:nl]) == shebang {
		return python, nil
	}
	fixed := make([]byte, 0, len(shebang)+len(contents)-nl)
	fixed = append(fixed, shebang...)
	fixed = append(fixed, contents[nl:]...)
	if err := os.WriteFile(path, fixed, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("writing: %w", err)
	}
	log.G(ctx).Infof("%s: interpreter set to %s", path, python)
	return python, nil
}
