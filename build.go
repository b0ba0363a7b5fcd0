package nightpack

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"git.sr.ht/~nightingale/nightpack/log"
)

// Build the release binary and return the path to it.
//
// The build tool runs in the project root. A failing build aborts with the
// tool's output attached; nothing is retried.
func Build(ctx context.Context, p *Project) (string, error) {
	if len(p.Build.Command) == 0 {
		return "", fmt.Errorf("no build command configured")
	}
	var (
		name = p.Build.Command[0]
		args = p.Build.Command[1:]
		bin  = p.BinaryPath()
	)
	log.G(ctx).Infof("building: %s", strings.Join(p.Build.Command, " "))
	out, err := p.runner().Run(ctx, p.Root, name, args...)
	if len(bytes.TrimSpace(out)) > 0 {
		log.G(ctx).Debugf("%s output:\n%s", name, out)
	}
	if err != nil {
		return "", fmt.Errorf("compiling: %w", err)
	}
	return bin, checkBinary(bin)
}

// binary returns the release binary, building it first unless skip is set.
func binary(ctx context.Context, p *Project, skip bool) (string, error) {
	if !skip {
		return Build(ctx, p)
	}
	bin := p.BinaryPath()
	log.G(ctx).Infof("skipping build, using %s", bin)
	return bin, checkBinary(bin)
}

func checkBinary(bin string) error {
	info, err := os.Stat(bin)
	if err != nil {
		return fmt.Errorf("binary: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("binary %q: not a regular file", bin)
	}
	return nil
}
