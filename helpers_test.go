package nightpack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"git.sr.ht/~nightingale/nightpack/log"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// call records one invocation of fakeRunner.Run.
type call struct {
	Dir  string
	Name string
	Args []string
}

// fakeRunner stands in for the host: tools in paths are "installed" and
// handlers decide what running them does.
type fakeRunner struct {
	mu       sync.Mutex
	paths    map[string]string
	handlers map[string]func(c call) ([]byte, error)
	calls    []call
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		paths:    map[string]string{},
		handlers: map[string]func(c call) ([]byte, error){},
	}
}

// install makes name resolvable and runnable.
func (f *fakeRunner) install(name string, handler func(c call) ([]byte, error)) {
	path := "/usr/bin/" + name
	f.paths[name] = path
	if handler == nil {
		handler = func(call) ([]byte, error) { return nil, nil }
	}
	f.handlers[name] = handler
	f.handlers[path] = handler
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	c := call{Dir: dir, Name: name, Args: args}
	f.calls = append(f.calls, c)
	handler, ok := f.handlers[name]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, exec.ErrNotFound)
	}
	return handler(c)
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path, ok := f.paths[name]; ok {
		return path, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func (f *fakeRunner) called(name string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if filepath.Base(c.Name) == name {
			out = append(out, c)
		}
	}
	return out
}

// fixture is a project in a temporary root with a temporary home, built by a
// fake cargo that writes a small executable.
type fixture struct {
	*Project
	fake *fakeRunner
	hook *logtest.Hook
	ctx  context.Context
}

const fakeBinary = "#!/bin/sh\necho nightingale\n"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var (
		root   = t.TempDir()
		runner = newFakeRunner()
	)
	p := &Project{
		Root:     root,
		Assets:   "assets",
		Home:     t.TempDir(),
		Identity: DefaultIdentity(),
		Build:    DefaultBuild(),
		Runner:   runner,
	}
	runner.install("cargo", func(c call) ([]byte, error) {
		bin := filepath.Join(c.Dir, "target", "release", "nightingale")
		if err := os.MkdirAll(filepath.Dir(bin), 0755); err != nil {
			return nil, err
		}
		return []byte("Finished release"), os.WriteFile(bin, []byte(fakeBinary), 0755)
	})
	logger, hook := logtest.NewNullLogger()
	return &fixture{
		Project: p,
		fake:    runner,
		hook:    hook,
		ctx:     log.WithLogger(context.Background(), logrus.NewEntry(logger)),
	}
}

// warned reports whether a warning containing substr was logged.
func (f *fixture) warned(substr string) bool {
	for _, entry := range f.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && strings.Contains(entry.Message, substr) {
			return true
		}
	}
	return false
}

// writeAsset places data in the fixture's assets directory.
func (f *fixture) writeAsset(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := f.AssetPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("preparing assets: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing asset: %v", err)
	}
	return path
}

// pngBytes encodes a w by h gradient.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	f := filepath.Join(t.TempDir(), "img.png")
	out, err := os.Create(f)
	if err != nil {
		t.Fatalf("creating png: %v", err)
	}
	if err := png.Encode(out, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	out.Close()
	by, err := os.ReadFile(f)
	if err != nil {
		t.Fatalf("reading png: %v", err)
	}
	return by
}

// tree digests every file under root, keyed by slash separated relative
// path. Directories map to "dir".
func tree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			out[rel] = "dir"
			return nil
		}
		by, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(by)
		out[rel] = fmt.Sprintf("%s %v", hex.EncodeToString(sum[:]), info.Mode().Perm())
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", root, err)
	}
	return out
}
