// Package nightpack builds and packages the Nightingale desktop app for macOS
// and Linux, and generates its icon assets.
package nightpack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~nightingale/nightpack/internal/command"
	"git.sr.ht/~nightingale/nightpack/log"
)

var (
	// ErrUsage is returned when a procedure is invoked without a required
	// argument.
	ErrUsage = errors.New("usage")
	// ErrNoInput is returned when a required input file does not exist.
	ErrNoInput = errors.New("input not found")
)

// Identity is the application identity written into manifests.
type Identity struct {
	// Name is the display name, also used for the macOS bundle and executable.
	Name string `yaml:"name"`
	// Executable is the binary name on Linux and the name cargo produces.
	Executable string `yaml:"executable"`
	// BundleID is the macOS CFBundleIdentifier.
	BundleID string `yaml:"bundle_id"`
	// Version is the user facing version (CFBundleShortVersionString).
	Version string `yaml:"version"`
	// BuildVersion is the CFBundleVersion.
	BuildVersion string `yaml:"build_version"`
	Comment      string `yaml:"comment"`
	// Categories and Keywords populate the desktop entry.
	Categories []string `yaml:"categories"`
	Keywords   []string `yaml:"keywords"`
	// MinimumSystemVersion is the LSMinimumSystemVersion.
	MinimumSystemVersion string `yaml:"minimum_system_version"`
}

// DefaultIdentity is Nightingale's identity.
func DefaultIdentity() Identity {
	return Identity{
		Name:                 "Nightingale",
		Executable:           "nightingale",
		BundleID:             "com.nightingale.app",
		Version:              "1.0.0",
		BuildVersion:         "1",
		Comment:              "Search YouTube and save tracks as MP3",
		Categories:           []string{"AudioVideo", "Audio", "Network"},
		Keywords:             []string{"youtube", "mp3", "music", "download"},
		MinimumSystemVersion: "10.15",
	}
}

// BuildConfig describes how to produce the release binary.
type BuildConfig struct {
	// Command is the build tool invocation, run in the project root.
	Command []string `yaml:"command"`
	// Binary is the path of the produced executable, relative to the root.
	Binary string `yaml:"binary"`
}

// DefaultBuild builds with cargo in release mode.
func DefaultBuild() BuildConfig {
	return BuildConfig{
		Command: []string{"cargo", "build", "--release"},
		Binary:  filepath.Join("target", "release", "nightingale"),
	}
}

// Project is the application being packaged and the environment it is
// packaged in.
type Project struct {
	// Root of the application source tree. Relative paths resolve against it.
	Root string
	// Assets directory, relative to Root.
	Assets string
	// Home is the user's home directory, the target of Linux installs.
	Home     string
	Identity Identity
	Build    BuildConfig
	// Runner executes external tools. Defaults to the host.
	Runner command.Runner
}

// path resolves rel against the project root.
func (p *Project) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Root, rel)
}

// AssetPath returns the path of name within the assets directory.
func (p *Project) AssetPath(name string) string {
	return filepath.Join(p.path(p.Assets), name)
}

// BinaryPath returns the path of the compiled executable.
func (p *Project) BinaryPath() string {
	return p.path(p.Build.Binary)
}

func (p *Project) runner() command.Runner {
	if p.Runner == nil {
		return command.Exec{}
	}
	return p.Runner
}

// Validate checks the identity is usable in generated manifests.
func (id Identity) Validate() error {
	type field struct {
		key, value string
		required   bool
	}
	fields := []field{
		{"name", id.Name, true},
		{"executable", id.Executable, true},
		{"bundle_id", id.BundleID, true},
		{"version", id.Version, false},
		{"build_version", id.BuildVersion, false},
		{"comment", id.Comment, false},
		{"minimum_system_version", id.MinimumSystemVersion, false},
	}
	for _, f := range fields {
		if strings.ContainsAny(f.value, "\r\n") {
			return fmt.Errorf("%s: must be a single line", f.key)
		}
		if f.required && strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s: required", f.key)
		}
	}
	// Name becomes the bundle directory, which is removed before each build.
	if strings.ContainsAny(id.Name, `/\`) || id.Name == "." || id.Name == ".." {
		return fmt.Errorf("name: %q is not a plain file name", id.Name)
	}
	if strings.ContainsAny(id.Executable, `/\ `) || id.Executable == "." || id.Executable == ".." {
		return fmt.Errorf("executable: %q is not a plain file name", id.Executable)
	}
	for _, list := range [][]string{id.Categories, id.Keywords} {
		for _, item := range list {
			if item == "" || strings.ContainsAny(item, ";\r\n") {
				return fmt.Errorf("desktop entry list item %q: must be non-empty without ';' or newlines", item)
			}
		}
	}
	return nil
}

// Platform identifier for the targets we produce artifacts for.
type Platform int

const (
	Darwin Platform = iota
	Linux
	// Assets are platform inputs, such as generated icons.
	Assets
)

func (p Platform) String() string {
	switch p {
	case Darwin:
		return "darwin"
	case Linux:
		return "linux"
	case Assets:
		return "assets"
	}
	return ""
}

// Artifact is a file or directory produced by a procedure.
type Artifact struct {
	Path     string
	Platform Platform
	// Size in bytes; for directories the sum of the contained files.
	Size int64
}

// Report is the outcome of a procedure.
type Report struct {
	Artifacts []Artifact
	// Warnings are soft failures that did not abort the procedure.
	Warnings []string
}

func (r *Report) add(platform Platform, path string) {
	r.Artifacts = append(r.Artifacts, Artifact{
		Path:     path,
		Platform: platform,
		Size:     diskSize(path),
	})
}

func (r *Report) warn(ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.G(ctx).Warn(msg)
	r.Warnings = append(r.Warnings, msg)
}

// diskSize sums the sizes of the regular files at or under path.
func diskSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() {
			size += info.Size()
		}
		return nil
	})
	return size
}
