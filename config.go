package nightpack

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/blang/semver"
	"github.com/go-yaml/yaml"
	"github.com/gobuffalo/envy"
)

// ConfigFile is looked up in the project root when no config path is given.
const ConfigFile = "nightpack.yaml"

// Environment overrides, read through envy so a .env file in the working
// directory is honoured too.
const (
	EnvBuildCommand = "NIGHTPACK_BUILD_COMMAND"
	EnvBinary       = "NIGHTPACK_BINARY"
	EnvVersion      = "NIGHTPACK_VERSION"
	EnvHome         = "NIGHTPACK_HOME"
)

// Config is the on-disk project configuration. Fields left out keep their
// defaults.
type Config struct {
	Assets   string      `yaml:"assets"`
	Identity Identity    `yaml:"identity"`
	Build    BuildConfig `yaml:"build"`
}

// DefaultConfig is the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Assets:   "assets",
		Identity: DefaultIdentity(),
		Build:    DefaultBuild(),
	}
}

var buildVersion = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

// Load the project rooted at root.
//
// If config is empty, ConfigFile in root is used when it exists. An explicit
// config path must exist.
func Load(root, config string) (*Project, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %q: not a directory", root)
	}
	cfg := DefaultConfig()
	explicit := config != ""
	if !explicit {
		config = filepath.Join(root, ConfigFile)
	}
	by, err := os.ReadFile(config)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(by, &cfg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", config, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if cmd := envy.Get(EnvBuildCommand, ""); cmd != "" {
		cfg.Build.Command = strings.Fields(cmd)
	}
	cfg.Build.Binary = envy.Get(EnvBinary, cfg.Build.Binary)
	cfg.Identity.Version = envy.Get(EnvVersion, cfg.Identity.Version)
	home := envy.Get(EnvHome, "")
	if home == "" {
		home, err = os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Project{
		Root:     root,
		Assets:   cfg.Assets,
		Home:     home,
		Identity: cfg.Identity,
		Build:    cfg.Build,
	}, nil
}

// Validate the configuration.
func (c Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	if _, err := semver.ParseTolerant(c.Identity.Version); err != nil {
		return fmt.Errorf("identity: version %q: %w", c.Identity.Version, err)
	}
	if !buildVersion.MatchString(c.Identity.BuildVersion) {
		return fmt.Errorf("identity: build_version %q: want dot separated integers", c.Identity.BuildVersion)
	}
	if len(c.Build.Command) == 0 {
		return fmt.Errorf("build: command required")
	}
	if c.Build.Binary == "" {
		return fmt.Errorf("build: binary required")
	}
	if c.Assets == "" {
		return fmt.Errorf("assets: directory required")
	}
	return nil
}
