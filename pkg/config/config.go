// Package config loads the optional .libroll.yaml file found in the base directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/twpayne/go-vfs"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const FileName = ".libroll.yaml"

type Config struct {
	ManifestFile  string   `yaml:"manifestFile"`
	MarkerFile    string   `yaml:"markerFile"`
	NotesFile     string   `yaml:"notesFile"`
	Remote        string   `yaml:"remote"`
	RemoteTimeout Duration `yaml:"remoteTimeout"`

	Branches    Branches `yaml:"branches"`
	BranchScope string   `yaml:"branchScope"`
	Parallelism int      `yaml:"parallelism"`

	StrictVersion bool   `yaml:"strictVersion"`
	KindPolicy    string `yaml:"kindPolicy"`
	FailOnError   bool   `yaml:"failOnError"`

	GitHub    GitHub    `yaml:"github"`
	Templates Templates `yaml:"templates"`
	Metrics   Metrics   `yaml:"metrics"`
}

type Branches struct {
	Develop string `yaml:"develop"`
	Release string `yaml:"release"`
}

type GitHub struct {
	BaseURL  string `yaml:"baseURL"`
	TokenEnv string `yaml:"tokenEnv"`
}

// Templates are text/template sources. Empty ones fall back to the built-in defaults.
type Templates struct {
	CommitMessage string `yaml:"commitMessage"`
	PRTitle       string `yaml:"prTitle"`
	PRBody        string `yaml:"prBody"`
	ReleaseNote   string `yaml:"releaseNote"`
	StashMessage  string `yaml:"stashMessage"`
}

type Metrics struct {
	PushGateway string `yaml:"pushGateway"`
	Job         string `yaml:"job"`
}

// Duration reads Go duration strings like "90s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %v", node.Line, err)
	}
	if v <= 0 {
		return fmt.Errorf("line %d: duration must be positive, got %s", node.Line, s)
	}
	*d = Duration(v)
	return nil
}

func Default() *Config {
	return &Config{
		ManifestFile:  "pom.xml",
		MarkerFile:    "version.txt",
		NotesFile:     "release-notes.txt",
		Remote:        "origin",
		RemoteTimeout: Duration(2 * time.Minute),
		Branches: Branches{
			Develop: "develop",
			Release: "release",
		},
		BranchScope: "auto",
		Parallelism: 1,
		KindPolicy:  "branch",
		GitHub: GitHub{
			TokenEnv: "GITHUB_TOKEN",
		},
		Metrics: Metrics{
			Job: "libroll",
		},
	}
}

// Load reads the file at path over the defaults. The file is validated
// against the configuration schema first, so unknown keys are errors.
func Load(fs vfs.FS, path string) (*Config, error) {
	bs, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, bs)
}

// LoadIfExists is Load, except that a missing file yields the defaults.
func LoadIfExists(fs vfs.FS, path string) (*Config, bool, error) {
	c, err := Load(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), false, nil
		}
		return nil, false, err
	}
	return c, true, nil
}

func Parse(name string, bs []byte) (*Config, error) {
	var raw interface{}
	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	c := Default()
	if raw == nil {
		return c, nil
	}

	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if err := yaml.Unmarshal(bs, c); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return c, nil
}

func validate(raw interface{}) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Token returns the GitHub token from the configured environment variable.
func (c *Config) Token() string {
	return os.Getenv(c.GitHub.TokenEnv)
}
