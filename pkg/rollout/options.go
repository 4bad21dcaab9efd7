package rollout

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/twpayne/go-vfs"
	"github.com/variantdev/libroll/pkg/telemetry"
)

type Option interface {
	SetOption(r *Runner) error
}

func Logger(logger logr.Logger) Option {
	return &loggerOption{l: logger}
}

type loggerOption struct {
	l logr.Logger
}

func (s *loggerOption) SetOption(r *Runner) error {
	r.Logger = s.l
	return nil
}

func FS(fs vfs.FS) Option {
	return &fsOption{f: fs}
}

type fsOption struct {
	f vfs.FS
}

func (s *fsOption) SetOption(r *Runner) error {
	r.fs = s.f
	return nil
}

// Parallelism is the number of services updated at once. Tracks of one service never overlap.
func Parallelism(n int) Option {
	return &parallelismOption{n: n}
}

type parallelismOption struct {
	n int
}

func (s *parallelismOption) SetOption(r *Runner) error {
	if s.n < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", s.n)
	}
	r.parallelism = s.n
	return nil
}

func Scope(m ScopeMode) Option {
	return &scopeOption{m: m}
}

type scopeOption struct {
	m ScopeMode
}

func (s *scopeOption) SetOption(r *Runner) error {
	r.scope = s.m
	return nil
}

func Metrics(m *telemetry.Metrics) Option {
	return &metricsOption{m: m}
}

type metricsOption struct {
	m *telemetry.Metrics
}

func (s *metricsOption) SetOption(r *Runner) error {
	r.metrics = s.m
	return nil
}

// ManifestFile is the file name used to tell services with a manifest apart.
func ManifestFile(name string) Option {
	return &manifestFileOption{name: name}
}

type manifestFileOption struct {
	name string
}

func (s *manifestFileOption) SetOption(r *Runner) error {
	r.manifestFile = s.name
	return nil
}
