package workflow

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/twpayne/go-vfs"
	"github.com/variantdev/libroll/pkg/svcversion"
)

type Option interface {
	SetOption(c *Controller) error
}

type optionFunc func(c *Controller) error

func (f optionFunc) SetOption(c *Controller) error {
	return f(c)
}

func Logger(logger logr.Logger) Option {
	return &loggerOption{l: logger}
}

type loggerOption struct {
	l logr.Logger
}

func (s *loggerOption) SetOption(c *Controller) error {
	c.Logger = s.l
	return nil
}

func FS(fs vfs.FS) Option {
	return &fsOption{f: fs}
}

type fsOption struct {
	f vfs.FS
}

func (s *fsOption) SetOption(c *Controller) error {
	c.fs = s.f
	return nil
}

// WithReviewer sets who opens pull requests. Without one, every track ends with a manual action.
func WithReviewer(r Reviewer) Option {
	return optionFunc(func(c *Controller) error {
		c.reviewer = r
		return nil
	})
}

// Files overrides the manifest, marker and notes file names. Empty names keep the defaults.
func Files(manifest, marker, notes string) Option {
	return optionFunc(func(c *Controller) error {
		c.ManifestFile = manifest
		c.MarkerFile = marker
		c.NotesFile = notes
		return nil
	})
}

func Branches(branches map[svcversion.Track]string) Option {
	return optionFunc(func(c *Controller) error {
		for t, b := range branches {
			if b == "" {
				return fmt.Errorf("empty branch name for track %s", t)
			}
		}
		c.Branches = branches
		return nil
	})
}

func KindPolicy(p svcversion.KindPolicy) Option {
	return optionFunc(func(c *Controller) error {
		c.KindPolicy = p
		return nil
	})
}

func StrictVersion(strict bool) Option {
	return optionFunc(func(c *Controller) error {
		c.StrictVersion = strict
		return nil
	})
}

// WithTemplates replaces the non-empty templates of t.
func WithTemplates(t Templates) Option {
	return optionFunc(func(c *Controller) error {
		if t.CommitMessage != "" {
			c.Templates.CommitMessage = t.CommitMessage
		}
		if t.ReleaseNote != "" {
			c.Templates.ReleaseNote = t.ReleaseNote
		}
		if t.PRTitle != "" {
			c.Templates.PRTitle = t.PRTitle
		}
		if t.PRBody != "" {
			c.Templates.PRBody = t.PRBody
		}
		if t.StashMessage != "" {
			c.Templates.StashMessage = t.StashMessage
		}
		return nil
	})
}

func PublishTimeout(d time.Duration) Option {
	return optionFunc(func(c *Controller) error {
		c.PublishTimeout = d
		return nil
	})
}
