package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/twpayne/go-vfs"
	"github.com/variantdev/libroll/pkg/changelog"
	"github.com/variantdev/libroll/pkg/pomxml"
	"github.com/variantdev/libroll/pkg/publisher"
	"github.com/variantdev/libroll/pkg/svcversion"
	"github.com/variantdev/libroll/pkg/tmpl"
	"github.com/variantdev/libroll/pkg/vfsutil"
	"k8s.io/klog/klogr"
)

const (
	DefaultManifestFile = "pom.xml"
	DefaultMarkerFile   = "version.txt"
	DefaultNotesFile    = "release-notes.txt"

	DefaultPublishTimeout = 2 * time.Minute
)

type Templates struct {
	CommitMessage string
	ReleaseNote   string
	PRTitle       string
	PRBody        string
	StashMessage  string
}

var DefaultTemplates = Templates{
	CommitMessage: "Update {{.Artifact}} to {{.DependencyVersion}}, bump version to {{.ServiceVersion}}, update release notes",
	ReleaseNote:   "Update {{.Artifact}} version to {{.DependencyVersion}}",
	PRTitle:       "Update {{.Artifact}} to {{.DependencyVersion}} on {{.Base}}",
	PRBody: `Automated update of {{.Artifact}} to {{.DependencyVersion}}.

Service version: {{.PreviousVersion}} -> {{.ServiceVersion}}
{{- if .StashBranch}}

Uncommitted changes found in the working tree were preserved on branch {{.StashBranch}}.
{{- end}}
`,
	StashMessage: "Preserve uncommitted changes before {{.Artifact}} {{.TargetVersion}} update",
}

type Controller struct {
	Logger logr.Logger

	fs       vfs.FS
	open     func(dir string) Repository
	reviewer Reviewer

	manifest *pomxml.Editor
	notes    *changelog.Writer

	ManifestFile string
	MarkerFile   string
	NotesFile    string

	// Branches overrides the base branch of a track.
	Branches map[svcversion.Track]string

	KindPolicy svcversion.KindPolicy

	// StrictVersion fails a track whose own version cannot be parsed instead of keeping it.
	StrictVersion bool

	Templates Templates

	PublishTimeout time.Duration
}

func New(open func(dir string) Repository, opts ...Option) (*Controller, error) {
	if open == nil {
		return nil, errors.New("workflow: repository opener is required")
	}

	c := &Controller{
		open:      open,
		Templates: DefaultTemplates,
	}

	for _, o := range opts {
		if err := o.SetOption(c); err != nil {
			return nil, err
		}
	}

	if c.Logger == nil {
		c.Logger = klogr.New()
	}
	if c.fs == nil {
		c.fs = vfs.HostOSFS
	}
	if c.reviewer == nil {
		c.reviewer = publisher.New(nil, c.Logger)
	}
	if c.ManifestFile == "" {
		c.ManifestFile = DefaultManifestFile
	}
	if c.MarkerFile == "" {
		c.MarkerFile = DefaultMarkerFile
	}
	if c.NotesFile == "" {
		c.NotesFile = DefaultNotesFile
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}

	for name, text := range map[string]string{
		"commitMessage": c.Templates.CommitMessage,
		"releaseNote":   c.Templates.ReleaseNote,
		"prTitle":       c.Templates.PRTitle,
		"prBody":        c.Templates.PRBody,
		"stashMessage":  c.Templates.StashMessage,
	} {
		if err := tmpl.Validate(name, text); err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
	}

	c.manifest = pomxml.New(c.fs)
	c.notes = changelog.New(c.fs)

	return c, nil
}

// BaseBranch is the branch the track is developed on.
func (c *Controller) BaseBranch(t svcversion.Track) string {
	if b, ok := c.Branches[t]; ok && b != "" {
		return b
	}
	return t.Branch()
}

// run carries the state of one track run.
type run struct {
	*Controller

	job  Job
	repo Repository
	log  logr.Logger
	out  *Outcome

	base string

	// touched is set once files may have been modified on the update branch.
	touched bool
}

func (r *run) to(s State) {
	r.out.LastState = s
	r.log.V(1).Info("state", "state", string(s))
}

func (r *run) fail(step string, err error) {
	r.out.Status = Failed
	r.out.Err = fmt.Errorf("%s: %w", step, err)
	r.log.Error(err, "track failed", "step", step, "state", string(r.out.LastState))
}

func (r *run) data(extra map[string]interface{}) map[string]interface{} {
	d := map[string]interface{}{
		"Service":           r.job.Service.Name,
		"Artifact":          r.job.Request.ArtifactID,
		"TargetVersion":     r.job.Request.TargetVersion,
		"Track":             r.job.Track.String(),
		"Kind":              string(r.job.Track.Kind()),
		"Base":              r.base,
		"PreviousVersion":   r.out.PreviousVersion,
		"ServiceVersion":    r.out.ServiceVersion,
		"DependencyVersion": r.out.DependencyVersion,
		"UpdateBranch":      r.out.UpdateBranch,
		"StashBranch":       r.out.StashBranch,
	}
	for k, v := range extra {
		d[k] = v
	}
	return d
}

func (r *run) render(name, text string) (string, error) {
	return tmpl.Render(name, text, r.data(nil))
}

// Run drives one track of one service. It never panics on repository errors;
// every failure is reported in the returned Outcome.
func (c *Controller) Run(ctx context.Context, job Job) Outcome {
	out := Outcome{
		Service:   job.Service.Name,
		Track:     job.Track,
		LastState: Start,
	}

	r := &run{
		Controller: c,
		job:        job,
		repo:       c.open(job.Service.Path),
		log:        c.Logger.WithValues("service", job.Service.Name, "track", job.Track.String()),
		out:        &out,
		base:       c.BaseBranch(job.Track),
	}

	r.execute(ctx)

	if out.Status == 0 {
		out.Status = Updated
	}

	r.log.Info("track finished", "status", out.Status.String())

	return out
}

func (r *run) execute(ctx context.Context) {
	if err := r.repo.Fetch(ctx); err != nil {
		r.fail("fetch", err)
		return
	}
	r.to(Synced)

	ok, err := r.repo.HasRemoteBranch(ctx, r.base)
	if err != nil {
		r.fail("lookup base branch", err)
		return
	}
	if !ok {
		r.to(BranchMissing)
		r.out.Status = SkippedBranchMissing
		r.log.Info("skipping: base branch does not exist on the remote", "branch", r.base)
		return
	}

	if !r.preserveLocalChanges(ctx) {
		return
	}

	defer r.restore(ctx)

	if err := r.repo.Checkout(ctx, r.base); err != nil {
		r.fail("checkout", err)
		return
	}
	if err := r.repo.Pull(ctx, r.base); err != nil {
		r.fail("pull", err)
		return
	}

	manifest := filepath.Join(r.job.Service.Path, r.ManifestFile)
	exists, err := vfsutil.Exists(r.fs, manifest)
	if err != nil {
		r.fail("stat manifest", err)
		return
	}
	if !exists {
		r.out.Status = SkippedNoManifest
		r.log.Info("skipping: no manifest", "path", manifest)
		return
	}

	if !r.computeVersions(manifest) {
		return
	}

	r.out.UpdateBranch = UpdateBranchName(r.job.Request, r.job.Track, r.job.Scope)
	if err := r.ensureBranchAbsent(ctx, r.out.UpdateBranch); err != nil {
		r.fail("create update branch", err)
		return
	}
	if err := r.repo.CreateBranch(ctx, r.out.UpdateBranch); err != nil {
		r.fail("create update branch", err)
		return
	}
	r.to(BranchCreated)

	r.touched = true
	files, err := r.edit(manifest)
	if err != nil {
		r.fail("edit", err)
		return
	}
	r.to(Edited)

	msg, err := r.render("commitMessage", r.Templates.CommitMessage)
	if err != nil {
		r.fail("render commit message", err)
		return
	}
	if err := r.repo.Add(ctx, files...); err != nil {
		r.fail("commit", err)
		return
	}
	if err := r.repo.Commit(ctx, msg); err != nil {
		r.fail("commit", err)
		return
	}
	r.to(Committed)

	if err := r.repo.Push(ctx, r.out.UpdateBranch); err != nil {
		r.fail("push", err)
		return
	}
	r.to(Pushed)

	if err := r.publish(ctx); err != nil {
		r.fail("publish", err)
		return
	}
	r.to(PRRequested)

	r.to(Done)
}

// preserveLocalChanges commits uncommitted work to a side branch. It returns false when the track failed.
func (r *run) preserveLocalChanges(ctx context.Context) bool {
	dirty, err := r.repo.IsDirty(ctx)
	if err != nil {
		r.fail("status", err)
		return false
	}
	if !dirty {
		r.to(Clean)
		return true
	}

	stash := StashBranchName(r.job.Request, r.job.Track)
	if err := r.ensureBranchAbsent(ctx, stash); err != nil {
		r.fail("preserve local changes", err)
		return false
	}

	msg, err := r.render("stashMessage", r.Templates.StashMessage)
	if err != nil {
		r.fail("render stash message", err)
		return false
	}

	orig, err := r.repo.CurrentBranch(ctx)
	if err != nil {
		r.fail("preserve local changes", err)
		return false
	}

	if err := r.repo.CreateBranch(ctx, stash); err != nil {
		r.fail("preserve local changes", err)
		return false
	}
	if err := r.repo.CommitAll(ctx, msg); err != nil {
		r.fail("preserve local changes", err)
		r.abandonStash(ctx, orig, stash)
		return false
	}

	r.out.StashBranch = stash
	r.to(DirtyStashed)
	r.log.Info("uncommitted changes preserved", "branch", stash)

	return true
}

// abandonStash returns to the branch the tree was on, carrying the uncommitted
// changes along, and removes the stash branch so a later run can create it again.
func (r *run) abandonStash(ctx context.Context, orig, stash string) {
	if orig == "HEAD" {
		// Detached before the stash branch was created; nothing to return to by name.
		r.out.StashBranch = stash
		r.log.Info("WARNING: uncommitted changes left on branch", "branch", stash)
		return
	}
	if err := r.repo.Checkout(ctx, orig); err != nil {
		r.out.StashBranch = stash
		r.log.Error(err, "returning from stash branch", "branch", orig)
		return
	}
	if err := r.repo.DeleteBranch(ctx, stash); err != nil {
		r.out.StashBranch = stash
		r.log.Error(err, "deleting stash branch", "branch", stash)
	}
}

func (r *run) ensureBranchAbsent(ctx context.Context, branch string) error {
	local, err := r.repo.HasLocalBranch(ctx, branch)
	if err != nil {
		return err
	}
	remote, err := r.repo.HasRemoteBranch(ctx, branch)
	if err != nil {
		return err
	}
	if local || remote {
		return fmt.Errorf("%w: %s", ErrBranchExists, branch)
	}
	return nil
}

func (r *run) computeVersions(manifest string) bool {
	current, err := r.manifest.ReadProjectVersion(manifest)
	if err != nil {
		r.fail("read version", err)
		return false
	}
	r.out.PreviousVersion = current

	res, err := svcversion.Next(current, r.job.Track, r.KindPolicy)
	if err != nil {
		r.fail("next version", err)
		return false
	}
	if res.PassThrough {
		if r.StrictVersion {
			r.fail("next version", fmt.Errorf("%w: %q", svcversion.ErrUnparseable, current))
			return false
		}
		r.out.Warnings = append(r.out.Warnings, res.Warning)
		r.log.Info("WARNING: "+res.Warning, "path", manifest)
	}
	r.out.ServiceVersion = res.Version
	r.out.DependencyVersion = svcversion.DependencyVersion(r.job.Request, r.job.Track)

	// Fail before any branch is created when the dependency is not there to update.
	prev, err := r.manifest.DependencyVersions(manifest, r.job.Request.ArtifactID)
	if err != nil {
		r.fail("read dependency", err)
		return false
	}
	r.log.V(1).Info("versions", "current", current, "next", res.Version, "dependency", prev, "newDependency", r.out.DependencyVersion)

	return true
}

// edit rewrites the manifest, marker and notes and returns the paths touched, relative to the service.
func (r *run) edit(manifest string) ([]string, error) {
	dir := r.job.Service.Path

	if err := r.manifest.WriteDependencyVersion(manifest, r.job.Request.ArtifactID, r.out.DependencyVersion); err != nil {
		return nil, err
	}
	if err := r.manifest.WriteProjectVersion(manifest, r.out.ServiceVersion); err != nil {
		return nil, err
	}
	if err := r.notes.WriteCurrentVersionMarker(filepath.Join(dir, r.MarkerFile), r.out.ServiceVersion); err != nil {
		return nil, err
	}

	note, err := r.render("releaseNote", r.Templates.ReleaseNote)
	if err != nil {
		return nil, err
	}
	if err := r.notes.PrependReleaseNote(filepath.Join(dir, r.NotesFile), note); err != nil {
		return nil, err
	}

	return []string{r.ManifestFile, r.MarkerFile, r.NotesFile}, nil
}

func (r *run) publish(ctx context.Context) error {
	title, err := r.render("prTitle", r.Templates.PRTitle)
	if err != nil {
		return err
	}
	body, err := r.render("prBody", r.Templates.PRBody)
	if err != nil {
		return err
	}

	req := publisher.Request{
		Head:  r.out.UpdateBranch,
		Base:  r.base,
		Title: title,
		Body:  body,
	}
	if r.reviewer.Enabled() {
		url, err := r.repo.RemoteURL(ctx)
		if err != nil {
			return err
		}
		req.RemoteURL = url
	}

	ctx, cancel := context.WithTimeout(ctx, r.PublishTimeout)
	defer cancel()

	res, err := r.reviewer.RequestReview(ctx, req)
	if err != nil {
		return err
	}
	r.out.Review = res

	if res.State == publisher.ManualActionRequired {
		r.log.Info("open a pull request manually", "head", r.out.UpdateBranch, "base", r.base)
	}

	return nil
}

// restore puts the working tree back on the base branch. It runs on every path
// once the tree is known to be clean.
func (r *run) restore(ctx context.Context) {
	if r.touched && r.out.Status == Failed {
		if err := r.repo.Discard(ctx); err != nil {
			r.log.Error(err, "discarding partial edits")
		}
	}

	if err := r.repo.Checkout(ctx, r.base); err != nil {
		r.log.Error(err, "returning to base branch", "branch", r.base)
		if r.out.Status != Failed {
			r.fail("restore base branch", err)
		}
	}
}
