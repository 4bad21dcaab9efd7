// Package rollout finds the service repositories under a base directory and
// updates each of them on the requested tracks.
package rollout

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"github.com/twpayne/go-vfs"
	"github.com/variantdev/libroll/pkg/svcversion"
	"github.com/variantdev/libroll/pkg/telemetry"
	"github.com/variantdev/libroll/pkg/vfsutil"
	"github.com/variantdev/libroll/pkg/workflow"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/klogr"
)

// Updater runs one track of one service.
type Updater interface {
	Run(ctx context.Context, job workflow.Job) workflow.Outcome
}

type Runner struct {
	Logger logr.Logger

	fs      vfs.FS
	updater Updater
	metrics *telemetry.Metrics

	manifestFile string
	parallelism  int
	scope        ScopeMode
}

// ServiceResult holds the outcomes of every track run against one service.
type ServiceResult struct {
	Service  workflow.Service
	Outcomes []workflow.Outcome
}

// Failed reports whether any track of the service failed.
func (r ServiceResult) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == workflow.Failed {
			return true
		}
	}
	return false
}

type Summary struct {
	// Discovered is the number of service repositories found.
	Discovered int
	// Processed counts services whose every track was updated or skipped.
	Processed int
	// Failed counts services with at least one failed track.
	Failed int

	Results []ServiceResult
}

func (s Summary) String() string {
	return fmt.Sprintf("Total: %d, Processed: %d, Failed: %d", s.Discovered, s.Processed, s.Failed)
}

func New(updater Updater, opts ...Option) (*Runner, error) {
	if updater == nil {
		return nil, errors.New("rollout: updater is required")
	}

	r := &Runner{
		updater:     updater,
		parallelism: 1,
		scope:       ScopeAuto,
	}

	for _, o := range opts {
		if err := o.SetOption(r); err != nil {
			return nil, err
		}
	}

	if r.Logger == nil {
		r.Logger = klogr.New()
	}
	if r.fs == nil {
		r.fs = vfs.HostOSFS
	}
	if r.manifestFile == "" {
		r.manifestFile = workflow.DefaultManifestFile
	}
	if r.metrics == nil {
		r.metrics = telemetry.NewRolloutMetrics()
	}

	return r, nil
}

// Metrics are the counters of the runs made so far, ready to be pushed.
func (r *Runner) Metrics() *telemetry.Metrics {
	return r.metrics
}

// Discover lists the immediate subdirectories of baseDir that are git
// repositories, sorted by name. A .git file counts, so worktrees and
// submodules are services too.
func (r *Runner) Discover(baseDir string) ([]workflow.Service, error) {
	infos, err := r.fs.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("reading base directory %s: %w", baseDir, err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	var services []workflow.Service
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}

		dir := filepath.Join(baseDir, info.Name())

		isRepo, err := vfsutil.Exists(r.fs, filepath.Join(dir, ".git"))
		if err != nil {
			return nil, err
		}
		if !isRepo {
			r.Logger.Info("WARNING: skipping directory that is not a git repository", "dir", dir)
			continue
		}

		hasManifest, err := vfsutil.Exists(r.fs, filepath.Join(dir, r.manifestFile))
		if err != nil {
			return nil, err
		}

		services = append(services, workflow.Service{
			Path:        dir,
			Name:        info.Name(),
			HasManifest: hasManifest,
		})
	}

	return services, nil
}

// Run updates every service under baseDir on the selected tracks. Errors are
// only returned when the base directory cannot be read; per-service failures
// end up in the summary.
func (r *Runner) Run(ctx context.Context, baseDir string, req svcversion.DependencyRequest, sel Selection) (*Summary, error) {
	tracks := sel.Tracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, string(sel))
	}

	if err := svcversion.ValidateTarget(req.TargetVersion); err != nil {
		r.Logger.Info("WARNING: " + err.Error())
	}

	services, err := r.Discover(baseDir)
	if err != nil {
		return nil, err
	}

	scope := r.scope.Resolve(sel)

	r.Logger.Info("starting rollout",
		"artifact", req.ArtifactID, "version", req.TargetVersion,
		"tracks", string(sel), "services", len(services), "branchScope", scope.String(), "parallelism", r.parallelism)

	results := make([]ServiceResult, len(services))

	var g errgroup.Group
	g.SetLimit(r.parallelism)

	for i := range services {
		i := i
		g.Go(func() error {
			results[i] = r.runService(ctx, services[i], req, tracks, scope)
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{
		Discovered: len(services),
		Results:    results,
	}
	for _, res := range results {
		if res.Failed() {
			summary.Failed++
		} else {
			summary.Processed++
		}
	}

	return summary, nil
}

// runService runs the tracks of one service strictly one after another.
func (r *Runner) runService(ctx context.Context, svc workflow.Service, req svcversion.DependencyRequest, tracks []svcversion.Track, scope workflow.BranchScope) ServiceResult {
	log := r.Logger.WithValues("service", svc.Name)
	res := ServiceResult{Service: svc}

	serviceStart := time.Now()
	r.record(r.metrics.Start(telemetry.KindService, svc.Name))

	for _, t := range tracks {
		start := time.Now()
		r.record(r.metrics.Start(telemetry.KindTrack, svc.Name, t.String()))

		out := r.updater.Run(ctx, workflow.Job{
			Service: svc,
			Request: req,
			Track:   t,
			Scope:   scope,
		})

		r.record(r.metrics.Observe(telemetry.KindTrack, start, time.Now(), out.Status.String(), svc.Name, t.String()))

		if out.Status == workflow.Failed {
			log.Error(out.Err, "track failed", "track", t.String(), "state", string(out.LastState))
		} else {
			log.V(1).Info("track done", "track", t.String(), "status", out.Status.String())
		}

		res.Outcomes = append(res.Outcomes, out)
	}

	status := "processed"
	if res.Failed() {
		status = "failed"
	}
	r.record(r.metrics.Observe(telemetry.KindService, serviceStart, time.Now(), status, svc.Name))

	return res
}

func (r *Runner) record(err error) {
	if err != nil {
		r.Logger.Error(err, "recording metrics")
	}
}
