package workflow

import (
	"context"
	"fmt"

	"github.com/variantdev/libroll/pkg/publisher"
	"github.com/variantdev/libroll/pkg/svcversion"
)

// Service is a repository directory found under the base directory.
type Service struct {
	Path        string
	Name        string
	HasManifest bool
}

// Repository is everything the controller does to a working tree.
type Repository interface {
	Fetch(ctx context.Context) error
	HasRemoteBranch(ctx context.Context, branch string) (bool, error)
	HasLocalBranch(ctx context.Context, branch string) (bool, error)
	Checkout(ctx context.Context, branch string) error
	Pull(ctx context.Context, branch string) error
	CreateBranch(ctx context.Context, branch string) error
	DeleteBranch(ctx context.Context, branch string) error
	CurrentBranch(ctx context.Context) (string, error)
	IsDirty(ctx context.Context) (bool, error)
	Add(ctx context.Context, files ...string) error
	Commit(ctx context.Context, msg string) error
	CommitAll(ctx context.Context, msg string) error
	Push(ctx context.Context, branch string) error
	Discard(ctx context.Context) error
	RemoteURL(ctx context.Context) (string, error)
}

// Reviewer opens pull requests for pushed branches.
type Reviewer interface {
	Enabled() bool
	RequestReview(ctx context.Context, req publisher.Request) (publisher.Result, error)
}

type Status int

const (
	Updated Status = iota + 1
	SkippedNoManifest
	SkippedBranchMissing
	Failed
)

func (s Status) String() string {
	switch s {
	case Updated:
		return "updated"
	case SkippedNoManifest:
		return "skipped-no-manifest"
	case SkippedBranchMissing:
		return "skipped-branch-missing"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Completed reports whether the track reached Done or a skip.
func (s Status) Completed() bool {
	return s == Updated || s == SkippedNoManifest || s == SkippedBranchMissing
}

// State is a step of the per-track state machine.
type State string

const (
	Start         State = "Start"
	Synced        State = "Synced"
	BranchMissing State = "BranchMissing"
	DirtyStashed  State = "DirtyStashed"
	Clean         State = "Clean"
	BranchCreated State = "BranchCreated"
	Edited        State = "Edited"
	Committed     State = "Committed"
	Pushed        State = "Pushed"
	PRRequested   State = "PRRequested"
	Done          State = "Done"
)

// Outcome is the result of one track run against one service.
type Outcome struct {
	Service string
	Track   svcversion.Track
	Status  Status
	Err     error

	// LastState is the last state reached before the run ended.
	LastState State

	PreviousVersion   string
	ServiceVersion    string
	DependencyVersion string
	UpdateBranch      string
	StashBranch       string
	Review            publisher.Result

	Warnings []string
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s/%s: %s after %s: %v", o.Service, o.Track, o.Status, o.LastState, o.Err)
	}
	return fmt.Sprintf("%s/%s: %s", o.Service, o.Track, o.Status)
}

// Job is one track of one service.
type Job struct {
	Service Service
	Request svcversion.DependencyRequest
	Track   svcversion.Track
	Scope   BranchScope
}
