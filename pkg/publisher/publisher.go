// Package publisher asks the hosting service to open a pull request for a pushed branch.
package publisher

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/go-github/v27/github"
	"github.com/variantdev/libroll/pkg/gitrepo"
	"k8s.io/klog/klogr"
)

type State int

const (
	// Created means a pull request exists for the branch, opened now or earlier.
	Created State = iota + 1
	// ManualActionRequired means no hosting client is configured and the operator has to open the pull request.
	ManualActionRequired
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case ManualActionRequired:
		return "manual-action-required"
	}
	return "unknown"
}

type Request struct {
	// RemoteURL is the push URL of the repository, used to find owner and name.
	RemoteURL string
	Head      string
	Base      string
	Title     string
	Body      string
}

type Result struct {
	State  State
	Number int
	URL    string
	Head   string

	// Existing is set when an open pull request for the same head and base was reused.
	Existing bool
}

// HostingClient is the subset of the GitHub client the publisher needs.
type HostingClient interface {
	FindOpenPullRequest(ctx context.Context, owner, repo, head, base string) (*github.PullRequest, error)
	NewPullRequest(ctx context.Context, owner, repo string, opt *gitrepo.NewPullRequestOptions) (*github.PullRequest, error)
}

type Publisher struct {
	client HostingClient
	logger logr.Logger
}

// New returns a publisher. A nil client makes every request end in ManualActionRequired.
func New(client HostingClient, logger logr.Logger) *Publisher {
	if logger == nil {
		logger = klogr.New()
	}
	return &Publisher{client: client, logger: logger}
}

func (p *Publisher) Enabled() bool {
	return p.client != nil
}

func (p *Publisher) RequestReview(ctx context.Context, req Request) (Result, error) {
	if p.client == nil {
		p.logger.Info("no hosting client configured, open the pull request manually", "head", req.Head, "base", req.Base)
		return Result{State: ManualActionRequired, Head: req.Head}, nil
	}

	owner, repo, err := gitrepo.ParseSlug(req.RemoteURL)
	if err != nil {
		return Result{}, err
	}

	existing, err := p.client.FindOpenPullRequest(ctx, owner, repo, req.Head, req.Base)
	if err != nil {
		return Result{}, fmt.Errorf("search pull requests: %w", err)
	}
	if existing != nil {
		p.logger.V(0).Info("skipped due to duplicate pull request", "number", existing.GetNumber(), "head", req.Head)
		return Result{State: Created, Number: existing.GetNumber(), URL: existing.GetHTMLURL(), Head: req.Head, Existing: true}, nil
	}

	pr, err := p.client.NewPullRequest(ctx, owner, repo, &gitrepo.NewPullRequestOptions{
		Title: req.Title,
		Head:  req.Head,
		Base:  req.Base,
		Body:  req.Body,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create pull request: %w", err)
	}

	p.logger.V(2).Info("pull request created", "number", pr.GetNumber(), "url", pr.GetHTMLURL())

	return Result{State: Created, Number: pr.GetNumber(), URL: pr.GetHTMLURL(), Head: req.Head}, nil
}
