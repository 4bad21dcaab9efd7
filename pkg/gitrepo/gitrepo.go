package gitrepo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v27/github"
	"golang.org/x/oauth2"
)

type Client struct {
	github *github.Client
}

type NewPullRequestOptions struct {
	Title string
	Head  string
	Base  string
	Body  string
}

func (c *Client) NewPullRequest(ctx context.Context, owner string, repo string, opt *NewPullRequestOptions) (*github.PullRequest, error) {
	newPr := github.NewPullRequest{
		Title: &opt.Title,
		Head:  &opt.Head,
		Base:  &opt.Base,
		Body:  &opt.Body,
	}
	pr, _, err := c.github.PullRequests.Create(ctx, owner, repo, &newPr)

	return pr, err
}

// FindOpenPullRequest returns the open pull request from head into base, or nil if there is none.
func (c *Client) FindOpenPullRequest(ctx context.Context, owner string, repo string, head, base string) (*github.PullRequest, error) {
	opt := &github.PullRequestListOptions{
		State: "open",
		Head:  owner + ":" + head,
		Base:  base,
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}
	prs, _, err := c.github.PullRequests.List(ctx, owner, repo, opt)
	if err != nil {
		return nil, err
	}
	for _, pr := range prs {
		if pr.GetHead().GetRef() == head && pr.GetBase().GetRef() == base {
			return pr, nil
		}
	}
	return nil, nil
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
}

// BaseURL points the client at a GitHub Enterprise or test API endpoint.
func BaseURL(u string) Option {
	return func(o *clientOptions) {
		o.baseURL = u
	}
}

func HTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// NewClient authenticates with token. An empty token yields an anonymous client.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	hc := o.httpClient
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		if hc != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		}
		hc = oauth2.NewClient(ctx, ts)
	}
	gc := github.NewClient(hc)

	if o.baseURL != "" {
		base := o.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing github base url: %w", err)
		}
		gc.BaseURL = u
	}

	return &Client{
		github: gc,
	}, nil
}

// ParseSlug extracts owner and repo from a GitHub remote URL.
func ParseSlug(remote string) (string, string, error) {
	p := strings.TrimSpace(remote)
	p = strings.TrimSuffix(p, "/")
	p = strings.TrimSuffix(p, ".git")
	switch {
	case strings.HasPrefix(p, "git@"):
		if i := strings.Index(p, ":"); i >= 0 {
			p = p[i+1:]
		}
	case strings.Contains(p, "://"):
		u, err := url.Parse(p)
		if err != nil {
			return "", "", fmt.Errorf("unexpected format of remote: %s: %v", remote, err)
		}
		p = strings.TrimPrefix(u.Path, "/")
	}
	ownerRepo := strings.Split(p, "/")
	if len(ownerRepo) != 2 || ownerRepo[0] == "" || ownerRepo[1] == "" {
		return "", "", fmt.Errorf("unexpected format of remote: %s", remote)
	}
	return ownerRepo[0], ownerRepo[1], nil
}
