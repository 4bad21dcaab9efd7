package gitops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/variantdev/libroll/pkg/cmdsite"
)

const DefaultRemoteTimeout = 2 * time.Minute

type Client struct {
	cmdr    cmdsite.RunCommand
	sh      *cmdsite.CommandSite
	wd      string
	gitPath string
	remote  string

	remoteTimeout time.Duration
}

func WD(wd string) Option {
	return func(c *Client) {
		c.wd = wd
	}
}

func Commander(cmdr cmdsite.RunCommand) Option {
	return func(c *Client) {
		c.cmdr = cmdr
	}
}

func Remote(name string) Option {
	return func(c *Client) {
		c.remote = name
	}
}

// RemoteTimeout bounds every command that talks to the remote.
func RemoteTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.remoteTimeout = d
	}
}

type Option func(*Client)

func New(opt ...Option) *Client {
	c := &Client{}

	for _, o := range opt {
		o(c)
	}

	if c.cmdr == nil {
		c.cmdr = cmdsite.DefaultRunCommand
	}
	if c.remote == "" {
		c.remote = "origin"
	}
	if c.remoteTimeout <= 0 {
		c.remoteTimeout = DefaultRemoteTimeout
	}

	c.sh = cmdsite.New()
	c.sh.RunCmd = c.cmdr
	c.sh.Dir = c.wd
	c.sh.Env = map[string]string{"GIT_TERMINAL_PROMPT": "0"}
	c.gitPath = "git"

	return c
}

func (c *Client) Fetch(ctx context.Context) error {
	return c.gitRemote(ctx, "fetch", []string{"--prune", c.remote})
}

// HasRemoteBranch looks the branch up among the remote-tracking refs updated by Fetch.
func (c *Client) HasRemoteBranch(ctx context.Context, branch string) (bool, error) {
	return c.refExists(ctx, fmt.Sprintf("refs/remotes/%s/%s", c.remote, branch))
}

func (c *Client) HasLocalBranch(ctx context.Context, branch string) (bool, error) {
	return c.refExists(ctx, "refs/heads/"+branch)
}

func (c *Client) refExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := c.sh.CaptureStrings(ctx, c.gitPath, []string{"rev-parse", "--verify", "--quiet", ref})
	if err == nil {
		return true, nil
	}
	if cmdsite.HasExitCode(err, 1) {
		return false, nil
	}
	return false, err
}

func (c *Client) Checkout(ctx context.Context, branch string) error {
	return c.git(ctx, "checkout", []string{branch})
}

// Pull fast-forwards the current branch from the remote branch of the same name.
func (c *Client) Pull(ctx context.Context, branch string) error {
	return c.gitRemote(ctx, "pull", []string{"--ff-only", c.remote, branch})
}

func (c *Client) CreateBranch(ctx context.Context, branch string) error {
	return c.git(ctx, "checkout", []string{"-b", branch})
}

// DeleteBranch force-deletes a local branch.
func (c *Client) DeleteBranch(ctx context.Context, branch string) error {
	return c.git(ctx, "branch", []string{"-D", branch})
}

func (c *Client) IsDirty(ctx context.Context) (bool, error) {
	stdout, _, err := c.sh.CaptureStrings(ctx, c.gitPath, []string{"status", "--porcelain"})
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(stdout) != "", nil
}

func (c *Client) Add(ctx context.Context, files ...string) error {
	return c.git(ctx, "add", append([]string{"--"}, files...))
}

func (c *Client) Commit(ctx context.Context, msg string) error {
	return c.git(ctx, "commit", []string{"-m", msg})
}

// CommitAll stages every change, untracked files included, and commits it.
func (c *Client) CommitAll(ctx context.Context, msg string) error {
	if err := c.git(ctx, "add", []string{"--all"}); err != nil {
		return err
	}
	return c.Commit(ctx, msg)
}

func (c *Client) Push(ctx context.Context, branch string) error {
	return c.gitRemote(ctx, "push", []string{"--set-upstream", c.remote, branch})
}

func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	stdout, _, err := c.sh.CaptureStrings(ctx, c.gitPath, []string{"rev-parse", "--abbrev-ref", "HEAD"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout), nil
}

// Discard drops uncommitted edits to tracked files and removes untracked ones. Ignored files are kept.
func (c *Client) Discard(ctx context.Context) error {
	if err := c.git(ctx, "reset", []string{"--hard", "HEAD"}); err != nil {
		return err
	}
	return c.git(ctx, "clean", []string{"-fd"})
}

func (c *Client) GetPushURL(ctx context.Context, name string) (string, error) {
	stdout, _, err := c.sh.CaptureStrings(ctx, c.gitPath, []string{"remote", "get-url", "--push", name})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout), nil
}

func (c *Client) RemoteURL(ctx context.Context) (string, error) {
	return c.GetPushURL(ctx, c.remote)
}

func (c *Client) git(ctx context.Context, cmd string, args []string) error {
	_, _, err := c.sh.CaptureStrings(ctx, c.gitPath, append([]string{cmd}, args...))
	if err != nil {
		return fmt.Errorf("git %s: %w", cmd, err)
	}
	return nil
}

func (c *Client) gitRemote(ctx context.Context, cmd string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()
	return c.git(ctx, cmd, args)
}
