package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kylelemons/godebug/diff"
	"github.com/twpayne/go-vfs/vfst"
	"github.com/variantdev/libroll/pkg/pomxml"
	"github.com/variantdev/libroll/pkg/publisher"
	"github.com/variantdev/libroll/pkg/svcversion"
	"k8s.io/klog/klogr"
)

type fakeRepo struct {
	remote  map[string]bool
	local   map[string]bool
	current string
	dirty   bool
	url     string

	failOn map[string]error

	calls   []string
	commits map[string][]string
}

func newFakeRepo(branches ...string) *fakeRepo {
	r := &fakeRepo{
		remote:  map[string]bool{},
		local:   map[string]bool{},
		failOn:  map[string]error{},
		commits: map[string][]string{},
		current: "master",
		url:     "git@github.com:acme/orders.git",
	}
	r.local["master"] = true
	for _, b := range branches {
		r.remote[b] = true
		r.local[b] = true
	}
	return r
}

func (r *fakeRepo) call(name string, args ...string) error {
	r.calls = append(r.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return r.failOn[name]
}

func (r *fakeRepo) Fetch(ctx context.Context) error {
	return r.call("Fetch")
}

func (r *fakeRepo) HasRemoteBranch(ctx context.Context, branch string) (bool, error) {
	if err := r.call("HasRemoteBranch", branch); err != nil {
		return false, err
	}
	return r.remote[branch], nil
}

func (r *fakeRepo) HasLocalBranch(ctx context.Context, branch string) (bool, error) {
	if err := r.call("HasLocalBranch", branch); err != nil {
		return false, err
	}
	return r.local[branch], nil
}

func (r *fakeRepo) Checkout(ctx context.Context, branch string) error {
	if err := r.call("Checkout", branch); err != nil {
		return err
	}
	if !r.local[branch] {
		return fmt.Errorf("no such branch: %s", branch)
	}
	r.current = branch
	return nil
}

func (r *fakeRepo) Pull(ctx context.Context, branch string) error {
	return r.call("Pull", branch)
}

func (r *fakeRepo) CreateBranch(ctx context.Context, branch string) error {
	if err := r.call("CreateBranch", branch); err != nil {
		return err
	}
	r.local[branch] = true
	r.current = branch
	return nil
}

func (r *fakeRepo) DeleteBranch(ctx context.Context, branch string) error {
	if err := r.call("DeleteBranch", branch); err != nil {
		return err
	}
	if r.current == branch {
		return fmt.Errorf("cannot delete the checked out branch %s", branch)
	}
	delete(r.local, branch)
	return nil
}

func (r *fakeRepo) CurrentBranch(ctx context.Context) (string, error) {
	if err := r.call("CurrentBranch"); err != nil {
		return "", err
	}
	return r.current, nil
}

func (r *fakeRepo) IsDirty(ctx context.Context) (bool, error) {
	if err := r.call("IsDirty"); err != nil {
		return false, err
	}
	return r.dirty, nil
}

func (r *fakeRepo) Add(ctx context.Context, files ...string) error {
	return r.call("Add", files...)
}

func (r *fakeRepo) Commit(ctx context.Context, msg string) error {
	if err := r.call("Commit"); err != nil {
		return err
	}
	r.commits[r.current] = append(r.commits[r.current], msg)
	return nil
}

func (r *fakeRepo) CommitAll(ctx context.Context, msg string) error {
	if err := r.call("CommitAll"); err != nil {
		return err
	}
	r.commits[r.current] = append(r.commits[r.current], msg)
	r.dirty = false
	return nil
}

func (r *fakeRepo) Push(ctx context.Context, branch string) error {
	if err := r.call("Push", branch); err != nil {
		return err
	}
	r.remote[branch] = true
	return nil
}

func (r *fakeRepo) Discard(ctx context.Context) error {
	return r.call("Discard")
}

func (r *fakeRepo) RemoteURL(ctx context.Context) (string, error) {
	if err := r.call("RemoteURL"); err != nil {
		return "", err
	}
	return r.url, nil
}

type fakeReviewer struct {
	reqs []publisher.Request
	err  error
}

func (f *fakeReviewer) Enabled() bool {
	return true
}

func (f *fakeReviewer) RequestReview(ctx context.Context, req publisher.Request) (publisher.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return publisher.Result{}, f.err
	}
	return publisher.Result{State: publisher.Created, Number: 7, Head: req.Head}, nil
}

const pom = `<project>
  <artifactId>orders</artifactId>
  <version>%s</version>
  <dependencies>
    <dependency>
      <artifactId>common-lib</artifactId>
      <version>1.9.0-SNAPSHOT</version>
    </dependency>
  </dependencies>
</project>
`

var req = svcversion.DependencyRequest{ArtifactID: "common-lib", TargetVersion: "2.0.0"}

func service() Service {
	return Service{Path: "/svc/orders", Name: "orders", HasManifest: true}
}

func setup(t *testing.T, repo *fakeRepo, files map[string]interface{}, opts ...Option) (*Controller, *vfst.TestFS, func()) {
	t.Helper()

	fs, clean, err := vfst.NewTestFS(files)
	if err != nil {
		t.Fatal(err)
	}

	opts = append([]Option{Logger(klogr.New()), FS(fs)}, opts...)
	c, err := New(func(dir string) Repository { return repo }, opts...)
	if err != nil {
		clean()
		t.Fatal(err)
	}

	return c, fs, clean
}

func serviceFiles(version string) map[string]interface{} {
	return map[string]interface{}{
		"/svc/orders/pom.xml":           fmt.Sprintf(pom, version),
		"/svc/orders/release-notes.txt": "Initial release\n",
	}
}

func readFile(t *testing.T, fs *vfst.TestFS, path string) string {
	t.Helper()
	bs, err := fs.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(bs)
}

func TestRun_Updated(t *testing.T) {
	repo := newFakeRepo("develop")
	c, fs, clean := setup(t, repo, serviceFiles("1.0.5-SNAPSHOT-1"))
	defer clean()

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Develop})

	if out.Status != Updated {
		t.Fatalf("assertion failed: expected=%s, got=%s: %v", Updated, out.Status, out.Err)
	}
	if out.LastState != Done {
		t.Errorf("assertion failed: expected=%s, got=%s", Done, out.LastState)
	}
	if out.ServiceVersion != "1.0.5-SNAPSHOT-2" {
		t.Errorf("assertion failed: expected=%s, got=%s", "1.0.5-SNAPSHOT-2", out.ServiceVersion)
	}
	if out.DependencyVersion != "2.0.0-SNAPSHOT" {
		t.Errorf("assertion failed: expected=%s, got=%s", "2.0.0-SNAPSHOT", out.DependencyVersion)
	}
	if out.UpdateBranch != "common-lib-2.0.0-updates" {
		t.Errorf("assertion failed: expected=%s, got=%s", "common-lib-2.0.0-updates", out.UpdateBranch)
	}
	if out.Review.State != publisher.ManualActionRequired {
		t.Errorf("assertion failed: expected=%s, got=%s", publisher.ManualActionRequired, out.Review.State)
	}

	expectedPom := `<project>
  <artifactId>orders</artifactId>
  <version>1.0.5-SNAPSHOT-2</version>
  <dependencies>
    <dependency>
      <artifactId>common-lib</artifactId>
      <version>2.0.0-SNAPSHOT</version>
    </dependency>
  </dependencies>
</project>
`
	if actual := readFile(t, fs, "/svc/orders/pom.xml"); actual != expectedPom {
		t.Errorf("unexpected pom.xml:\n%s", diff.Diff(expectedPom, actual))
	}
	if actual := readFile(t, fs, "/svc/orders/version.txt"); actual != "1.0.5-SNAPSHOT-2\n" {
		t.Errorf("assertion failed: expected=%q, got=%q", "1.0.5-SNAPSHOT-2\n", actual)
	}
	expectedNotes := "Update common-lib version to 2.0.0-SNAPSHOT\nInitial release\n"
	if actual := readFile(t, fs, "/svc/orders/release-notes.txt"); actual != expectedNotes {
		t.Errorf("unexpected release notes:\n%s", diff.Diff(expectedNotes, actual))
	}

	expectedCalls := []string{
		"Fetch",
		"HasRemoteBranch develop",
		"IsDirty",
		"Checkout develop",
		"Pull develop",
		"HasLocalBranch common-lib-2.0.0-updates",
		"HasRemoteBranch common-lib-2.0.0-updates",
		"CreateBranch common-lib-2.0.0-updates",
		"Add pom.xml version.txt release-notes.txt",
		"Commit",
		"Push common-lib-2.0.0-updates",
		"Checkout develop",
	}
	if d := cmp.Diff(expectedCalls, repo.calls); d != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", d)
	}

	expectedCommits := []string{"Update common-lib to 2.0.0-SNAPSHOT, bump version to 1.0.5-SNAPSHOT-2, update release notes"}
	if d := cmp.Diff(expectedCommits, repo.commits["common-lib-2.0.0-updates"]); d != "" {
		t.Errorf("unexpected commits (-want +got):\n%s", d)
	}
	if repo.current != "develop" {
		t.Errorf("assertion failed: expected=%s, got=%s", "develop", repo.current)
	}
}

func TestRun_BranchMissing(t *testing.T) {
	repo := newFakeRepo("develop")
	c, fs, clean := setup(t, repo, serviceFiles("1.0.5-RC-1"))
	defer clean()

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Release})

	if out.Status != SkippedBranchMissing {
		t.Fatalf("assertion failed: expected=%s, got=%s: %v", SkippedBranchMissing, out.Status, out.Err)
	}
	if d := cmp.Diff([]string{"Fetch", "HasRemoteBranch release"}, repo.calls); d != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", d)
	}
	if actual := readFile(t, fs, "/svc/orders/pom.xml"); actual != fmt.Sprintf(pom, "1.0.5-RC-1") {
		t.Errorf("pom.xml must be untouched:\n%s", actual)
	}
}

func TestRun_NoManifest(t *testing.T) {
	repo := newFakeRepo("develop")
	c, _, clean := setup(t, repo, map[string]interface{}{
		"/svc/orders/README.md": "orders",
	})
	defer clean()

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Develop})

	if out.Status != SkippedNoManifest {
		t.Fatalf("assertion failed: expected=%s, got=%s: %v", SkippedNoManifest, out.Status, out.Err)
	}
	for _, call := range repo.calls {
		if strings.HasPrefix(call, "CreateBranch") || strings.HasPrefix(call, "Commit") || strings.HasPrefix(call, "Push") {
			t.Errorf("unexpected call %q", call)
		}
	}
	if repo.current != "develop" {
		t.Errorf("assertion failed: expected=%s, got=%s", "develop", repo.current)
	}
}

func TestRun_DirtyTreePreserved(t *testing.T) {
	repo := newFakeRepo("develop")
	repo.dirty = true
	reviewer := &fakeReviewer{}
	c, _, clean := setup(t, repo, serviceFiles("1.0.5-SNAPSHOT-1"), WithReviewer(reviewer))
	defer clean()

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Develop})

	if out.Status != Updated {
		t.Fatalf("assertion failed: expected=%s, got=%s: %v", Updated, out.Status, out.Err)
	}

	stash := "common-lib-2.0.0-SNAPSHOT-unneeded-changes"
	if out.StashBranch != stash {
		t.Errorf("assertion failed: expected=%s, got=%s", stash, out.StashBranch)
	}
	expected := []string{"Preserve uncommitted changes before common-lib 2.0.0 update"}
	if d := cmp.Diff(expected, repo.commits[stash]); d != "" {
		t.Errorf("unexpected stash commits (-want +got):\n%s", d)
	}
	if len(repo.commits["develop"]) != 0 {
		t.Errorf("base branch must not receive commits, got %v", repo.commits["develop"])
	}

	if len(reviewer.reqs) != 1 {
		t.Fatalf("assertion failed: expected=1, got=%d", len(reviewer.reqs))
	}
	if !strings.Contains(reviewer.reqs[0].Body, stash) {
		t.Errorf("pull request body does not mention %s:\n%s", stash, reviewer.reqs[0].Body)
	}
}

func TestRun_StashCollision(t *testing.T) {
	repo := newFakeRepo("develop")
	repo.dirty = true
	repo.remote["common-lib-2.0.0-SNAPSHOT-unneeded-changes"] = true
	c, _, clean := setup(t, repo, serviceFiles("1.0.5-SNAPSHOT-1"))
	defer clean()

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Develop})

	if out.Status != Failed {
		t.Fatalf("assertion failed: expected=%s, got=%s", Failed, out.Status)
	}
	if !errors.Is(out.Err, ErrBranchExists) {
		t.Errorf("unexpected error: %v", out.Err)
	}
	if !repo.dirty {
		t.Error("dirty working tree must be left alone")
	}
	for _, call := range repo.calls {
		if strings.HasPrefix(call, "CreateBranch") || strings.HasPrefix(call, "Checkout") {
			t.Errorf("unexpected call %q", call)
		}
	}
}

func TestRun_StashCommitFailure(t *testing.T) {
	stash := "common-lib-2.0.0-SNAPSHOT-unneeded-changes"

	testcases := []struct {
		name     string
		current  string
		failOn   string
		expected []string
		kept     bool
	}{
		{
			name:     "returns to the original branch",
			current:  "master",
			expected: []string{"CreateBranch " + stash, "CommitAll", "Checkout master", "DeleteBranch " + stash},
		},
		{
			name:     "keeps the stash branch when the delete fails",
			current:  "master",
			failOn:   "DeleteBranch",
			expected: []string{"CreateBranch " + stash, "CommitAll", "Checkout master", "DeleteBranch " + stash},
			kept:     true,
		},
		{
			name:     "keeps the stash branch on a detached head",
			current:  "HEAD",
			expected: []string{"CreateBranch " + stash, "CommitAll"},
			kept:     true,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo("develop")
			repo.dirty = true
			repo.current = tc.current
			repo.failOn["CommitAll"] = errors.New("commit failed")
			if tc.failOn != "" {
				repo.failOn[tc.failOn] = errors.New("delete failed")
			}
			c, _, clean := setup(t, repo, serviceFiles("1.0.5-SNAPSHOT-1"))
			defer clean()

			out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Develop})

			if out.Status != Failed {
				t.Fatalf("assertion failed: expected=%s, got=%s", Failed, out.Status)
			}
			if !repo.dirty {
				t.Error("uncommitted changes must stay in the working tree")
			}

			var tail []string
			for i, call := range repo.calls {
				if strings.HasPrefix(call, "CreateBranch") {
					tail = repo.calls[i:]
					break
				}
			}
			if d := cmp.Diff(tc.expected, tail); d != "" {
				t.Errorf("unexpected calls (-want +got):\n%s", d)
			}

			if tc.kept {
				if !repo.local[stash] {
					t.Errorf("stash branch %s must be kept", stash)
				}
				if out.StashBranch != stash {
					t.Errorf("assertion failed: expected=%s, got=%s", stash, out.StashBranch)
				}
				return
			}
			if repo.current != tc.current {
				t.Errorf("assertion failed: expected=%s, got=%s", tc.current, repo.current)
			}
			if repo.local[stash] {
				t.Errorf("stash branch %s must be deleted", stash)
			}
			if out.StashBranch != "" {
				t.Errorf("assertion failed: expected=%s, got=%s", "", out.StashBranch)
			}
		})
	}
}

func TestRun_UpdateBranchCollision(t *testing.T) {
	repo := newFakeRepo("develop", "common-lib-2.0.0-updates")
	c, fs, clean := setup(t, repo, serviceFiles("1.0.5-SNAPSHOT-1"))
	defer clean()

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Develop})

	if out.Status != Failed {
		t.Fatalf("assertion failed: expected=%s, got=%s", Failed, out.Status)
	}
	if !errors.Is(out.Err, ErrBranchExists) {
		t.Errorf("unexpected error: %v", out.Err)
	}
	if actual := readFile(t, fs, "/svc/orders/pom.xml"); actual != fmt.Sprintf(pom, "1.0.5-SNAPSHOT-1") {
		t.Errorf("pom.xml must be untouched:\n%s", actual)
	}
	if repo.current != "develop" {
		t.Errorf("assertion failed: expected=%s, got=%s", "develop", repo.current)
	}
}

func TestRun_TrackScopedBranch(t *testing.T) {
	repo := newFakeRepo("release")
	c, _, clean := setup(t, repo, serviceFiles("1.0.5-RC-3"))
	defer clean()

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Release, Scope: TrackScope})

	if out.Status != Updated {
		t.Fatalf("assertion failed: expected=%s, got=%s: %v", Updated, out.Status, out.Err)
	}
	if out.UpdateBranch != "common-lib-2.0.0-RC-updates" {
		t.Errorf("assertion failed: expected=%s, got=%s", "common-lib-2.0.0-RC-updates", out.UpdateBranch)
	}
	if out.ServiceVersion != "1.0.5-RC-4" {
		t.Errorf("assertion failed: expected=%s, got=%s", "1.0.5-RC-4", out.ServiceVersion)
	}
}

func TestRun_PushFailure(t *testing.T) {
	repo := newFakeRepo("develop")
	repo.failOn["Push"] = errors.New("remote rejected")
	c, _, clean := setup(t, repo, serviceFiles("1.0.5-SNAPSHOT-1"))
	defer clean()

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Develop})

	if out.Status != Failed {
		t.Fatalf("assertion failed: expected=%s, got=%s", Failed, out.Status)
	}
	if out.LastState != Committed {
		t.Errorf("assertion failed: expected=%s, got=%s", Committed, out.LastState)
	}
	n := len(repo.calls)
	if d := cmp.Diff([]string{"Discard", "Checkout develop"}, repo.calls[n-2:]); d != "" {
		t.Errorf("unexpected cleanup calls (-want +got):\n%s", d)
	}
}

func TestRun_CleanupFailureFailsTrack(t *testing.T) {
	repo := newFakeRepo("develop")
	c, _, clean := setup(t, repo, serviceFiles("1.0.5-SNAPSHOT-1"))
	defer clean()

	// The first checkout must succeed, the one in cleanup fails.
	checkouts := 0
	wrapped := &checkoutFailer{fakeRepo: repo, after: 1, count: &checkouts}
	c.open = func(dir string) Repository { return wrapped }

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Develop})

	if out.Status != Failed {
		t.Fatalf("assertion failed: expected=%s, got=%s", Failed, out.Status)
	}
	if out.LastState != Done {
		t.Errorf("assertion failed: expected=%s, got=%s", Done, out.LastState)
	}
}

type checkoutFailer struct {
	*fakeRepo
	after int
	count *int
}

func (c *checkoutFailer) Checkout(ctx context.Context, branch string) error {
	*c.count++
	if *c.count > c.after {
		return errors.New("checkout failed")
	}
	return c.fakeRepo.Checkout(ctx, branch)
}

func TestRun_Versions(t *testing.T) {
	testcases := []struct {
		name    string
		current string
		track   svcversion.Track
		opts    []Option
		status  Status
		version string
		warns   int
		err     error
	}{
		{name: "pass-through", current: "1.0.5", track: svcversion.Develop, status: Updated, version: "1.0.5", warns: 1},
		{name: "strict", current: "1.0.5", track: svcversion.Develop, opts: []Option{StrictVersion(true)}, status: Failed, err: svcversion.ErrUnparseable},
		{name: "branch is authority", current: "1.0.5-SNAPSHOT-1", track: svcversion.Release, status: Updated, version: "1.0.5-RC-2"},
		{name: "reject kind mismatch", current: "1.0.5-SNAPSHOT-1", track: svcversion.Release, opts: []Option{KindPolicy(svcversion.RejectKindMismatch)}, status: Failed, err: svcversion.ErrKindMismatch},
	}

	for i := range testcases {
		tc := testcases[i]
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo("develop", "release")
			c, _, clean := setup(t, repo, serviceFiles(tc.current), tc.opts...)
			defer clean()

			out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: tc.track})

			if out.Status != tc.status {
				t.Fatalf("assertion failed: expected=%s, got=%s: %v", tc.status, out.Status, out.Err)
			}
			if tc.err != nil {
				if !errors.Is(out.Err, tc.err) {
					t.Errorf("unexpected error: %v", out.Err)
				}
				return
			}
			if out.ServiceVersion != tc.version {
				t.Errorf("assertion failed: expected=%s, got=%s", tc.version, out.ServiceVersion)
			}
			if len(out.Warnings) != tc.warns {
				t.Errorf("assertion failed: expected=%d, got=%d", tc.warns, len(out.Warnings))
			}
		})
	}
}

func TestRun_DependencyNotDeclared(t *testing.T) {
	repo := newFakeRepo("develop")
	c, _, clean := setup(t, repo, serviceFiles("1.0.5-SNAPSHOT-1"))
	defer clean()

	r := svcversion.DependencyRequest{ArtifactID: "unknown-lib", TargetVersion: "2.0.0"}
	out := c.Run(context.Background(), Job{Service: service(), Request: r, Track: svcversion.Develop})

	if out.Status != Failed {
		t.Fatalf("assertion failed: expected=%s, got=%s", Failed, out.Status)
	}
	if !errors.Is(out.Err, pomxml.ErrDependencyNotDeclared) {
		t.Errorf("unexpected error: %v", out.Err)
	}
	for _, call := range repo.calls {
		if strings.HasPrefix(call, "CreateBranch") || call == "Discard" {
			t.Errorf("unexpected call %q", call)
		}
	}
}

func TestRun_ReviewRequested(t *testing.T) {
	repo := newFakeRepo("develop")
	reviewer := &fakeReviewer{}
	c, _, clean := setup(t, repo, serviceFiles("1.0.5-SNAPSHOT-1"), WithReviewer(reviewer))
	defer clean()

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Develop})

	if out.Status != Updated {
		t.Fatalf("assertion failed: expected=%s, got=%s: %v", Updated, out.Status, out.Err)
	}
	if out.Review.Number != 7 {
		t.Errorf("assertion failed: expected=%d, got=%d", 7, out.Review.Number)
	}
	if len(reviewer.reqs) != 1 {
		t.Fatalf("assertion failed: expected=1, got=%d", len(reviewer.reqs))
	}
	r := reviewer.reqs[0]
	expected := publisher.Request{
		RemoteURL: "git@github.com:acme/orders.git",
		Head:      "common-lib-2.0.0-updates",
		Base:      "develop",
		Title:     "Update common-lib to 2.0.0-SNAPSHOT on develop",
		Body:      r.Body,
	}
	if d := cmp.Diff(expected, r); d != "" {
		t.Errorf("unexpected request (-want +got):\n%s", d)
	}
	if !strings.Contains(r.Body, "1.0.5-SNAPSHOT-1 -> 1.0.5-SNAPSHOT-2") {
		t.Errorf("unexpected body:\n%s", r.Body)
	}
	if strings.Contains(r.Body, "preserved") {
		t.Errorf("body must not mention a stash branch:\n%s", r.Body)
	}
}

func TestRun_ReviewFailure(t *testing.T) {
	repo := newFakeRepo("develop")
	reviewer := &fakeReviewer{err: errors.New("403 forbidden")}
	c, _, clean := setup(t, repo, serviceFiles("1.0.5-SNAPSHOT-1"), WithReviewer(reviewer))
	defer clean()

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Develop})

	if out.Status != Failed {
		t.Fatalf("assertion failed: expected=%s, got=%s", Failed, out.Status)
	}
	if out.LastState != Pushed {
		t.Errorf("assertion failed: expected=%s, got=%s", Pushed, out.LastState)
	}
}

func TestRun_CustomBranchesAndTemplates(t *testing.T) {
	repo := newFakeRepo("dev")
	c, fs, clean := setup(t, repo, serviceFiles("1.0.5-SNAPSHOT-1"),
		Branches(map[svcversion.Track]string{svcversion.Develop: "dev"}),
		WithTemplates(Templates{ReleaseNote: "* {{.Artifact}} {{.DependencyVersion}} ({{.Service}})"}),
	)
	defer clean()

	out := c.Run(context.Background(), Job{Service: service(), Request: req, Track: svcversion.Develop})

	if out.Status != Updated {
		t.Fatalf("assertion failed: expected=%s, got=%s: %v", Updated, out.Status, out.Err)
	}
	expectedNotes := "* common-lib 2.0.0-SNAPSHOT (orders)\nInitial release\n"
	if actual := readFile(t, fs, "/svc/orders/release-notes.txt"); actual != expectedNotes {
		t.Errorf("unexpected release notes:\n%s", diff.Diff(expectedNotes, actual))
	}
	if repo.current != "dev" {
		t.Errorf("assertion failed: expected=%s, got=%s", "dev", repo.current)
	}
}

func TestNew_InvalidTemplate(t *testing.T) {
	_, err := New(func(dir string) Repository { return newFakeRepo() }, WithTemplates(Templates{PRTitle: "{{.Artifact"}))
	if err == nil {
		t.Fatal("expected error for a broken template")
	}
}

func TestBranchNames(t *testing.T) {
	testcases := []struct {
		actual, expected string
	}{
		{StashBranchName(req, svcversion.Develop), "common-lib-2.0.0-SNAPSHOT-unneeded-changes"},
		{StashBranchName(req, svcversion.Release), "common-lib-2.0.0-RC-unneeded-changes"},
		{UpdateBranchName(req, svcversion.Develop, VersionScope), "common-lib-2.0.0-updates"},
		{UpdateBranchName(req, svcversion.Release, VersionScope), "common-lib-2.0.0-updates"},
		{UpdateBranchName(req, svcversion.Release, TrackScope), "common-lib-2.0.0-RC-updates"},
	}

	for _, tc := range testcases {
		if tc.actual != tc.expected {
			t.Errorf("assertion failed: expected=%s, got=%s", tc.expected, tc.actual)
		}
	}
}
