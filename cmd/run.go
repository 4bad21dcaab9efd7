package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	"github.com/variantdev/libroll/pkg/gitops"
	"github.com/variantdev/libroll/pkg/gitrepo"
	"github.com/variantdev/libroll/pkg/publisher"
	"github.com/variantdev/libroll/pkg/rollout"
	"github.com/variantdev/libroll/pkg/svcversion"
	"github.com/variantdev/libroll/pkg/workflow"
)

// Run wires the git, GitHub and filesystem backed components and runs the rollout.
func Run(ctx context.Context, log logr.Logger, s *Settings, out io.Writer) (*rollout.Summary, error) {
	conf := s.Config

	var host publisher.HostingClient
	if token := conf.Token(); token != "" {
		var opts []gitrepo.Option
		if conf.GitHub.BaseURL != "" {
			opts = append(opts, gitrepo.BaseURL(conf.GitHub.BaseURL))
		}
		client, err := gitrepo.NewClient(ctx, token, opts...)
		if err != nil {
			return nil, err
		}
		host = client
	} else {
		log.Info("no GitHub token found, pull requests have to be opened manually", "env", conf.GitHub.TokenEnv)
	}

	open := func(dir string) workflow.Repository {
		return gitops.New(
			gitops.WD(dir),
			gitops.Remote(conf.Remote),
			gitops.RemoteTimeout(time.Duration(conf.RemoteTimeout)),
		)
	}

	controller, err := workflow.New(open,
		workflow.Logger(log),
		workflow.WithReviewer(publisher.New(host, log)),
		workflow.Files(conf.ManifestFile, conf.MarkerFile, conf.NotesFile),
		workflow.Branches(map[svcversion.Track]string{
			svcversion.Develop: conf.Branches.Develop,
			svcversion.Release: conf.Branches.Release,
		}),
		workflow.KindPolicy(s.KindPolicy),
		workflow.StrictVersion(conf.StrictVersion),
		workflow.WithTemplates(workflow.Templates{
			CommitMessage: conf.Templates.CommitMessage,
			ReleaseNote:   conf.Templates.ReleaseNote,
			PRTitle:       conf.Templates.PRTitle,
			PRBody:        conf.Templates.PRBody,
			StashMessage:  conf.Templates.StashMessage,
		}),
	)
	if err != nil {
		return nil, err
	}

	runner, err := rollout.New(controller,
		rollout.Logger(log),
		rollout.Parallelism(conf.Parallelism),
		rollout.Scope(s.Scope),
		rollout.ManifestFile(conf.ManifestFile),
	)
	if err != nil {
		return nil, err
	}

	summary, err := runner.Run(ctx, s.BaseDir, s.Request, s.Selection)
	if err != nil {
		return nil, err
	}

	Report(out, summary)

	if conf.Metrics.PushGateway != "" {
		if err := runner.Metrics().Push(conf.Metrics.PushGateway, conf.Metrics.Job); err != nil {
			log.Error(err, "pushing metrics", "url", conf.Metrics.PushGateway)
		}
	}

	return summary, nil
}

// Report prints one line per track and the summary line.
func Report(w io.Writer, summary *rollout.Summary) {
	for _, res := range summary.Results {
		for _, o := range res.Outcomes {
			switch {
			case o.Status == workflow.Failed:
				fmt.Fprintf(w, "%s\n", o)
			case o.Status == workflow.Updated && o.Review.State == publisher.ManualActionRequired:
				fmt.Fprintf(w, "%s: pushed %s, open the pull request manually\n", o, o.UpdateBranch)
			case o.Status == workflow.Updated:
				fmt.Fprintf(w, "%s: %s -> %s, pull request #%d\n", o, o.PreviousVersion, o.ServiceVersion, o.Review.Number)
			default:
				fmt.Fprintf(w, "%s\n", o)
			}
			if o.StashBranch != "" {
				fmt.Fprintf(w, "%s/%s: uncommitted changes preserved on %s\n", o.Service, o.Track, o.StashBranch)
			}
		}
	}
	fmt.Fprintln(w, summary.String())
}
