package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/twpayne/go-vfs"
	"github.com/variantdev/libroll/pkg/config"
	"github.com/variantdev/libroll/pkg/loginfra"
	"github.com/variantdev/libroll/pkg/rollout"
	"github.com/variantdev/libroll/pkg/svcversion"
	"k8s.io/klog/klogr"
)

// ErrFailures is returned with --fail-on-error when any service failed.
var ErrFailures = errors.New("some services failed to update")

// Settings is everything a run needs, resolved from flags and the configuration file.
type Settings struct {
	Request   svcversion.DependencyRequest
	Selection rollout.Selection
	BaseDir   string

	Config     *config.Config
	KindPolicy svcversion.KindPolicy
	Scope      rollout.ScopeMode
}

// Executor runs the rollout described by s and writes the report to out.
type Executor func(ctx context.Context, log logr.Logger, s *Settings, out io.Writer) (*rollout.Summary, error)

type flags struct {
	artifact string
	version  string
	branches string
	baseDir  string

	configFile         string
	parallelism        int
	failOnError        bool
	strictVersion      bool
	rejectKindMismatch bool
	branchScope        string
	pushGateway        string
	verbosity          string
}

func Execute() {
	log := klogr.New()

	klogFlags := loginfra.Init()

	cmd := NewRootCmd(vfs.HostOSFS, log, klogFlags, Run)

	if err := cmd.Execute(); err != nil {
		log.Error(err, err.Error())
		os.Exit(1)
	}
}

// NewRootCmd builds the command line. Flags and the configuration file are
// validated before exec is called, so no repository is touched on bad input.
func NewRootCmd(fs vfs.FS, log logr.Logger, klogFlags *flag.FlagSet, exec Executor) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "libroll -a ARTIFACT_ID -v VERSION -b develop|release|both [-d BASE_DIR]",
		Short: "Roll a shared library version out to every service repository under a directory",
		Long: `libroll updates the dependency on a shared library in every git repository
found directly under the base directory.

For each repository and each selected track it checks out the track branch,
bumps the service version, rewrites the dependency version in pom.xml, updates
version.txt and release-notes.txt, pushes an update branch and opens a pull
request when GITHUB_TOKEN is set.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("verbosity") && klogFlags != nil {
				return loginfra.SetVerbosity(klogFlags, f.verbosity)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.settings(cmd, fs)
			if err != nil {
				return err
			}

			summary, err := exec(context.Background(), log, s, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			if summary.Failed > 0 && s.Config.FailOnError {
				return fmt.Errorf("%w: %d of %d", ErrFailures, summary.Failed, summary.Discovered)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.artifact, "artifact", "a", "", "artifact id of the shared library to update")
	fl.StringVarP(&f.version, "version", "v", "", "new version of the shared library, without the SNAPSHOT or RC suffix")
	fl.StringVarP(&f.branches, "branches", "b", "", "tracks to update: develop, release or both")
	fl.StringVarP(&f.baseDir, "dir", "d", ".", "directory whose immediate subdirectories are the service repositories")

	fl.StringVar(&f.configFile, "config", "", fmt.Sprintf("configuration file (default %s in the base directory, if present)", config.FileName))
	fl.IntVar(&f.parallelism, "parallelism", 1, "number of services updated at once")
	fl.BoolVar(&f.failOnError, "fail-on-error", false, "exit with status 1 when any service failed")
	fl.BoolVar(&f.strictVersion, "strict-version", false, "fail a track whose own version cannot be parsed instead of keeping it")
	fl.BoolVar(&f.rejectKindMismatch, "reject-kind-mismatch", false, "fail a track whose version kind does not match its branch instead of correcting it")
	fl.StringVar(&f.branchScope, "branch-scope", "auto", "update branch naming: auto, version or track")
	fl.StringVar(&f.pushGateway, "push-gateway", "", "Prometheus pushgateway URL to push run metrics to")
	fl.StringVar(&f.verbosity, "verbosity", "0", "log verbosity")

	// Per-file verbosity from klog, e.g. --vmodule=gitops=2
	if klogFlags != nil {
		if vm := klogFlags.Lookup("vmodule"); vm != nil {
			fl.AddFlag(pflag.PFlagFromGoFlag(vm))
		}
	}

	for _, name := range []string{"artifact", "version", "branches"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func (f *flags) settings(cmd *cobra.Command, fs vfs.FS) (*Settings, error) {
	artifact := strings.TrimSpace(f.artifact)
	if artifact == "" {
		return nil, errors.New("artifact id must not be empty")
	}
	version := strings.TrimSpace(f.version)
	if version == "" {
		return nil, errors.New("version must not be empty")
	}

	sel, err := rollout.ParseSelection(f.branches)
	if err != nil {
		return nil, err
	}

	info, err := fs.Stat(f.baseDir)
	if err != nil {
		return nil, fmt.Errorf("base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory %s is not a directory", f.baseDir)
	}

	var conf *config.Config
	if f.configFile != "" {
		conf, err = config.Load(fs, f.configFile)
	} else {
		conf, _, err = config.LoadIfExists(fs, filepath.Join(f.baseDir, config.FileName))
	}
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("parallelism") {
		if f.parallelism < 1 {
			return nil, fmt.Errorf("--parallelism must be at least 1, got %d", f.parallelism)
		}
		conf.Parallelism = f.parallelism
	}
	if changed("fail-on-error") {
		conf.FailOnError = f.failOnError
	}
	if changed("strict-version") {
		conf.StrictVersion = f.strictVersion
	}
	if changed("reject-kind-mismatch") {
		if f.rejectKindMismatch {
			conf.KindPolicy = "reject"
		} else {
			conf.KindPolicy = "branch"
		}
	}
	if changed("branch-scope") {
		conf.BranchScope = f.branchScope
	}
	if changed("push-gateway") {
		conf.Metrics.PushGateway = f.pushGateway
	}

	policy, err := svcversion.ParseKindPolicy(conf.KindPolicy)
	if err != nil {
		return nil, err
	}
	scope, err := rollout.ParseScopeMode(conf.BranchScope)
	if err != nil {
		return nil, err
	}

	return &Settings{
		Request: svcversion.DependencyRequest{
			ArtifactID:    artifact,
			TargetVersion: version,
		},
		Selection:  sel,
		BaseDir:    f.baseDir,
		Config:     conf,
		KindPolicy: policy,
		Scope:      scope,
	}, nil
}
