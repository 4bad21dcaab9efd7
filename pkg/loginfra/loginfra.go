package loginfra

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"

	"k8s.io/klog"
)

const VerbosityEnv = "LIBROLL_VERBOSITY"

// NewFlagSet returns a private flag set for klog. klog's own -v would clash
// with the -v flag of the command line.
func NewFlagSet() *flag.FlagSet {
	// See https://flowerinthenight.com/blog/2019/02/05/golang-cobra-klog
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)

	// Suppress usage flag.ErrHelp
	fs.SetOutput(ioutil.Discard)

	return fs
}

// Init configures klog to log to stderr without headers.
func Init() *flag.FlagSet {
	fs := NewFlagSet()

	klog.InitFlags(fs)

	// Configure klog
	_ = fs.Set("skip_headers", "true")
	_ = fs.Set("logtostderr", "true")

	if v := os.Getenv(VerbosityEnv); v != "" {
		if err := SetVerbosity(fs, v); err != nil {
			fmt.Fprintf(os.Stderr, "ignoring %s: %v\n", VerbosityEnv, err)
		}
	}

	return fs
}

// SetVerbosity sets the klog level. Higher levels log every git command.
func SetVerbosity(fs *flag.FlagSet, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid verbosity %q: must be a non-negative integer", v)
	}
	return fs.Set("v", v)
}
