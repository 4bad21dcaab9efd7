package cmdsite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"k8s.io/klog"
)

const waitDelay = 10 * time.Second

type RunCommand func(ctx context.Context, name string, args []string, dir string, stdout, stderr io.Writer, env map[string]string) error

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Name   string
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s %s: exit status %d", e.Name, strings.Join(e.Args, " "), e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// HasExitCode reports whether err is an ExitError with the given code.
func HasExitCode(err error, code int) bool {
	var ee *ExitError
	return errors.As(err, &ee) && ee.Code == code
}

type CommandSite struct {
	RunCmd RunCommand

	// Dir is the working directory commands run in.
	Dir string

	Env map[string]string
}

func New() *CommandSite {
	return &CommandSite{
		RunCmd: DefaultRunCommand,
		Env:    map[string]string{},
	}
}

func (s *CommandSite) RunCommand(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) error {
	klog.V(1).Infof("running %s %s in %s", cmd, strings.Join(args, " "), s.Dir)
	return s.RunCmd(ctx, cmd, args, s.Dir, stdout, stderr, s.Env)
}

func (s *CommandSite) CaptureStrings(ctx context.Context, binary string, args []string) (string, string, error) {
	stdout, stderr, err := s.CaptureBytes(ctx, binary, args)

	var so, se string

	if stdout != nil {
		so = string(stdout)
	}

	if stderr != nil {
		se = string(stderr)
	}

	return so, se, err
}

func (s *CommandSite) CaptureBytes(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	err := s.RunCommand(ctx, binary, args, &stdout, &stderr)
	if err != nil {
		klog.V(1).Info(stderr.String())
		var ee *ExitError
		if errors.As(err, &ee) && ee.Stderr == "" {
			ee.Stderr = stderr.String()
		}
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// DefaultRunCommand runs the binary found on PATH. Env entries are added to the current environment.
func DefaultRunCommand(ctx context.Context, name string, args []string, dir string, stdout, stderr io.Writer, env map[string]string) error {
	if _, err := exec.LookPath(name); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	// Children such as ssh may outlive a killed git and hold the pipes open.
	cmd.WaitDelay = waitDelay
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Name: name, Args: args, Code: exitErr.ExitCode()}
	}
	return err
}
