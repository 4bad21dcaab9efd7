package cmdsite

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

type CommandInput struct {
	Name string
	Args string
	Env  string
}

type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func NewInput(name string, args []string, env map[string]string) CommandInput {
	envs := []string{}
	for k, v := range env {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(envs)
	input := CommandInput{
		Name: name,
		Args: strings.Join(args, ","),
		Env:  strings.Join(envs, ","),
	}
	return input
}

// Tester is a scripted RunCommand for tests. It records every input it receives.
type Tester struct {
	expectations map[CommandInput]CommandOutput

	mu    sync.Mutex
	calls []CommandInput
}

func NewTester(expectations map[CommandInput]CommandOutput) *Tester {
	return &Tester{expectations: expectations}
}

// Calls returns the inputs received so far, in order.
func (t *Tester) Calls() []CommandInput {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]CommandInput{}, t.calls...)
}

func (t *Tester) RunCommand(ctx context.Context, name string, args []string, dir string, stdout, stderr io.Writer, env map[string]string) error {
	input := NewInput(name, args, env)

	t.mu.Lock()
	t.calls = append(t.calls, input)
	t.mu.Unlock()

	output, ok := t.expectations[input]
	if !ok {
		return fmt.Errorf("unexpected input: %v", input)
	}

	n, err := io.WriteString(stdout, output.Stdout)
	if err != nil {
		return err
	}

	if n != len(output.Stdout) {
		return fmt.Errorf("insufficient write stdout: wrote only %d of %d", n, len(output.Stdout))
	}

	n2, err := io.WriteString(stderr, output.Stderr)
	if err != nil {
		return err
	}

	if n2 != len(output.Stderr) {
		return fmt.Errorf("insufficient write to stderr: wrote only %d of %d", n2, len(output.Stderr))
	}

	if output.ExitCode != 0 {
		return &ExitError{Name: name, Args: args, Code: output.ExitCode}
	}

	return nil
}
