package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Runner abstracts external command execution so stage tests can substitute
// a fake. Both stdout and stderr lines are forwarded to onOutput.
type Runner interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// CommandRunner executes real processes via os/exec.
type CommandRunner struct{}

// NewCommandRunner returns the process-backed Runner used outside tests.
func NewCommandRunner() Runner {
	return CommandRunner{}
}

func (CommandRunner) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	drain := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
		}
	}

	wg.Add(2)
	go drain(stdout)
	go drain(stderr)
	wg.Wait()

	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("read %s output: %w", binary, scanErr)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", binary, err)
	}
	return nil
}
