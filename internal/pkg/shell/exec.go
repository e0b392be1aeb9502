package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	defaultTimeout = 60 * time.Second
	maxOutputBytes = 64 << 10
	waitDelay      = 2 * time.Second
)

var ErrTimeout = errors.New("command timed out")

// Command is either an argv (Program + Args) or a shell line run with sh -c.
type Command struct {
	Program string
	Args    []string
	Line    string
	Dir     string
	Env     []string
}

// Line builds a Command run through sh -c.
func Line(line string) Command {
	return Command{Line: strings.TrimSpace(line)}
}

// Argv builds a Command executed directly.
func Argv(program string, args ...string) Command {
	return Command{Program: program, Args: args}
}

func (c Command) String() string {
	if c.Line != "" {
		return c.Line
	}
	return strings.TrimSpace(strings.Join(append([]string{c.Program}, c.Args...), " "))
}

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Run executes c and waits up to timeout. On expiry the whole process group
// is killed and ErrTimeout is returned. A non-zero exit is reported in
// Result.ExitCode together with an *exec.ExitError.
func Run(ctx context.Context, c Command, timeout time.Duration) (*Result, error) {
	if c.Line == "" && strings.TrimSpace(c.Program) == "" {
		return nil, fmt.Errorf("command is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if c.Line != "" {
		cmd = exec.CommandContext(runCtx, "sh", "-c", c.Line)
	} else {
		cmd = exec.CommandContext(runCtx, c.Program, c.Args...)
	}
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = c.Env
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	stdout := newTailBuffer(maxOutputBytes)
	stderr := newTailBuffer(maxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		return res, fmt.Errorf("%w after %v: %s", ErrTimeout, timeout, c)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, fmt.Errorf("%s: %w", c, err)
		}
		return nil, fmt.Errorf("run %s: %w", c, err)
	}
	return res, nil
}

// tailBuffer keeps only the last max bytes written to it.
type tailBuffer struct {
	mu   sync.Mutex
	max  int
	data []byte
}

func newTailBuffer(maxBytes int) *tailBuffer {
	return &tailBuffer{max: maxBytes}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, p...)
	if over := len(b.data) - b.max; over > 0 {
		b.data = append([]byte(nil), b.data[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
