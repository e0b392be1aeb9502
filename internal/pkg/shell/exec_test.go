package shell

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestRunArgv(t *testing.T) {
	echoPath, err := exec.LookPath("echo")
	if err != nil {
		t.Skipf("echo not found in PATH: %v", err)
	}

	res, err := Run(context.Background(), Argv(echoPath, "hello-from-argv"), time.Second)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.ExitCode != 0 || !strings.Contains(res.Stdout, "hello-from-argv") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh is unix-focused")
	}

	res, err := Run(context.Background(), Line("echo oops >&2; exit 3"), time.Second)
	if err == nil {
		t.Fatal("expected exit error")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *exec.ExitError, got %T", err)
	}
	if res == nil || res.ExitCode != 3 || !strings.Contains(res.Stderr, "oops") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunTimeoutKillsGroup(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sleep command test is unix-focused")
	}

	start := time.Now()
	_, err := Run(context.Background(), Line("sleep 5 & sleep 5; wait"), 100*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("timeout did not stop the process group, took %v", elapsed)
	}
}

func TestRunRejectsEmpty(t *testing.T) {
	if _, err := Run(context.Background(), Command{}, time.Second); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestTailBufferKeepsSuffix(t *testing.T) {
	b := newTailBuffer(4)
	_, _ = b.Write([]byte("abcdef"))
	_, _ = b.Write([]byte("gh"))
	if got := b.String(); got != "efgh" {
		t.Fatalf("tail = %q, want efgh", got)
	}
}
