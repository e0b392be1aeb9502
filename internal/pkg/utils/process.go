package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// IsProcessAlive checks if a process with the given PID is still running.
func IsProcessAlive(ctx context.Context, pid int) bool {
	if pid <= 0 {
		return false
	}
	found, _ := process.PidExistsWithContext(ctx, int32(pid))
	return found
}

// TerminateProcess sends SIGTERM to pid.
func TerminateProcess(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return p.TerminateWithContext(ctx)
}

// ReadPIDFile returns the pid stored in path, or 0 when the file is absent.
func ReadPIDFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}

func WritePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}
