package ingestion_engine

import (
	"context"
	"os/exec"
	"time"
)

// CommandRunner runs external tools. Tests replace it with a fake.
type CommandRunner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec, each bounded by Timeout (0 = caller context only).
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run executes name with args and returns combined stdout and stderr.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}
