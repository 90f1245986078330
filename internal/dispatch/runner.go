package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Runner executes a shell script on a node and reports its exit status.
// The error return is reserved for failures to run at all; a nonzero
// remote exit comes back as the code with a nil error.
type Runner interface {
	Run(ctx context.Context, node, script string) (int, error)
}

// SSHRunner executes scripts over ssh. BatchMode keeps a node with a
// broken key setup from hanging the pool on a password prompt; such a
// connection fails with ssh's exit status 255 instead.
type SSHRunner struct{}

func (r *SSHRunner) Run(ctx context.Context, node, script string) (int, error) {
	cmd := exec.CommandContext(ctx, "ssh", "-o", "BatchMode=yes", node, script)
	return exitCode(cmd.Run(), fmt.Sprintf("ssh to %s", node))
}

// LocalRunner executes scripts on the local host, ignoring the node
// name. It backs `run --local` for single-machine batches and keeps the
// dispatch path testable without a cluster.
type LocalRunner struct{}

func (r *LocalRunner) Run(ctx context.Context, node, script string) (int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	return exitCode(cmd.Run(), "local shell")
}

func exitCode(err error, what string) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("failed to run %s: %w", what, err)
}

var (
	_ Runner = (*SSHRunner)(nil)
	_ Runner = (*LocalRunner)(nil)
)
