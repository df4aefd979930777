package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ExecRuntime implements Runtime using local OS processes.
type ExecRuntime struct {
	// StopGrace is how long Stop waits after SIGTERM before killing the process.
	StopGrace time.Duration
}

// NewExecRuntime creates a new process-based runtime.
func NewExecRuntime() *ExecRuntime {
	return &ExecRuntime{StopGrace: 5 * time.Second}
}

// ExecHandle represents a running process.
type ExecHandle struct {
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
	grace  time.Duration

	once    sync.Once
	done    chan struct{}
	waitErr error
}

// Start implements Runtime.Start using os/exec.
func (e *ExecRuntime) Start(ctx context.Context, opts StartOptions) (Handle, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("command is required")
	}

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.WorkDir
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	h := &ExecHandle{
		cmd:   cmd,
		grace: e.StopGrace,
		done:  make(chan struct{}),
	}
	cmd.Stdout = &h.stdout
	cmd.Stderr = &h.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", opts.Command[0], err)
	}

	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	return h, nil
}

// Wait implements Handle.Wait.
func (h *ExecHandle) Wait(ctx context.Context) (ExitResult, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		h.kill()
		<-h.done
		return ExitResult{ExitCode: -1, Stdout: h.stdout.String(), Stderr: h.stderr.String(), Error: ctx.Err()}, ctx.Err()
	}

	result := ExitResult{
		ExitCode: h.cmd.ProcessState.ExitCode(),
		Stdout:   h.stdout.String(),
		Stderr:   h.stderr.String(),
	}
	var exitErr *exec.ExitError
	if h.waitErr != nil && !errors.As(h.waitErr, &exitErr) {
		result.Error = h.waitErr
		return result, h.waitErr
	}
	return result, nil
}

// Stop sends SIGTERM and kills the process if it has not exited within the grace period.
func (h *ExecHandle) Stop(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return err
	}

	timer := time.NewTimer(h.grace)
	defer timer.Stop()

	select {
	case <-h.done:
		return nil
	case <-timer.C:
		h.kill()
		<-h.done
		return nil
	case <-ctx.Done():
		h.kill()
		return ctx.Err()
	}
}

func (h *ExecHandle) kill() {
	h.once.Do(func() {
		_ = h.cmd.Process.Kill()
	})
}
