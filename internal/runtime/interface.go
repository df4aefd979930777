// Package runtime runs external tools (ffmpeg, whisper.cpp) either as local
// processes or inside Docker containers.
package runtime

import (
	"context"
)

// Runtime starts one-shot tool invocations.
// Implementations include Docker and raw process execution.
type Runtime interface {
	// Start launches the command and returns a handle to it.
	Start(ctx context.Context, opts StartOptions) (Handle, error)
}

// Mount binds a host directory into the execution environment.
// The exec runtime ignores mounts since the process already sees the host filesystem.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// StartOptions contains the parameters for starting a command.
type StartOptions struct {
	// Image is required by the Docker runtime and ignored by the exec runtime.
	Image   string
	Command []string
	Env     map[string]string
	Mounts  []Mount
	WorkDir string
}

// ExitResult describes a finished command.
type ExitResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Error    error
}

// Handle represents a running command.
type Handle interface {
	// Wait blocks until the command exits and returns its captured output.
	// A cancelled context stops the command and yields ExitCode -1.
	Wait(ctx context.Context) (ExitResult, error)

	// Stop terminates the command.
	Stop(ctx context.Context) error
}

// Run starts the command and waits for it.
func Run(ctx context.Context, rt Runtime, opts StartOptions) (ExitResult, error) {
	handle, err := rt.Start(ctx, opts)
	if err != nil {
		return ExitResult{ExitCode: -1, Error: err}, err
	}
	return handle.Wait(ctx)
}
