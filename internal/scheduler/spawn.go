package scheduler

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Handle controls one running child process.
type Handle interface {
	Wait() error
	Terminate() error
	Kill() error
}

// Spawner starts a job in an isolated child process. Jobs run out of
// process so a crashing or leaking third-party client takes down only its
// own invocation, never the scheduler.
type Spawner interface {
	Spawn(job string, args []string) (Handle, error)
}

// ExecSpawner re-executes the worker binary with the `job` subcommand.
type ExecSpawner struct {
	// Binary overrides the executable path; empty means the current binary.
	Binary string
}

func (s *ExecSpawner) Spawn(job string, args []string) (Handle, error) {
	binary := s.Binary
	if binary == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve worker binary: %w", err)
		}
		binary = self
	}

	argv := append([]string{"job", job}, args...)
	cmd := exec.Command(binary, argv...)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start job process: %w", err)
	}
	return &execHandle{cmd: cmd}, nil
}

type execHandle struct {
	cmd *exec.Cmd
}

func (h *execHandle) Wait() error {
	return h.cmd.Wait()
}

func (h *execHandle) Terminate() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Signal(syscall.SIGTERM)
}

func (h *execHandle) Kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}
