// Package process is a bare os/exec isolation backend: it forks the
// executor binary as a child process directly on the slave's host, with no
// container runtime involved. It is grounded on the teacher's
// agent/internal/container.go process-lifecycle state machine (pull, start,
// wait, report termination upward), simplified down from Docker containers
// to a single exec.Cmd per executor since spec.md's Non-goals exclude
// container-image management.
package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nexus-sched/nexus/internal/isolation"
	"github.com/nexus-sched/nexus/pkg/resources"
)

type entry struct {
	cmd         *exec.Cmd
	frameworkID string
	cancel      context.CancelFunc
}

// Module launches executors as plain child processes. WorkDir is the root
// under which each launch gets its own
// <WorkDir>/slave-<SlaveID>/fw-<FrameworkID>/executor directory, matching
// spec.md section 3's described on-disk layout.
type Module struct {
	SlaveID string
	WorkDir string

	mu    sync.Mutex
	next  int
	procs map[isolation.Handle]*entry
	exits chan isolation.Exited
	log   *logrus.Entry
}

// New constructs a process-backend isolation module rooted at workDir.
func New(slaveID, workDir string, log *logrus.Entry) *Module {
	return &Module{
		SlaveID: slaveID,
		WorkDir: workDir,
		procs:   make(map[isolation.Handle]*entry),
		exits:   make(chan isolation.Exited, 64),
		log:     log,
	}
}

// LaunchExecutor implements isolation.Module by starting framework.ExecutorURI
// as a child process, with framework.ExecutorData written to its stdin.
func (m *Module) LaunchExecutor(
	ctx context.Context, framework isolation.FrameworkInfo,
) (isolation.Handle, error) {
	return m.launchExecutorWithArgs(framework)
}

func (m *Module) launchExecutorWithArgs(
	framework isolation.FrameworkInfo, args ...string,
) (isolation.Handle, error) {
	dir := filepath.Join(m.WorkDir, fmt.Sprintf("slave-%s", m.SlaveID), fmt.Sprintf("fw-%s", framework.FrameworkID), "executor")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("process: creating work dir %s: %w", dir, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, framework.ExecutorURI, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"NEXUS_FRAMEWORK_ID="+framework.FrameworkID,
		"NEXUS_WORK_DIR="+dir,
		"NEXUS_EXECUTOR_ENDPOINT="+framework.ExecutorEndpoint,
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return "", fmt.Errorf("process: stdin pipe: %w", err)
	}
	logFile, err := os.Create(filepath.Join(dir, "executor.log"))
	if err != nil {
		cancel()
		return "", fmt.Errorf("process: creating log file: %w", err)
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		cancel()
		logFile.Close()
		return "", fmt.Errorf("process: starting executor: %w", err)
	}
	if len(framework.ExecutorData) > 0 {
		if _, err := stdin.Write(framework.ExecutorData); err != nil {
			m.log.WithError(err).Warn("process: failed writing executor data")
		}
	}
	stdin.Close()

	m.mu.Lock()
	m.next++
	handle := isolation.Handle(fmt.Sprintf("pid-%d", m.next))
	m.procs[handle] = &entry{cmd: cmd, frameworkID: framework.FrameworkID, cancel: cancel}
	m.mu.Unlock()

	go m.wait(handle, cmd, logFile)
	return handle, nil
}

func (m *Module) wait(handle isolation.Handle, cmd *exec.Cmd, logFile *os.File) {
	err := cmd.Wait()
	logFile.Close()

	m.mu.Lock()
	e, ok := m.procs[handle]
	if ok {
		delete(m.procs, handle)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	status := isolation.ExitStatus{Code: 0}
	if err != nil {
		status.Message = err.Error()
		if exitErr, ok := err.(*exec.ExitError); ok {
			status.Code = exitErr.ExitCode()
		} else {
			status.Code = -1
		}
	}
	m.exits <- isolation.Exited{FrameworkID: e.frameworkID, Handle: handle, Status: status}
}

// KillExecutor implements isolation.Module by sending the process a context
// cancellation, which exec translates into a kill signal.
func (m *Module) KillExecutor(_ context.Context, handle isolation.Handle) error {
	m.mu.Lock()
	e, ok := m.procs[handle]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("process: unknown handle %s", handle)
	}
	e.cancel()
	return nil
}

// ResourcesChanged is a no-op: the bare process backend enforces no limits.
func (m *Module) ResourcesChanged(context.Context, isolation.Handle, resources.Resources) error {
	return nil
}

// Exits implements isolation.Module.
func (m *Module) Exits() <-chan isolation.Exited { return m.exits }
