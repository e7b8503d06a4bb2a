// Package noop is an in-process isolation backend used by tests: it never
// actually spawns anything and reports Exited only when explicitly told to,
// grounded on the teacher's pkg/actor/actors/test_actor.go fake-actor idiom
// for exercising call sites without real OS processes.
package noop

import (
	"context"
	"fmt"
	"sync"

	"github.com/nexus-sched/nexus/internal/isolation"
	"github.com/nexus-sched/nexus/pkg/resources"
)

// Module is a controllable fake isolation.Module.
type Module struct {
	mu      sync.Mutex
	next    int
	live    map[isolation.Handle]string
	exits   chan isolation.Exited
	failNew bool
}

// New returns an empty noop module. If failNext, every LaunchExecutor call
// fails instead of succeeding, for exercising spec.md section 7's "Local
// resource error" path.
func New(failNext bool) *Module {
	return &Module{
		live:    make(map[isolation.Handle]string),
		exits:   make(chan isolation.Exited, 16),
		failNew: failNext,
	}
}

// LaunchExecutor implements isolation.Module.
func (m *Module) LaunchExecutor(
	_ context.Context, framework isolation.FrameworkInfo,
) (isolation.Handle, error) {
	if m.failNew {
		return "", fmt.Errorf("noop: launch refused for framework %s", framework.FrameworkID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	handle := isolation.Handle(fmt.Sprintf("noop-%d", m.next))
	m.live[handle] = framework.FrameworkID
	return handle, nil
}

// KillExecutor implements isolation.Module.
func (m *Module) KillExecutor(_ context.Context, handle isolation.Handle) error {
	m.mu.Lock()
	frameworkID, ok := m.live[handle]
	if ok {
		delete(m.live, handle)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("noop: unknown handle %s", handle)
	}
	m.exits <- isolation.Exited{
		FrameworkID: frameworkID,
		Handle:      handle,
		Status:      isolation.ExitStatus{Code: 0, Message: "killed"},
	}
	return nil
}

// ResourcesChanged implements isolation.Module as a no-op.
func (m *Module) ResourcesChanged(context.Context, isolation.Handle, resources.Resources) error {
	return nil
}

// Exits implements isolation.Module.
func (m *Module) Exits() <-chan isolation.Exited { return m.exits }

// SimulateCrash synthesizes an out-of-band executor exit, for tests driving
// the slave's executorExited path without a real crash.
func (m *Module) SimulateCrash(handle isolation.Handle, status isolation.ExitStatus) {
	m.mu.Lock()
	frameworkID, ok := m.live[handle]
	if ok {
		delete(m.live, handle)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.exits <- isolation.Exited{FrameworkID: frameworkID, Handle: handle, Status: status}
}
