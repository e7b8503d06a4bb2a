// Package isolation defines the slave's isolation-module contract (C7): a
// polymorphic interface the slave uses to launch, kill, and reap executor
// processes, and that reports exits back upward exactly once per successful
// launch (spec.md section 4.4). Concrete backends live in subpackages so
// that swapping one in at startup never touches slave call sites (spec.md
// section 9, "Polymorphic isolation and allocator").
package isolation

import (
	"context"

	"github.com/nexus-sched/nexus/pkg/resources"
)

// FrameworkInfo is the opaque-to-isolation subset of framework data needed
// to launch an executor: its identity and the executor descriptor the
// framework supplied at registration.
type FrameworkInfo struct {
	FrameworkID  string
	ExecutorURI  string // fetched and executed to start the executor
	ExecutorData []byte // opaque blob passed through to the executor
	WorkDir      string // the slave's work-dir root; the bundled backends do not read it

	// ExecutorEndpoint is the address of the slave's executor-facing wire
	// listener (internal/slave.ExecutorServer). Backends that launch a real
	// process expose it as NEXUS_EXECUTOR_ENDPOINT so the executor can dial
	// back and speak the register/run/kill/status-update protocol (spec.md
	// section 4.3's "executor registration", "forward to executor").
	ExecutorEndpoint string
}

// Handle identifies a launched executor to later Kill/ResourcesChanged
// calls. Its zero value is never valid; only values returned by
// LaunchExecutor are meaningful.
type Handle string

// ExitStatus describes how an executor process ended.
type ExitStatus struct {
	Code    int
	Message string
}

// Exited is delivered exactly once per successful LaunchExecutor, via the
// Module's Exits channel, when the backend observes the executor process
// has gone away. Backends must make this observable within a bounded time
// of the underlying process actually dying (spec.md section 4.4).
type Exited struct {
	FrameworkID string
	Handle      Handle
	Status      ExitStatus
}

// Module is the isolation backend contract (C7).
type Module interface {
	// LaunchExecutor starts an executor process for framework and returns a
	// handle for later calls. It must not block past the time needed to
	// kick off the launch; long-running supervision happens in the
	// background and reports through Exits.
	LaunchExecutor(ctx context.Context, framework FrameworkInfo) (Handle, error)

	// KillExecutor asks the backend to terminate the executor. It is
	// asynchronous; the corresponding Exited event still arrives on Exits.
	KillExecutor(ctx context.Context, handle Handle) error

	// ResourcesChanged is a hint that the framework's resource grant
	// changed; cgroup-style backends may use it to adjust limits. Backends
	// that do not enforce limits may treat this as a no-op.
	ResourcesChanged(ctx context.Context, handle Handle, newResources resources.Resources) error

	// Exits is the upward channel of executor-exited notifications. It is
	// never closed while the Module is in use.
	Exits() <-chan Exited
}
