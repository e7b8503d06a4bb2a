package slave

import "github.com/nexus-sched/nexus/pkg/resources"

// RunTask is the master's RUN_TASK, forwarded from LAUNCH_TASKS.
type RunTask struct {
	FrameworkID string
	Executor    ExecutorInfo
	Task        QueuedTask
}

// KillTask is the master's KILL_TASK.
type KillTask struct {
	FrameworkID string
	TaskID      string
}

// ExecutorRegistered is posted by internal/slave.ExecutorServer once a
// launched executor dials back over its NEXUS_EXECUTOR_ENDPOINT and
// completes the ExecutorRegister handshake (spec.md section 4.3,
// "executor registration"). Sender is the wire link back to that specific
// executor process, installed on the FrameworkRecord so RunTask/KillTask
// delivery has somewhere to go; it is nil only in tests that drive the
// slave's queueing logic without a real executor attached.
type ExecutorRegistered struct {
	FrameworkID string
	Sender      Sender
}

// ExecutorStatusUpdate is a status report the executor hands back to the
// slave for one of its tasks (mirrors STATUS_UPDATE, originating locally).
type ExecutorStatusUpdate struct {
	FrameworkID string
	TaskID      string
	State       TaskState
	Message     string
}

// SlaveRegistered is posted once the wire client's initial handshake with
// a master completes, carrying the SlaveID the master minted; it is
// distinct from NewLeader so the slave learns its own identity exactly
// once, even though NewLeader can recur across reconnects.
type SlaveRegistered struct {
	SlaveID string
}

// NewLeader is posted by WireClient when it connects to a master, and again
// with a nil Sender when that connection drops (spec.md section 4.3,
// "newLeader(masterIdentity)").
type NewLeader struct {
	MasterIdentity string
	Sender         Sender // nil means "no leader known"; pause client-visible work
}

// executorExitedMsg wraps an isolation.Exited event routed back into the
// slave's own message loop (spec.md section 9, "leader-listener callback"
// pattern applied to the isolation module's upward channel too).
type executorExitedMsg struct {
	frameworkID string
	code        int
	message     string
}

// killTimeoutMsg fires when a KILL_TASK's grace period elapses without a
// terminal status arriving from the executor.
type killTimeoutMsg struct {
	frameworkID string
	taskID      string
	generation  int
}

// ResourcesChanged re-hints the isolation backend that a framework's
// resource grant on this slave changed (spec.md section 4.4's
// resourcesChanged hook). The master does not send this today — no
// message table entry drives it — but cgroup-style isolation backends
// need a way to receive updated limits, so the hook is exposed here for a
// future resize operation to call into.
type ResourcesChanged struct {
	FrameworkID string
	Resources   resources.Resources
}
