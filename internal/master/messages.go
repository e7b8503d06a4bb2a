package master

import "github.com/nexus-sched/nexus/pkg/resources"

// ExecutorInfo is the opaque-to-the-master executor descriptor a framework
// supplies at registration (spec.md section 3, Framework.executorInfo).
type ExecutorInfo struct {
	URI  string
	Data []byte
}

// RegisterFramework is sent by a framework scheduler to join the cluster
// (spec.md section 4.2's REGISTER_FRAMEWORK).
type RegisterFramework struct {
	Name     string
	User     string
	Executor ExecutorInfo
	Sender   Sender // transport handle the master replies through
}

// FrameworkRegistered answers a RegisterFramework sent via Ask (the grpc
// adapter's Register RPC needs the minted FrameworkID synchronously; the
// Tell-based slave/test callers above ignore this and rely on Sender
// instead).
type FrameworkRegistered struct {
	FrameworkID string
}

// UnregisterFramework asks the master to tear a framework down cleanly
// (UNREGISTER_FRAMEWORK).
type UnregisterFramework struct {
	FrameworkID string
}

// RegisterSlave is sent by a slave agent to join the cluster
// (REGISTER_SLAVE).
type RegisterSlave struct {
	Hostname string
	Total    resources.Resources
	Sender   Sender
}

// SlaveRegistered answers a RegisterSlave sent via Ask, mirroring
// FrameworkRegistered: the wire listener needs the minted SlaveID
// synchronously to track the connection for PeerExited.
type SlaveRegistered struct {
	SlaveID string
}

// ReregisterTask is one entry of a slave's trusted task list on
// REREGISTER_SLAVE.
type ReregisterTask struct {
	FrameworkID string
	TaskID      string
	Resources   resources.Resources
	State       TaskState
}

// ReregisterSlave is sent by a slave after a master failover
// (REREGISTER_SLAVE). The master trusts this list over its own (empty,
// post-failover) records.
type ReregisterSlave struct {
	SlaveID  string
	Hostname string
	Total    resources.Resources
	Tasks    []ReregisterTask
	Sender   Sender
}

// StatusUpdate reports a task's current state, from a slave (STATUS_UPDATE).
type StatusUpdate struct {
	SlaveID     string
	FrameworkID string
	TaskID      string
	State       TaskState
	Message     string
}

// LaunchTask is one task a framework wants started against an offer.
type LaunchTask struct {
	TaskID    string
	SlaveID   string
	Resources resources.Resources
	Name      string
	Args      []byte
}

// LaunchTasks is sent by a framework to consume an offer
// (LAUNCH_TASKS(offerId, tasks)).
type LaunchTasks struct {
	FrameworkID string
	OfferID     string
	Tasks       []LaunchTask
}

// KillTask asks the master to kill a running or starting task (KILL_TASK).
type KillTask struct {
	FrameworkID string
	TaskID      string
}

// FrameworkMessage relays an opaque blob between a framework and a slave's
// executor, in either direction (FRAMEWORK_MESSAGE).
type FrameworkMessage struct {
	FrameworkID string
	SlaveID     string
	Data        []byte
	FromSlave   bool
}

// PeerExited reports that a wire transport to a framework or slave died
// (EXITED); it is the wire-level analogue of spec.md section 7's "transient
// transport failure."
type PeerExited struct {
	FrameworkID string // set if the dead peer was a framework
	SlaveID     string // set if the dead peer was a slave
}

// LeaderChanged is posted into the master's own loop by the leader watcher
// (spec.md section 9, "leader-listener callback"); never called directly
// from the watcher's goroutine.
type LeaderChanged struct {
	EpochID int64
	Leader  string
	SelfID  string
}

// reconciliationExpired is an internal timer message ending the
// post-failover reconciliation window.
type reconciliationExpired struct{ epoch int64 }
