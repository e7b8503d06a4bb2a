package nexuspb

import "github.com/nexus-sched/nexus/pkg/resources"

// ExecutorInfo describes the executor a framework wants launched for its
// tasks, echoed back to the master on RegisterFramework.
type ExecutorInfo struct {
	URI  string
	Data []byte
}

// RegisterRequest is sent once by a scheduler to join the cluster
// (spec.md section 4.2, REGISTER_FRAMEWORK).
type RegisterRequest struct {
	Name     string
	User     string
	Executor ExecutorInfo
}

// RegisterResponse confirms registration and hands back the minted
// FrameworkID.
type RegisterResponse struct {
	FrameworkID string
}

// UnregisterRequest tears a framework down cleanly.
type UnregisterRequest struct {
	FrameworkID string
}

// ResourceOffer is one offer pushed to a scheduler over the ResourceOffers
// stream.
type ResourceOffer struct {
	OfferID string
	Slaves  map[string]resources.Resources
}

// LaunchTask is one task a scheduler wants started against an offer.
type LaunchTask struct {
	TaskID    string
	SlaveID   string
	Resources resources.Resources
	Name      string
	Args      []byte
}

// LaunchTasksRequest consumes an offer (LAUNCH_TASKS(offerId, tasks)).
type LaunchTasksRequest struct {
	FrameworkID string
	OfferID     string
	Tasks       []LaunchTask
}

// KillTaskRequest asks the master to kill a running or starting task.
type KillTaskRequest struct {
	FrameworkID string
	TaskID      string
}

// StatusUpdate reports a task's current state back to the scheduler.
type StatusUpdate struct {
	SlaveID     string
	FrameworkID string
	TaskID      string
	State       int32
	Message     string
}

// FrameworkMessageRequest relays an opaque blob to a slave's executor.
type FrameworkMessageRequest struct {
	FrameworkID string
	SlaveID     string
	Data        []byte
}

// Ack is the empty acknowledgement most unary RPCs return.
type Ack struct{}
