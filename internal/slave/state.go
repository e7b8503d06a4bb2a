package slave

import (
	"github.com/nexus-sched/nexus/internal/isolation"
	"github.com/nexus-sched/nexus/pkg/resources"
)

// TaskState mirrors master.TaskState (spec.md section 3: "Tasks mirror
// master task states locally"). It is a distinct type, not a shared one,
// following the teacher's aproto/cproto split: master and slave keep
// independent copies of shared vocabulary so neither package depends on
// the other's internals.
type TaskState int

const (
	TaskStarting TaskState = iota
	TaskRunning
	TaskFinished
	TaskFailed
	TaskKilled
	TaskLost
)

func (s TaskState) Terminal() bool {
	switch s {
	case TaskFinished, TaskFailed, TaskKilled, TaskLost:
		return true
	default:
		return false
	}
}

func (s TaskState) String() string {
	switch s {
	case TaskStarting:
		return "STARTING"
	case TaskRunning:
		return "RUNNING"
	case TaskFinished:
		return "FINISHED"
	case TaskFailed:
		return "FAILED"
	case TaskKilled:
		return "KILLED"
	case TaskLost:
		return "LOST"
	default:
		return "UNKNOWN"
	}
}

// ExecutorState is a per-framework executor's lifecycle state (spec.md
// section 4.3).
type ExecutorState int

const (
	ExecutorStarting ExecutorState = iota
	ExecutorRunning
	ExecutorShuttingDown
	ExecutorGone
)

func (s ExecutorState) String() string {
	switch s {
	case ExecutorStarting:
		return "STARTING"
	case ExecutorRunning:
		return "RUNNING"
	case ExecutorShuttingDown:
		return "SHUTTING_DOWN"
	case ExecutorGone:
		return "GONE"
	default:
		return "UNKNOWN"
	}
}

// LocalTask is a slave-side task record.
type LocalTask struct {
	ID        string
	Resources resources.Resources
	Name      string
	Args      []byte
	State     TaskState
}

// QueuedTask is a task waiting for its executor to finish starting.
type QueuedTask struct {
	ID        string
	Resources resources.Resources
	Name      string
	Args      []byte
}

// ExecutorInfo is the opaque-to-the-slave executor descriptor a framework
// supplied at registration, echoed by the master on RUN_TASK.
type ExecutorInfo struct {
	URI  string
	Data []byte
}

// FrameworkRecord is the slave's per-framework state (spec.md section 3):
// its executor and the tasks it hosts here.
type FrameworkRecord struct {
	ID             string
	Executor       ExecutorInfo
	ExecutorSt     ExecutorState
	Handle         isolation.Handle
	ExecutorSender Sender // wire link to the running executor process, set on ExecutorRegistered
	Tasks          map[string]*LocalTask
	QueuedTasks    []QueuedTask
	KillDeadline   map[string]struct{} // task ids with an outstanding kill timer
}

func newFrameworkRecord(id string) *FrameworkRecord {
	return &FrameworkRecord{
		ID:           id,
		ExecutorSt:   ExecutorGone, // no executor launched yet
		Tasks:        make(map[string]*LocalTask),
		KillDeadline: make(map[string]struct{}),
	}
}

func (f *FrameworkRecord) used() resources.Resources {
	sum := resources.New()
	for _, t := range f.Tasks {
		if !t.State.Terminal() {
			sum = sum.Add(t.Resources)
		}
	}
	return sum
}
