package master

import "github.com/nexus-sched/nexus/pkg/resources"

// TaskState is a task's lifecycle state (spec.md section 3).
type TaskState int

const (
	TaskStarting TaskState = iota
	TaskRunning
	TaskFinished
	TaskFailed
	TaskKilled
	TaskLost
)

// Terminal reports whether a state is one of the terminal states that frees
// resources exactly once (spec.md section 3).
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

// Task is a master-side task record (spec.md section 3).
type Task struct {
	ID          string
	FrameworkID string
	SlaveID     string
	Resources   resources.Resources
	Name        string
	Args        []byte
	State       TaskState
}

// Framework is a master-side framework record.
type Framework struct {
	ID           string
	Name         string
	User         string
	Executor     ExecutorInfo
	Sender       Sender
	ActiveOffers map[string]struct{}
	Tasks        map[string]*Task
	PendingReconnect bool // synthesized by REREGISTER_SLAVE before the framework itself reconnects
	Removed      bool
}

func newFramework(id string) *Framework {
	return &Framework{
		ID:           id,
		ActiveOffers: make(map[string]struct{}),
		Tasks:        make(map[string]*Task),
	}
}

// held sums the resources of f's non-terminal tasks, the Held figure of
// allocator.FrameworkSnapshot.
func (f *Framework) held() resources.Resources {
	sum := resources.New()
	for _, t := range f.Tasks {
		if !t.State.Terminal() {
			sum = sum.Add(t.Resources)
		}
	}
	return sum
}

// Slave is a master-side slave record.
type Slave struct {
	ID       string
	Hostname string
	Total    resources.Resources
	Used     resources.Resources
	Offered  resources.Resources
	Sender   Sender
	// Order is this slave's registration sequence number, used by the
	// "simple" allocator's registration-order walk (spec.md section 4.1).
	Order int
}

func (s *Slave) free() resources.Resources {
	return s.Total.Sub(s.Used).Sub(s.Offered)
}

// Offer is a master-side offer record (spec.md section 3).
type Offer struct {
	ID          string
	FrameworkID string
	Epoch       int64
	Slaves      map[string]resources.Resources // slaveId -> resources locked
}
