package slave

import (
	"testing"
	"time"

	"github.com/nexus-sched/nexus/internal/isolation"
	"github.com/nexus-sched/nexus/internal/isolation/noop"
	"github.com/nexus-sched/nexus/pkg/agent"
	"github.com/nexus-sched/nexus/pkg/resources"
)

type fakeSender struct {
	sent chan sentMessage
}

type sentMessage struct {
	kind    string
	payload interface{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(chan sentMessage, 32)}
}

func (f *fakeSender) Send(kind string, payload interface{}) error {
	f.sent <- sentMessage{kind: kind, payload: payload}
	return nil
}

func (f *fakeSender) expect(t *testing.T, kind string) sentMessage {
	t.Helper()
	select {
	case msg := <-f.sent:
		if msg.kind != kind {
			t.Fatalf("expected %s, got %s (%+v)", kind, msg.kind, msg.payload)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", kind)
	}
	return sentMessage{}
}

func newConnectedSlave(t *testing.T, iso isolation.Module) (*agent.System, *agent.Ref, *fakeSender) {
	t.Helper()
	s := New(Config{
		Hostname: "s1",
		Total:    resources.New("cpu", 4.0, "mem", 1024.0),
		WorkDir:  t.TempDir(),
		Isolate:  iso,
	})
	sys := agent.NewSystem("test")
	ref := sys.ActorOf("slave", s)
	sender := newFakeSender()
	ref.Tell(NewLeader{MasterIdentity: "m1", Sender: sender})
	sender.expect(t, "ReregisterSlave")
	return sys, ref, sender
}

func TestRunTaskQueuesUntilExecutorRegistered(t *testing.T) {
	iso := noop.New(false)
	sys, ref, master := newConnectedSlave(t, iso)
	defer sys.Stop()

	ref.Tell(RunTask{
		FrameworkID: "F-1",
		Executor:    ExecutorInfo{URI: "/bin/true"},
		Task:        QueuedTask{ID: "T-1", Resources: resources.New("cpu", 1.0, "mem", 64.0), Name: "t1"},
	})

	// Nothing forwarded to master yet for a queued task; confirm via a
	// second round trip instead of sleeping blindly.
	executor := newFakeSender()
	ref.Tell(ExecutorRegistered{FrameworkID: "F-1", Sender: executor})

	run := executor.expect(t, "RunTask")
	runWire := run.payload.(executorRunTaskWire)
	if runWire.TaskID != "T-1" {
		t.Fatalf("expected queued task flushed to executor, got %+v", runWire)
	}

	ref.Tell(ExecutorStatusUpdate{FrameworkID: "F-1", TaskID: "T-1", State: TaskFinished, Message: "done"})

	status := master.expect(t, "StatusUpdate")
	update := status.payload.(statusUpdateWire)
	if update.TaskID != "T-1" || update.State != int(TaskFinished) {
		t.Fatalf("unexpected status: %+v", update)
	}
}

func TestExecutorCrashMarksTasksLost(t *testing.T) {
	iso := noop.New(false)
	sys, ref, master := newConnectedSlave(t, iso)
	defer sys.Stop()

	ref.Tell(RunTask{
		FrameworkID: "F-2",
		Executor:    ExecutorInfo{URI: "/bin/true"},
		Task:        QueuedTask{ID: "T-2", Resources: resources.New("cpu", 1.0, "mem", 64.0)},
	})
	executor := newFakeSender()
	ref.Tell(ExecutorRegistered{FrameworkID: "F-2", Sender: executor})
	executor.expect(t, "RunTask")

	// Drain the "launch" side effect before crashing: find the handle the
	// noop backend minted by issuing a kill against it indirectly — instead
	// simulate the crash directly via the backend's test hook once launch
	// has had time to register.
	time.Sleep(20 * time.Millisecond)
	iso.SimulateCrash("noop-1", isolation.ExitStatus{Code: 1, Message: "boom"})

	status := master.expect(t, "StatusUpdate")
	update := status.payload.(statusUpdateWire)
	if update.TaskID != "T-2" || update.State != int(TaskLost) {
		t.Fatalf("expected LOST after crash, got %+v", update)
	}
}

func TestKillQueuedTaskReportsKilledImmediately(t *testing.T) {
	iso := noop.New(false)
	sys, ref, master := newConnectedSlave(t, iso)
	defer sys.Stop()

	ref.Tell(RunTask{
		FrameworkID: "F-3",
		Executor:    ExecutorInfo{URI: "/bin/true"},
		Task:        QueuedTask{ID: "T-3", Resources: resources.New("cpu", 1.0, "mem", 64.0)},
	})
	ref.Tell(KillTask{FrameworkID: "F-3", TaskID: "T-3"})

	status := master.expect(t, "StatusUpdate")
	update := status.payload.(statusUpdateWire)
	if update.State != int(TaskKilled) {
		t.Fatalf("expected KILLED, got %+v", update)
	}
}

func TestResourceBudgetExceededRejectsTask(t *testing.T) {
	iso := noop.New(false)
	sys, ref, master := newConnectedSlave(t, iso)
	defer sys.Stop()

	ref.Tell(RunTask{
		FrameworkID: "F-4",
		Executor:    ExecutorInfo{URI: "/bin/true"},
		Task:        QueuedTask{ID: "T-4", Resources: resources.New("cpu", 100.0, "mem", 100000.0)},
	})

	select {
	case msg := <-master.sent:
		t.Fatalf("expected no forwarded message for over-budget task, got %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestKillRunningTaskForwardsToExecutor(t *testing.T) {
	iso := noop.New(false)
	sys, ref, master := newConnectedSlave(t, iso)
	defer sys.Stop()

	ref.Tell(RunTask{
		FrameworkID: "F-5",
		Executor:    ExecutorInfo{URI: "/bin/true"},
		Task:        QueuedTask{ID: "T-5", Resources: resources.New("cpu", 1.0, "mem", 64.0)},
	})
	executor := newFakeSender()
	ref.Tell(ExecutorRegistered{FrameworkID: "F-5", Sender: executor})
	executor.expect(t, "RunTask")

	ref.Tell(KillTask{FrameworkID: "F-5", TaskID: "T-5"})
	kill := executor.expect(t, "KillTask")
	killWire := kill.payload.(executorKillTaskWire)
	if killWire.TaskID != "T-5" {
		t.Fatalf("expected kill forwarded for T-5, got %+v", killWire)
	}

	// The grace-period timer is still armed underneath; a terminal update
	// from the executor resolves it without waiting out KillGracePeriod.
	ref.Tell(ExecutorStatusUpdate{FrameworkID: "F-5", TaskID: "T-5", State: TaskKilled, Message: "killed"})
	status := master.expect(t, "StatusUpdate")
	update := status.payload.(statusUpdateWire)
	if update.State != int(TaskKilled) {
		t.Fatalf("expected KILLED, got %+v", update)
	}
}
