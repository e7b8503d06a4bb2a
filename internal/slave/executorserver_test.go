package slave

import (
	"net"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/nexus-sched/nexus/internal/isolation/noop"
	"github.com/nexus-sched/nexus/internal/wire"
	"github.com/nexus-sched/nexus/pkg/resources"
)

func TestExecutorServerRegistersAndForwardsStatus(t *testing.T) {
	iso := noop.New(false)
	sys, ref, master := newConnectedSlave(t, iso)
	defer sys.Stop()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	srv := NewExecutorServer(ref, logrus.NewEntry(logrus.New()))
	go srv.Serve(l)

	ref.Tell(RunTask{
		FrameworkID: "F-exec",
		Executor:    ExecutorInfo{URI: "/bin/true"},
		Task:        QueuedTask{ID: "T-exec", Resources: resources.New("cpu", 1.0, "mem", 64.0)},
	})

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	wc := wire.NewConn(conn)
	if err := wc.Send("ExecutorRegister", executorRegisterWireIn{FrameworkID: "F-exec"}); err != nil {
		t.Fatalf("send register: %v", err)
	}

	env, err := wc.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if env.Kind != "RunTask" {
		t.Fatalf("expected the queued task flushed over the wire, got %s", env.Kind)
	}
	var run executorRunTaskWire
	if err := env.Decode(&run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.TaskID != "T-exec" {
		t.Fatalf("unexpected task: %+v", run)
	}

	if err := wc.Send("ExecutorStatusUpdate", executorStatusUpdateWireIn{
		FrameworkID: "F-exec", TaskID: "T-exec", State: int(TaskFinished), Message: "done",
	}); err != nil {
		t.Fatalf("send status: %v", err)
	}

	status := master.expect(t, "StatusUpdate")
	update := status.payload.(statusUpdateWire)
	if update.TaskID != "T-exec" || update.State != int(TaskFinished) {
		t.Fatalf("unexpected status: %+v", update)
	}
}

func TestExecutorServerKillTaskDeliveredOverWire(t *testing.T) {
	iso := noop.New(false)
	sys, ref, _ := newConnectedSlave(t, iso)
	defer sys.Stop()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	srv := NewExecutorServer(ref, logrus.NewEntry(logrus.New()))
	go srv.Serve(l)

	ref.Tell(RunTask{
		FrameworkID: "F-exec2",
		Executor:    ExecutorInfo{URI: "/bin/true"},
		Task:        QueuedTask{ID: "T-exec2", Resources: resources.New("cpu", 1.0, "mem", 64.0)},
	})

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	wc := wire.NewConn(conn)
	if err := wc.Send("ExecutorRegister", executorRegisterWireIn{FrameworkID: "F-exec2"}); err != nil {
		t.Fatalf("send register: %v", err)
	}
	if _, err := wc.Recv(); err != nil { // drain the flushed RunTask
		t.Fatalf("recv RunTask: %v", err)
	}

	ref.Tell(KillTask{FrameworkID: "F-exec2", TaskID: "T-exec2"})

	env, err := wc.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if env.Kind != "KillTask" {
		t.Fatalf("expected KillTask over the wire, got %s", env.Kind)
	}
	var kill executorKillTaskWire
	if err := env.Decode(&kill); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kill.TaskID != "T-exec2" {
		t.Fatalf("unexpected kill: %+v", kill)
	}
}
