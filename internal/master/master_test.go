package master

import (
	"testing"
	"time"

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

func newLeadingMaster(t *testing.T) (*agent.System, *agent.Ref) {
	t.Helper()
	m, err := New(Config{AllocatorPolicy: "simple", ReconciliationWindow: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sys := agent.NewSystem("test")
	ref := sys.ActorOf("master", m)
	ref.Tell(LeaderChanged{EpochID: 1, Leader: "m1", SelfID: "m1"})
	time.Sleep(20 * time.Millisecond) // let the reconciliation window elapse
	return sys, ref
}

func TestRegisterAndOffer(t *testing.T) {
	sys, ref := newLeadingMaster(t)
	defer sys.Stop()

	slaveSender := newFakeSender()
	ref.Tell(RegisterSlave{Hostname: "s1", Total: resources.New("cpu", 4.0, "mem", 1024.0), Sender: slaveSender})

	fwSender := newFakeSender()
	ref.Tell(RegisterFramework{Name: "spark", User: "alice", Sender: fwSender})

	msg := fwSender.expect(t, "ResourceOffer")
	offer := msg.payload.(resourceOfferWire)
	if len(offer.Slaves) != 1 {
		t.Fatalf("expected offer on one slave, got %+v", offer)
	}
	for _, res := range offer.Slaves {
		if !res.Equal(resources.New("cpu", 4.0, "mem", 1024.0)) {
			t.Fatalf("expected entire free remainder offered, got %v", res)
		}
	}
}

func TestLaunchAndComplete(t *testing.T) {
	sys, ref := newLeadingMaster(t)
	defer sys.Stop()

	slaveSender := newFakeSender()
	ref.Tell(RegisterSlave{Hostname: "s1", Total: resources.New("cpu", 4.0, "mem", 1024.0), Sender: slaveSender})
	fwSender := newFakeSender()
	ref.Tell(RegisterFramework{Name: "spark", User: "alice", Sender: fwSender})

	offerMsg := fwSender.expect(t, "ResourceOffer")
	offer := offerMsg.payload.(resourceOfferWire)
	var slaveID string
	for id := range offer.Slaves {
		slaveID = id
	}

	ref.Tell(LaunchTasks{
		FrameworkID: "F-1-1",
		OfferID:     offer.OfferID,
		Tasks: []LaunchTask{
			{TaskID: "T-1-1", SlaveID: slaveID, Resources: resources.New("cpu", 2.0, "mem", 512.0), Name: "task1"},
		},
	})

	runMsg := slaveSender.expect(t, "RunTask")
	run := runMsg.payload.(runTaskWire)
	if run.Task.TaskID != "T-1-1" {
		t.Fatalf("unexpected run task: %+v", run)
	}

	// Launching only half of the offered cpu and mem leaves a leftover
	// offer (S3, partial accept).
	leftover := fwSender.expect(t, "ResourceOffer")
	leftoverOffer := leftover.payload.(resourceOfferWire)
	for _, res := range leftoverOffer.Slaves {
		if !res.Equal(resources.New("cpu", 2.0, "mem", 512.0)) {
			t.Fatalf("expected leftover offer of remaining resources, got %v", res)
		}
	}

	ref.Tell(StatusUpdate{SlaveID: slaveID, FrameworkID: "F-1-1", TaskID: "T-1-1", State: TaskFinished})
	statusMsg := fwSender.expect(t, "StatusUpdate")
	status := statusMsg.payload.(StatusUpdate)
	if status.State != TaskFinished {
		t.Fatalf("expected FINISHED, got %v", status.State)
	}

	// Resources recovered should produce a fresh offer.
	final := fwSender.expect(t, "ResourceOffer")
	finalOffer := final.payload.(resourceOfferWire)
	for _, res := range finalOffer.Slaves {
		if !res.Equal(resources.New("cpu", 2.0, "mem", 512.0)) {
			t.Fatalf("expected recovered offer, got %v", res)
		}
	}
}

func TestSlaveLossMarksTasksLost(t *testing.T) {
	sys, ref := newLeadingMaster(t)
	defer sys.Stop()

	slaveSender := newFakeSender()
	ref.Tell(RegisterSlave{Hostname: "s1", Total: resources.New("cpu", 4.0, "mem", 1024.0), Sender: slaveSender})
	fwSender := newFakeSender()
	ref.Tell(RegisterFramework{Name: "spark", User: "alice", Sender: fwSender})

	offerMsg := fwSender.expect(t, "ResourceOffer")
	offer := offerMsg.payload.(resourceOfferWire)
	var slaveID string
	for id := range offer.Slaves {
		slaveID = id
	}
	ref.Tell(LaunchTasks{
		FrameworkID: "F-1-1",
		OfferID:     offer.OfferID,
		Tasks: []LaunchTask{
			{TaskID: "T-1-1", SlaveID: slaveID, Resources: resources.New("cpu", 4.0, "mem", 1024.0), Name: "task1"},
		},
	})
	slaveSender.expect(t, "RunTask")

	ref.Tell(PeerExited{SlaveID: slaveID})
	statusMsg := fwSender.expect(t, "StatusUpdate")
	status := statusMsg.payload.(StatusUpdate)
	if status.State != TaskLost {
		t.Fatalf("expected LOST, got %v", status.State)
	}
}

func TestFrameworkLossKillsTasksAndFreesSlave(t *testing.T) {
	sys, ref := newLeadingMaster(t)
	defer sys.Stop()

	slaveSender := newFakeSender()
	ref.Tell(RegisterSlave{Hostname: "s1", Total: resources.New("cpu", 4.0, "mem", 1024.0), Sender: slaveSender})
	fwSender := newFakeSender()
	ref.Tell(RegisterFramework{Name: "spark", User: "alice", Sender: fwSender})

	offerMsg := fwSender.expect(t, "ResourceOffer")
	offer := offerMsg.payload.(resourceOfferWire)
	var slaveID string
	for id := range offer.Slaves {
		slaveID = id
	}
	ref.Tell(LaunchTasks{
		FrameworkID: "F-1-1",
		OfferID:     offer.OfferID,
		Tasks: []LaunchTask{
			{TaskID: "T-1-1", SlaveID: slaveID, Resources: resources.New("cpu", 4.0, "mem", 1024.0), Name: "task1"},
		},
	})
	slaveSender.expect(t, "RunTask")

	// A crashed framework stream (grpcserver.go's ResourceOffers/StatusUpdates/
	// FrameworkMessages handlers) reports exactly this, mirroring the wire
	// server's handling of a lost slave connection.
	ref.Tell(PeerExited{FrameworkID: "F-1-1"})

	kill := slaveSender.expect(t, "KillTask")
	killMsg := kill.payload.(KillTask)
	if killMsg.TaskID != "T-1-1" {
		t.Fatalf("expected kill for T-1-1, got %+v", killMsg)
	}

	// The slave's resources are freed: registering a new framework sees the
	// full capacity offered again rather than it staying locked to the dead
	// framework forever.
	fw2Sender := newFakeSender()
	ref.Tell(RegisterFramework{Name: "storm", User: "bob", Sender: fw2Sender})
	offerMsg2 := fw2Sender.expect(t, "ResourceOffer")
	offer2 := offerMsg2.payload.(resourceOfferWire)
	for _, res := range offer2.Slaves {
		if !res.Equal(resources.New("cpu", 4.0, "mem", 1024.0)) {
			t.Fatalf("expected slave's full capacity freed, got %v", res)
		}
	}
}

func TestDoubleLaunchSameTaskIDRejected(t *testing.T) {
	sys, ref := newLeadingMaster(t)
	defer sys.Stop()

	slaveSender := newFakeSender()
	ref.Tell(RegisterSlave{Hostname: "s1", Total: resources.New("cpu", 4.0, "mem", 1024.0), Sender: slaveSender})
	fwSender := newFakeSender()
	ref.Tell(RegisterFramework{Name: "spark", User: "alice", Sender: fwSender})

	offerMsg := fwSender.expect(t, "ResourceOffer")
	offer := offerMsg.payload.(resourceOfferWire)
	var slaveID string
	for id := range offer.Slaves {
		slaveID = id
	}

	ref.Tell(LaunchTasks{
		FrameworkID: "F-1-1",
		OfferID:     offer.OfferID,
		Tasks: []LaunchTask{
			{TaskID: "T-dup", SlaveID: slaveID, Resources: resources.New("cpu", 1.0, "mem", 1.0)},
			{TaskID: "T-dup", SlaveID: slaveID, Resources: resources.New("cpu", 1.0, "mem", 1.0)},
		},
	})

	// The batch is rejected as a protocol violation: no RunTask reaches the
	// slave for it, and the framework is removed (no further offers
	// referencing it will arrive on this channel because the map is empty).
	select {
	case msg := <-slaveSender.sent:
		t.Fatalf("expected no RunTask to be sent, got %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}
