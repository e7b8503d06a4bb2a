package slave

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nexus-sched/nexus/internal/wire"
	"github.com/nexus-sched/nexus/pkg/agent"
	"github.com/nexus-sched/nexus/pkg/resources"
)

// wireSender implements Sender over a wire.Conn to the master, the
// outbound half of the slave's master link.
type wireSender struct {
	conn *wire.Conn
}

func (w *wireSender) Send(kind string, payload interface{}) error {
	return w.conn.Send(kind, payload)
}

type runTaskWireIn struct {
	FrameworkID string
	Executor    ExecutorInfo
	Task        struct {
		TaskID    string
		SlaveID   string
		Resources resources.Resources
		Name      string
		Args      []byte
	}
}

type killTaskWireIn struct {
	FrameworkID string
	TaskID      string
}

// WireClient dials the master's slave-facing listener, registers, and
// forwards RunTask/KillTask deliveries into the owning Slave actor, the
// network half of NewLeader reconnection (spec.md section 4.3).
type WireClient struct {
	ref      *agent.Ref
	hostname string
	total    resources.Resources
	log      *logrus.Entry
}

// NewWireClient constructs a client for the Slave actor at ref.
func NewWireClient(ref *agent.Ref, hostname string, total resources.Resources, log *logrus.Entry) *WireClient {
	return &WireClient{ref: ref, hostname: hostname, total: total, log: log}
}

// Connect dials addr, completes registration, and spawns the receive
// loop; it posts NewLeader{MasterIdentity: addr, Sender: sender} once
// connected, and NewLeader{Sender: nil} if the link later drops.
func (c *WireClient) Connect(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("slave: dial master %s: %w", addr, err)
	}
	wc := wire.NewConn(conn)
	sender := &wireSender{conn: wc}

	if err := wc.Send("RegisterSlave", struct {
		Hostname string
		Total    resources.Resources
	}{Hostname: c.hostname, Total: c.total}); err != nil {
		wc.Close()
		return fmt.Errorf("slave: registering with master: %w", err)
	}
	env, err := wc.Recv()
	if err != nil || env.Kind != "SlaveRegistered" {
		wc.Close()
		return fmt.Errorf("slave: master did not acknowledge registration: %w", err)
	}
	var ack SlaveRegistered
	if err := env.Decode(&ack); err != nil {
		wc.Close()
		return fmt.Errorf("slave: decoding SlaveRegistered ack: %w", err)
	}

	c.ref.Tell(ack)
	c.ref.Tell(NewLeader{MasterIdentity: addr, Sender: sender})
	go c.recvLoop(wc, addr)
	return nil
}

func (c *WireClient) recvLoop(wc *wire.Conn, addr string) {
	defer wc.Close()
	for {
		env, err := wc.Recv()
		if err != nil {
			c.log.WithError(err).Warn("slave: lost connection to master")
			c.ref.Tell(NewLeader{MasterIdentity: addr, Sender: nil})
			return
		}
		switch env.Kind {
		case "RunTask":
			var in runTaskWireIn
			if err := env.Decode(&in); err != nil {
				c.log.WithError(err).Warn("slave: bad RunTask from master")
				continue
			}
			c.ref.Tell(RunTask{
				FrameworkID: in.FrameworkID,
				Executor:    in.Executor,
				Task: QueuedTask{
					ID: in.Task.TaskID, Resources: in.Task.Resources, Name: in.Task.Name, Args: in.Task.Args,
				},
			})
		case "KillTask":
			var in killTaskWireIn
			if err := env.Decode(&in); err != nil {
				c.log.WithError(err).Warn("slave: bad KillTask from master")
				continue
			}
			c.ref.Tell(KillTask{FrameworkID: in.FrameworkID, TaskID: in.TaskID})
		default:
			c.log.Warnf("slave: unknown message kind %q from master", env.Kind)
		}
	}
}
