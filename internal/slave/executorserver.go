package slave

import (
	"net"

	"github.com/sirupsen/logrus"

	"github.com/nexus-sched/nexus/internal/wire"
	"github.com/nexus-sched/nexus/pkg/agent"
)

// ExecutorServer accepts internal/wire connections from launched executor
// processes and drives the Slave actor from them: the executor-facing half
// of spec.md section 4.3's contract (register, then STATUS_UPDATE back for
// each task), symmetric to internal/master.WireServer's handling of the
// master-facing half. It is the transport _examples/Netflix-titus-executor's
// mesos executor driver plays on the other side of a Mesos agent connection
// (executor/drivers/mesos/executor.go's Registered/LaunchTask/KillTask/
// FrameworkMessage callbacks), adapted to the wire framing already used for
// master<->slave rather than mesos-go's protobuf driver.
type ExecutorServer struct {
	ref *agent.Ref
	log *logrus.Entry
}

// NewExecutorServer wraps ref, the running Slave's address.
func NewExecutorServer(ref *agent.Ref, log *logrus.Entry) *ExecutorServer {
	return &ExecutorServer{ref: ref, log: log}
}

// Serve accepts connections from l until it errors (typically because l
// was closed), handling each on its own goroutine.
func (s *ExecutorServer) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

// executorSender implements slave.Sender over a single executor's wire
// connection, installed on a FrameworkRecord once that executor registers.
type executorSender struct {
	conn *wire.Conn
}

func (e *executorSender) Send(kind string, payload interface{}) error {
	return e.conn.Send(kind, payload)
}

type executorRegisterWireIn struct {
	FrameworkID string
}

type executorStatusUpdateWireIn struct {
	FrameworkID string
	TaskID      string
	State       int
	Message     string
}

func (s *ExecutorServer) handle(conn net.Conn) {
	wc := wire.NewConn(conn)
	sender := &executorSender{conn: wc}
	var frameworkID string
	defer func() {
		wc.Close()
		if frameworkID != "" {
			s.ref.Tell(executorExitedMsg{frameworkID: frameworkID, code: -1, message: "executor connection lost"})
		}
	}()

	for {
		env, err := wc.Recv()
		if err != nil {
			if frameworkID != "" {
				s.log.WithFields(logrus.Fields{"framework": frameworkID}).WithError(err).Warn("executorserver: executor link lost")
			}
			return
		}
		switch env.Kind {
		case "ExecutorRegister":
			var in executorRegisterWireIn
			if err := env.Decode(&in); err != nil {
				s.log.WithError(err).Warn("executorserver: bad ExecutorRegister")
				return
			}
			frameworkID = in.FrameworkID
			s.ref.Tell(ExecutorRegistered{FrameworkID: frameworkID, Sender: sender})

		case "ExecutorStatusUpdate":
			var in executorStatusUpdateWireIn
			if err := env.Decode(&in); err != nil {
				s.log.WithError(err).Warn("executorserver: bad ExecutorStatusUpdate")
				return
			}
			s.ref.Tell(ExecutorStatusUpdate{
				FrameworkID: in.FrameworkID, TaskID: in.TaskID,
				State: TaskState(in.State), Message: in.Message,
			})

		default:
			s.log.Warnf("executorserver: unknown message kind %q", env.Kind)
			return
		}
	}
}
