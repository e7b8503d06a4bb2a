package master

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nexus-sched/nexus/internal/wire"
	"github.com/nexus-sched/nexus/pkg/agent"
)

// askTimeoutWire mirrors grpcserver.go's askTimeout for slave-originated
// Ask calls.
const askTimeoutWire = 5 * time.Second

// WireServer accepts internal/wire connections from slaves and drives the
// Master actor from them: the slave side of spec.md section 4.2's message
// table (REGISTER_SLAVE, REREGISTER_SLAVE, STATUS_UPDATE, and the
// from-slave direction of FRAMEWORK_MESSAGE), plus RUN_TASK/KILL_TASK
// delivery back down to the slave via the same connection.
type WireServer struct {
	ref *agent.Ref
	log *logrus.Entry
}

// NewWireServer wraps ref, the running Master's address.
func NewWireServer(ref *agent.Ref, log *logrus.Entry) *WireServer {
	return &WireServer{ref: ref, log: log}
}

// Serve accepts connections from l until it errors (typically because l
// was closed), handling each on its own goroutine.
func (s *WireServer) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

// wireSender implements master.Sender over a single slave's wire
// connection.
type wireSender struct {
	conn *wire.Conn
}

func (w *wireSender) Send(kind string, payload interface{}) error {
	return w.conn.Send(kind, payload)
}

type registerSlaveWireIn struct {
	Hostname string
	Total    wireResources
}

type wireResources = map[string]float64

type reregisterSlaveWireIn struct {
	SlaveID  string
	Hostname string
	Total    wireResources
	Tasks    []reregisterTaskWireIn
}

type reregisterTaskWireIn struct {
	FrameworkID string
	TaskID      string
	Resources   wireResources
	State       int
}

type statusUpdateWireIn struct {
	SlaveID     string
	FrameworkID string
	TaskID      string
	State       int
	Message     string
}

type frameworkMessageWireIn struct {
	FrameworkID string
	SlaveID     string
	Data        []byte
}

func (s *WireServer) handle(conn net.Conn) {
	wc := wire.NewConn(conn)
	sender := &wireSender{conn: wc}
	var slaveID string
	defer func() {
		wc.Close()
		if slaveID != "" {
			s.ref.Tell(PeerExited{SlaveID: slaveID})
		}
	}()

	for {
		env, err := wc.Recv()
		if err != nil {
			if slaveID != "" {
				s.log.WithFields(logrus.Fields{"slave": slaveID}).WithError(err).Warn("wireserver: slave link lost")
			}
			return
		}
		switch env.Kind {
		case "RegisterSlave":
			var in registerSlaveWireIn
			if err := env.Decode(&in); err != nil {
				s.log.WithError(err).Warn("wireserver: bad RegisterSlave")
				return
			}
			resp := s.ref.Ask(RegisterSlave{Hostname: in.Hostname, Total: in.Total, Sender: sender})
			reply, ok := resp.GetOrTimeout(askTimeoutWire)
			if !ok {
				s.log.Warn("wireserver: master did not answer RegisterSlave in time")
				return
			}
			registered, ok := reply.(SlaveRegistered)
			if !ok {
				s.log.Warnf("wireserver: unexpected RegisterSlave reply %T", reply)
				return
			}
			slaveID = registered.SlaveID
			if err := wc.Send("SlaveRegistered", SlaveRegistered{SlaveID: slaveID}); err != nil {
				return
			}

		case "ReregisterSlave":
			var in reregisterSlaveWireIn
			if err := env.Decode(&in); err != nil {
				s.log.WithError(err).Warn("wireserver: bad ReregisterSlave")
				return
			}
			tasks := make([]ReregisterTask, 0, len(in.Tasks))
			for _, t := range in.Tasks {
				tasks = append(tasks, ReregisterTask{
					FrameworkID: t.FrameworkID, TaskID: t.TaskID, Resources: t.Resources, State: TaskState(t.State),
				})
			}
			slaveID = in.SlaveID
			s.ref.Tell(ReregisterSlave{SlaveID: in.SlaveID, Hostname: in.Hostname, Total: in.Total, Tasks: tasks, Sender: sender})

		case "StatusUpdate":
			var in statusUpdateWireIn
			if err := env.Decode(&in); err != nil {
				s.log.WithError(err).Warn("wireserver: bad StatusUpdate")
				return
			}
			s.ref.Tell(StatusUpdate{
				SlaveID: in.SlaveID, FrameworkID: in.FrameworkID, TaskID: in.TaskID,
				State: TaskState(in.State), Message: in.Message,
			})

		case "FrameworkMessage":
			var in frameworkMessageWireIn
			if err := env.Decode(&in); err != nil {
				s.log.WithError(err).Warn("wireserver: bad FrameworkMessage")
				return
			}
			s.ref.Tell(FrameworkMessage{FrameworkID: in.FrameworkID, SlaveID: in.SlaveID, Data: in.Data, FromSlave: true})

		default:
			s.log.Warnf("wireserver: unknown message kind %q", env.Kind)
			return
		}
	}
}
