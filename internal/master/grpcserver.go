package master

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpclogrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nexus-sched/nexus/api/nexuspb"
	"github.com/nexus-sched/nexus/pkg/agent"
)

// askTimeout bounds how long the grpc adapter waits for the master actor
// to answer a Register Ask before failing the RPC.
const askTimeout = 5 * time.Second

// GRPCServer adapts api/nexuspb.SchedulerServer onto a running Master
// actor, translating each RPC into the same message types the master's
// Receive switch already handles — the framework-facing half of C8's
// message set described in spec.md section 4.6, reusing the actor's
// existing state machine rather than a second copy of it.
type GRPCServer struct {
	ref *agent.Ref
	log *logrus.Entry

	mu    sync.Mutex
	links map[string]*frameworkLink // frameworkID -> grpc-backed Sender
}

// NewGRPCServer wraps ref, the running Master's address.
func NewGRPCServer(ref *agent.Ref, log *logrus.Entry) *GRPCServer {
	return &GRPCServer{ref: ref, log: log, links: make(map[string]*frameworkLink)}
}

// NewServer builds the *grpc.Server that exposes srv, chaining the same
// logging/recovery/metrics interceptors the teacher's NewGRPCServer wires
// (master/internal/grpcutil/api.go), minus the auth interceptor spec.md's
// Non-goals exclude (no framework-credential scheme is specified).
func NewServer(srv *GRPCServer) *grpc.Server {
	logEntry := srv.log
	s := grpc.NewServer(
		grpc.StreamInterceptor(grpcmiddleware.ChainStreamServer(
			grpcprometheus.StreamServerInterceptor,
			grpclogrus.StreamServerInterceptor(logEntry),
			grpcrecovery.StreamServerInterceptor(grpcrecovery.WithRecoveryHandler(
				func(p interface{}) error {
					logEntry.Error(string(debug.Stack()))
					return status.Errorf(codes.Internal, "%v", p)
				},
			)),
		)),
		grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(
			grpcprometheus.UnaryServerInterceptor,
			grpclogrus.UnaryServerInterceptor(logEntry),
			grpcrecovery.UnaryServerInterceptor(grpcrecovery.WithRecoveryHandler(
				func(p interface{}) error {
					logEntry.Error(string(debug.Stack()))
					return status.Errorf(codes.Internal, "%v", p)
				},
			)),
		)),
	)
	nexuspb.RegisterSchedulerServer(s, srv)
	grpcprometheus.Register(s)
	return s
}

// frameworkLink is the Sender a GRPCServer installs on a Framework record;
// it fans an outbound message out to whichever of the three streaming RPCs
// the framework has open, queuing until the stream attaches.
type frameworkLink struct {
	mu       sync.Mutex
	offers   chan *nexuspb.ResourceOffer
	statuses chan *nexuspb.StatusUpdate
	messages chan *nexuspb.FrameworkMessageRequest
}

func newFrameworkLink() *frameworkLink {
	return &frameworkLink{
		offers:   make(chan *nexuspb.ResourceOffer, 32),
		statuses: make(chan *nexuspb.StatusUpdate, 32),
		messages: make(chan *nexuspb.FrameworkMessageRequest, 32),
	}
}

// Send implements master.Sender. Deliveries are best-effort and never
// block the caller (the master's own actor loop): a slow or absent
// framework stream drops the newest message rather than stalling the
// master, mirroring spec.md section 7's "transient transport failure is
// not the master's problem to block on."
func (l *frameworkLink) Send(kind string, payload interface{}) error {
	switch kind {
	case "ResourceOffer":
		wire := payload.(resourceOfferWire)
		select {
		case l.offers <- &nexuspb.ResourceOffer{OfferID: wire.OfferID, Slaves: wire.Slaves}:
		default:
			return fmt.Errorf("grpcserver: offer queue full for framework")
		}
	case "StatusUpdate":
		update := payload.(StatusUpdate)
		out := &nexuspb.StatusUpdate{
			SlaveID: update.SlaveID, FrameworkID: update.FrameworkID, TaskID: update.TaskID,
			State: int32(update.State), Message: update.Message,
		}
		select {
		case l.statuses <- out:
		default:
			return fmt.Errorf("grpcserver: status queue full for framework")
		}
	case "FrameworkMessage":
		msg := payload.(FrameworkMessage)
		out := &nexuspb.FrameworkMessageRequest{FrameworkID: msg.FrameworkID, SlaveID: msg.SlaveID, Data: msg.Data}
		select {
		case l.messages <- out:
		default:
			return fmt.Errorf("grpcserver: message queue full for framework")
		}
	default:
		return fmt.Errorf("grpcserver: unhandled outbound kind %q", kind)
	}
	return nil
}

func (s *GRPCServer) linkFor(frameworkID string) *frameworkLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[frameworkID]
	if !ok {
		l = newFrameworkLink()
		s.links[frameworkID] = l
	}
	return l
}

// peerExited reports a dead framework stream to the master actor and drops
// the now-useless link, symmetric to wireserver.go's handling of a lost
// slave connection: without this, a crashed framework's Framework record,
// ActiveOffers, and held slave resources would never be released.
func (s *GRPCServer) peerExited(frameworkID string) {
	s.mu.Lock()
	delete(s.links, frameworkID)
	s.mu.Unlock()
	s.ref.Tell(PeerExited{FrameworkID: frameworkID})
}

// Register implements nexuspb.SchedulerServer.
func (s *GRPCServer) Register(ctx context.Context, in *nexuspb.RegisterRequest) (*nexuspb.RegisterResponse, error) {
	link := newFrameworkLink()
	resp := s.ref.Ask(RegisterFramework{
		Name: in.Name, User: in.User,
		Executor: ExecutorInfo{URI: in.Executor.URI, Data: in.Executor.Data},
		Sender:   link,
	})
	reply, ok := resp.GetOrTimeout(askTimeout)
	if !ok {
		return nil, fmt.Errorf("grpcserver: master did not answer Register in time")
	}
	registered, ok := reply.(FrameworkRegistered)
	if !ok {
		return nil, fmt.Errorf("grpcserver: unexpected Register reply %T", reply)
	}
	s.mu.Lock()
	s.links[registered.FrameworkID] = link
	s.mu.Unlock()
	return &nexuspb.RegisterResponse{FrameworkID: registered.FrameworkID}, nil
}

// Unregister implements nexuspb.SchedulerServer.
func (s *GRPCServer) Unregister(ctx context.Context, in *nexuspb.UnregisterRequest) (*nexuspb.Ack, error) {
	s.ref.Tell(UnregisterFramework{FrameworkID: in.FrameworkID})
	return &nexuspb.Ack{}, nil
}

// LaunchTasks implements nexuspb.SchedulerServer.
func (s *GRPCServer) LaunchTasks(ctx context.Context, in *nexuspb.LaunchTasksRequest) (*nexuspb.Ack, error) {
	tasks := make([]LaunchTask, 0, len(in.Tasks))
	for _, t := range in.Tasks {
		tasks = append(tasks, LaunchTask{TaskID: t.TaskID, SlaveID: t.SlaveID, Resources: t.Resources, Name: t.Name, Args: t.Args})
	}
	s.ref.Tell(LaunchTasks{FrameworkID: in.FrameworkID, OfferID: in.OfferID, Tasks: tasks})
	return &nexuspb.Ack{}, nil
}

// KillTask implements nexuspb.SchedulerServer.
func (s *GRPCServer) KillTask(ctx context.Context, in *nexuspb.KillTaskRequest) (*nexuspb.Ack, error) {
	s.ref.Tell(KillTask{FrameworkID: in.FrameworkID, TaskID: in.TaskID})
	return &nexuspb.Ack{}, nil
}

// FrameworkMessage implements nexuspb.SchedulerServer.
func (s *GRPCServer) FrameworkMessage(ctx context.Context, in *nexuspb.FrameworkMessageRequest) (*nexuspb.Ack, error) {
	s.ref.Tell(FrameworkMessage{FrameworkID: in.FrameworkID, SlaveID: in.SlaveID, Data: in.Data, FromSlave: false})
	return &nexuspb.Ack{}, nil
}

// ResourceOffers implements nexuspb.SchedulerServer.
func (s *GRPCServer) ResourceOffers(in *nexuspb.RegisterResponse, stream nexuspb.SchedulerResourceOffersServer) error {
	link := s.linkFor(in.FrameworkID)
	for {
		select {
		case offer := <-link.offers:
			if err := stream.Send(offer); err != nil {
				s.peerExited(in.FrameworkID)
				return err
			}
		case <-stream.Context().Done():
			s.peerExited(in.FrameworkID)
			return stream.Context().Err()
		}
	}
}

// StatusUpdates implements nexuspb.SchedulerServer.
func (s *GRPCServer) StatusUpdates(in *nexuspb.RegisterResponse, stream nexuspb.SchedulerStatusUpdatesServer) error {
	link := s.linkFor(in.FrameworkID)
	for {
		select {
		case update := <-link.statuses:
			if err := stream.Send(update); err != nil {
				s.peerExited(in.FrameworkID)
				return err
			}
		case <-stream.Context().Done():
			s.peerExited(in.FrameworkID)
			return stream.Context().Err()
		}
	}
}

// FrameworkMessages implements nexuspb.SchedulerServer.
func (s *GRPCServer) FrameworkMessages(in *nexuspb.RegisterResponse, stream nexuspb.SchedulerFrameworkMessagesServer) error {
	link := s.linkFor(in.FrameworkID)
	for {
		select {
		case msg := <-link.messages:
			if err := stream.Send(msg); err != nil {
				s.peerExited(in.FrameworkID)
				return err
			}
		case <-stream.Context().Done():
			s.peerExited(in.FrameworkID)
			return stream.Context().Err()
		}
	}
}
