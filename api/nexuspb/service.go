package nexuspb

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the grpc fully-qualified service name, matching the
// layout protoc-gen-go-grpc would have produced for a "nexuspb.Scheduler"
// service if one had been compiled from a .proto file.
const ServiceName = "nexuspb.Scheduler"

// SchedulerServer is implemented by the master's grpc-facing adapter
// (internal/master wires a thin shim over its Sender/agent.Ref pair).
type SchedulerServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Unregister(context.Context, *UnregisterRequest) (*Ack, error)
	LaunchTasks(context.Context, *LaunchTasksRequest) (*Ack, error)
	KillTask(context.Context, *KillTaskRequest) (*Ack, error)
	FrameworkMessage(context.Context, *FrameworkMessageRequest) (*Ack, error)
	ResourceOffers(*RegisterResponse, SchedulerResourceOffersServer) error
	StatusUpdates(*RegisterResponse, SchedulerStatusUpdatesServer) error
	FrameworkMessages(*RegisterResponse, SchedulerFrameworkMessagesServer) error
}

// SchedulerResourceOffersServer is the server side of the ResourceOffers
// stream.
type SchedulerResourceOffersServer interface {
	Send(*ResourceOffer) error
	grpc.ServerStream
}

// SchedulerStatusUpdatesServer is the server side of the StatusUpdates
// stream.
type SchedulerStatusUpdatesServer interface {
	Send(*StatusUpdate) error
	grpc.ServerStream
}

// SchedulerFrameworkMessagesServer is the server side of the
// FrameworkMessages stream, downward FrameworkMessage deliveries the
// master relays from a slave's executor.
type SchedulerFrameworkMessagesServer interface {
	Send(*FrameworkMessageRequest) error
	grpc.ServerStream
}

// RegisterSchedulerServer registers srv on s, the hand-written equivalent
// of a protoc-gen-go-grpc _RegisterXServer call.
func RegisterSchedulerServer(s grpc.ServiceRegistrar, srv SchedulerServer) {
	s.RegisterService(&schedulerServiceDesc, srv)
}

func schedulerRegisterHandler(
	srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SchedulerServer).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Register"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SchedulerServer).Register(ctx, req.(*RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func schedulerUnregisterHandler(
	srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(UnregisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SchedulerServer).Unregister(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Unregister"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SchedulerServer).Unregister(ctx, req.(*UnregisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func schedulerLaunchTasksHandler(
	srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(LaunchTasksRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SchedulerServer).LaunchTasks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/LaunchTasks"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SchedulerServer).LaunchTasks(ctx, req.(*LaunchTasksRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func schedulerKillTaskHandler(
	srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(KillTaskRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SchedulerServer).KillTask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/KillTask"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SchedulerServer).KillTask(ctx, req.(*KillTaskRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func schedulerFrameworkMessageHandler(
	srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(FrameworkMessageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SchedulerServer).FrameworkMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/FrameworkMessage"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SchedulerServer).FrameworkMessage(ctx, req.(*FrameworkMessageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type schedulerResourceOffersServer struct{ grpc.ServerStream }

func (s *schedulerResourceOffersServer) Send(o *ResourceOffer) error { return s.SendMsg(o) }

func schedulerResourceOffersHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(RegisterResponse)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SchedulerServer).ResourceOffers(in, &schedulerResourceOffersServer{stream})
}

type schedulerStatusUpdatesServer struct{ grpc.ServerStream }

func (s *schedulerStatusUpdatesServer) Send(u *StatusUpdate) error { return s.SendMsg(u) }

func schedulerStatusUpdatesHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(RegisterResponse)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SchedulerServer).StatusUpdates(in, &schedulerStatusUpdatesServer{stream})
}

type schedulerFrameworkMessagesServer struct{ grpc.ServerStream }

func (s *schedulerFrameworkMessagesServer) Send(m *FrameworkMessageRequest) error { return s.SendMsg(m) }

func schedulerFrameworkMessagesHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(RegisterResponse)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SchedulerServer).FrameworkMessages(in, &schedulerFrameworkMessagesServer{stream})
}

var schedulerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: schedulerRegisterHandler},
		{MethodName: "Unregister", Handler: schedulerUnregisterHandler},
		{MethodName: "LaunchTasks", Handler: schedulerLaunchTasksHandler},
		{MethodName: "KillTask", Handler: schedulerKillTaskHandler},
		{MethodName: "FrameworkMessage", Handler: schedulerFrameworkMessageHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "ResourceOffers", Handler: schedulerResourceOffersHandler, ServerStreams: true},
		{StreamName: "StatusUpdates", Handler: schedulerStatusUpdatesHandler, ServerStreams: true},
		{StreamName: "FrameworkMessages", Handler: schedulerFrameworkMessagesHandler, ServerStreams: true},
	},
	Metadata: "nexuspb/scheduler.proto",
}

// SchedulerClient is the hand-written equivalent of a protoc-gen-go-grpc
// client stub.
type SchedulerClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Unregister(ctx context.Context, in *UnregisterRequest, opts ...grpc.CallOption) (*Ack, error)
	LaunchTasks(ctx context.Context, in *LaunchTasksRequest, opts ...grpc.CallOption) (*Ack, error)
	KillTask(ctx context.Context, in *KillTaskRequest, opts ...grpc.CallOption) (*Ack, error)
	FrameworkMessage(ctx context.Context, in *FrameworkMessageRequest, opts ...grpc.CallOption) (*Ack, error)
	ResourceOffers(ctx context.Context, in *RegisterResponse, opts ...grpc.CallOption) (SchedulerResourceOffersClient, error)
	StatusUpdates(ctx context.Context, in *RegisterResponse, opts ...grpc.CallOption) (SchedulerStatusUpdatesClient, error)
	FrameworkMessages(ctx context.Context, in *RegisterResponse, opts ...grpc.CallOption) (SchedulerFrameworkMessagesClient, error)
}

// SchedulerResourceOffersClient is the client side of the ResourceOffers
// stream.
type SchedulerResourceOffersClient interface {
	Recv() (*ResourceOffer, error)
	grpc.ClientStream
}

// SchedulerStatusUpdatesClient is the client side of the StatusUpdates
// stream.
type SchedulerStatusUpdatesClient interface {
	Recv() (*StatusUpdate, error)
	grpc.ClientStream
}

// SchedulerFrameworkMessagesClient is the client side of the
// FrameworkMessages stream.
type SchedulerFrameworkMessagesClient interface {
	Recv() (*FrameworkMessageRequest, error)
	grpc.ClientStream
}

type schedulerClient struct {
	cc   grpc.ClientConnInterface
	opts []grpc.CallOption
}

// NewSchedulerClient wraps cc, forcing every call onto the msgpack codec
// registered in codec.go.
func NewSchedulerClient(cc grpc.ClientConnInterface) SchedulerClient {
	return &schedulerClient{cc: cc, opts: []grpc.CallOption{grpc.CallContentSubtype(CodecName)}}
}

func (c *schedulerClient) call(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+method, in, out, append(append([]grpc.CallOption{}, c.opts...), opts...)...)
}

func (c *schedulerClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.call(ctx, "/Register", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *schedulerClient) Unregister(ctx context.Context, in *UnregisterRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.call(ctx, "/Unregister", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *schedulerClient) LaunchTasks(ctx context.Context, in *LaunchTasksRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.call(ctx, "/LaunchTasks", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *schedulerClient) KillTask(ctx context.Context, in *KillTaskRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.call(ctx, "/KillTask", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *schedulerClient) FrameworkMessage(ctx context.Context, in *FrameworkMessageRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.call(ctx, "/FrameworkMessage", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type schedulerResourceOffersClient struct{ grpc.ClientStream }

func (c *schedulerResourceOffersClient) Recv() (*ResourceOffer, error) {
	out := new(ResourceOffer)
	if err := c.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *schedulerClient) ResourceOffers(
	ctx context.Context, in *RegisterResponse, opts ...grpc.CallOption,
) (SchedulerResourceOffersClient, error) {
	stream, err := c.cc.NewStream(
		ctx, &schedulerServiceDesc.Streams[0], "/"+ServiceName+"/ResourceOffers",
		append(append([]grpc.CallOption{}, c.opts...), opts...)...,
	)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &schedulerResourceOffersClient{stream}, nil
}

type schedulerStatusUpdatesClient struct{ grpc.ClientStream }

func (c *schedulerStatusUpdatesClient) Recv() (*StatusUpdate, error) {
	out := new(StatusUpdate)
	if err := c.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *schedulerClient) StatusUpdates(
	ctx context.Context, in *RegisterResponse, opts ...grpc.CallOption,
) (SchedulerStatusUpdatesClient, error) {
	stream, err := c.cc.NewStream(
		ctx, &schedulerServiceDesc.Streams[1], "/"+ServiceName+"/StatusUpdates",
		append(append([]grpc.CallOption{}, c.opts...), opts...)...,
	)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &schedulerStatusUpdatesClient{stream}, nil
}

type schedulerFrameworkMessagesClient struct{ grpc.ClientStream }

func (c *schedulerFrameworkMessagesClient) Recv() (*FrameworkMessageRequest, error) {
	out := new(FrameworkMessageRequest)
	if err := c.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *schedulerClient) FrameworkMessages(
	ctx context.Context, in *RegisterResponse, opts ...grpc.CallOption,
) (SchedulerFrameworkMessagesClient, error) {
	stream, err := c.cc.NewStream(
		ctx, &schedulerServiceDesc.Streams[2], "/"+ServiceName+"/FrameworkMessages",
		append(append([]grpc.CallOption{}, c.opts...), opts...)...,
	)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &schedulerFrameworkMessagesClient{stream}, nil
}
