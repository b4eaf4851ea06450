package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	simulator "github.com/LeonardoBeccarini/crowdsense/internal/crowd-simulator"
	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/services/alertstore"
)

const (
	ServiceName   = "crowdsense.v1.SimulationControl"
	executeMethod = "/" + ServiceName + "/Execute"
)

// SimulationControlServer takes a control command encoded as a
// google.protobuf.Struct and answers with the Result in the same form.
type SimulationControlServer interface {
	Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulationControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "crowdsense/v1/control.proto",
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulationControlServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: executeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SimulationControlServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func RegisterSimulationControlServer(s grpc.ServiceRegistrar, srv SimulationControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// GrpcHandler serves SimulationControl on top of a Controller.
type GrpcHandler struct {
	ctrl *Controller
}

func NewGrpcHandler(ctrl *Controller) *GrpcHandler {
	return &GrpcHandler{ctrl: ctrl}
}

func (h *GrpcHandler) Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var cmd model.ControlCommand
	if err := fromStruct(in, &cmd); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode command: %v", err)
	}
	res, err := h.ctrl.Execute(ctx, cmd)
	if err != nil {
		return nil, status.Error(codeFor(err), err.Error())
	}
	out, err := toStruct(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrMissingZone), errors.Is(err, ErrMissingAlert):
		return codes.InvalidArgument
	case errors.Is(err, alertstore.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, simulator.ErrNoZones):
		return codes.FailedPrecondition
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests), errors.Is(err, ErrNoAlertStore):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// Client calls a remote SimulationControl service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens a plaintext connection to addr.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

func (c *Client) Execute(ctx context.Context, cmd model.ControlCommand) (Result, error) {
	in, err := toStruct(cmd)
	if err != nil {
		return Result{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, executeMethod, in, out); err != nil {
		return Result{}, err
	}
	var res Result
	if err := fromStruct(out, &res); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Struct values go through JSON so the wire form matches the MQTT payloads.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
