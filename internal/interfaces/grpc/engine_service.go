package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/turtacn/KnotWeave/internal/application/matching"
	"github.com/turtacn/KnotWeave/pkg/types/common"
	dto "github.com/turtacn/KnotWeave/pkg/types/knot"
)

// EngineServiceName is the fully qualified gRPC service name.
const EngineServiceName = "knotweave.v1.Engine"

// EngineServer is the server API of the engine service.
type EngineServer interface {
	BuildKnot(context.Context, *dto.BuildKnotRequest) (*dto.EntityKnotRecord, error)
	Evolve(context.Context, *dto.EvolveRequest) (*dto.Knot, error)
	Stability(context.Context, *dto.StabilityRequest) (*dto.StabilityResponse, error)
	Compatibility(context.Context, *dto.CompatibilityRequest) (*dto.CompatibilityResult, error)
	Weave(context.Context, *dto.WeaveRequest) (*dto.CompatibilityResult, error)
}

// engineService adapts matching.Service to EngineServer.
type engineService struct {
	svc matching.Service
}

// NewEngineServer returns an EngineServer backed by svc.
func NewEngineServer(svc matching.Service) EngineServer {
	return &engineService{svc: svc}
}

func (e *engineService) BuildKnot(ctx context.Context, req *dto.BuildKnotRequest) (*dto.EntityKnotRecord, error) {
	rec, err := e.svc.BuildRecord(ctx, req.EntityID, req.Attributes, common.EntityType(req.EntityType))
	if err != nil {
		return nil, err
	}
	out := matching.ToRecordDTO(rec)
	return &out, nil
}

func (e *engineService) Evolve(ctx context.Context, req *dto.EvolveRequest) (*dto.Knot, error) {
	k, err := matching.ResolveKnot(ctx, e.svc, req.Knot)
	if err != nil {
		return nil, err
	}
	steps := req.Steps
	if steps == 0 {
		steps = 1
	}
	next, err := e.svc.EvolveKnotSteps(ctx, k, matching.ToPerturbation(req.Perturbation), req.Seed, steps)
	if err != nil {
		return nil, err
	}
	out := matching.ToKnotDTO(next)
	return &out, nil
}

func (e *engineService) Stability(ctx context.Context, req *dto.StabilityRequest) (*dto.StabilityResponse, error) {
	k, err := matching.ResolveKnot(ctx, e.svc, req.Knot)
	if err != nil {
		return nil, err
	}
	t := e.svc.Temperature()
	if req.Temperature != nil {
		t = *req.Temperature
	}
	ens, err := e.svc.StabilityAt(ctx, k, t)
	if err != nil {
		return nil, err
	}
	out := matching.ToStabilityDTO(k, t, ens)
	return &out, nil
}

func (e *engineService) Compatibility(ctx context.Context, req *dto.CompatibilityRequest) (*dto.CompatibilityResult, error) {
	knots, err := matching.ResolveKnots(ctx, e.svc, []dto.KnotInput{req.A, req.B})
	if err != nil {
		return nil, err
	}
	res, err := e.svc.Compatibility(ctx, knots[0], knots[1], req.QuantumScore)
	if err != nil {
		return nil, err
	}
	out := matching.ToResultDTO(res)
	return &out, nil
}

func (e *engineService) Weave(ctx context.Context, req *dto.WeaveRequest) (*dto.CompatibilityResult, error) {
	knots, err := matching.ResolveKnots(ctx, e.svc, req.Knots)
	if err != nil {
		return nil, err
	}
	res, err := e.svc.WeaveCompatibility(ctx, knots, req.QuantumScores)
	if err != nil {
		return nil, err
	}
	out := matching.ToResultDTO(res)
	return &out, nil
}

// unaryMethod builds a MethodDesc handler for one engine call.
func unaryMethod[Req, Resp any](name string, call func(EngineServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + EngineServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(EngineServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(EngineServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// EngineServiceDesc describes the engine service.  Messages use the JSON
// codec; clients select it with grpc.CallContentSubtype(CodecName).
var EngineServiceDesc = grpc.ServiceDesc{
	ServiceName: EngineServiceName,
	HandlerType: (*EngineServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("BuildKnot", EngineServer.BuildKnot),
		unaryMethod("Evolve", EngineServer.Evolve),
		unaryMethod("Stability", EngineServer.Stability),
		unaryMethod("Compatibility", EngineServer.Compatibility),
		unaryMethod("Weave", EngineServer.Weave),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "knotweave/v1/engine",
}

// EngineClient calls the engine service over a client connection.
type EngineClient struct {
	cc grpc.ClientConnInterface
}

// NewEngineClient returns a client for the engine service.
func NewEngineClient(cc grpc.ClientConnInterface) *EngineClient {
	return &EngineClient{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+EngineServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *EngineClient) BuildKnot(ctx context.Context, in *dto.BuildKnotRequest, opts ...grpc.CallOption) (*dto.EntityKnotRecord, error) {
	return invoke[dto.BuildKnotRequest, dto.EntityKnotRecord](ctx, c.cc, "BuildKnot", in, opts)
}

func (c *EngineClient) Evolve(ctx context.Context, in *dto.EvolveRequest, opts ...grpc.CallOption) (*dto.Knot, error) {
	return invoke[dto.EvolveRequest, dto.Knot](ctx, c.cc, "Evolve", in, opts)
}

func (c *EngineClient) Stability(ctx context.Context, in *dto.StabilityRequest, opts ...grpc.CallOption) (*dto.StabilityResponse, error) {
	return invoke[dto.StabilityRequest, dto.StabilityResponse](ctx, c.cc, "Stability", in, opts)
}

func (c *EngineClient) Compatibility(ctx context.Context, in *dto.CompatibilityRequest, opts ...grpc.CallOption) (*dto.CompatibilityResult, error) {
	return invoke[dto.CompatibilityRequest, dto.CompatibilityResult](ctx, c.cc, "Compatibility", in, opts)
}

func (c *EngineClient) Weave(ctx context.Context, in *dto.WeaveRequest, opts ...grpc.CallOption) (*dto.CompatibilityResult, error) {
	return invoke[dto.WeaveRequest, dto.CompatibilityResult](ctx, c.cc, "Weave", in, opts)
}
