package runner

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

const serviceName = "nademap.SessionService"

// jsonCodec carries the plain Go request and response types over gRPC.
// Clients select it with the "json" content subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

func unary[Req, Resp any](method string, call func(Service, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "decode %s request: %v", method, err)
			}
			handler := func(ctx context.Context, req any) (any, error) {
				out, err := call(srv.(Service), ctx, req.(*Req))
				if err != nil {
					return nil, toStatus(err)
				}
				return out, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateSession", Service.CreateSession),
		unary("CloseSession", Service.CloseSession),
		unary("GetState", Service.GetState),
		unary("PointerDown", Service.PointerDown),
		unary("ClickCluster", Service.ClickCluster),
		unary("ClickOrigin", Service.ClickOrigin),
		unary("Hover", Service.Hover),
		unary("ResizeContainer", Service.ResizeContainer),
		unary("SetStep", Service.SetStep),
		unary("SetFilter", Service.SetFilter),
		unary("Reload", Service.Reload),
		unary("GetClusters", Service.GetClusters),
		unary("FindNear", Service.FindNear),
		unary("ListSnapshots", Service.ListSnapshots),
		unary("SaveSnapshot", Service.SaveSnapshot),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterService exposes svc as nademap.SessionService on s.
func RegisterService(s grpc.ServiceRegistrar, svc Service) {
	s.RegisterService(&serviceDesc, svc)
}

// LoggingInterceptor logs every unary call with its status code.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("took", time.Since(start)),
		}
		if code == codes.Internal || code == codes.Unknown {
			logger.Error("rpc failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("rpc", fields...)
		}
		return resp, err
	}
}
