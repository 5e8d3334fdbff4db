// Package server exposes the refresh controller over gRPC so a UI process can
// trigger refreshes and read insights without owning the cache.
//
// Messages are google.protobuf.Struct values:
//
//	request:  {bucket, tasks[]}
//	Ensure/Refresh response: {action, fingerprint, attempts, error?, view}
//	Get response:            {view}
//	view: {bucket, status, vision, suggestion, prompt, updated_at?, loading}
package server

import (
	"context"
	"time"

	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	"github.com/danielpatrickdp/aura-plan/internal/refresh"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "aura.v1.InsightCache"

// Controller is the subset of *refresh.Controller the service drives.
type Controller interface {
	EnsureFresh(ctx context.Context, b horizon.Bucket, tasks []string) refresh.Result
	Refresh(ctx context.Context, b horizon.Bucket, tasks []string) refresh.Result
	View(ctx context.Context, b horizon.Bucket, tasks []string) refresh.View
}

// Service implements aura.v1.InsightCache.
type Service struct {
	ctrl Controller
}

// New builds a service around ctrl.
func New(ctrl Controller) *Service {
	return &Service{ctrl: ctrl}
}

// Register adds the service to s.
func (s *Service) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&serviceDesc, s)
}

// #region handlers

// Ensure runs EnsureFresh synchronously and returns the outcome with the view.
func (s *Service) Ensure(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	b, tasks, err := decodeRequest(in)
	if err != nil {
		return nil, err
	}
	res := s.ctrl.EnsureFresh(ctx, b, tasks)
	return encodeResult(res, s.ctrl.View(ctx, b, tasks))
}

// Refresh runs the forced path synchronously.
func (s *Service) Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	b, tasks, err := decodeRequest(in)
	if err != nil {
		return nil, err
	}
	res := s.ctrl.Refresh(ctx, b, tasks)
	return encodeResult(res, s.ctrl.View(ctx, b, tasks))
}

// Get returns the current view without triggering generation.
func (s *Service) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	b, tasks, err := decodeRequest(in)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]interface{}{
		"view": viewMap(s.ctrl.View(ctx, b, tasks)),
	})
}

// #endregion handlers

// #region codec

func decodeRequest(in *structpb.Struct) (horizon.Bucket, []string, error) {
	b, err := horizon.Parse(in.GetFields()["bucket"].GetStringValue())
	if err != nil {
		return "", nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var tasks []string
	for _, v := range in.GetFields()["tasks"].GetListValue().GetValues() {
		if _, ok := v.GetKind().(*structpb.Value_StringValue); !ok {
			return "", nil, status.Error(codes.InvalidArgument, "tasks must be strings")
		}
		tasks = append(tasks, v.GetStringValue())
	}
	return b, tasks, nil
}

func encodeResult(res refresh.Result, v refresh.View) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"action":      string(res.Action),
		"fingerprint": string(res.Fingerprint),
		"attempts":    res.Attempts,
		"view":        viewMap(v),
	}
	if res.Err != nil {
		m["error"] = res.Err.Error()
	}
	return structpb.NewStruct(m)
}

func viewMap(v refresh.View) map[string]interface{} {
	m := map[string]interface{}{
		"bucket":     string(v.Bucket),
		"status":     string(v.Status),
		"vision":     v.Insight.Vision,
		"suggestion": v.Insight.Suggestion,
		"prompt":     v.Insight.Prompt,
		"loading":    v.Loading,
	}
	if !v.UpdatedAt.IsZero() {
		m["updated_at"] = v.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return m
}

// #endregion codec

// #region service-desc

// cacheServer is the handler set registered under ServiceName.
type cacheServer interface {
	Ensure(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type handlerFunc func(*Service, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, fn handlerFunc) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Service)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return fn(s, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*cacheServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ensure", (*Service).Ensure),
		unary("Refresh", (*Service).Refresh),
		unary("Get", (*Service).Get),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aura/v1/cache.proto",
}

// #endregion service-desc

// #region interceptor

// LoggingInterceptor tags each call with a request id and logs its outcome.
func LoggingInterceptor(log logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		entry := log.WithFields(logrus.Fields{
			"request_id": uuid.New().String(),
			"method":     info.FullMethod,
		})
		resp, err := handler(ctx, req)
		entry = entry.WithField("duration", time.Since(start))
		if err != nil {
			entry.WithError(err).WithField("code", status.Code(err)).Warn("rpc failed")
		} else {
			entry.Debug("rpc served")
		}
		return resp, err
	}
}

// #endregion interceptor
