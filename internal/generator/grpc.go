package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	"github.com/danielpatrickdp/aura-plan/internal/insight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region wire
// The generator service speaks google.protobuf.Struct in both directions, so
// neither side needs generated stubs.
//
//	request:  {bucket, label, tasks[], prompt}
//	response: {vision, suggestion, prompt}
const (
	generatorService = "aura.v1.InsightGenerator"
	generateMethod   = "/" + generatorService + "/Generate"
)
// #endregion wire

// #region client-struct
// GRPC calls a remote generator service.
type GRPC struct {
	conn grpc.ClientConnInterface
	// closer is nil when the connection is owned by the caller.
	closer func() error
}
// #endregion client-struct

// #region constructor
// NewGRPC connects to a generator service at addr.
func NewGRPC(addr string, opts ...grpc.DialOption) (*GRPC, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPC{conn: conn, closer: conn.Close}, nil
}

// NewGRPCWithConn uses an existing connection, e.g. one dialed over bufconn in tests.
func NewGRPCWithConn(conn grpc.ClientConnInterface) *GRPC {
	return &GRPC{conn: conn}
}
// #endregion constructor

// #region close
// Close shuts down the connection if this client opened it.
func (c *GRPC) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
// #endregion close

// #region generate
// Generate sends the bucket, its tasks and the rendered prompt to the remote service.
func (c *GRPC) Generate(ctx context.Context, b horizon.Bucket, tasks []string) (insight.Insight, error) {
	req, err := encodeGenerateRequest(b, tasks)
	if err != nil {
		return insight.Insight{}, err
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, generateMethod, req, resp); err != nil {
		return insight.Insight{}, fmt.Errorf("generate rpc: %w", err)
	}

	out := insight.Insight{
		Vision:     resp.GetFields()["vision"].GetStringValue(),
		Suggestion: resp.GetFields()["suggestion"].GetStringValue(),
		Prompt:     resp.GetFields()["prompt"].GetStringValue(),
	}
	if err := out.Validate(); err != nil {
		return insight.Insight{}, err
	}
	return out, nil
}

func encodeGenerateRequest(b horizon.Bucket, tasks []string) (*structpb.Struct, error) {
	list := make([]interface{}, len(tasks))
	for i, t := range tasks {
		list[i] = t
	}
	req, err := structpb.NewStruct(map[string]interface{}{
		"bucket": string(b),
		"label":  b.Label(),
		"tasks":  list,
		"prompt": BuildPrompt(b, tasks),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return req, nil
}
// #endregion generate

// #region server
// RegisterServer exposes g as the aura.v1.InsightGenerator service on s.
// This lets a process holding the API key serve generation to others.
func RegisterServer(s grpc.ServiceRegistrar, g Generator) {
	s.RegisterService(&generatorServiceDesc, g)
}

var generatorServiceDesc = grpc.ServiceDesc{
	ServiceName: generatorService,
	HandlerType: (*Generator)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: generateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aura/v1/generator.proto",
}

func generateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	g := srv.(Generator)
	if interceptor == nil {
		return serveGenerate(ctx, g, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: generateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return serveGenerate(ctx, g, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func serveGenerate(ctx context.Context, g Generator, in *structpb.Struct) (*structpb.Struct, error) {
	b, err := horizon.Parse(in.GetFields()["bucket"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var tasks []string
	for _, v := range in.GetFields()["tasks"].GetListValue().GetValues() {
		tasks = append(tasks, v.GetStringValue())
	}

	out, err := g.Generate(ctx, b, tasks)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoCredentials):
			return nil, status.Error(codes.Unauthenticated, err.Error())
		case errors.Is(err, insight.ErrMalformed):
			return nil, status.Error(codes.DataLoss, err.Error())
		default:
			return nil, status.Error(codes.Unavailable, err.Error())
		}
	}
	return structpb.NewStruct(map[string]interface{}{
		"vision":     out.Vision,
		"suggestion": out.Suggestion,
		"prompt":     out.Prompt,
	})
}
// #endregion server
