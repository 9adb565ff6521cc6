// This file hand-declares the gRPC service surface that protoc-gen-go-grpc
// would otherwise generate from the shared coordinator schema (§6.1). It
// wires the same google.golang.org/grpc transport the pack's gRPC-shaped
// examples use (see SPEC_FULL.md's domain-stack table), just without a
// protoc toolchain to produce the boilerplate.
package workernode

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cametumbling/crawlnode/internal/schema"
)

// Server is the coordinator-facing surface a worker node exposes (§4.5.1).
type Server interface {
	Version(ctx context.Context, req *schema.Empty) (*schema.VersionResponse, error)
	CrawlerOptions(ctx context.Context, req *schema.CrawlerOptionsRequest) (*schema.CrawlerOptionsResponse, error)
	AllowedDomains(ctx context.Context, req *schema.Empty) (*schema.AllowedDomainsResponse, error)
	CanonicalURL(ctx context.Context, req *schema.CanonicalURLRequest) (*schema.CanonicalURLResponse, error)
	Parse(req *schema.RawRequest, stream CrawlerNode_ParseServer) error
}

// CrawlerNode_ParseServer is the server-streaming handle for the Parse RPC:
// one Send per emitted envelope, in order (§4.5.1, §5 "Ordering
// guarantees").
type CrawlerNode_ParseServer interface {
	Send(*schema.Any) error
	grpc.ServerStream
}

type crawlerNodeParseServer struct {
	grpc.ServerStream
}

func (x *crawlerNodeParseServer) Send(m *schema.Any) error {
	return x.ServerStream.SendMsg(m)
}

func _CrawlerNode_Version_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(schema.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Version(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Version"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Version(ctx, req.(*schema.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _CrawlerNode_CrawlerOptions_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(schema.CrawlerOptionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).CrawlerOptions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/CrawlerOptions"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).CrawlerOptions(ctx, req.(*schema.CrawlerOptionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _CrawlerNode_AllowedDomains_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(schema.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).AllowedDomains(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/AllowedDomains"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).AllowedDomains(ctx, req.(*schema.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _CrawlerNode_CanonicalUrl_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(schema.CanonicalURLRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).CanonicalURL(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/CanonicalUrl"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).CanonicalURL(ctx, req.(*schema.CanonicalURLRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _CrawlerNode_Parse_Handler(srv any, stream grpc.ServerStream) error {
	m := new(schema.RawRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(Server).Parse(m, &crawlerNodeParseServer{stream})
}

// ServiceName is the coordinator-facing service's fully-qualified name.
const ServiceName = "crawl.CrawlerNode"

// ServiceDesc mirrors the ServiceDesc protoc-gen-go-grpc would emit for the
// CrawlerNode service (§4.5.1).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Version", Handler: _CrawlerNode_Version_Handler},
		{MethodName: "CrawlerOptions", Handler: _CrawlerNode_CrawlerOptions_Handler},
		{MethodName: "AllowedDomains", Handler: _CrawlerNode_AllowedDomains_Handler},
		{MethodName: "CanonicalUrl", Handler: _CrawlerNode_CanonicalUrl_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Parse", Handler: _CrawlerNode_Parse_Handler, ServerStreams: true},
	},
	Metadata: "crawlnode.proto",
}

// RegisterServer registers srv against s, the way protoc-gen-go-grpc's
// RegisterCrawlerNodeServer would.
func RegisterServer(s *grpc.Server, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}

// registerServiceName and connectStreamDesc describe the client-initiated
// bidirectional registration stream on the coordinator's CrawlerRegister
// service (§4.5.4, §6.1). The coordinator side of this service is an
// external collaborator (spec.md §1) — only the client half is
// implemented here.
const registerServiceName = "crawl.CrawlerRegister"

var connectStreamDesc = grpc.StreamDesc{
	StreamName:    "Connect",
	ClientStreams: true,
	ServerStreams: true,
}

// ConnectClient is the worker's client-side handle for the registration
// stream: Send pushes Ping/Heartbeat envelopes, Recv drains whatever the
// coordinator chooses to push back (acks, commands — opaque to the
// worker).
type ConnectClient interface {
	Send(*schema.Any) error
	Recv() (*schema.Any, error)
	grpc.ClientStream
}

type connectClient struct {
	grpc.ClientStream
}

func (x *connectClient) Send(m *schema.Any) error {
	return x.ClientStream.SendMsg(m)
}

func (x *connectClient) Recv() (*schema.Any, error) {
	m := new(schema.Any)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Connect opens the registration stream against conn.
func Connect(ctx context.Context, conn grpc.ClientConnInterface) (ConnectClient, error) {
	stream, err := conn.NewStream(ctx, &connectStreamDesc, "/"+registerServiceName+"/Connect")
	if err != nil {
		return nil, err
	}
	return &connectClient{stream}, nil
}
