package scanner

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	rpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	rpbalpha "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/status"

	"github.com/maxvaer/grpcscan/internal/filter"
	"github.com/maxvaer/grpcscan/internal/netutil"
	"github.com/maxvaer/grpcscan/internal/target"
	"github.com/maxvaer/grpcscan/pkg/version"
)

// ProberConfig configures a reflection Prober.
type ProberConfig struct {
	Timeout  time.Duration
	TLS      bool // verification is skipped; the scanner only enumerates
	Resolver *netutil.Resolver
	Filter   *filter.Chain // nil keeps every service
}

// Prober lists the services a gRPC server advertises through the server
// reflection API.
type Prober struct {
	timeout time.Duration
	opts    []grpc.DialOption
	filter  *filter.Chain
}

// NewProber builds a prober from cfg.
func NewProber(cfg ProberConfig) *Prober {
	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{InsecureSkipVerify: true})
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithUserAgent("grpcscan/" + version.Version),
		grpc.WithDisableRetry(),
	}
	if cfg.Resolver != nil {
		opts = append(opts, grpc.WithContextDialer(dialContext(cfg.Resolver)))
	}
	return &Prober{timeout: cfg.Timeout, opts: opts, filter: cfg.Filter}
}

// Probe asks ep for its service list. v1 reflection is tried first and
// v1alpha only when the server does not implement v1. The whole exchange
// is bounded by the prober timeout.
func (p *Prober) Probe(ctx context.Context, ep target.Endpoint) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := grpc.NewClient("passthrough:///"+ep.Address(), p.opts...)
	if err != nil {
		return Failed(err.Error())
	}
	defer conn.Close()

	services, err := listV1(ctx, conn)
	if status.Code(err) == codes.Unimplemented {
		services, err = listV1alpha(ctx, conn)
	}
	if err != nil {
		st := status.Convert(err)
		if st.Code() == codes.Unimplemented {
			return Outcome{Kind: ReflectionUnsupported}
		}
		return Failed(fmt.Sprintf("%s: %s", st.Code(), st.Message()))
	}
	return Found(p.filter.Keep(services))
}

var errNoListResponse = errors.New("server sent no list_services response")

func listV1(ctx context.Context, conn *grpc.ClientConn) ([]string, error) {
	stream, err := rpb.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.CloseSend()

	req := &rpb.ServerReflectionRequest{
		MessageRequest: &rpb.ServerReflectionRequest_ListServices{ListServices: "*"},
	}
	if err := stream.Send(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	resp, err := stream.Recv()
	if err != nil {
		return nil, err
	}
	if e := resp.GetErrorResponse(); e != nil {
		return nil, status.Error(codes.Code(e.GetErrorCode()), e.GetErrorMessage())
	}
	list := resp.GetListServicesResponse()
	if list == nil {
		return nil, status.Error(codes.Internal, errNoListResponse.Error())
	}
	names := make([]string, 0, len(list.GetService()))
	for _, s := range list.GetService() {
		names = append(names, s.GetName())
	}
	return names, nil
}

func listV1alpha(ctx context.Context, conn *grpc.ClientConn) ([]string, error) {
	stream, err := rpbalpha.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.CloseSend()

	req := &rpbalpha.ServerReflectionRequest{
		MessageRequest: &rpbalpha.ServerReflectionRequest_ListServices{ListServices: "*"},
	}
	if err := stream.Send(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	resp, err := stream.Recv()
	if err != nil {
		return nil, err
	}
	if e := resp.GetErrorResponse(); e != nil {
		return nil, status.Error(codes.Code(e.GetErrorCode()), e.GetErrorMessage())
	}
	list := resp.GetListServicesResponse()
	if list == nil {
		return nil, status.Error(codes.Internal, errNoListResponse.Error())
	}
	names := make([]string, 0, len(list.GetService()))
	for _, s := range list.GetService() {
		names = append(names, s.GetName())
	}
	return names, nil
}
