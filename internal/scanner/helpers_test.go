package scanner

import (
	"net"
	"strconv"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// greeterDesc registers a service name without any methods; reflection
// lists it from the server's service info.
var greeterDesc = grpc.ServiceDesc{
	ServiceName: "Greeter",
	HandlerType: (*any)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams:     []grpc.StreamDesc{},
	Metadata:    "greeter.proto",
}

func withGreeter(s *grpc.Server) { s.RegisterService(&greeterDesc, struct{}{}) }

func withReflection(s *grpc.Server) { reflection.Register(s) }

func withHealth(s *grpc.Server) { healthpb.RegisterHealthServer(s, health.NewServer()) }

// startServer runs a gRPC server on an ephemeral loopback port.
func startServer(t *testing.T, register ...func(*grpc.Server)) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	return serveOn(t, lis, register...)
}

func serveOn(t *testing.T, lis net.Listener, register ...func(*grpc.Server)) int {
	t.Helper()
	srv := grpc.NewServer()
	for _, r := range register {
		r(srv)
	}
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return lis.Addr().(*net.TCPAddr).Port
}

// closedPort returns a loopback port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := lis.Addr().(*net.TCPAddr).Port
	lis.Close()
	return port
}

// adjacentPair returns a listener on port p where p+1 is currently free.
func adjacentPair(t *testing.T) net.Listener {
	t.Helper()
	for i := 0; i < 20; i++ {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		port := lis.Addr().(*net.TCPAddr).Port
		next, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port+1)))
		if err == nil {
			next.Close()
			return lis
		}
		lis.Close()
	}
	t.Skip("could not find two adjacent free ports")
	return nil
}

// startRaw accepts TCP connections and hands each to handle.
func startRaw(t *testing.T, handle func(net.Conn)) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { lis.Close() })
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()
	return lis.Addr().(*net.TCPAddr).Port
}

// hang keeps the connection open without speaking.
func hang(conn net.Conn) {
	time.Sleep(5 * time.Second)
	conn.Close()
}

// speakHTTP answers like a plain HTTP/1.1 server and closes.
func speakHTTP(conn net.Conn) {
	conn.Write([]byte("HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"))
	conn.Close()
}
