package remote

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"

	"github.com/funvibe/umethod/pkg/dispatch"
)

// startServer runs a dispatch server for the given exported methods and
// returns a client connection to it.
func startServer(t *testing.T, methods ...*dispatch.Method) *startedServer {
	t.Helper()

	srv, err := NewServer()
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	for _, m := range methods {
		if err := srv.Export(m); err != nil {
			t.Fatalf("exporting %s: %v", m.Name(), err)
		}
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := Dial(lis.Addr().String())
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &startedServer{srv: srv, conn: conn}
}

type startedServer struct {
	srv  *Server
	conn *grpc.ClientConn
}

func TestRemoteBackend_ForwardsCall(t *testing.T) {
	serverReg := dispatch.NewRegistry()
	served := dispatch.NewMethod("sum", nil, nil, dispatch.WithRegistry(serverReg))
	impl := dispatch.NewBackend("impl")
	impl.Register(served, func(ctx context.Context, call dispatch.Call) (dispatch.Result, error) {
		total := 0.0
		for _, a := range call.Args {
			total += a.(float64)
		}
		return dispatch.Handled(total), nil
	})
	serverReg.Register(impl)

	started := startServer(t, served)

	clientReg := dispatch.NewRegistry()
	clientReg.Register(New(started.conn, "remote"))
	m := dispatch.NewMethod("sum", nil, nil, dispatch.WithRegistry(clientReg))

	out, err := m.Invoke(context.Background(), []any{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != float64(6) {
		t.Errorf("got %v, want 6", out)
	}
}

func TestRemoteBackend_NotExportedDeclines(t *testing.T) {
	started := startServer(t)

	clientReg := dispatch.NewRegistry()
	clientReg.Register(New(started.conn, "remote"))

	local := dispatch.NewBackend("local")
	m := dispatch.NewMethod("sum", nil, nil, dispatch.WithRegistry(clientReg))
	local.Register(m, func(ctx context.Context, call dispatch.Call) (dispatch.Result, error) {
		return dispatch.Handled("local"), nil
	})
	clientReg.Register(local)

	out, err := m.Invoke(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "local" {
		t.Errorf("got %v, want local (remote decline must fall through)", out)
	}
}

func TestRemoteBackend_ServerErrorStopsDispatch(t *testing.T) {
	serverReg := dispatch.NewRegistry()
	served := dispatch.NewMethod("explode", nil, nil, dispatch.WithRegistry(serverReg))
	impl := dispatch.NewBackend("impl")
	impl.Register(served, func(ctx context.Context, call dispatch.Call) (dispatch.Result, error) {
		return dispatch.Result{}, errors.New("server-side boom")
	})
	serverReg.Register(impl)

	started := startServer(t, served)

	clientReg := dispatch.NewRegistry()
	clientReg.Register(New(started.conn, "remote"))

	fallback := dispatch.NewBackend("fallback")
	m := dispatch.NewMethod("explode", nil, nil, dispatch.WithRegistry(clientReg))
	fallback.Register(m, func(ctx context.Context, call dispatch.Call) (dispatch.Result, error) {
		return dispatch.Handled("fallback"), nil
	})
	clientReg.Register(fallback)

	_, err := m.Invoke(context.Background(), nil, nil)
	if err == nil || !strings.Contains(err.Error(), "server-side boom") {
		t.Fatalf("server computation error must propagate and stop dispatch, got %v", err)
	}
}

func TestServer_DuplicateExport(t *testing.T) {
	srv, err := NewServer()
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	reg := dispatch.NewRegistry()
	m := dispatch.NewMethod("dup", nil, nil, dispatch.WithRegistry(reg))
	if err := srv.Export(m); err != nil {
		t.Fatalf("first export: %v", err)
	}
	other := dispatch.NewMethod("dup", nil, nil, dispatch.WithRegistry(reg))
	if err := srv.Export(other); err == nil {
		t.Fatal("expected error exporting a second method named dup")
	}
}

func TestWireContract_Parses(t *testing.T) {
	md, err := invokeDescriptor()
	if err != nil {
		t.Fatalf("embedded proto must parse: %v", err)
	}
	if md.GetFullyQualifiedName() != "umethod.v1.Dispatch.Invoke" {
		t.Errorf("descriptor = %s, want umethod.v1.Dispatch.Invoke", md.GetFullyQualifiedName())
	}
	if !strings.Contains(WireContract(), "service Dispatch") {
		t.Error("WireContract must expose the proto source")
	}
}
