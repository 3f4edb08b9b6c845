package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/funvibe/umethod/pkg/dispatch"
)

// Server exposes selected local multimethods to remote dispatch
// clients. Each exported method is reachable by its display name; an
// invocation that resolves locally is answered with its result, one
// that exhausts all local candidates is answered as "not handled" so
// the remote caller can continue with its own candidate list.
type Server struct {
	grpc *grpc.Server

	mu      sync.RWMutex
	methods map[string]*dispatch.Method
}

// NewServer creates a dispatch server with no exported methods.
func NewServer() (*Server, error) {
	md, err := invokeDescriptor()
	if err != nil {
		return nil, err
	}

	s := &Server{
		grpc:    grpc.NewServer(),
		methods: make(map[string]*dispatch.Method),
	}

	desc := &grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*interface{})(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    md.GetFile().GetName(),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Invoke",
				Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
					return srv.(*Server).handleInvoke(ctx, dec)
				},
			},
		},
	}
	s.grpc.RegisterService(desc, s)
	return s, nil
}

// Export makes m callable by remote clients under its display name.
// Exporting two methods with the same name is a configuration error.
func (s *Server) Export(m *dispatch.Method) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.methods[m.Name()]; ok {
		return fmt.Errorf("method %q already exported", m.Name())
	}
	s.methods[m.Name()] = m
	return nil
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop stops the server, waiting for in-flight invocations.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

// Descriptor returns the wire contract as a file descriptor proto,
// for clients that register it with external reflection tooling.
func (s *Server) Descriptor() (*descriptorpb.FileDescriptorProto, error) {
	fd, err := fileDescriptor()
	if err != nil {
		return nil, err
	}
	return fd.AsFileDescriptorProto(), nil
}

// WireContract returns the proto source both sides of the adapter
// agree on.
func WireContract() string {
	return protoSource
}

func (s *Server) handleInvoke(ctx context.Context, dec func(interface{}) error) (interface{}, error) {
	md, err := invokeDescriptor()
	if err != nil {
		return nil, err
	}

	req := dynamic.NewMessage(md.GetInputType())
	if err := dec(req); err != nil {
		return nil, err
	}
	resp := dynamic.NewMessage(md.GetOutputType())

	name := req.GetFieldByName("method").(string)
	s.mu.RLock()
	m, ok := s.methods[name]
	s.mu.RUnlock()
	if !ok {
		resp.SetFieldByName("handled", false)
		return resp, nil
	}

	var args []any
	if raw := req.GetFieldByName("args").([]byte); len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			resp.SetFieldByName("error", fmt.Sprintf("decoding arguments: %v", err))
			return resp, nil
		}
	}
	var kwargs map[string]any
	if raw := req.GetFieldByName("kwargs").([]byte); len(raw) > 0 {
		if err := json.Unmarshal(raw, &kwargs); err != nil {
			resp.SetFieldByName("error", fmt.Sprintf("decoding keyword arguments: %v", err))
			return resp, nil
		}
	}

	out, err := m.Invoke(ctx, args, kwargs)
	if err != nil {
		var nie *dispatch.NotImplementedError
		if errors.As(err, &nie) {
			resp.SetFieldByName("handled", false)
			return resp, nil
		}
		// Computation errors travel in-band so the client can tell
		// them apart from transport failures.
		resp.SetFieldByName("error", err.Error())
		return resp, nil
	}

	value, err := json.Marshal(out)
	if err != nil {
		resp.SetFieldByName("error", fmt.Sprintf("encoding result: %v", err))
		return resp, nil
	}
	resp.SetFieldByName("handled", true)
	resp.SetFieldByName("value", value)
	return resp, nil
}
