// Package remote adapts a dispatch server reachable over gRPC into a
// local Backend.
//
// The adapter is one of the external collaborators of the dispatch
// engine: it only ever uses the public backend construction interface.
// No generated stubs are involved; the wire contract is an embedded
// proto parsed at first use, and messages are built dynamically.
//
//	conn, _ := remote.Dial("localhost:7070")
//	defer conn.Close()
//	dispatch.Register(remote.New(conn, "remote"))
//
// The remote side decides applicability the same way a local
// implementation does: a server answering "not handled" makes dispatch
// move on to the next candidate, while a server-side computation error
// stops dispatch and reaches the caller.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/funvibe/umethod/pkg/dispatch"
)

// Dial connects to a dispatch server. The connection uses insecure
// transport credentials; callers needing TLS should build their own
// *grpc.ClientConn and pass it to New.
func Dial(target string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing dispatch server %s: %w", target, err)
	}
	return conn, nil
}

// New returns a backend that forwards every method to the dispatch
// server behind conn. The caller keeps ownership of the connection.
func New(conn *grpc.ClientConn, name string) *dispatch.Backend {
	b := dispatch.NewBackend(name)
	b.RegisterCatchAll(nil, forwarder(conn))
	return b
}

func forwarder(conn *grpc.ClientConn) dispatch.Implementation {
	return func(ctx context.Context, call dispatch.Call) (dispatch.Result, error) {
		md, err := invokeDescriptor()
		if err != nil {
			return dispatch.Result{}, err
		}

		args, err := json.Marshal(call.Args)
		if err != nil {
			return dispatch.Result{}, fmt.Errorf("encoding arguments for %s: %w", call.Method, err)
		}
		kwargs, err := json.Marshal(call.Kwargs)
		if err != nil {
			return dispatch.Result{}, fmt.Errorf("encoding keyword arguments for %s: %w", call.Method, err)
		}

		req := dynamic.NewMessage(md.GetInputType())
		req.SetFieldByName("method", call.Method)
		req.SetFieldByName("args", args)
		req.SetFieldByName("kwargs", kwargs)

		resp := dynamic.NewMessage(md.GetOutputType())
		if err := conn.Invoke(ctx, invokePath, req, resp); err != nil {
			return dispatch.Result{}, fmt.Errorf("remote dispatch of %s: %w", call.Method, err)
		}

		if msg := resp.GetFieldByName("error").(string); msg != "" {
			return dispatch.Result{}, errors.New(msg)
		}
		if !resp.GetFieldByName("handled").(bool) {
			return dispatch.Declined(), nil
		}

		var value any
		if raw := resp.GetFieldByName("value").([]byte); len(raw) > 0 {
			if err := json.Unmarshal(raw, &value); err != nil {
				return dispatch.Result{}, fmt.Errorf("decoding result of %s: %w", call.Method, err)
			}
		}
		return dispatch.Handled(value), nil
	}
}
