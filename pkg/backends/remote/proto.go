package remote

import (
	"fmt"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
)

// protoSource is the wire contract between a remote backend and a
// dispatch server. Arguments and results cross the wire JSON-encoded:
// the engine treats argument values as opaque, so JSON is the widest
// representation both sides can agree on without generated stubs.
const protoSource = `
syntax = "proto3";

package umethod.v1;

message InvokeRequest {
  string method = 1;
  bytes args = 2;
  bytes kwargs = 3;
}

message InvokeResponse {
  bool handled = 1;
  bytes value = 2;
  string error = 3;
}

service Dispatch {
  rpc Invoke(InvokeRequest) returns (InvokeResponse);
}
`

const (
	protoFile   = "umethod.proto"
	serviceName = "umethod.v1.Dispatch"
	invokePath  = "/umethod.v1.Dispatch/Invoke"
)

var descriptors struct {
	once sync.Once
	fd   *desc.FileDescriptor
	md   *desc.MethodDescriptor
	err  error
}

// invokeDescriptor parses the embedded proto once and returns the
// Invoke method descriptor.
func invokeDescriptor() (*desc.MethodDescriptor, error) {
	descriptors.once.Do(func() {
		parser := protoparse.Parser{
			Accessor: protoparse.FileContentsFromMap(map[string]string{
				protoFile: protoSource,
			}),
		}
		fds, err := parser.ParseFiles(protoFile)
		if err != nil {
			descriptors.err = fmt.Errorf("parsing embedded proto: %w", err)
			return
		}
		descriptors.fd = fds[0]
		sd := descriptors.fd.FindService(serviceName)
		if sd == nil {
			descriptors.err = fmt.Errorf("service %s not found in embedded proto", serviceName)
			return
		}
		descriptors.md = sd.FindMethodByName("Invoke")
		if descriptors.md == nil {
			descriptors.err = fmt.Errorf("method Invoke not found on %s", serviceName)
		}
	})
	return descriptors.md, descriptors.err
}

// fileDescriptor returns the parsed wire-contract file descriptor.
func fileDescriptor() (*desc.FileDescriptor, error) {
	if _, err := invokeDescriptor(); err != nil {
		return nil, err
	}
	return descriptors.fd, nil
}
