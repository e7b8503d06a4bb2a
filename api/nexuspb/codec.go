// Package nexuspb defines the wire messages and grpc service the
// framework-facing driver contract (C8) speaks, plus the codec that
// carries them. Unlike the teacher's protoc-generated proto/pkg/apiv1
// stubs, messages here are hand-written Go structs encoded with the same
// msgpack codec internal/wire uses for the master-slave transport, so the
// whole system speaks one wire format end to end; RPC dispatch is a
// hand-written grpc.ServiceDesc rather than a protoc-gen-go-grpc output.
package nexuspb

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc/encoding"
)

// CodecName is the grpc content-subtype clients must request via
// grpc.CallContentSubtype to have requests and responses carried by Codec.
const CodecName = "msgpack"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec implements google.golang.org/grpc/encoding.Codec by delegating to
// msgpack, grounded on internal/wire's choice of
// github.com/vmihailenco/msgpack/v5 for the master-slave link.
type Codec struct{}

// Marshal implements encoding.Codec.
func (Codec) Marshal(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("nexuspb: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v interface{}) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("nexuspb: unmarshal: %w", err)
	}
	return nil
}

// Name implements encoding.Codec.
func (Codec) Name() string { return CodecName }
