package grpcdispatch

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc's encoding package and selected per
// call via grpc.CallContentSubtype. grpc's Codec interface takes any, not
// proto.Message, so a JSON codec is a legitimate alternative to protobuf
// wire encoding rather than a workaround.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

//nolint:gochecknoinits // grpc's encoding.RegisterCodec has no other registration point
func init() {
	encoding.RegisterCodec(jsonCodec{})
}
