// Package wire holds what the gRPC server and client of the chat service share:
// the JSON codec and the method names of the hand written service descriptor.
package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype negotiated by clients ("application/grpc+json").
const CodecName = "json"

const (
	ServiceName       = "hirechat.v1.ChatService"
	SessionMethod     = "/" + ServiceName + "/Session"
	ListRoomsMethod   = "/" + ServiceName + "/ListRooms"
	GetMessagesMethod = "/" + ServiceName + "/GetMessages"
)

// SessionStreamDesc describes the bidirectional stream of frames of a session.
var SessionStreamDesc = grpc.StreamDesc{
	StreamName:    "Session",
	ServerStreams: true,
	ClientStreams: true,
}

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec carries the session frames and the unary payloads as JSON so that
// gRPC and WebSocket clients read exactly the same documents.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec: %w", err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec: %w", err)
	}
	return nil
}

func (Codec) Name() string {
	return CodecName
}
