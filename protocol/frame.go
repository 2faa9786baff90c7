// Package protocol defines the JSON frames exchanged on a session, whatever
// the transport, and dispatches invocations to the session handler.
package protocol

import (
	"encoding/json"
	"fmt"
	"hire-chat/errors"
)

type Kind string

const (
	KindInvoke Kind = "invoke"
	KindResult Kind = "result"
	KindEvent  Kind = "event"
)

// Targets of invocations. Event targets are the event names.
const (
	TargetCreateOrJoinRoom   = "CreateOrJoinRoom"
	TargetSendMessage        = "SendMessage"
	TargetMarkMessagesAsRead = "MarkMessagesAsRead"
	TargetListRooms          = "ListRooms"
	TargetGetMessages        = "GetMessages"
)

// Frame is one message of a session.
// A result frame echoes the id of the invocation it answers.
type Frame struct {
	Kind    Kind            `json:"kind"`
	ID      string          `json:"id,omitempty"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Invoke builds an invocation frame.
func Invoke(id, target string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Kind: KindInvoke, ID: id, Target: target, Payload: raw}, nil
}

func result(id, target string, payload any) Frame {
	raw, err := json.Marshal(payload)
	if err != nil {
		return failure(id, target, err)
	}
	return Frame{Kind: KindResult, ID: id, Target: target, Payload: raw}
}

// failure turns err into an error frame. Internal errors keep their detail server side.
func failure(id, target string, err error) Frame {
	code := errors.Code(err)
	message := err.Error()
	if code == errors.CodeInternal {
		message = "internal error"
	}
	return Frame{Kind: KindResult, ID: id, Target: target, Error: &Error{Code: code, Message: message}}
}

// Decode unmarshals the payload of f into v.
func (f Frame) Decode(v any) error {
	if len(f.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}

// Reject answers a frame that could not even be decoded.
func Reject(err error) Frame {
	return failure("", "", fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err))
}
