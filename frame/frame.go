// Package frame implements the wire encoding of duplexrpc messages: a
// single JSON object per transport message, discriminated by a Type field.
package frame

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Type discriminates the kind of Frame carried over the connection.
type Type string

const (
	TypeRPC          Type = "rpc"
	TypeRPCResult    Type = "rpc-res"
	TypeStreamChunk  Type = "stream-chunk"
	TypeStreamEnd    Type = "stream-end"
	TypeStreamError  Type = "stream-error"
	TypeStreamCancel Type = "stream-cancel"
)

// Side identifies which peer a Frame asks to act: the one whose routes
// the frame's Method should resolve against.
type Side string

const (
	SideServer Side = "server"
	SideClient Side = "client"
)

// Kind distinguishes a unary procedure from a streamer.
type Kind string

const (
	KindProc     Kind = "proc"
	KindStreamer Kind = "stream"
)

// Frame is the wire shape of every message exchanged over a Conn. Only the
// fields relevant to Type are populated; the rest are left zero and omitted
// on encode. Unknown fields on decode are ignored by encoding/json, and an
// unrecognized Type is reported via the distinguished ErrUnknownFrameType,
// so a forward-compatible peer can log and discard it.
type Frame struct {
	Type Type `json:"type"`

	// rpc
	Side   Side            `json:"side,omitempty"`
	Method string          `json:"method,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`

	// shared correlation id, present on every frame type except none.
	ReqID uint64 `json:"reqId"`

	// rpc-res
	OK        bool            `json:"ok,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Streaming bool            `json:"streaming,omitempty"`
	Error     string          `json:"error,omitempty"`

	// stream-chunk
	Chunk json.RawMessage `json:"chunk,omitempty"`
}

// ErrUnknownFrameType is returned by Decode when the frame's Type is not one
// of the six defined in this package. Callers must log and discard such a
// frame rather than tear down the connection (spec §4.1, §7).
var ErrUnknownFrameType = errors.New("frame: unknown frame type")

// Encode marshals f to its wire representation.
func Encode(f *Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling frame")
	}
	return b, nil
}

// Decode unmarshals a wire message into a Frame, validating that its Type is
// one this package understands.
func Decode(b []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "unmarshalling frame")
	}
	switch f.Type {
	case TypeRPC, TypeRPCResult, TypeStreamChunk, TypeStreamEnd, TypeStreamError, TypeStreamCancel:
		return &f, nil
	default:
		return nil, errors.Wrapf(ErrUnknownFrameType, "type %q", f.Type)
	}
}

// NewRPC builds an outbound rpc frame.
func NewRPC(side Side, kind Kind, reqID uint64, method string, args json.RawMessage) *Frame {
	return &Frame{
		Type:      TypeRPC,
		Side:      side,
		Method:    method,
		ReqID:     reqID,
		Args:      args,
		Streaming: kind == KindStreamer,
	}
}

// NewResult builds a unary rpc-res frame reporting success.
func NewResult(reqID uint64, data json.RawMessage) *Frame {
	return &Frame{Type: TypeRPCResult, ReqID: reqID, OK: true, Data: data}
}

// NewStreamAck builds the optional streaming acknowledgement rpc-res frame.
func NewStreamAck(reqID uint64) *Frame {
	return &Frame{Type: TypeRPCResult, ReqID: reqID, OK: true, Streaming: true}
}

// NewResultError builds a unary rpc-res frame reporting failure.
func NewResultError(reqID uint64, message string) *Frame {
	return &Frame{Type: TypeRPCResult, ReqID: reqID, OK: false, Error: message}
}

// NewStreamChunk builds a stream-chunk frame.
func NewStreamChunk(reqID uint64, chunk json.RawMessage) *Frame {
	return &Frame{Type: TypeStreamChunk, ReqID: reqID, Chunk: chunk}
}

// NewStreamEnd builds a stream-end frame.
func NewStreamEnd(reqID uint64) *Frame {
	return &Frame{Type: TypeStreamEnd, ReqID: reqID}
}

// NewStreamError builds a stream-error frame.
func NewStreamError(reqID uint64, message string) *Frame {
	return &Frame{Type: TypeStreamError, ReqID: reqID, Error: message}
}

// NewStreamCancel builds a stream-cancel frame.
func NewStreamCancel(reqID uint64) *Frame {
	return &Frame{Type: TypeStreamCancel, ReqID: reqID}
}
