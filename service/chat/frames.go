package chat

import (
	"bytes"
	"encoding/json"

	"PPChat/tools/decode"
	"PPChat/tools/errs"
)

// 帧格式：{"event": "...", "data": {...}}
const (
	EventJoinRoom       = "joinRoom"
	EventJoinRoomAck    = "joinRoom:ack"
	EventLeaveRoom      = "leaveRoom"
	EventLeaveRoomAck   = "leaveRoom:ack"
	EventChatMessage    = "chat message"
	EventChatMessageAck = "chat message:ack"
	EventError          = "error"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type inFrame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// RoomPayload is the body of joinRoom / leaveRoom.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// ChatMessagePayload is what clients send and what room members receive.
type ChatMessagePayload struct {
	RoomID    string `json:"roomId"`
	Message   string `json:"message"`
	SenderID  string `json:"senderId"`
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix ms, set by the server
}

// Ack answers a client request on "<event>:ack".
type Ack struct {
	Status    string `json:"status"`
	RoomID    string `json:"roomId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Message   string `json:"message,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func EncodeFrame(event string, data any) ([]byte, error) {
	b, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		return nil, errs.WrapMsg(err, "encode frame", "event", event)
	}
	return b, nil
}

// ParseFrame splits a raw text frame into its event name and loose payload.
func ParseFrame(raw []byte) (string, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var f inFrame
	if err := dec.Decode(&f); err != nil {
		return "", nil, errs.ErrArgs.WrapMsg("malformed frame")
	}
	if f.Event == "" {
		return "", nil, errs.ErrArgs.WrapMsg("frame event is required")
	}
	if f.Data == nil {
		f.Data = map[string]any{}
	}
	return f.Event, f.Data, nil
}

// DecodePayload maps the loose payload onto T.
func DecodePayload[T any](data map[string]any) (*T, error) {
	v, err := decode.Map[T](data)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("malformed payload")
	}
	return v, nil
}
