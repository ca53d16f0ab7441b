package websocket

import (
	"encoding/json"
	"time"

	"marketchat/internal/domain/entity"
)

// Frame types exchanged with the browser.
const (
	FrameTypePing        = "ping"
	FrameTypePong        = "pong"
	FrameTypeJoinRoom    = "join_room"
	FrameTypeLeaveRoom   = "leave_room"
	FrameTypeSendMessage = "send_message"
	FrameTypeMarkRead    = "mark_read"
	FrameTypeSnapshot    = "snapshot"
	FrameTypeUnreadCount = "unread_count"
	FrameTypeError       = "error"
)

// Frame is the envelope for every WebSocket message in both directions.
type Frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

type JoinRoomData struct {
	RoomID string `json:"room_id"`
}

type LeaveRoomData struct {
	RoomID string `json:"room_id"`
}

type SendMessageData struct {
	RoomID string `json:"room_id"`
	Text   string `json:"text"`
}

type MarkReadData struct {
	RoomID string `json:"room_id"`
}

type SnapshotData struct {
	RoomID   string            `json:"room_id"`
	Messages []*entity.Message `json:"messages"`
}

type UnreadCountData struct {
	Count int `json:"count"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// NewFrame marshals data into an outbound frame. Marshal errors are
// impossible for the fixed payload types above, so they are ignored.
func NewFrame(frameType string, data interface{}) []byte {
	payload, _ := json.Marshal(data)
	frame, _ := json.Marshal(Frame{
		Type:      frameType,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return frame
}
