package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/domain/entity"
)

func TestNewFrame_roundTrip(t *testing.T) {
	raw := NewFrame(FrameTypeSnapshot, SnapshotData{
		RoomID: "chat_42_1_2",
		Messages: []*entity.Message{
			{ID: "m1", SenderID: 1, SenderName: "alice", Text: "hello", Timestamp: 1700000000000},
		},
	})

	var frame Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, FrameTypeSnapshot, frame.Type)
	assert.NotEmpty(t, frame.Timestamp)

	var data SnapshotData
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, "chat_42_1_2", data.RoomID)
	require.Len(t, data.Messages, 1)
	assert.Equal(t, "hello", data.Messages[0].Text)
	assert.False(t, data.Messages[0].IsRead)
}

func TestNewFrame_unreadCount(t *testing.T) {
	raw := NewFrame(FrameTypeUnreadCount, UnreadCountData{Count: 3})

	var frame Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, FrameTypeUnreadCount, frame.Type)

	var data UnreadCountData
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, 3, data.Count)
}
