package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRoomID(t *testing.T) {
	assert.Equal(t, "chat_42_1_2", ResolveRoomID(42, 1, 2))
	assert.Equal(t, "chat_0_0_0", ResolveRoomID(0, 0, 0))
}

func TestResolveRoomID_deterministic(t *testing.T) {
	first := ResolveRoomID(7, 13, 99)
	second := ResolveRoomID(7, 13, 99)
	assert.Equal(t, first, second)
}

func TestResolveRoomID_roleOrderIsSignificant(t *testing.T) {
	// Swapping buyer and seller yields a different room. Both sides of a
	// conversation must agree on the roles; the resolver does not sort.
	assert.NotEqual(t, ResolveRoomID(42, 1, 2), ResolveRoomID(42, 2, 1))
}

func TestParseRoomID(t *testing.T) {
	key, ok := ParseRoomID("chat_42_1_2")
	assert.True(t, ok)
	assert.Equal(t, RoomKey{AnnouncementID: 42, BuyerID: 1, SellerID: 2}, key)
	assert.Equal(t, "chat_42_1_2", key.RoomID())
}

func TestParseRoomID_rejectsMalformedKeys(t *testing.T) {
	cases := []string{
		"",
		"chat",
		"chat_42_1",
		"chat_42_1_2_3",
		"room_42_1_2",
		"chat_x_1_2",
		"chat_42_y_2",
		"chat_42_1_z",
	}
	for _, roomID := range cases {
		_, ok := ParseRoomID(roomID)
		assert.Falsef(t, ok, "expected %q to be rejected", roomID)
	}
}

func TestRoomKey_HasParticipant(t *testing.T) {
	key := RoomKey{AnnouncementID: 42, BuyerID: 1, SellerID: 2}
	assert.True(t, key.HasParticipant(1))
	assert.True(t, key.HasParticipant(2))
	assert.False(t, key.HasParticipant(3))
}
