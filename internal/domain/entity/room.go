package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// RoomKey is the parsed form of a conversation identifier.
type RoomKey struct {
	AnnouncementID int64
	BuyerID        int64
	SellerID       int64
}

// ResolveRoomID derives the conversation identifier for an announcement
// and its buyer/seller pair. It is the single source of truth for room
// identity; nothing else may build this key by hand.
//
// The buyer/seller order in the key is significant and is NOT
// canonicalized: ResolveRoomID(a, b, s) != ResolveRoomID(a, s, b). Both
// participants must agree on which id plays which role, otherwise they
// end up in two distinct rooms. Sorting the ids here would change room
// identity for every existing conversation, so the asymmetry is kept.
func ResolveRoomID(announcementID, buyerID, sellerID int64) string {
	return fmt.Sprintf("chat_%d_%d_%d", announcementID, buyerID, sellerID)
}

// ParseRoomID is the inverse of ResolveRoomID. It reports false for keys
// that do not have the chat_{announcement}_{buyer}_{seller} shape.
func ParseRoomID(roomID string) (RoomKey, bool) {
	parts := strings.Split(roomID, "_")
	if len(parts) != 4 || parts[0] != "chat" {
		return RoomKey{}, false
	}

	announcementID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return RoomKey{}, false
	}
	buyerID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return RoomKey{}, false
	}
	sellerID, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return RoomKey{}, false
	}

	return RoomKey{
		AnnouncementID: announcementID,
		BuyerID:        buyerID,
		SellerID:       sellerID,
	}, true
}

// HasParticipant reports whether the user is the buyer or seller of the room.
func (k RoomKey) HasParticipant(userID int64) bool {
	return k.BuyerID == userID || k.SellerID == userID
}

// RoomID re-derives the string key for this room.
func (k RoomKey) RoomID() string {
	return ResolveRoomID(k.AnnouncementID, k.BuyerID, k.SellerID)
}
