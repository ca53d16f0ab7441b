package entity

// Message is one chat message inside a room. The ID is the store key
// assigned on append; keys sort in insertion order, so message ordering
// follows the store-assigned key, not the client-observed timestamp.
type Message struct {
	ID         string `json:"id" firestore:"id"`
	SenderID   int64  `json:"sender_id" firestore:"senderId"`
	SenderName string `json:"sender_name" firestore:"senderName"`
	Text       string `json:"text" firestore:"text"`
	Timestamp  int64  `json:"timestamp" firestore:"timestamp"` // milliseconds since epoch, set at send time
	IsRead     bool   `json:"is_read" firestore:"isRead"`
}

// RoomSummary is a derived inbox entry: the room key fields plus the
// last-appended message. It is never persisted as such.
type RoomSummary struct {
	RoomID         string   `json:"room_id"`
	AnnouncementID int64    `json:"announcement_id"`
	BuyerID        int64    `json:"buyer_id"`
	SellerID       int64    `json:"seller_id"`
	LastMessage    *Message `json:"last_message,omitempty"`
}

// UnreadCount returns how many messages are addressed to userID and not
// yet read. A user's own messages never count toward their total.
func UnreadCount(messages []*Message, userID int64) int {
	count := 0
	for _, m := range messages {
		if m.SenderID != userID && !m.IsRead {
			count++
		}
	}
	return count
}

// UnreadIDs returns the ids of messages that MarkRead should flip for
// userID: unread messages sent by the other participant. Messages the
// user sent themselves are excluded, and already-read messages are never
// revisited, which keeps isRead monotone.
func UnreadIDs(messages []*Message, userID int64) []string {
	var ids []string
	for _, m := range messages {
		if m.SenderID != userID && !m.IsRead {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// LastMessage returns the message with the greatest store key, or nil
// for an empty room.
func LastMessage(messages []*Message) *Message {
	var last *Message
	for _, m := range messages {
		if last == nil || m.ID > last.ID {
			last = m
		}
	}
	return last
}
