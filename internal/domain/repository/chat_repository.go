package repository

import (
	"context"

	"marketchat/internal/domain/entity"
)

// UnsubscribeFunc detaches a live subscription. Calling it more than
// once is a no-op. It only stops future notifications; writes already in
// flight still complete or fail on their own.
type UnsubscribeFunc func()

// ChatRepository is the adapter over the realtime store. It owns no
// business logic beyond translating these calls to store paths; all
// filtering by user or read state happens client-side on full snapshots.
type ChatRepository interface {
	// Append writes a new message with a store-assigned, insertion-ordered
	// key under the room, creating the room implicitly on first append.
	Append(ctx context.Context, roomID string, senderID int64, senderName, text string) error

	// Subscribe registers a listener for the room's full message list. The
	// initial snapshot is delivered immediately (empty if the room does not
	// exist yet), then the entire current set again on every change.
	Subscribe(ctx context.Context, roomID string, onSnapshot func([]*entity.Message)) (UnsubscribeFunc, error)

	// MarkRead flips isRead on every unread message in the room that was
	// not sent by userID, as one batched write. No-op when nothing matches.
	MarkRead(ctx context.Context, roomID string, userID int64) error

	// SubscribeUnreadTotal watches the whole room collection and recomputes
	// the unread total for userID on every change anywhere. Linear in the
	// total message count per notification; acceptable while the store
	// stays small.
	SubscribeUnreadTotal(ctx context.Context, userID int64, onCount func(int)) (UnsubscribeFunc, error)

	// ListRoomsForUser scans all rooms once and returns summaries for the
	// rooms where userID is buyer or seller. Order is unspecified; callers
	// sort for presentation.
	ListRoomsForUser(ctx context.Context, userID int64) ([]*entity.RoomSummary, error)
}
