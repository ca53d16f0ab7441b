package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

// MemoryChatRepository is an in-process realtime store with the same
// contract as the Firestore adapter: full-snapshot fan-out on every
// change, insertion-ordered message keys, batched read-marking. It backs
// unit tests and local development without Firebase credentials.
type MemoryChatRepository struct {
	mu        sync.Mutex
	rooms     map[string][]*entity.Message
	roomSubs  map[string]map[int]func([]*entity.Message)
	totalSubs map[int]totalSubscriber
	nextSubID int

	// deliverMu keeps snapshot computation and callback invocation
	// atomic, so listeners observe snapshots in the order the store
	// emits them even under concurrent writers. Lock order is deliverMu
	// before mu, never the reverse.
	deliverMu sync.Mutex
}

type totalSubscriber struct {
	userID  int64
	onCount func(int)
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		rooms:     make(map[string][]*entity.Message),
		roomSubs:  make(map[string]map[int]func([]*entity.Message)),
		totalSubs: make(map[int]totalSubscriber),
	}
}

func (r *MemoryChatRepository) Append(ctx context.Context, roomID string, senderID int64, senderName, text string) error {
	if _, ok := entity.ParseRoomID(roomID); !ok {
		return errors.BadRequest("Invalid room id", nil)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return errors.Internal("Failed to generate message id", err)
	}

	message := &entity.Message{
		ID:         id.String(),
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
		IsRead:     false,
	}

	r.mu.Lock()
	r.rooms[roomID] = append(r.rooms[roomID], message)
	r.mu.Unlock()

	r.notifyRoom(roomID)
	r.notifyTotals()
	return nil
}

func (r *MemoryChatRepository) Subscribe(ctx context.Context, roomID string, onSnapshot func([]*entity.Message)) (repository.UnsubscribeFunc, error) {
	r.deliverMu.Lock()
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	if r.roomSubs[roomID] == nil {
		r.roomSubs[roomID] = make(map[int]func([]*entity.Message))
	}
	r.roomSubs[roomID][id] = onSnapshot
	initial := r.snapshotLocked(roomID)
	r.mu.Unlock()

	// Initial snapshot is delivered before Subscribe returns, empty list
	// included when the room does not exist yet.
	onSnapshot(initial)
	r.deliverMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.roomSubs[roomID], id)
			r.mu.Unlock()
		})
	}

	return unsubscribe, nil
}

func (r *MemoryChatRepository) MarkRead(ctx context.Context, roomID string, userID int64) error {
	r.mu.Lock()
	changed := false
	for _, m := range r.rooms[roomID] {
		if m.SenderID != userID && !m.IsRead {
			m.IsRead = true
			changed = true
		}
	}
	r.mu.Unlock()

	if changed {
		r.notifyRoom(roomID)
		r.notifyTotals()
	}
	return nil
}

func (r *MemoryChatRepository) SubscribeUnreadTotal(ctx context.Context, userID int64, onCount func(int)) (repository.UnsubscribeFunc, error) {
	r.deliverMu.Lock()
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.totalSubs[id] = totalSubscriber{userID: userID, onCount: onCount}
	initial := r.unreadTotalLocked(userID)
	r.mu.Unlock()

	onCount(initial)
	r.deliverMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.totalSubs, id)
			r.mu.Unlock()
		})
	}

	return unsubscribe, nil
}

func (r *MemoryChatRepository) ListRoomsForUser(ctx context.Context, userID int64) ([]*entity.RoomSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var summaries []*entity.RoomSummary
	for roomID, messages := range r.rooms {
		key, ok := entity.ParseRoomID(roomID)
		if !ok || !key.HasParticipant(userID) {
			continue
		}

		var last *entity.Message
		if len(messages) > 0 {
			copied := *messages[len(messages)-1]
			last = &copied
		}

		summaries = append(summaries, &entity.RoomSummary{
			RoomID:         roomID,
			AnnouncementID: key.AnnouncementID,
			BuyerID:        key.BuyerID,
			SellerID:       key.SellerID,
			LastMessage:    last,
		})
	}

	return summaries, nil
}

// snapshotLocked copies the room's messages so delivered snapshots stay
// immutable once handed out.
func (r *MemoryChatRepository) snapshotLocked(roomID string) []*entity.Message {
	messages := make([]*entity.Message, 0, len(r.rooms[roomID]))
	for _, m := range r.rooms[roomID] {
		copied := *m
		messages = append(messages, &copied)
	}
	return messages
}

func (r *MemoryChatRepository) unreadTotalLocked(userID int64) int {
	total := 0
	for roomID, messages := range r.rooms {
		key, ok := entity.ParseRoomID(roomID)
		if !ok || !key.HasParticipant(userID) {
			continue
		}
		total += entity.UnreadCount(messages, userID)
	}
	return total
}

func (r *MemoryChatRepository) notifyRoom(roomID string) {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	r.mu.Lock()
	snapshot := r.snapshotLocked(roomID)
	subs := make([]func([]*entity.Message), 0, len(r.roomSubs[roomID]))
	for _, onSnapshot := range r.roomSubs[roomID] {
		subs = append(subs, onSnapshot)
	}
	r.mu.Unlock()

	for _, onSnapshot := range subs {
		onSnapshot(snapshot)
	}
}

func (r *MemoryChatRepository) notifyTotals() {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	r.mu.Lock()
	type delivery struct {
		onCount func(int)
		count   int
	}
	deliveries := make([]delivery, 0, len(r.totalSubs))
	for _, sub := range r.totalSubs {
		deliveries = append(deliveries, delivery{sub.onCount, r.unreadTotalLocked(sub.userID)})
	}
	r.mu.Unlock()

	for _, d := range deliveries {
		d.onCount(d.count)
	}
}
