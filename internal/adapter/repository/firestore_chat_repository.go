package repository

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// Messages live under chats/{roomId}/messages, mirroring the realtime
// store tree the web client reads. Message document ids are UUIDv7, so
// the store key order is the insertion order of appends.
type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) roomRef(roomID string) *firestore.DocumentRef {
	return r.client.Collection("chats").Doc(roomID)
}

func (r *firestoreChatRepository) Append(ctx context.Context, roomID string, senderID int64, senderName, text string) error {
	key, ok := entity.ParseRoomID(roomID)
	if !ok {
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

	// One batch: the message plus the room document, so the room
	// materializes on first append without an explicit creation call.
	roomRef := r.roomRef(roomID)
	batch := r.client.Batch()
	batch.Set(roomRef, map[string]interface{}{
		"announcementId": key.AnnouncementID,
		"buyerId":        key.BuyerID,
		"sellerId":       key.SellerID,
		"lastMessage":    message,
		"lastMessageAt":  message.Timestamp,
	}, firestore.MergeAll)
	batch.Set(roomRef.Collection("messages").Doc(message.ID), message)

	if _, err := batch.Commit(ctx); err != nil {
		return errors.StoreUnavailable("Failed to append message", err)
	}

	return nil
}

func (r *firestoreChatRepository) Subscribe(ctx context.Context, roomID string, onSnapshot func([]*entity.Message)) (repository.UnsubscribeFunc, error) {
	subCtx, cancel := context.WithCancel(ctx)

	query := r.roomRef(roomID).Collection("messages").OrderBy(firestore.DocumentID, firestore.Asc)
	snapshots := query.Snapshots(subCtx)

	go func() {
		defer snapshots.Stop()

		for {
			snap, err := snapshots.Next()
			if err != nil {
				if subCtx.Err() == nil && status.Code(err) != codes.Canceled {
					logger.Error("Snapshot stream for room %s failed: %v", roomID, err)
				}
				return
			}

			messages, err := decodeMessageDocs(snap)
			if err != nil {
				// Fail closed: a snapshot with undecodable documents is
				// dropped rather than delivered partially typed.
				logger.Error("Dropping malformed snapshot for room %s: %v", roomID, err)
				continue
			}

			onSnapshot(messages)
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(cancel)
	}

	return unsubscribe, nil
}

func decodeMessageDocs(snap *firestore.QuerySnapshot) ([]*entity.Message, error) {
	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, err
	}

	messages := make([]*entity.Message, 0, len(docs))
	for _, doc := range docs {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, err
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}

	return messages, nil
}

func (r *firestoreChatRepository) MarkRead(ctx context.Context, roomID string, userID int64) error {
	docs, err := r.roomRef(roomID).Collection("messages").Documents(ctx).GetAll()
	if err != nil {
		return errors.StoreUnavailable("Failed to read room messages", err)
	}

	messages := make([]*entity.Message, 0, len(docs))
	for _, doc := range docs {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return errors.StoreUnavailable("Failed to parse message data", err)
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}

	targets := entity.UnreadIDs(messages, userID)
	if len(targets) == 0 {
		return nil
	}

	// A single batched write so other subscribers never observe a
	// half-marked room.
	batch := r.client.Batch()
	for _, id := range targets {
		batch.Update(r.roomRef(roomID).Collection("messages").Doc(id), []firestore.Update{
			{Path: "isRead", Value: true},
		})
	}

	if _, err := batch.Commit(ctx); err != nil {
		return errors.StoreUnavailable("Failed to mark messages read", err)
	}

	return nil
}

func (r *firestoreChatRepository) SubscribeUnreadTotal(ctx context.Context, userID int64, onCount func(int)) (repository.UnsubscribeFunc, error) {
	subCtx, cancel := context.WithCancel(ctx)

	// Collection-group subscription over every message in every room.
	// The count is recomputed from the full snapshot each time, which is
	// linear in the total message count per notification.
	snapshots := r.client.CollectionGroup("messages").Snapshots(subCtx)

	go func() {
		defer snapshots.Stop()

		for {
			snap, err := snapshots.Next()
			if err != nil {
				if subCtx.Err() == nil && status.Code(err) != codes.Canceled {
					logger.Error("Unread snapshot stream for user %d failed: %v", userID, err)
				}
				return
			}

			count, err := countUnread(snap, userID)
			if err != nil {
				logger.Error("Dropping malformed unread snapshot for user %d: %v", userID, err)
				continue
			}

			onCount(count)
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(cancel)
	}

	return unsubscribe, nil
}

func countUnread(snap *firestore.QuerySnapshot, userID int64) (int, error) {
	docs, err := snap.Documents.GetAll()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, doc := range docs {
		// Room membership comes from the parent room key, not a store query.
		roomDoc := doc.Ref.Parent.Parent
		if roomDoc == nil {
			continue
		}
		key, ok := entity.ParseRoomID(roomDoc.ID)
		if !ok || !key.HasParticipant(userID) {
			continue
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return 0, err
		}
		if message.SenderID != userID && !message.IsRead {
			count++
		}
	}

	return count, nil
}

func (r *firestoreChatRepository) ListRoomsForUser(ctx context.Context, userID int64) ([]*entity.RoomSummary, error) {
	// Full scan, filtered client-side; the adapter does not lean on store
	// queries for user membership.
	docs, err := r.client.Collection("chats").Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to fetch rooms", err)
	}

	var summaries []*entity.RoomSummary
	for _, doc := range docs {
		key, ok := entity.ParseRoomID(doc.Ref.ID)
		if !ok || !key.HasParticipant(userID) {
			continue
		}

		var room struct {
			LastMessage *entity.Message `firestore:"lastMessage"`
		}
		if err := doc.DataTo(&room); err != nil {
			logger.Warn("Skipping room %s with malformed data: %v", doc.Ref.ID, err)
			continue
		}

		summaries = append(summaries, &entity.RoomSummary{
			RoomID:         doc.Ref.ID,
			AnnouncementID: key.AnnouncementID,
			BuyerID:        key.BuyerID,
			SellerID:       key.SellerID,
			LastMessage:    room.LastMessage,
		})
	}

	return summaries, nil
}
