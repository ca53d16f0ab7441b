package usecase

import (
	"context"
	"sort"
	"strings"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// ChatUseCase orchestrates the chat subsystem: room identity checks,
// session lifecycle, sends, read-marking, inbox listing and unread
// aggregation, all on top of the store adapter.
type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	rateLimiter *ratelimit.RateLimiter
}

func NewChatUseCase(chatRepo repository.ChatRepository) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		chatRepo:    chatRepo,
		rateLimiter: rateLimiter,
	}
}

// ResolveRoom derives the room id for the triple and checks that the
// requesting user is one of the two participants.
func (uc *ChatUseCase) ResolveRoom(userID, announcementID, buyerID, sellerID int64) (string, error) {
	if buyerID != userID && sellerID != userID {
		return "", errors.Forbidden("You are not a participant of this conversation", nil)
	}
	return entity.ResolveRoomID(announcementID, buyerID, sellerID), nil
}

func (uc *ChatUseCase) authorizeRoom(roomID string, userID int64) error {
	key, ok := entity.ParseRoomID(roomID)
	if !ok {
		return errors.BadRequest("Invalid room id", nil)
	}
	if !key.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant of this conversation", nil)
	}
	return nil
}

// OpenSession opens a live session for the user in the room. Snapshots
// are delivered to onSnapshot; the caller owns the returned session and
// must Close it on every exit path.
func (uc *ChatUseCase) OpenSession(ctx context.Context, userID int64, userName, roomID string, onSnapshot func([]*entity.Message)) (*ChatSession, error) {
	if err := uc.authorizeRoom(roomID, userID); err != nil {
		return nil, err
	}

	session := newChatSession(uc.chatRepo, roomID, userID, userName, onSnapshot)
	if err := session.Open(ctx); err != nil {
		return nil, err
	}

	return session, nil
}

// SendMessage appends a message outside of a live session (the REST
// path). Blank text is rejected before the store is called.
func (uc *ChatUseCase) SendMessage(ctx context.Context, userID int64, userName, roomID, text string) error {
	if err := uc.authorizeRoom(roomID, userID); err != nil {
		return err
	}

	if strings.TrimSpace(text) == "" {
		return ErrEmptySend
	}

	if allowed, waitTime := uc.rateLimiter.Allow(userID, "send_message"); !allowed {
		logger.Warn("SendMessage rate limited: user %d must wait %v", userID, waitTime)
		return errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", waitTime)
	}

	return uc.chatRepo.Append(ctx, roomID, userID, userName, text)
}

// SendViaSession sends through an open session (the WebSocket path),
// with the same rate limit as the REST path. The session enforces its
// own Live-state and blank-text guards.
func (uc *ChatUseCase) SendViaSession(ctx context.Context, session *ChatSession, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptySend
	}

	if allowed, waitTime := uc.rateLimiter.Allow(session.userID, "send_message"); !allowed {
		logger.Warn("SendViaSession rate limited: user %d must wait %v", session.userID, waitTime)
		return errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", waitTime)
	}

	return session.Send(ctx, text)
}

// MarkRoomRead marks every message addressed to the user in the room as
// read. The hosting page calls this once per view, when the room is
// opened, not on every snapshot.
func (uc *ChatUseCase) MarkRoomRead(ctx context.Context, userID int64, roomID string) error {
	if err := uc.authorizeRoom(roomID, userID); err != nil {
		return err
	}

	if allowed, waitTime := uc.rateLimiter.Allow(userID, "mark_read"); !allowed {
		logger.Warn("MarkRoomRead rate limited: user %d must wait %v", userID, waitTime)
		return errors.TooManyRequests("Rate limit exceeded", waitTime)
	}

	return uc.chatRepo.MarkRead(ctx, roomID, userID)
}

// ListRooms returns the user's inbox, most recently active room first.
// Rooms without any message yet sort last.
func (uc *ChatUseCase) ListRooms(ctx context.Context, userID int64) ([]*entity.RoomSummary, error) {
	summaries, err := uc.chatRepo.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		left, right := summaries[i].LastMessage, summaries[j].LastMessage
		if left == nil {
			return false
		}
		if right == nil {
			return true
		}
		return left.Timestamp > right.Timestamp
	})

	return summaries, nil
}

// RoomMessages is a one-shot read of the room's current messages,
// implemented as subscribe, take the first snapshot, detach.
func (uc *ChatUseCase) RoomMessages(ctx context.Context, userID int64, roomID string) ([]*entity.Message, error) {
	if err := uc.authorizeRoom(roomID, userID); err != nil {
		return nil, err
	}

	snapshots := make(chan []*entity.Message, 1)
	unsubscribe, err := uc.chatRepo.Subscribe(ctx, roomID, func(messages []*entity.Message) {
		select {
		case snapshots <- messages:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer unsubscribe()

	select {
	case messages := <-snapshots:
		return messages, nil
	case <-ctx.Done():
		return nil, errors.StoreUnavailable("Timed out waiting for room snapshot", ctx.Err())
	}
}

// SubscribeUnread starts a cross-room unread subscription for the user
// and returns its disposer.
func (uc *ChatUseCase) SubscribeUnread(ctx context.Context, userID int64, onCount func(int)) (repository.UnsubscribeFunc, error) {
	return uc.chatRepo.SubscribeUnreadTotal(ctx, userID, onCount)
}
