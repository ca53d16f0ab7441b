package usecase

import (
	"context"
	"strings"
	"sync"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

// SessionState tracks one open conversation's lifecycle.
type SessionState int

const (
	SessionClosed SessionState = iota
	SessionSubscribing
	SessionLive
)

// ErrEmptySend is returned when a blank message is rejected before the
// store is ever called.
var ErrEmptySend = errors.New("EMPTY_SEND", "Message text cannot be empty", 400, nil)

// ChatSession is the per-room state machine: Closed -> Subscribing ->
// Live, back to Closed on Close. It holds a materialized copy of the
// room's messages, replaced wholesale on every snapshot; the store's
// snapshot is always authoritative and never merged into prior state.
type ChatSession struct {
	roomID     string
	userID     int64
	userName   string
	chatRepo   repository.ChatRepository
	onSnapshot func([]*entity.Message)

	mu          sync.Mutex
	state       SessionState
	messages    []*entity.Message
	unsubscribe repository.UnsubscribeFunc
}

func newChatSession(chatRepo repository.ChatRepository, roomID string, userID int64, userName string, onSnapshot func([]*entity.Message)) *ChatSession {
	return &ChatSession{
		roomID:     roomID,
		userID:     userID,
		userName:   userName,
		chatRepo:   chatRepo,
		onSnapshot: onSnapshot,
		state:      SessionClosed,
	}
}

// Open transitions Closed -> Subscribing and attaches the store
// listener. The first delivered snapshot promotes the session to Live.
func (s *ChatSession) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SessionClosed {
		s.mu.Unlock()
		return errors.New("ALREADY_OPEN", "Session is already open", 409, nil)
	}
	s.state = SessionSubscribing
	s.mu.Unlock()

	unsubscribe, err := s.chatRepo.Subscribe(ctx, s.roomID, s.applySnapshot)
	if err != nil {
		s.mu.Lock()
		s.state = SessionClosed
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.state == SessionClosed {
		// Closed while the subscribe call was in flight; detach right away.
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	return nil
}

func (s *ChatSession) applySnapshot(messages []*entity.Message) {
	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		return
	}
	s.state = SessionLive
	s.messages = messages
	onSnapshot := s.onSnapshot
	s.mu.Unlock()

	if onSnapshot != nil {
		onSnapshot(messages)
	}
}

// Send appends a message through the store. It requires a Live session,
// rejects blank text without touching the store, and never appends
// locally; the message appears via the next snapshot round-trip.
func (s *ChatSession) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptySend
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state != SessionLive {
		return errors.New("SESSION_NOT_LIVE", "Session is not live", 409, nil)
	}

	// The text is appended exactly as typed, untrimmed.
	return s.chatRepo.Append(ctx, s.roomID, s.userID, s.userName, text)
}

// Close detaches the store listener. It is safe to call any number of
// times; the disposer runs exactly once.
func (s *ChatSession) Close() {
	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		return
	}
	s.state = SessionClosed
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// State returns the current lifecycle state.
func (s *ChatSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the room this session is bound to.
func (s *ChatSession) RoomID() string {
	return s.roomID
}

// Messages returns a copy of the last delivered snapshot.
func (s *ChatSession) Messages() []*entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]*entity.Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}
