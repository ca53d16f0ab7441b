package usecase

import (
	"context"
	"sync"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
)

type appendCall struct {
	roomID     string
	senderID   int64
	senderName string
	text       string
}

// fakeChatRepository is a controllable stand-in for the store adapter:
// tests capture the registered callbacks and push snapshots by hand.
type fakeChatRepository struct {
	mu sync.Mutex

	appends      []appendCall
	appendErr    error
	subscribeErr error

	roomCallbacks  map[string][]func([]*entity.Message)
	countCallbacks []func(int)
	unsubCalls     int
	markReadCalls  []int64
	summaries      []*entity.RoomSummary
}

func newFakeChatRepository() *fakeChatRepository {
	return &fakeChatRepository{
		roomCallbacks: make(map[string][]func([]*entity.Message)),
	}
}

func (f *fakeChatRepository) Append(ctx context.Context, roomID string, senderID int64, senderName, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appends = append(f.appends, appendCall{roomID, senderID, senderName, text})
	return nil
}

func (f *fakeChatRepository) Subscribe(ctx context.Context, roomID string, onSnapshot func([]*entity.Message)) (repository.UnsubscribeFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.roomCallbacks[roomID] = append(f.roomCallbacks[roomID], onSnapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.unsubCalls++
			f.mu.Unlock()
		})
	}, nil
}

func (f *fakeChatRepository) MarkRead(ctx context.Context, roomID string, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadCalls = append(f.markReadCalls, userID)
	return nil
}

func (f *fakeChatRepository) SubscribeUnreadTotal(ctx context.Context, userID int64, onCount func(int)) (repository.UnsubscribeFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCallbacks = append(f.countCallbacks, onCount)

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.unsubCalls++
			f.mu.Unlock()
		})
	}, nil
}

func (f *fakeChatRepository) ListRoomsForUser(ctx context.Context, userID int64) ([]*entity.RoomSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaries, nil
}

// pushSnapshot delivers a snapshot to every listener of the room.
func (f *fakeChatRepository) pushSnapshot(roomID string, messages []*entity.Message) {
	f.mu.Lock()
	callbacks := append([]func([]*entity.Message){}, f.roomCallbacks[roomID]...)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(messages)
	}
}

func (f *fakeChatRepository) appendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appends)
}

func (f *fakeChatRepository) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubCalls
}
