package usecase

import (
	"context"
	"sync"

	"marketchat/internal/domain/repository"
)

// UnreadAggregator owns the single cross-room unread subscription for an
// authenticated session. Start for a new user closes the previous
// subscription explicitly; a listener bound to a stale identity must
// never keep recomputing in the background.
type UnreadAggregator struct {
	chatRepo repository.ChatRepository

	mu          sync.Mutex
	userID      int64
	unsubscribe repository.UnsubscribeFunc
}

func NewUnreadAggregator(chatRepo repository.ChatRepository) *UnreadAggregator {
	return &UnreadAggregator{chatRepo: chatRepo}
}

// Start subscribes the aggregator for userID, emitting the current
// unread total to onCount on every store change. Any prior subscription
// is torn down first.
func (a *UnreadAggregator) Start(ctx context.Context, userID int64, onCount func(int)) error {
	a.Stop()

	unsubscribe, err := a.chatRepo.SubscribeUnreadTotal(ctx, userID, onCount)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.userID = userID
	a.unsubscribe = unsubscribe
	a.mu.Unlock()

	return nil
}

// Stop detaches the current subscription, if any. Idempotent.
func (a *UnreadAggregator) Stop() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.userID = 0
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// UserID returns the identity the aggregator is currently bound to, or
// zero when stopped.
func (a *UnreadAggregator) UserID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID
}
