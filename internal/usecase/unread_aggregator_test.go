package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnreadAggregator_StartAndStop(t *testing.T) {
	repo := newFakeChatRepository()
	aggregator := NewUnreadAggregator(repo)

	var counts []int
	require.NoError(t, aggregator.Start(context.Background(), 1, func(count int) {
		counts = append(counts, count)
	}))
	assert.Equal(t, int64(1), aggregator.UserID())
	require.Len(t, repo.countCallbacks, 1)

	repo.countCallbacks[0](3)
	assert.Equal(t, []int{3}, counts)

	aggregator.Stop()
	assert.Zero(t, aggregator.UserID())
	assert.Equal(t, 1, repo.unsubscribeCount())
}

func TestUnreadAggregator_IdentityChangeClosesOldSubscription(t *testing.T) {
	repo := newFakeChatRepository()
	aggregator := NewUnreadAggregator(repo)

	require.NoError(t, aggregator.Start(context.Background(), 1, func(int) {}))
	require.NoError(t, aggregator.Start(context.Background(), 2, func(int) {}))

	// Logging in as a different user must tear the old listener down, not
	// merely replace the handle.
	assert.Equal(t, 1, repo.unsubscribeCount())
	assert.Equal(t, int64(2), aggregator.UserID())
	assert.Len(t, repo.countCallbacks, 2)
}

func TestUnreadAggregator_StopIsIdempotent(t *testing.T) {
	repo := newFakeChatRepository()
	aggregator := NewUnreadAggregator(repo)

	require.NoError(t, aggregator.Start(context.Background(), 1, func(int) {}))
	aggregator.Stop()
	aggregator.Stop()

	assert.Equal(t, 1, repo.unsubscribeCount())
}
