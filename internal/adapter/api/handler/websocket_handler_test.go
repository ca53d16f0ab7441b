package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/adapter/repository"
	"marketchat/internal/domain/entity"
	ws "marketchat/internal/infrastructure/websocket"
	"marketchat/internal/usecase"
)

func TestWebSocketHandler_DisconnectDetachesBeforeUnregister(t *testing.T) {
	repo := repository.NewMemoryChatRepository()
	chatUseCase := usecase.NewChatUseCase(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	manager := ws.NewManager()
	manager.Start(ctx)

	h := NewWebSocketHandler(manager, chatUseCase, nil)
	client := &ws.Client{
		UserID:   1,
		UserName: "alice",
		Send:     make(chan []byte, 256),
	}
	state := &connState{
		handler:  h,
		client:   client,
		sessions: make(map[string]*usecase.ChatSession),
	}

	manager.Register <- client

	roomID := entity.ResolveRoomID(42, 1, 2)
	state.joinRoom(roomID)
	require.Len(t, state.sessions, 1)

	stopUnread, err := chatUseCase.SubscribeUnread(context.Background(), 1, func(count int) {
		manager.SendToUser(1, ws.NewFrame(ws.FrameTypeUnreadCount, ws.UnreadCountData{Count: count}))
	})
	require.NoError(t, err)
	state.stopUnread = stopUnread

	// The disconnect path: everything that writes to Send detaches first,
	// then the manager is told, which closes the channel.
	state.teardown()
	manager.Unregister <- client

	// Store activity after the disconnect must not reach the dead
	// connection: a callback still attached at this point would send on
	// the closed channel and panic.
	require.NoError(t, repo.Append(context.Background(), roomID, 2, "bob", "late"))

	deadline := time.After(time.Second)
	for closed := false; !closed; {
		select {
		case _, ok := <-client.Send:
			closed = !ok
		case <-deadline:
			t.Fatal("send channel was not closed on unregister")
		}
	}

	assert.Empty(t, state.sessions)
}
