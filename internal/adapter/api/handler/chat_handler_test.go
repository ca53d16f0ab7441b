package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/adapter/api"
	"marketchat/internal/adapter/repository"
	"marketchat/internal/domain/entity"
	"marketchat/internal/usecase"
)

func newTestContext(t *testing.T, method, target string, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	e.Validator = api.NewValidator()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", int64(1))
	c.Set("username", "alice")
	return c, rec
}

func TestChatHandler_ResolveRoom(t *testing.T) {
	repo := repository.NewMemoryChatRepository()
	h := NewChatHandler(usecase.NewChatUseCase(repo))

	c, rec := newTestContext(t, http.MethodGet, "/v1/chats/room-id?announcement_id=42&buyer_id=1&seller_id=2", "")
	require.NoError(t, h.ResolveRoom(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chat_42_1_2")
}

func TestChatHandler_ResolveRoom_requiresParticipant(t *testing.T) {
	repo := repository.NewMemoryChatRepository()
	h := NewChatHandler(usecase.NewChatUseCase(repo))

	// Authenticated user 1 is neither buyer nor seller here.
	c, rec := newTestContext(t, http.MethodGet, "/v1/chats/room-id?announcement_id=42&buyer_id=2&seller_id=3", "")
	require.NoError(t, h.ResolveRoom(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChatHandler_ResolveRoom_missingParams(t *testing.T) {
	repo := repository.NewMemoryChatRepository()
	h := NewChatHandler(usecase.NewChatUseCase(repo))

	c, rec := newTestContext(t, http.MethodGet, "/v1/chats/room-id?announcement_id=42", "")
	require.NoError(t, h.ResolveRoom(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandler_SendMessageAndGetRoomMessages(t *testing.T) {
	repo := repository.NewMemoryChatRepository()
	h := NewChatHandler(usecase.NewChatUseCase(repo))
	roomID := entity.ResolveRoomID(42, 1, 2)

	c, rec := newTestContext(t, http.MethodPost, "/v1/chats/"+roomID+"/messages", `{"text":"hello"}`)
	c.SetPath("/v1/chats/:id/messages")
	c.SetParamNames("id")
	c.SetParamValues(roomID)
	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newTestContext(t, http.MethodGet, "/v1/chats/"+roomID+"/messages", "")
	c.SetPath("/v1/chats/:id/messages")
	c.SetParamNames("id")
	c.SetParamValues(roomID)
	require.NoError(t, h.GetRoomMessages(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello")
	assert.Contains(t, rec.Body.String(), `"sender_id":1`)
}

func TestChatHandler_SendMessage_blankText(t *testing.T) {
	repo := repository.NewMemoryChatRepository()
	h := NewChatHandler(usecase.NewChatUseCase(repo))
	roomID := entity.ResolveRoomID(42, 1, 2)

	c, rec := newTestContext(t, http.MethodPost, "/v1/chats/"+roomID+"/messages", `{"text":"   "}`)
	c.SetPath("/v1/chats/:id/messages")
	c.SetParamNames("id")
	c.SetParamValues(roomID)
	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMPTY_SEND")
}

func TestChatHandler_MarkRoomRead(t *testing.T) {
	repo := repository.NewMemoryChatRepository()
	h := NewChatHandler(usecase.NewChatUseCase(repo))
	roomID := entity.ResolveRoomID(42, 1, 2)

	// Message from the other participant, then user 1 marks the room.
	require.NoError(t, repo.Append(context.Background(), roomID, 2, "bob", "hi"))

	c, rec := newTestContext(t, http.MethodPut, "/v1/chats/"+roomID+"/read", "")
	c.SetPath("/v1/chats/:id/read")
	c.SetParamNames("id")
	c.SetParamValues(roomID)
	require.NoError(t, h.MarkRoomRead(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	summaries, err := repo.ListRoomsForUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].LastMessage.IsRead)
}

func TestChatHandler_ListRooms(t *testing.T) {
	repo := repository.NewMemoryChatRepository()
	h := NewChatHandler(usecase.NewChatUseCase(repo))

	require.NoError(t, repo.Append(context.Background(), entity.ResolveRoomID(10, 1, 2), 2, "bob", "older"))
	require.NoError(t, repo.Append(context.Background(), entity.ResolveRoomID(11, 3, 1), 3, "carol", "newer"))

	c, rec := newTestContext(t, http.MethodGet, "/v1/chats", "")
	require.NoError(t, h.ListRooms(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []*entity.RoomSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	assert.GreaterOrEqual(t, envelope.Data[0].LastMessage.Timestamp, envelope.Data[1].LastMessage.Timestamp,
		"inbox must be ordered by last activity, newest first")
}
