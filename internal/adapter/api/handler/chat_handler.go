package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"marketchat/internal/usecase"
	"marketchat/pkg/errors"
	"marketchat/pkg/response"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// ResolveRoom derives the room id for an announcement/buyer/seller
// triple supplied by the hosting page.
func (h *ChatHandler) ResolveRoom(c echo.Context) error {
	userID := c.Get("user_id").(int64)

	announcementID, err := queryInt64(c, "announcement_id")
	if err != nil {
		return response.Error(c, err)
	}
	buyerID, err := queryInt64(c, "buyer_id")
	if err != nil {
		return response.Error(c, err)
	}
	sellerID, err := queryInt64(c, "seller_id")
	if err != nil {
		return response.Error(c, err)
	}

	roomID, err := h.chatUseCase.ResolveRoom(userID, announcementID, buyerID, sellerID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"room_id": roomID})
}

// ListRooms returns the user's inbox, most recently active first.
func (h *ChatHandler) ListRooms(c echo.Context) error {
	userID := c.Get("user_id").(int64)

	summaries, err := h.chatUseCase.ListRooms(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, summaries)
}

// GetRoomMessages returns the room's current message list once, without
// keeping a subscription open.
func (h *ChatHandler) GetRoomMessages(c echo.Context) error {
	userID := c.Get("user_id").(int64)
	roomID := c.Param("id")

	messages, err := h.chatUseCase.RoomMessages(c.Request().Context(), userID, roomID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

// SendMessage appends a message to the room.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("user_id").(int64)
	userName := c.Get("username").(string)
	roomID := c.Param("id")

	if err := h.chatUseCase.SendMessage(c.Request().Context(), userID, userName, roomID, req.Text); err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, map[string]string{"status": "sent"})
}

// MarkRoomRead marks every message addressed to the user in the room as
// read. Called by the hosting page when the room is brought into view.
func (h *ChatHandler) MarkRoomRead(c echo.Context) error {
	userID := c.Get("user_id").(int64)
	roomID := c.Param("id")

	if err := h.chatUseCase.MarkRoomRead(c.Request().Context(), userID, roomID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "read"})
}

func queryInt64(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, errors.BadRequest(name+" is required", nil)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, errors.BadRequest(name+" must be a non-negative integer", err)
	}
	return value, nil
}
