package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/domain/entity"
	ws "marketchat/internal/infrastructure/websocket"
	"marketchat/internal/usecase"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // restrict in production
	},
}

type WebSocketHandler struct {
	wsManager      *ws.Manager
	chatUseCase    *usecase.ChatUseCase
	authMiddleware *middleware.AuthMiddleware
}

func NewWebSocketHandler(wsManager *ws.Manager, chatUseCase *usecase.ChatUseCase, authMiddleware *middleware.AuthMiddleware) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		chatUseCase:    chatUseCase,
		authMiddleware: authMiddleware,
	}
}

// connState is everything one connection owns: its open sessions and the
// unread subscription. All of it is torn down when the connection goes
// away, whatever the exit path.
type connState struct {
	handler *WebSocketHandler
	client  *ws.Client

	mu         sync.Mutex
	sessions   map[string]*usecase.ChatSession
	stopUnread func()
}

// HandleWebSocket authenticates the connection (token query parameter,
// since browsers cannot set headers on WebSocket upgrades), registers it
// and starts the pumps.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return errors.Unauthorized("Authentication required", nil)
	}

	identity, err := h.authMiddleware.IdentityFromToken(c.Request().Context(), token)
	if err != nil {
		return errors.Unauthorized("Invalid or expired token", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID:   identity.UserID,
		UserName: identity.Username,
		Conn:     conn,
		Send:     make(chan []byte, 256),
	}

	state := &connState{
		handler:  h,
		client:   client,
		sessions: make(map[string]*usecase.ChatSession),
	}

	h.wsManager.Register <- client

	// One unread subscription per authenticated connection, for the life
	// of the connection.
	stopUnread, err := h.chatUseCase.SubscribeUnread(context.Background(), identity.UserID, func(count int) {
		h.wsManager.SendToUser(identity.UserID, ws.NewFrame(ws.FrameTypeUnreadCount, ws.UnreadCountData{Count: count}))
	})
	if err != nil {
		logger.Error("Failed to start unread subscription for user %d: %v", identity.UserID, err)
	} else {
		state.stopUnread = stopUnread
	}

	go client.WritePump()
	go func() {
		client.ReadPump(state.handleFrame)
		// Sessions and the unread subscription must detach before the
		// manager closes the send channel; a snapshot callback still
		// live at that point would send on a closed channel.
		state.teardown()
		h.wsManager.Unregister <- client
	}()

	return nil
}

func (s *connState) handleFrame(client *ws.Client, raw []byte) {
	var frame ws.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		logger.Warn("Malformed frame from user %d: %v", client.UserID, err)
		s.sendError("Invalid frame format")
		return
	}

	switch frame.Type {
	case ws.FrameTypePing:
		s.send(ws.NewFrame(ws.FrameTypePong, nil))

	case ws.FrameTypeJoinRoom:
		var data ws.JoinRoomData
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.RoomID == "" {
			s.sendError("Invalid join_room data")
			return
		}
		s.joinRoom(data.RoomID)

	case ws.FrameTypeLeaveRoom:
		var data ws.LeaveRoomData
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.RoomID == "" {
			s.sendError("Invalid leave_room data")
			return
		}
		s.leaveRoom(data.RoomID)

	case ws.FrameTypeSendMessage:
		var data ws.SendMessageData
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.RoomID == "" {
			s.sendError("Invalid send_message data")
			return
		}
		s.sendMessage(data.RoomID, data.Text)

	case ws.FrameTypeMarkRead:
		var data ws.MarkReadData
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.RoomID == "" {
			s.sendError("Invalid mark_read data")
			return
		}
		if err := s.handler.chatUseCase.MarkRoomRead(context.Background(), s.client.UserID, data.RoomID); err != nil {
			s.sendError(err.Error())
		}

	default:
		s.sendError("Unknown frame type")
	}
}

func (s *connState) joinRoom(roomID string) {
	s.mu.Lock()
	if _, open := s.sessions[roomID]; open {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	session, err := s.handler.chatUseCase.OpenSession(context.Background(), s.client.UserID, s.client.UserName, roomID, func(messages []*entity.Message) {
		s.send(ws.NewFrame(ws.FrameTypeSnapshot, ws.SnapshotData{
			RoomID:   roomID,
			Messages: messages,
		}))
	})
	if err != nil {
		s.sendError(err.Error())
		return
	}

	s.mu.Lock()
	s.sessions[roomID] = session
	s.mu.Unlock()
}

func (s *connState) leaveRoom(roomID string) {
	s.mu.Lock()
	session, open := s.sessions[roomID]
	delete(s.sessions, roomID)
	s.mu.Unlock()

	if open {
		session.Close()
	}
}

func (s *connState) sendMessage(roomID, text string) {
	s.mu.Lock()
	session, open := s.sessions[roomID]
	s.mu.Unlock()

	if !open {
		s.sendError("Join the room before sending")
		return
	}

	if err := s.handler.chatUseCase.SendViaSession(context.Background(), session, text); err != nil {
		s.sendError(err.Error())
	}
}

// teardown closes every open session and the unread subscription. Runs
// once, when the read pump exits.
func (s *connState) teardown() {
	s.mu.Lock()
	sessions := make([]*usecase.ChatSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessions = make(map[string]*usecase.ChatSession)
	stopUnread := s.stopUnread
	s.stopUnread = nil
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
	if stopUnread != nil {
		stopUnread()
	}
}

func (s *connState) send(frame []byte) {
	select {
	case s.client.Send <- frame:
	default:
		logger.Warn("Dropping frame for slow client of user %d", s.client.UserID)
	}
}

func (s *connState) sendError(message string) {
	s.send(ws.NewFrame(ws.FrameTypeError, ws.ErrorData{Message: message}))
}
