package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
	"marketchat/internal/adapter/api/middleware"
)

// SetupChatRouter registers the REST chat surface (excluding WebSocket).
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.GET("/room-id", chatHandler.ResolveRoom)          // GET /v1/chats/room-id - Resolve room for a listing triple
	chatGroup.GET("", chatHandler.ListRooms)                    // GET /v1/chats - Inbox summaries
	chatGroup.GET("/:id/messages", chatHandler.GetRoomMessages) // GET /v1/chats/:id/messages - One-shot room read
	chatGroup.POST("/:id/messages", chatHandler.SendMessage)    // POST /v1/chats/:id/messages - Send message
	chatGroup.PUT("/:id/read", chatHandler.MarkRoomRead)        // PUT /v1/chats/:id/read - Mark room as read
}
