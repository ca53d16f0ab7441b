package websocket

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"marketchat/pkg/logger"
)

// Client is one WebSocket connection. A user may hold several at once
// (two browser tabs on the same room are legal; each converges on the
// store's snapshots independently).
type Client struct {
	UserID   int64
	UserName string
	Conn     *websocket.Conn
	Send     chan []byte
}

// Manager tracks all active connections by user.
type Manager struct {
	clients    map[int64]map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[int64]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the manager's main loop in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				if m.clients[client.UserID] == nil {
					m.clients[client.UserID] = make(map[*Client]struct{})
				}
				m.clients[client.UserID][client] = struct{}{}
				m.mutex.Unlock()
				logger.Info("Client registered: user %d", client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				if set, ok := m.clients[client.UserID]; ok {
					if _, ok := set[client]; ok {
						delete(set, client)
						close(client.Send)
						if len(set) == 0 {
							delete(m.clients, client.UserID)
						}
					}
				}
				m.mutex.Unlock()
				logger.Info("Client unregistered: user %d", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// SendToUser delivers a frame to every connection the user holds.
func (m *Manager) SendToUser(userID int64, message []byte) {
	m.mutex.RLock()
	clients := make([]*Client, 0, len(m.clients[userID]))
	for client := range m.clients[userID] {
		clients = append(clients, client)
	}
	m.mutex.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- message:
		default:
			logger.Warn("Dropping frame for slow client of user %d", userID)
		}
	}
}

// ReadPump reads frames from the connection and hands each to handle.
// It returns when the connection goes away. The caller unregisters the
// client afterwards, once everything that writes to Send is detached;
// unregistering closes Send.
func (c *Client) ReadPump(handle func(*Client, []byte)) {
	defer c.Conn.Close()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("Read error for user %d: %v", c.UserID, err)
			}
			break
		}

		handle(c, message)
	}
}

// WritePump sends frames from the Send channel to the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Error("Write error for user %d: %v", c.UserID, err)
			return
		}
	}
}
