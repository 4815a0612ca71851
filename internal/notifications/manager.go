package notifications

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// ErrNotConnected means the user has no open connection.
var ErrNotConnected = errors.New("user not connected")

// Connection represents a WebSocket client connection
type Connection struct {
	ID     string
	UserID string

	conn      *websocket.Conn
	send      chan Message
	closeOnce sync.Once
}

func (c *Connection) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Manager tracks connections per user and pushes approval changes to them
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	wg          sync.WaitGroup
}

// NewManager creates a new WebSocket manager. An empty origin list or "*"
// accepts any origin.
func NewManager(logger *zap.Logger, allowedOrigins []string) *Manager {
	return &Manager{
		connections: make(map[string]*Connection),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 {
					return true
				}
				return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// HandleConnection upgrades the request and registers the connection for userID
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:     uuid.New().String(),
		UserID: userID,
		conn:   conn,
		send:   make(chan Message, sendBuffer),
	}
	connection.send <- Message{
		Type:         MessageTypeStatus,
		ConnectionID: connection.ID,
		Timestamp:    time.Now(),
	}

	m.mu.Lock()
	m.connections[connection.ID] = connection
	m.mu.Unlock()

	m.logger.Debug("Connection registered",
		zap.String("connection_id", connection.ID),
		zap.String("user_id", userID))

	m.wg.Add(2)
	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

// readPump drains client frames so control messages are handled
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		m.unregister(conn)
		conn.conn.Close()
		m.wg.Done()
	}()

	conn.conn.SetReadLimit(maxMessageSize)
	conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Debug("Connection read failed", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps messages from the send queue to the WebSocket connection
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.conn.Close()
		m.wg.Done()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) unregister(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[conn.ID]; ok {
		delete(m.connections, conn.ID)
		conn.closeSend()
		m.logger.Debug("Connection unregistered",
			zap.String("connection_id", conn.ID),
			zap.String("user_id", conn.UserID))
	}
}

// SendToUser queues a message on every connection of the user
func (m *Manager) SendToUser(userID string, message Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sent := 0
	for _, conn := range m.connections {
		if conn.UserID != userID {
			continue
		}
		select {
		case conn.send <- message:
			sent++
		default:
			m.logger.Warn("Connection buffer full, dropping message", zap.String("connection_id", conn.ID))
		}
	}

	if sent == 0 {
		return ErrNotConnected
	}
	return nil
}

// ApprovalChanged pushes the new approval status to the user's connections
func (m *Manager) ApprovalChanged(userID string, approval onboarding.ApprovalStatus) {
	err := m.SendToUser(userID, Message{
		Type:           MessageTypeApproval,
		ApprovalStatus: approval,
		Timestamp:      time.Now(),
	})
	if err != nil {
		m.logger.Debug("Approval change not delivered", zap.String("user_id", userID), zap.Error(err))
	}
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Close closes all connections and waits for their pumps to exit
func (m *Manager) Close() {
	m.mu.Lock()
	for id, conn := range m.connections {
		delete(m.connections, id)
		conn.closeSend()
	}
	m.mu.Unlock()

	m.wg.Wait()
}
