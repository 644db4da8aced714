package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"carbon-market/mrv-backend/internal/notifications"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

// PreferenceSource answers whether a verifier wants a given event type
// pushed. A nil source delivers everything.
type PreferenceSource interface {
	WantsEvent(ctx context.Context, verifierID uuid.UUID, eventType string) bool
}

// Manager pushes decision events to connected reviewer clients
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	broadcast   chan notifications.DecisionEvent
	prefs       PreferenceSource
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// Connection represents one reviewer's WebSocket session
type Connection struct {
	ID         string
	VerifierID uuid.UUID
	Conn       *websocket.Conn
	Send       chan notifications.DecisionEvent
}

// NewManager creates a WebSocket manager and starts its broadcast loop
func NewManager(prefs PreferenceSource, logger *zap.Logger) *Manager {
	m := &Manager{
		connections: make(map[string]*Connection),
		broadcast:   make(chan notifications.DecisionEvent, 256),
		prefs:       prefs,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checks belong to the fronting gateway
				return true
			},
		},
	}
	go m.run()
	return m
}

// NotifyDecision implements notifications.Notifier
func (m *Manager) NotifyDecision(ctx context.Context, event notifications.DecisionEvent) {
	select {
	case m.broadcast <- event:
	default:
		m.logger.Warn("Dropping decision event, broadcast buffer full",
			zap.String("report_id", event.ReportID.String()))
	}
}

// HandleConnection upgrades an HTTP request to a WebSocket session
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, verifierID uuid.UUID) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	connection := &Connection{
		ID:         uuid.New().String(),
		VerifierID: verifierID,
		Conn:       conn,
		Send:       make(chan notifications.DecisionEvent, sendBufferSize),
	}

	m.mu.Lock()
	m.connections[connection.ID] = connection
	m.mu.Unlock()

	go m.writePump(connection)
	return nil
}

func (m *Manager) run() {
	ctx := context.Background()
	for event := range m.broadcast {
		m.mu.RLock()
		for _, conn := range m.connections {
			if m.prefs != nil && !m.prefs.WantsEvent(ctx, conn.VerifierID, string(event.Type)) {
				continue
			}
			select {
			case conn.Send <- event:
			default:
				// Slow consumer, skip rather than block the loop
			}
		}
		m.mu.RUnlock()
	}
}

func (m *Manager) writePump(c *Connection) {
	defer func() {
		m.mu.Lock()
		delete(m.connections, c.ID)
		m.mu.Unlock()
		c.Conn.Close()
	}()

	for event := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteJSON(event); err != nil {
			m.logger.Debug("WebSocket write failed, closing connection",
				zap.String("connection_id", c.ID),
				zap.Error(err))
			return
		}
	}
}
