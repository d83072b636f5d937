package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/broadcast"
)

// ConnectionManager manages WebSocket connections for live sessions. Each
// connection bridges one broadcast subscriber to one socket; the hub does
// the fan-out and audience scoping, the manager only moves bytes.
type ConnectionManager struct {
	sessionConnections map[uuid.UUID]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	// onDisconnect is invoked with the participant ID when a participant
	// connection drops. Host connections pass through with ok=false.
	onDisconnect func(participantID uuid.UUID)
}

// Connection represents a WebSocket connection to a client.
type Connection struct {
	ID        string
	PartyID   uuid.UUID
	SessionID uuid.UUID
	Host      bool
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	sub *broadcast.Subscriber

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig, onDisconnect func(participantID uuid.UUID)) *ConnectionManager {
	return &ConnectionManager{
		sessionConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:       config,
		onDisconnect: onDisconnect,
	}
}

// UpgradeConnection upgrades an HTTP request and binds the socket to an
// already-established broadcast subscriber.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, sub *broadcast.Subscriber) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return err
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		PartyID:     sub.PartyID,
		SessionID:   sessionID,
		Host:        sub.Host,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		sub:         sub,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.feedPump()
	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("party_id", connection.PartyID.String()).
		Str("session_id", sessionID.String()).
		Bool("host", connection.Host).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sessionConnections[conn.SessionID] == nil {
		cm.sessionConnections[conn.SessionID] = make(map[*Connection]bool)
	}
	cm.sessionConnections[conn.SessionID][conn] = true
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.sessionConnections[conn.SessionID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)

			if len(connections) == 0 {
				delete(cm.sessionConnections, conn.SessionID)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("party_id", conn.PartyID.String()).
				Str("session_id", conn.SessionID.String()).
				Msg("connection unregistered")
		}
	}
}

// GetConnectionStats returns statistics about active connections.
func (cm *ConnectionManager) GetConnectionStats() (total int, sessions int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, connections := range cm.sessionConnections {
		total += len(connections)
	}
	return total, len(cm.sessionConnections)
}

// feedPump forwards broadcast envelopes onto the socket's send queue. It
// ends when the subscriber's feed closes: either the session ended or the
// hub dropped a slow subscriber. It is the only writer to Send and the only
// goroutine that closes it.
func (c *Connection) feedPump() {
	defer func() {
		c.sub.Close()
		close(c.Send)
	}()

	for env := range c.sub.C() {
		data, err := json.Marshal(env)
		if err != nil {
			log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal event for socket")
			continue
		}
		select {
		case c.Send <- data:
		default:
			log.Warn().
				Str("connection_id", c.ID).
				Str("party_id", c.PartyID.String()).
				Msg("connection send buffer full, closing connection")
			return
		}
	}
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump drains the socket and detects disconnects. Participants get
// marked disconnected rather than removed, so they can resume.
func (c *Connection) readPump() {
	defer func() {
		c.sub.Close()
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
		if !c.Host && c.Manager.onDisconnect != nil {
			c.Manager.onDisconnect(c.PartyID)
		}
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		// Clients only talk upstream through the HTTP command API; socket
		// traffic is logged and ignored.
		log.Debug().
			Str("connection_id", c.ID).
			Str("party_id", c.PartyID.String()).
			RawJSON("message", message).
			Msg("received client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
