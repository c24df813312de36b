package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mikemorandi/flightradar/internal/radar"
	"github.com/mikemorandi/flightradar/internal/tracking"
	"github.com/mikemorandi/flightradar/pkg/logger"
)

// Message types streamed to clients
const (
	MessageTypePositions       = "positions"
	MessageTypeCallsignChanges = "callsign_changes"
	MessageTypeCategoryChanges = "category_changes"
)

// Message represents a WebSocket message
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client represents one connected WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan *Message
	server *Server
	mu     sync.Mutex
	closed bool
}

// Server is the fan-out hub for live flight updates
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewServer creates a new WebSocket hub
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		logger: log.Named("web-socket"),
	}
}

// Run starts the hub loop
func (s *Server) Run() {
	s.logger.Info("Starting WebSocket server")

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.mu.Lock()
				client.closed = true
				client.mu.Unlock()
				close(client.send)
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.mu.RLock()
			var clientsToRemove []*Client
			for client := range s.clients {
				client.mu.Lock()
				if client.closed {
					clientsToRemove = append(clientsToRemove, client)
					client.mu.Unlock()
					continue
				}
				client.mu.Unlock()

				select {
				case client.send <- message:
				default:
					// Send buffer full, drop the client
					clientsToRemove = append(clientsToRemove, client)
				}
			}
			s.mu.RUnlock()

			if len(clientsToRemove) > 0 {
				s.mu.Lock()
				for _, client := range clientsToRemove {
					if _, ok := s.clients[client]; ok {
						delete(s.clients, client)
						client.mu.Lock()
						if !client.closed {
							client.closed = true
							close(client.send)
						}
						client.mu.Unlock()
					}
				}
				s.mu.Unlock()
			}
		}
	}
}

// HandleConnection upgrades an HTTP request and registers the client
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("New WebSocket connection",
		logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:   conn,
		send:   make(chan *Message, 256),
		server: s,
	}

	s.register <- client

	go client.readPump()
	go client.writePump()
}

// HasSubscribers reports whether any client is connected
func (s *Server) HasSubscribers() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients) > 0
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(message *Message) {
	s.broadcast <- message
}

// BroadcastPositions publishes the latest positions of changed flights
func (s *Server) BroadcastPositions(flights map[string]radar.PositionReport, changedFlightIDs []string) {
	changed := make(map[string]radar.PositionReport, len(changedFlightIDs))
	for _, id := range changedFlightIDs {
		if report, ok := flights[id]; ok {
			changed[id] = report
		}
	}
	s.Broadcast(&Message{Type: MessageTypePositions, Data: changed})
}

// BroadcastCategoryChanges publishes category corrections
func (s *Server) BroadcastCategoryChanges(changes []tracking.CategoryChange) {
	s.Broadcast(&Message{Type: MessageTypeCategoryChanges, Data: changes})
}

// BroadcastCallsignChanges publishes callsign corrections
func (s *Server) BroadcastCallsignChanges(changes []tracking.CallsignChange) {
	s.Broadcast(&Message{Type: MessageTypeCallsignChanges, Data: changes})
}

// readPump drains client messages; the stream is server-to-client only,
// so reads just detect disconnects.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		data, err := json.Marshal(message)
		if err != nil {
			c.server.logger.Error("Failed to marshal message", logger.Error(err))
			continue
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
