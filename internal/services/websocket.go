package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a WebSocket client
type Client struct {
	ID       uint
	UserType string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mutex      sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %d connected", client.ID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()
			log.Printf("Client %d disconnected", client.ID)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Slow consumers miss messages; removal happens only
					// through unregister so Send is closed exactly once.
					log.Printf("Warning: Could not send to client %d (channel full)", client.ID)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// BroadcastToUser sends a message to a specific user. Handlers call this from
// concurrent notification goroutines, so it only ever reads the client set:
// a full Send buffer means the message is dropped, and disconnecting clients
// is left to the unregister path, which closes Send exactly once.
func (h *Hub) BroadcastToUser(userID uint, message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.ID == userID {
			select {
			case client.Send <- message:
			default:
				log.Printf("Warning: Could not send to client %d (channel full)", client.ID)
			}
		}
	}
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// WebSocket message types
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// BookingEvent describes a booking lifecycle change pushed to the passenger
// and the driver. It is sent only after the underlying transaction commits.
type BookingEvent struct {
	BookingID uint   `json:"bookingId"`
	RideID    uint   `json:"rideId"`
	Status    string `json:"status"`
	Seats     int    `json:"seats"`
}

// RideEvent describes a ride status change pushed to affected passengers.
type RideEvent struct {
	RideID uint   `json:"rideId"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// TypingIndicator is relayed between a ride's chat participants.
type TypingIndicator struct {
	RideID uint `json:"rideId"`
	UserID uint `json:"userId"`
	ToID   uint `json:"toId"`
}

// LocationUpdate is a driver position broadcast for passengers watching an
// upcoming ride.
type LocationUpdate struct {
	RideID  uint    `json:"rideId"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Heading float64 `json:"heading"`
}

// HandleWebSocket handles WebSocket connections
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint, userType string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		ID:       userID,
		UserType: userType,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
	}

	client.Hub.register <- client

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var wsMessage WebSocketMessage
		if err := json.Unmarshal(message, &wsMessage); err != nil {
			log.Printf("Error unmarshaling WebSocket message: %v", err)
			continue
		}

		// Typing indicators and location broadcasts are cosmetic: relay
		// failures are logged and swallowed, never retried or surfaced.
		switch wsMessage.Type {
		case "typing":
			c.relayTyping(wsMessage.Data)
		case "location":
			c.relayLocation(wsMessage.Data)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// relayTyping forwards a typing indicator to its recipient.
func (c *Client) relayTyping(data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling typing indicator from client %d: %v", c.ID, err)
		return
	}

	var typing TypingIndicator
	if err := json.Unmarshal(raw, &typing); err != nil {
		log.Printf("Error decoding typing indicator from client %d: %v", c.ID, err)
		return
	}
	typing.UserID = c.ID

	message, err := json.Marshal(WebSocketMessage{Type: "typing", Data: typing})
	if err != nil {
		log.Printf("Error marshaling typing indicator: %v", err)
		return
	}
	c.Hub.BroadcastToUser(typing.ToID, message)
}

// relayLocation forwards a driver location update to all connected clients.
func (c *Client) relayLocation(data interface{}) {
	if c.UserType != "driver" {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling location update from client %d: %v", c.ID, err)
		return
	}

	var update LocationUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		log.Printf("Error decoding location update from client %d: %v", c.ID, err)
		return
	}

	message, err := json.Marshal(WebSocketMessage{Type: "driver_location_update", Data: update})
	if err != nil {
		log.Printf("Error marshaling location update: %v", err)
		return
	}
	c.Hub.BroadcastToAll(message)
}

// BroadcastToAll queues a message for every connected client. The fan-out
// happens on the hub's run loop.
func (hub *Hub) BroadcastToAll(message []byte) {
	hub.broadcast <- message
}

// SendBookingEvent sends a booking lifecycle notification to a user
func (hub *Hub) SendBookingEvent(userID uint, eventType string, event BookingEvent) {
	message := WebSocketMessage{
		Type: eventType,
		Data: event,
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling booking event: %v", err)
		return
	}

	hub.BroadcastToUser(userID, data)
}

// SendRideEvent sends a ride status notification to a user
func (hub *Hub) SendRideEvent(userID uint, eventType string, event RideEvent) {
	message := WebSocketMessage{
		Type: eventType,
		Data: event,
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling ride event: %v", err)
		return
	}

	hub.BroadcastToUser(userID, data)
}
