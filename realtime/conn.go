package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"supportchat/models"
)

const (
	// MaxMessageSize is the maximum accepted inbound envelope size.
	MaxMessageSize = 512 * 1024
	// DefaultWriteWait bounds each outbound frame write.
	DefaultWriteWait = 10 * time.Second
	// DefaultPongWait is how long the connection survives without a pong.
	DefaultPongWait = 60 * time.Second
	// DefaultPingPeriod is the keepalive ping interval. Must be below
	// DefaultPongWait.
	DefaultPingPeriod = 50 * time.Second
	// sendBufferSize is the outbound frame queue depth per connection.
	sendBufferSize = 64
)

// Envelope is the framing shared by every event on the push channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Conn is one long-lived push-channel connection shared by every consumer in
// the process. All methods are safe on a nil receiver and silently no-op, so
// a session degrades to history-only chat when the channel is absent.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	mu       sync.RWMutex
	handlers map[string]func(json.RawMessage)

	closeOnce sync.Once
}

// Dial connects to the push channel endpoint and starts the read/write pumps.
func Dial(ctx context.Context, socketURL string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial push channel %q: %w", socketURL, err)
	}

	conn := &Conn{
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		handlers: make(map[string]func(json.RawMessage)),
	}

	go conn.readPump()
	go conn.writePump()

	return conn, nil
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	if c == nil || c.ws == nil {
		return nil
	}
	var closeErr error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(DefaultWriteWait),
		)
		closeErr = c.ws.Close()
	})
	return closeErr
}

// On registers the handler for an event name. The push channel carries one
// handler per event: registering again replaces the previous handler, and a
// nil handler deregisters.
func (c *Conn) On(event string, handler func(json.RawMessage)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if handler == nil {
		delete(c.handlers, event)
		return
	}
	c.handlers[event] = handler
}

// Off removes the handler for an event name.
func (c *Conn) Off(event string) {
	c.On(event, nil)
}

// Emit queues one event envelope for sending. A nil or closed connection
// drops the event silently.
func (c *Conn) Emit(event string, payload any) error {
	if c == nil || c.ws == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %q payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %q envelope: %w", event, err)
	}

	select {
	case c.send <- frame:
	case <-c.done:
	default:
		// Queue full: drop rather than stall the caller.
		log.Printf("realtime: dropped %q event, send queue full", event)
	}
	return nil
}

// AnnouncePresence tells the remote side which identity owns this connection.
func (c *Conn) AnnouncePresence(userID string, isAdmin bool) error {
	return c.Emit(EventUserLogin, LoginPayload{UserID: userID, IsAdmin: isAdmin})
}

// JoinRoom subscribes this connection to a conversation room.
func (c *Conn) JoinRoom(room string) error {
	return c.Emit(EventJoinRoom, room)
}

// MarkAsRead broadcasts a read receipt for a room.
func (c *Conn) MarkAsRead(userID, room string) error {
	return c.Emit(EventMarkAsRead, ReadReceipt{UserID: userID, Room: room})
}

// SendMessage mirrors a persisted message to its receiver.
func (c *Conn) SendMessage(msg models.Message, receiver string) error {
	return c.Emit(EventSendMessage, OutgoingMessage{Message: msg, Receiver: receiver})
}

// OnMessage registers the inbound message handler. A nil handler deregisters.
func (c *Conn) OnMessage(handler func(models.Message)) {
	if handler == nil {
		c.Off(EventMessageReceived)
		return
	}
	c.On(EventMessageReceived, func(data json.RawMessage) {
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("realtime: bad %s payload: %v", EventMessageReceived, err)
			return
		}
		handler(msg)
	})
}

// OnMarkedAsRead registers the direct read-receipt handler.
func (c *Conn) OnMarkedAsRead(handler func(userID string)) {
	if handler == nil {
		c.Off(EventMarkedAsRead)
		return
	}
	c.On(EventMarkedAsRead, func(data json.RawMessage) {
		var receipt ReadReceipt
		if err := json.Unmarshal(data, &receipt); err != nil {
			log.Printf("realtime: bad %s payload: %v", EventMarkedAsRead, err)
			return
		}
		handler(receipt.UserID)
	})
}

// OnAdminNotification registers the broadcast notification handler.
func (c *Conn) OnAdminNotification(handler func(AdminNotification)) {
	if handler == nil {
		c.Off(EventAdminNotification)
		return
	}
	c.On(EventAdminNotification, func(data json.RawMessage) {
		var note AdminNotification
		if err := json.Unmarshal(data, &note); err != nil {
			log.Printf("realtime: bad %s payload: %v", EventAdminNotification, err)
			return
		}
		handler(note)
	})
}

// OnStatusUpdate registers the presence map handler.
func (c *Conn) OnStatusUpdate(handler func(map[string]bool)) {
	if handler == nil {
		c.Off(EventStatusUpdate)
		return
	}
	c.On(EventStatusUpdate, func(data json.RawMessage) {
		var status map[string]bool
		if err := json.Unmarshal(data, &status); err != nil {
			log.Printf("realtime: bad %s payload: %v", EventStatusUpdate, err)
			return
		}
		handler(status)
	})
}

func (c *Conn) readPump() {
	defer func() {
		_ = c.Close()
	}()

	c.ws.SetReadLimit(MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(DefaultPongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(DefaultPongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error: %v", err)
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			log.Printf("realtime: bad envelope: %v", err)
			continue
		}

		c.mu.RLock()
		handler := c.handlers[envelope.Event]
		c.mu.RUnlock()
		if handler != nil {
			handler(envelope.Data)
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(DefaultPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(DefaultWriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("realtime: write error: %v", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(DefaultWriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
