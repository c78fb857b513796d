package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"varulv/internal/app"
	"varulv/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256

	// Time allowed to read and parse a thread
	loadTimeout = 30 * time.Second
)

// Client represents a WebSocket client connection
type Client struct {
	conn     *websocket.Conn
	session  *app.Session
	threads  app.ThreadSource
	clientID string
	send     chan []byte
	done     chan struct{}
	logger   *slog.Logger
	mu       sync.Mutex
	closed   bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, session *app.Session, threads app.ThreadSource, clientID string, logger *slog.Logger) *Client {
	return &Client{
		conn:     conn,
		session:  session,
		threads:  threads,
		clientID: clientID,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// GetClientID returns the ID of this client
func (c *Client) GetClientID() string {
	return c.clientID
}

// Send implements app.ClientConnection interface. Session events are
// converted to server messages.
func (c *Client) Send(message interface{}) error {
	if event, ok := message.(*domain.SessionEvent); ok {
		msg, known := messageFromEvent(event)
		if !known {
			c.logger.Debug("no message for event", "type", event.Type)
			return nil
		}
		message = msg
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped", "clientID", c.clientID)
		return nil
	}
}

// Close implements app.ClientConnection interface
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.session.UnregisterClient(c.clientID)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	var err error
	switch msg.Type {
	case MsgLoadThread:
		err = c.handleLoadThread(msg.Payload)
	case MsgSetView:
		err = c.handleSetView(msg.Payload)
	case MsgSetSlider:
		err = c.handleSetSlider(msg.Payload)
	case MsgSetLive:
		err = c.handleSetLive(msg.Payload)
	case MsgSetDelay:
		err = c.handleSetDelay(msg.Payload)
	case MsgSetFilter:
		err = c.handleSetFilter(msg.Payload)
	case MsgSetSort:
		err = c.handleSetSort(msg.Payload)
	case MsgPing:
		c.sendPong()
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
		return
	}

	if err != nil {
		c.sendDomainError(err)
	}
}

// errInvalidPayload marks a payload that could not be decoded
type errInvalidPayload struct{ reason string }

func (e errInvalidPayload) Error() string { return e.reason }

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return errInvalidPayload{"Payload is required"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errInvalidPayload{"Invalid payload"}
	}
	return nil
}

// handleLoadThread handles a load_thread message
func (c *Client) handleLoadThread(raw json.RawMessage) error {
	var p LoadThreadPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if p.Thread == "" {
		return errInvalidPayload{"Thread is required"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	return c.session.LoadThread(ctx, p.Thread)
}

// handleSetView handles a set_view message
func (c *Client) handleSetView(raw json.RawMessage) error {
	var p SetViewPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	c.session.SetViewMode(domain.ParseViewMode(p.View))
	return nil
}

// handleSetSlider handles a set_slider message
func (c *Client) handleSetSlider(raw json.RawMessage) error {
	var p SetSliderPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	return c.session.SetSlider(p.Percent)
}

// handleSetLive handles a set_live message
func (c *Client) handleSetLive(raw json.RawMessage) error {
	var p SetLivePayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	c.session.SetLive(p.Live)
	return nil
}

// handleSetDelay handles a set_delay message
func (c *Client) handleSetDelay(raw json.RawMessage) error {
	var p SetDelayPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	return c.session.SetDelay(p.Ms)
}

// handleSetFilter handles a set_filter message
func (c *Client) handleSetFilter(raw json.RawMessage) error {
	var p SetFilterPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	players := make([]domain.PlayerID, len(p.Players))
	for i, name := range p.Players {
		players[i] = domain.PlayerID(name)
	}
	c.session.SetFilter(players)
	return nil
}

// handleSetSort handles a set_sort message
func (c *Client) handleSetSort(raw json.RawMessage) error {
	var p SetSortPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	return c.session.SetSort(p.Sort)
}

// sendConnected sends the connected message to the client
func (c *Client) sendConnected() {
	payload := &ConnectedPayload{
		ClientID:  c.clientID,
		SessionID: c.session.ID(),
		Threads:   c.threads.Threads(),
		Snapshot:  c.session.Snapshot(),
	}

	msg := NewServerMessage(MsgConnected, payload)
	c.Send(msg)
}

// sendDomainError reports a failed operation to the client
func (c *Client) sendDomainError(err error) {
	if invalid, ok := err.(errInvalidPayload); ok {
		c.sendError(ErrCodeInvalidMessage, invalid.reason)
		return
	}

	code := domain.ErrorCode(err)
	message := err.Error()
	if code == domain.CodeInternal {
		c.logger.Error("client operation failed", "clientID", c.clientID, "error", err)
		message = "Internal server error"
	}
	c.sendError(code, message)
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	payload := &ErrorPayload{
		Code:    code,
		Message: message,
	}

	msg := NewServerMessage(MsgError, payload)
	c.Send(msg)
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	msg := NewServerMessage(MsgPong, nil)
	c.Send(msg)
}
