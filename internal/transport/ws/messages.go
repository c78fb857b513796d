package ws

import (
	"encoding/json"
	"time"

	"varulv/internal/app"
	"varulv/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgLoadThread MessageType = "load_thread"
	MsgSetView    MessageType = "set_view"
	MsgSetSlider  MessageType = "set_slider"
	MsgSetLive    MessageType = "set_live"
	MsgSetDelay   MessageType = "set_delay"
	MsgSetFilter  MessageType = "set_filter"
	MsgSetSort    MessageType = "set_sort"
	MsgPing       MessageType = "ping"
)

// Server → Client message types
const (
	MsgConnected     MessageType = "connected"
	MsgThreadLoaded  MessageType = "thread_loaded"
	MsgSnapshot      MessageType = "snapshot"
	MsgReplayStarted MessageType = "replay_started"
	MsgFrame         MessageType = "frame"
	MsgReplayDone    MessageType = "replay_done"
	MsgError         MessageType = "error"
	MsgPong          MessageType = "pong"
)

// eventMessages maps session events onto the messages clients receive
var eventMessages = map[domain.EventType]MessageType{
	domain.EventThreadLoaded:  MsgThreadLoaded,
	domain.EventSnapshot:      MsgSnapshot,
	domain.EventReplayStarted: MsgReplayStarted,
	domain.EventReplayFrame:   MsgFrame,
	domain.EventReplayDone:    MsgReplayDone,
	domain.EventError:         MsgError,
}

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// messageFromEvent converts a session event into a server message
func messageFromEvent(event *domain.SessionEvent) (*ServerMessage, bool) {
	msgType, ok := eventMessages[event.Type]
	if !ok {
		return nil, false
	}
	return &ServerMessage{
		Type:      msgType,
		Payload:   event.Payload,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	}, true
}

// Client message payloads

// LoadThreadPayload is the payload for load_thread message
type LoadThreadPayload struct {
	Thread string `json:"thread"`
}

// SetViewPayload is the payload for set_view message
type SetViewPayload struct {
	View string `json:"view"`
}

// SetSliderPayload is the payload for set_slider message
type SetSliderPayload struct {
	Percent int `json:"percent"`
}

// SetLivePayload is the payload for set_live message
type SetLivePayload struct {
	Live bool `json:"live"`
}

// SetDelayPayload is the payload for set_delay message
type SetDelayPayload struct {
	Ms int `json:"ms"`
}

// SetFilterPayload is the payload for set_filter message
type SetFilterPayload struct {
	Players []string `json:"players"`
}

// SetSortPayload is the payload for set_sort message
type SetSortPayload struct {
	Sort string `json:"sort"`
}

// Server message payloads

// ConnectedPayload is the payload for connected message
type ConnectedPayload struct {
	ClientID  string              `json:"clientId"`
	SessionID string              `json:"sessionId"`
	Threads   []domain.ThreadInfo `json:"threads"`
	Snapshot  *app.Snapshot       `json:"snapshot"`
}

// ErrorPayload is the payload for error message
type ErrorPayload = domain.ErrorPayload

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
)
