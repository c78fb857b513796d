package domain

import "time"

// EventType represents the type of session event
type EventType string

const (
	EventThreadLoaded  EventType = "THREAD_LOADED"
	EventSnapshot      EventType = "SNAPSHOT"
	EventReplayStarted EventType = "REPLAY_STARTED"
	EventReplayFrame   EventType = "REPLAY_FRAME"
	EventReplayDone    EventType = "REPLAY_DONE"
	EventError         EventType = "ERROR"
)

// SessionEvent is something that happened in a viewing session and is pushed to its clients
type SessionEvent struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"sessionId"`
	ClientID  string      `json:"clientId,omitempty"` // If event is client-specific
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new session event
func NewEvent(eventType EventType, sessionID string, payload interface{}) *SessionEvent {
	return &SessionEvent{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewClientEvent creates an event addressed to a single client
func NewClientEvent(eventType EventType, sessionID, clientID string, payload interface{}) *SessionEvent {
	return &SessionEvent{
		Type:      eventType,
		SessionID: sessionID,
		ClientID:  clientID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// ErrorPayload is sent when an operation fails
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
