package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"varulv/internal/domain"
)

// DefaultStaleAfter is how long an abandoned session is kept
const DefaultStaleAfter = 2 * time.Hour

// Hub manages all active viewing sessions
type Hub struct {
	sessions     map[string]*Session
	mu           sync.RWMutex
	source       ThreadSource
	defaultDelay time.Duration
	staleAfter   time.Duration
	logger       *slog.Logger
}

// HubOptions configures a hub
type HubOptions struct {
	DefaultDelay time.Duration
	StaleAfter   time.Duration
}

// NewHub creates a new hub serving threads from source
func NewHub(source ThreadSource, opts HubOptions, logger *slog.Logger) *Hub {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	return &Hub{
		sessions:     make(map[string]*Session),
		source:       source,
		defaultDelay: opts.DefaultDelay,
		staleAfter:   opts.StaleAfter,
		logger:       logger,
	}
}

// Source returns the hub's thread source
func (h *Hub) Source() ThreadSource {
	return h.source
}

// DefaultSettings returns the settings of a session created without overrides
func (h *Hub) DefaultSettings() Settings {
	return DefaultSettings(h.defaultDelay)
}

// CreateSession creates a session and applies settings to it
func (h *Hub) CreateSession(ctx context.Context, settings Settings) (*Session, error) {
	id := uuid.NewString()
	session := NewSession(id, h.source, h.logger)

	if err := session.Apply(ctx, settings); err != nil {
		session.Close()
		return nil, err
	}

	h.mu.Lock()
	h.sessions[id] = session
	h.mu.Unlock()

	h.logger.Info("session created", "session", id, "thread", settings.Thread)

	return session, nil
}

// GetSession returns a session by ID
func (h *Hub) GetSession(id string) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	session, ok := h.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	return session, nil
}

// DeleteSession closes and removes a session
func (h *Hub) DeleteSession(id string) error {
	h.mu.Lock()
	session, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Close()
	h.logger.Info("session deleted", "session", id)
	return nil
}

// GetSessionCount returns the number of active sessions
func (h *Hub) GetSessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// GetTotalClientCount returns the number of connected clients across all sessions
func (h *Hub) GetTotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, session := range h.sessions {
		total += session.ClientCount()
	}
	return total
}

// CleanupStale removes sessions without clients that have been idle longer than the stale timeout.
// It returns the number of sessions removed.
func (h *Hub) CleanupStale(now time.Time) int {
	h.mu.Lock()
	stale := make([]*Session, 0)
	for id, session := range h.sessions {
		if session.ClientCount() == 0 && now.Sub(session.LastActive()) > h.staleAfter {
			stale = append(stale, session)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, session := range stale {
		session.Close()
		h.logger.Info("stale session cleaned up", "session", session.ID())
	}
	return len(stale)
}

// Close shuts down all sessions
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
