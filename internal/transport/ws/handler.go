package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"varulv/internal/app"
)

// Handler handles WebSocket connections
type Handler struct {
	hub      *app.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *app.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development
				// In production, you should validate the origin
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests. Without a sessionId query
// parameter a fresh session is created for the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")

	var (
		session *app.Session
		err     error
	)
	if sessionID == "" {
		session, err = h.hub.CreateSession(r.Context(), h.hub.DefaultSettings())
		if err != nil {
			h.logger.Error("session creation failed", "error", err)
			http.Error(w, "Could not create session", http.StatusInternalServerError)
			return
		}
	} else {
		session, err = h.hub.GetSession(sessionID)
		if err != nil {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
	}

	// Upgrade connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.NewString()
	client := NewClient(conn, session, h.hub.Source(), clientID, h.logger)

	// Register client with session
	session.RegisterClient(clientID, client)

	h.logger.Info("websocket connected",
		"session", session.ID(),
		"clientID", clientID,
		"newSession", sessionID == "",
	)

	client.sendConnected()

	// Start the client
	client.Run()
}
