package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"varulv/internal/app"
	"varulv/internal/domain"
	"varulv/internal/tally"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateSessionRequest is the body of POST /api/sessions. Every field is optional.
type CreateSessionRequest struct {
	Thread string   `json:"thread"`
	View   string   `json:"view"`
	Slider *int     `json:"slider"`
	Live   bool     `json:"live"`
	Delay  *int     `json:"delay"` // milliseconds
	Filter []string `json:"filter"`
	Sort   string   `json:"sort"`
}

// CreateSessionResponse is the response for session creation
type CreateSessionResponse struct {
	SessionID string        `json:"sessionId"`
	Snapshot  *app.Snapshot `json:"snapshot"`
}

// ThreadsResponse lists the available threads
type ThreadsResponse struct {
	Threads []domain.ThreadInfo `json:"threads"`
}

// LeaderboardResponse is the ranking of the session's current view
type LeaderboardResponse struct {
	Summary    string            `json:"summary"`
	Top        tally.Entry       `json:"top"`
	Entries    []tally.Entry     `json:"entries"`
	LastVoteAt *domain.Timestamp `json:"lastVoteAt"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveSessions int             `json:"activeSessions"`
	TotalClients   int             `json:"totalClients"`
	Threads        int             `json:"threads"`
	Jobs           []app.JobStatus `json:"jobs,omitempty"`
}

// handleListThreads handles GET /api/threads
func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &ThreadsResponse{Threads: s.hub.Source().Threads()})
}

// handleRefreshThreads handles POST /api/threads/refresh
func (s *Server) handleRefreshThreads(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Source().Refresh(r.Context()); err != nil {
		s.logger.Error("thread refresh failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, domain.CodeInternal, "Failed to refresh threads")
		return
	}
	s.sendSuccess(w, &ThreadsResponse{Threads: s.hub.Source().Threads()})
}

// handleCreateSession handles POST /api/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.sendError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be JSON")
		return
	}

	settings, err := s.settingsFrom(req)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	session, err := s.hub.CreateSession(r.Context(), settings)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendJSON(w, http.StatusCreated, &CreateSessionResponse{
		SessionID: session.ID(),
		Snapshot:  session.Snapshot(),
	})
}

// settingsFrom overlays a request on the hub's default settings
func (s *Server) settingsFrom(req CreateSessionRequest) (app.Settings, error) {
	settings := s.hub.DefaultSettings()
	settings.Thread = req.Thread
	settings.Live = req.Live
	settings.Sort = req.Sort
	if req.View != "" {
		settings.Mode = domain.ParseViewMode(req.View)
	}
	if req.Slider != nil {
		settings.SliderPercent = *req.Slider
	}
	if req.Delay != nil {
		if *req.Delay < 0 {
			return settings, fmt.Errorf("delay %dms: %w", *req.Delay, domain.ErrInvalidDelay)
		}
		settings.Delay = time.Duration(*req.Delay) * time.Millisecond
	}
	for _, name := range req.Filter {
		settings.Filter = append(settings.Filter, domain.PlayerID(name))
	}
	return settings, nil
}

// handleGetSession handles GET /api/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.hub.GetSession(r.PathValue("id"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, session.Snapshot())
}

// handleLeaderboard handles GET /api/sessions/{id}/leaderboard
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	session, err := s.hub.GetSession(r.PathValue("id"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	board, err := session.Leaderboard()
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	resp := &LeaderboardResponse{
		Summary: board.Summary(),
		Top:     board.Top(),
		Entries: board.Entries(),
	}
	if last, ok := board.LastVoteAt(); ok {
		resp.LastVoteAt = &last
	}
	s.sendSuccess(w, resp)
}

// handleExportCSV handles GET /api/sessions/{id}/export.csv
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	session, err := s.hub.GetSession(r.PathValue("id"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	snap := session.Snapshot()
	if snap.Thread == nil {
		s.sendDomainError(w, domain.ErrNoThreadLoaded)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-votes.csv"`, snap.Thread.Slug))
	if err := session.ExportCSV(w); err != nil {
		s.logger.Error("csv export failed", "session", session.ID(), "error", err)
	}
}

// handleDeleteSession handles DELETE /api/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.DeleteSession(r.PathValue("id")); err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, nil)
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := &StatsResponse{
		ActiveSessions: s.hub.GetSessionCount(),
		TotalClients:   s.hub.GetTotalClientCount(),
		Threads:        len(s.hub.Source().Threads()),
	}
	if s.scheduler != nil {
		stats.Jobs = s.scheduler.Status()
	}
	s.sendSuccess(w, stats)
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	s.sendJSON(w, http.StatusOK, data)
}

// sendJSON sends a successful JSON response with the given status
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendDomainError maps err to a status and error code
func (s *Server) sendDomainError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)
	status := http.StatusInternalServerError
	message := err.Error()

	switch code {
	case domain.CodeSessionNotFound, domain.CodeThreadNotFound:
		status = http.StatusNotFound
	case domain.CodeNoPages:
		status = http.StatusUnprocessableEntity
	case domain.CodeNoThreadLoaded:
		status = http.StatusConflict
	case domain.CodeInvalidSort, domain.CodeInvalidDelay, domain.CodeInvalidSlider:
		status = http.StatusBadRequest
	default:
		s.logger.Error("request failed", "error", err)
		message = "Internal server error"
	}

	s.sendError(w, status, code, message)
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
