package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varulv/internal/app"
	"varulv/internal/config"
	"varulv/internal/domain"
)

type stubSource struct {
	refreshed int
}

var stubBase = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

func stubVote(voter, target string, minute int) domain.VoteEvent {
	return domain.VoteEvent{
		Voter:     domain.PlayerID(voter),
		Target:    domain.PlayerID(target),
		PostID:    voter + target,
		Timestamp: domain.NewTimestamp(stubBase.Add(time.Duration(minute) * time.Minute)),
	}
}

func (s *stubSource) Threads() []domain.ThreadInfo {
	return []domain.ThreadInfo{{Slug: "byn", Name: "Byn", Pages: 2}}
}

func (s *stubSource) Lookup(slug string) (domain.ThreadInfo, error) {
	if slug != "byn" {
		return domain.ThreadInfo{}, domain.ErrThreadNotFound
	}
	return s.Threads()[0], nil
}

func (s *stubSource) LoadEvents(context.Context, domain.ThreadInfo) ([]domain.VoteEvent, error) {
	return []domain.VoteEvent{
		stubVote("Anna", "Bo", 0),
		stubVote("Cilla", "Bo", 5),
		stubVote("Bo", "Anna", 9),
	}, nil
}

func (s *stubSource) Refresh(context.Context) error {
	s.refreshed++
	return nil
}

type testEnv struct {
	server *Server
	hub    *app.Hub
	source *stubSource
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	source := &stubSource{}
	hub := app.NewHub(source, app.HubOptions{DefaultDelay: time.Millisecond}, logger)
	t.Cleanup(hub.Close)

	cfg := &config.Config{Server: config.ServerConfig{Port: "0", Env: "development"}}
	return &testEnv{
		server: NewServer(cfg, hub, nil, logger),
		hub:    hub,
		source: source,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// decode unmarshals the envelope and its data into data
func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) Response {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *ErrorInfo      `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return Response{Success: raw.Success, Error: raw.Error}
}

func (e *testEnv) createSession(t *testing.T, body string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		SessionID string `json:"sessionId"`
	}
	decode(t, rec, &created)
	require.NotEmpty(t, created.SessionID)
	return created.SessionID
}

func TestHealthAndStats(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	assert.True(t, decode(t, rec, &health).Success)
	assert.Equal(t, "ok", health.Status)

	env.createSession(t, "")
	rec = env.do(t, http.MethodGet, "/api/stats", "")
	var stats StatsResponse
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 0, stats.TotalClients)
	assert.Equal(t, 1, stats.Threads)
}

func TestListAndRefreshThreads(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/threads", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var threads ThreadsResponse
	decode(t, rec, &threads)
	require.Len(t, threads.Threads, 1)
	assert.Equal(t, "byn", threads.Threads[0].Slug)

	rec = env.do(t, http.MethodPost, "/api/threads/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.source.refreshed)
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)

	t.Run("EmptyBody", func(t *testing.T) {
		id := env.createSession(t, "")
		rec := env.do(t, http.MethodGet, "/api/sessions/"+id, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var snap struct {
			Thread  *domain.ThreadInfo `json:"thread"`
			Summary string             `json:"summary"`
			Mode    string             `json:"mode"`
		}
		decode(t, rec, &snap)
		assert.Nil(t, snap.Thread)
		assert.Equal(t, "latest", snap.Mode)
		assert.Equal(t, "no one (0 votes, since unknown time). Last vote cast unknown time.", snap.Summary)
	})

	t.Run("WithThreadAndControls", func(t *testing.T) {
		id := env.createSession(t, `{"thread":"byn","view":"all","slider":100,"delay":25,"sort":"0-desc"}`)
		session, err := env.hub.GetSession(id)
		require.NoError(t, err)

		snap := session.Snapshot()
		assert.Equal(t, "byn", snap.Thread.Slug)
		assert.Equal(t, domain.ViewAll, snap.Mode)
		assert.Equal(t, int64(25), snap.DelayMs)
		assert.Equal(t, "0-desc", snap.Sort)
		assert.Equal(t, domain.PlayerID("Bo"), snap.Top.Target)
	})

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"UnknownThread", `{"thread":"saknas"}`, http.StatusNotFound, domain.CodeThreadNotFound},
		{"BadSort", `{"sort":"9-asc"}`, http.StatusBadRequest, domain.CodeInvalidSort},
		{"NegativeDelay", `{"delay":-1}`, http.StatusBadRequest, domain.CodeInvalidDelay},
		{"SliderOutOfRange", `{"slider":150}`, http.StatusBadRequest, domain.CodeInvalidSlider},
		{"NotJSON", `{`, http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/sessions", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec, nil)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t)

	empty := env.createSession(t, "")
	rec := env.do(t, http.MethodGet, "/api/sessions/"+empty+"/leaderboard", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	id := env.createSession(t, `{"thread":"byn"}`)
	rec = env.do(t, http.MethodGet, "/api/sessions/"+id+"/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var board struct {
		Summary string `json:"summary"`
		Top     struct {
			Target    string `json:"target"`
			VoteCount int    `json:"voteCount"`
		} `json:"top"`
		LastVoteAt *string `json:"lastVoteAt"`
	}
	decode(t, rec, &board)
	assert.Equal(t, "Bo", board.Top.Target)
	assert.Equal(t, 2, board.Top.VoteCount)
	assert.Equal(t, "Bo (2 votes, since 2024-03-01 18:00). Last vote cast 2024-03-01 18:09.", board.Summary)
	assert.NotNil(t, board.LastVoteAt)
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t)

	empty := env.createSession(t, "")
	rec := env.do(t, http.MethodGet, "/api/sessions/"+empty+"/export.csv", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	id := env.createSession(t, `{"thread":"byn"}`)
	rec = env.do(t, http.MethodGet, "/api/sessions/"+id+"/export.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "byn-votes.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Röstgivare,Röst,Tidpunkt", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `"Anna","Bo",`))
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "")

	rec := env.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode(t, rec, nil)
	assert.Equal(t, domain.CodeSessionNotFound, resp.Error.Code)

	rec = env.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodOptions, "/api/sessions", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	assert.Empty(t, bytes.TrimSpace(rec.Body.Bytes()))
}
