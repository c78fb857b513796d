package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varulv/internal/domain"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(newFakeSource(), HubOptions{DefaultDelay: 5 * time.Millisecond, StaleAfter: time.Minute}, testLogger())
	t.Cleanup(hub.Close)
	return hub
}

func TestHubCreateAndGetSession(t *testing.T) {
	hub := newTestHub(t)

	settings := hub.DefaultSettings()
	settings.Thread = "by"
	session, err := hub.CreateSession(context.Background(), settings)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID())
	assert.Equal(t, 1, hub.GetSessionCount())

	got, err := hub.GetSession(session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, int64(5), got.Snapshot().DelayMs)

	_, err = hub.GetSession("missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestHubCreateSessionFailure(t *testing.T) {
	hub := newTestHub(t)

	settings := hub.DefaultSettings()
	settings.Thread = "finns-inte"
	_, err := hub.CreateSession(context.Background(), settings)
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	assert.Equal(t, 0, hub.GetSessionCount())
}

func TestHubDeleteSession(t *testing.T) {
	hub := newTestHub(t)

	session, err := hub.CreateSession(context.Background(), hub.DefaultSettings())
	require.NoError(t, err)

	require.NoError(t, hub.DeleteSession(session.ID()))
	assert.Equal(t, 0, hub.GetSessionCount())
	assert.ErrorIs(t, hub.DeleteSession(session.ID()), domain.ErrSessionNotFound)
}

func TestHubClientCount(t *testing.T) {
	hub := newTestHub(t)

	a, err := hub.CreateSession(context.Background(), hub.DefaultSettings())
	require.NoError(t, err)
	b, err := hub.CreateSession(context.Background(), hub.DefaultSettings())
	require.NoError(t, err)

	a.RegisterClient("c1", &recordingClient{id: "c1"})
	a.RegisterClient("c2", &recordingClient{id: "c2"})
	b.RegisterClient("c3", &recordingClient{id: "c3"})

	assert.Equal(t, 3, hub.GetTotalClientCount())
}

func TestHubCleanupStale(t *testing.T) {
	hub := newTestHub(t)

	idle, err := hub.CreateSession(context.Background(), hub.DefaultSettings())
	require.NoError(t, err)
	watched, err := hub.CreateSession(context.Background(), hub.DefaultSettings())
	require.NoError(t, err)
	watched.RegisterClient("c1", &recordingClient{id: "c1"})

	assert.Equal(t, 0, hub.CleanupStale(time.Now()))

	removed := hub.CleanupStale(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 1, removed)

	_, err = hub.GetSession(idle.ID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = hub.GetSession(watched.ID())
	assert.NoError(t, err)
}
