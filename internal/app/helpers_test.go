package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"varulv/internal/domain"
)

var baseTime = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

func vote(voter, target string, minute int) domain.VoteEvent {
	return domain.VoteEvent{
		Voter:     domain.PlayerID(voter),
		Target:    domain.PlayerID(target),
		PostID:    fmt.Sprintf("%d", 1000+minute),
		Timestamp: domain.NewTimestamp(baseTime.Add(time.Duration(minute) * time.Minute)),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource serves fixed threads from memory
type fakeSource struct {
	mu      sync.Mutex
	threads map[string][]domain.VoteEvent
	loads   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{threads: map[string][]domain.VoteEvent{
		"by": {
			vote("A", "X", 0),
			vote("B", "Y", 1),
			vote("C", "X", 2),
			vote("A", "Y", 3),
		},
		"skog": {
			vote("D", "E", 0),
			vote("E", "D", 10),
		},
	}}
}

func (f *fakeSource) Threads() []domain.ThreadInfo {
	return []domain.ThreadInfo{
		{Slug: "by", Name: "Byn", Pages: 1},
		{Slug: "skog", Name: "Skogen", Pages: 2},
	}
}

func (f *fakeSource) Lookup(slug string) (domain.ThreadInfo, error) {
	for _, info := range f.Threads() {
		if info.Slug == slug {
			return info, nil
		}
	}
	return domain.ThreadInfo{}, domain.ErrThreadNotFound
}

func (f *fakeSource) LoadEvents(_ context.Context, info domain.ThreadInfo) ([]domain.VoteEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.threads[info.Slug], nil
}

func (f *fakeSource) Refresh(context.Context) error {
	return nil
}

// recordingClient keeps every event sent to it
type recordingClient struct {
	id     string
	mu     sync.Mutex
	events []*domain.SessionEvent
	closed bool
}

func (c *recordingClient) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if event, ok := message.(*domain.SessionEvent); ok {
		c.events = append(c.events, event)
	}
	return nil
}

func (c *recordingClient) GetClientID() string {
	return c.id
}

func (c *recordingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingClient) count(eventType domain.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (c *recordingClient) frames() []*FramePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	var frames []*FramePayload
	for _, e := range c.events {
		if f, ok := e.Payload.(*FramePayload); ok {
			frames = append(frames, f)
		}
	}
	return frames
}
