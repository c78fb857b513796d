package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"varulv/internal/domain"
	"varulv/internal/replay"
	"varulv/internal/tally"
)

// DefaultSliderPercent shows every vote
const DefaultSliderPercent = 100

// ClientConnection represents a connected client
type ClientConnection interface {
	Send(message interface{}) error
	GetClientID() string
	Close() error
}

// Settings are the initial controls of a session
type Settings struct {
	Thread        string
	Mode          domain.ViewMode
	SliderPercent int
	Live          bool
	Delay         time.Duration
	Filter        []domain.PlayerID
	Sort          string
}

// DefaultSettings returns the controls a fresh session starts with
func DefaultSettings(delay time.Duration) Settings {
	return Settings{
		Mode:          domain.ViewLatest,
		SliderPercent: DefaultSliderPercent,
		Delay:         delay,
	}
}

// presentation is the part of the session state read while rendering replay frames.
// It is replaced wholesale so frames never need the session lock.
type presentation struct {
	mode   domain.ViewMode
	filter []domain.PlayerID
	sort   *tally.SortSpec
}

// Board is the render-ready result of one view
type Board struct {
	Mode    domain.ViewMode   `json:"mode"`
	Cutoff  domain.Cutoff     `json:"cutoff"`
	Summary string            `json:"summary"`
	Top     tally.Entry       `json:"top"`
	Entries []tally.Entry     `json:"entries"`
	Rows    []tally.Row       `json:"rows"`
	Players []domain.PlayerID `json:"players"`
}

// Snapshot is the full state of a session as shown to its clients
type Snapshot struct {
	Board
	SessionID     string             `json:"sessionId"`
	Thread        *domain.ThreadInfo `json:"thread"`
	SliderPercent int                `json:"sliderPercent"`
	Live          bool               `json:"live"`
	DelayMs       int64              `json:"delayMs"`
	PlayerCount   int                `json:"playerCount"`
	Filter        []domain.PlayerID  `json:"filter"`
	Sort          string             `json:"sort,omitempty"`
	Replay        replay.Status      `json:"replay"`
}

// FramePayload is one replay frame as pushed to clients
type FramePayload struct {
	Board
	Generation uint64 `json:"generation"`
	Cursor     int    `json:"cursor"`
	Total      int    `json:"total"`
}

// ThreadLoadedPayload announces a newly loaded thread
type ThreadLoadedPayload struct {
	Thread      domain.ThreadInfo `json:"thread"`
	Votes       int               `json:"votes"`
	PlayerCount int               `json:"playerCount"`
}

// Session is one viewer's context: the loaded thread and the controls applied to it
type Session struct {
	id        string
	createdAt time.Time
	source    ThreadSource
	logger    *slog.Logger

	mu            sync.RWMutex
	thread        *domain.ThreadInfo
	votes         []domain.VoteEvent
	sliderPercent int
	cutoff        domain.Cutoff
	live          bool
	lastActive    time.Time

	view   atomic.Pointer[presentation]
	replay *replay.Controller

	clients   map[string]ClientConnection // clientID -> client
	clientsMu sync.RWMutex

	// Event channel for broadcasting
	events chan *domain.SessionEvent
	done   chan struct{}
}

// NewSession creates a session with no thread loaded
func NewSession(id string, source ThreadSource, logger *slog.Logger) *Session {
	now := time.Now()
	s := &Session{
		id:            id,
		createdAt:     now,
		lastActive:    now,
		source:        source,
		logger:        logger.With("session", id),
		sliderPercent: DefaultSliderPercent,
		cutoff:        domain.NoCutoff(),
		clients:       make(map[string]ClientConnection),
		events:        make(chan *domain.SessionEvent, 256),
		done:          make(chan struct{}),
	}
	s.view.Store(&presentation{mode: domain.ViewLatest})
	s.replay = replay.NewController(s, s.currentMode, s.logger)

	// Start event broadcaster
	go s.eventLoop()

	return s
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was created
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// LastActive returns when the session was last changed or joined
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Apply sets the initial controls. It loads settings.Thread when set.
func (s *Session) Apply(ctx context.Context, settings Settings) error {
	if settings.Sort != "" {
		if err := s.SetSort(settings.Sort); err != nil {
			return err
		}
	}
	if err := s.SetSlider(settings.SliderPercent); err != nil {
		return err
	}
	s.replay.SetDelay(settings.Delay)
	s.SetFilter(settings.Filter)
	if settings.Mode != "" {
		s.SetViewMode(settings.Mode)
	}
	if settings.Thread != "" {
		if err := s.LoadThread(ctx, settings.Thread); err != nil {
			return err
		}
	}
	s.SetLive(settings.Live)
	return nil
}

// RegisterClient registers a client connection
func (s *Session) RegisterClient(clientID string, client ClientConnection) {
	s.clientsMu.Lock()
	s.clients[clientID] = client
	s.clientsMu.Unlock()
	s.touch()
}

// UnregisterClient removes a client connection
func (s *Session) UnregisterClient(clientID string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, clientID)
}

// ClientCount returns the number of connected clients
func (s *Session) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// LoadThread loads a thread's votes and makes it the session's thread.
// A replay of the previous thread is abandoned.
func (s *Session) LoadThread(ctx context.Context, slug string) error {
	info, err := s.source.Lookup(slug)
	if err != nil {
		return err
	}
	votes, err := s.source.LoadEvents(ctx, info)
	if err != nil {
		return fmt.Errorf("load thread %s: %w", slug, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.replay.Supersede()
	s.thread = &info
	s.votes = votes
	s.cutoff = tally.SliderCutoff(votes, s.sliderPercent)
	s.lastActive = time.Now()

	s.logger.Info("thread loaded", "slug", info.Slug, "votes", len(votes))

	s.queueEvent(domain.NewEvent(domain.EventThreadLoaded, s.id, &ThreadLoadedPayload{
		Thread:      info,
		Votes:       len(votes),
		PlayerCount: tally.PlayerCount(votes),
	}))
	s.queueEvent(domain.NewEvent(domain.EventSnapshot, s.id, s.snapshotLocked()))

	if s.live {
		s.startReplayLocked()
	}
	return nil
}

// SetViewMode switches between the latest-vote and all-votes views
func (s *Session) SetViewMode(mode domain.ViewMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateView(func(p *presentation) { p.mode = mode })
	s.lastActive = time.Now()
	s.queueEvent(domain.NewEvent(domain.EventSnapshot, s.id, s.snapshotLocked()))
}

// SetSlider moves the time slider to percent of the thread's time range.
// While live, the move starts a replay up to the new cutoff.
func (s *Session) SetSlider(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("slider %d: %w", percent, domain.ErrInvalidSlider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sliderPercent = percent
	s.cutoff = tally.SliderCutoff(s.votes, percent)
	s.lastActive = time.Now()

	if s.live && s.thread != nil {
		s.startReplayLocked()
		return nil
	}
	s.queueEvent(domain.NewEvent(domain.EventSnapshot, s.id, s.snapshotLocked()))
	return nil
}

// SetLive toggles live replay. Enabling it starts a replay up to the current cutoff;
// disabling it lets a running replay finish.
func (s *Session) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.live = live
	s.lastActive = time.Now()

	if live && s.thread != nil {
		s.startReplayLocked()
	}
}

// SetDelay sets the pause between replay frames in milliseconds. Zero restores the default.
func (s *Session) SetDelay(ms int) error {
	if ms < 0 {
		return fmt.Errorf("delay %dms: %w", ms, domain.ErrInvalidDelay)
	}
	s.replay.SetDelay(time.Duration(ms) * time.Millisecond)
	s.touch()
	return nil
}

// SetFilter restricts the table to the given voters. An empty filter shows everyone.
func (s *Session) SetFilter(voters []domain.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filter := slices.Clone(voters)
	s.updateView(func(p *presentation) { p.filter = filter })
	s.lastActive = time.Now()
	s.queueEvent(domain.NewEvent(domain.EventSnapshot, s.id, s.snapshotLocked()))
}

// SetSort orders the table by a "<column>-<asc|desc>" spec. An empty spec restores event order.
func (s *Session) SetSort(spec string) error {
	var sort *tally.SortSpec
	if spec != "" {
		parsed, err := tally.ParseSortSpec(spec)
		if err != nil {
			return err
		}
		sort = &parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateView(func(p *presentation) { p.sort = sort })
	s.lastActive = time.Now()
	s.queueEvent(domain.NewEvent(domain.EventSnapshot, s.id, s.snapshotLocked()))
	return nil
}

// Snapshot returns the current state of the session
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Leaderboard returns the ranked targets of the current view
func (s *Session) Leaderboard() (*tally.Leaderboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.thread == nil {
		return nil, domain.ErrNoThreadLoaded
	}
	p := s.view.Load()
	return tally.BuildView(s.votes, p.mode, s.cutoff).Board, nil
}

// ExportCSV writes every vote of the loaded thread in parse order. View mode,
// slider, filter and sort do not apply.
func (s *Session) ExportCSV(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.thread == nil {
		return domain.ErrNoThreadLoaded
	}
	return tally.WriteCSV(w, s.votes)
}

// SendSnapshot pushes the current state to one client
func (s *Session) SendSnapshot(clientID string) {
	s.queueEvent(domain.NewClientEvent(domain.EventSnapshot, s.id, clientID, s.Snapshot()))
}

// ReplayStatus returns the state of the session's replay
func (s *Session) ReplayStatus() replay.Status {
	return s.replay.Status()
}

// WaitReplay blocks until the current replay has finished or been abandoned
func (s *Session) WaitReplay(ctx context.Context) error {
	return s.replay.Wait(ctx)
}

// RenderFrame pushes a replay frame to the clients
func (s *Session) RenderFrame(frame replay.Frame) {
	s.queueEvent(domain.NewEvent(domain.EventReplayFrame, s.id, &FramePayload{
		Board:      newBoard(frame.View, s.view.Load()),
		Generation: frame.Generation,
		Cursor:     frame.Cursor,
		Total:      frame.Total,
	}))
}

// ReplayDone announces the end of a replay
func (s *Session) ReplayDone(status replay.Status) {
	s.queueEvent(domain.NewEvent(domain.EventReplayDone, s.id, status))
}

func (s *Session) currentMode() domain.ViewMode {
	return s.view.Load().mode
}

func (s *Session) updateView(change func(p *presentation)) {
	next := *s.view.Load()
	change(&next)
	s.view.Store(&next)
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) startReplayLocked() {
	if !s.replay.Start(s.votes, s.cutoff) {
		s.logger.Debug("replay already running, start ignored")
		return
	}
	s.queueEvent(domain.NewEvent(domain.EventReplayStarted, s.id, s.replay.Status()))
}

func (s *Session) snapshotLocked() *Snapshot {
	p := s.view.Load()
	view := tally.BuildView(s.votes, p.mode, s.cutoff)

	snap := &Snapshot{
		Board:         newBoard(view, p),
		SessionID:     s.id,
		SliderPercent: s.sliderPercent,
		Live:          s.live,
		DelayMs:       s.replay.Delay().Milliseconds(),
		PlayerCount:   tally.PlayerCount(s.votes),
		Filter:        slices.Clone(p.filter),
		Replay:        s.replay.Status(),
	}
	if s.thread != nil {
		info := *s.thread
		snap.Thread = &info
	}
	if p.sort != nil {
		snap.Sort = p.sort.String()
	}
	if snap.Filter == nil {
		snap.Filter = []domain.PlayerID{}
	}
	return snap
}

// newBoard applies the filter and sort of p to the rows of view
func newBoard(view *tally.View, p *presentation) Board {
	rows := tally.FilterRows(view.Rows, p.filter)
	if p.sort != nil {
		rows = tally.SortRows(rows, *p.sort)
	}
	return Board{
		Mode:    view.Mode,
		Cutoff:  view.Cutoff,
		Summary: view.Board.Summary(),
		Top:     view.Board.Top(),
		Entries: view.Board.Entries(),
		Rows:    rows,
		Players: tally.Voters(view.WorkingSet),
	}
}

// queueEvent adds an event to the broadcast queue
func (s *Session) queueEvent(event *domain.SessionEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("event queue full, dropping event", "type", event.Type)
	}
}

// eventLoop processes events and broadcasts to clients
func (s *Session) eventLoop() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.events:
			s.broadcastEvent(event)
		}
	}
}

// broadcastEvent sends an event to appropriate clients
func (s *Session) broadcastEvent(event *domain.SessionEvent) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	// If client-specific, send only to that client
	if event.ClientID != "" {
		if client, ok := s.clients[event.ClientID]; ok {
			if err := client.Send(event); err != nil {
				s.logger.Debug("failed to send to client", "clientID", event.ClientID, "error", err)
			}
		}
		return
	}

	for clientID, client := range s.clients {
		if err := client.Send(event); err != nil {
			s.logger.Debug("failed to send to client", "clientID", clientID, "error", err)
		}
	}
}

// Close shuts down the session
func (s *Session) Close() {
	select {
	case <-s.done:
		return // Already closed
	default:
		close(s.done)
	}

	s.replay.Close()

	// Close all client connections
	s.clientsMu.Lock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clients = make(map[string]ClientConnection)
	s.clientsMu.Unlock()
}
