package replay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"varulv/internal/domain"
	"varulv/internal/tally"
)

// DefaultDelay is the pause between frames when none is configured
const DefaultDelay = 200 * time.Millisecond

// State is the controller's run state
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
)

// Frame is one step of a replay: the view built from the first Cursor events
type Frame struct {
	Generation uint64        `json:"generation"`
	Cursor     int           `json:"cursor"`
	Total      int           `json:"total"`
	Cutoff     domain.Cutoff `json:"cutoff"`
	View       *tally.View   `json:"-"`
}

// Status describes the controller at a point in time
type Status struct {
	State      State         `json:"state"`
	Cursor     int           `json:"cursor"`
	Total      int           `json:"total"`
	Cutoff     domain.Cutoff `json:"cutoff"`
	Generation uint64        `json:"generation"`
}

// Running reports whether a replay is in progress
func (s Status) Running() bool {
	return s.State == StateRunning
}

// Sink receives the frames of a replay. Its methods are called with the
// controller locked and must not call back into the controller.
type Sink interface {
	RenderFrame(frame Frame)
	ReplayDone(status Status)
}

// ModeFunc returns the view mode to use for the next frame
type ModeFunc func() domain.ViewMode

// Controller replays vote events frame by frame. At most one replay runs at a time.
type Controller struct {
	mu         sync.Mutex
	state      State
	cursor     int
	total      int
	cutoff     domain.Cutoff
	generation uint64
	delay      time.Duration
	cancel     context.CancelFunc
	runDone    chan struct{}
	closed     bool

	sink   Sink
	mode   ModeFunc
	logger *slog.Logger
}

// NewController creates an idle controller
func NewController(sink Sink, mode ModeFunc, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		state:  StateIdle,
		delay:  DefaultDelay,
		sink:   sink,
		mode:   mode,
		logger: logger,
	}
}

// SetDelay sets the pause between frames of the next replay. Non-positive values restore DefaultDelay.
func (c *Controller) SetDelay(d time.Duration) {
	if d <= 0 {
		d = DefaultDelay
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

// Delay returns the configured pause between frames
func (c *Controller) Delay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

// Status returns the current run state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	return Status{
		State:      c.state,
		Cursor:     c.cursor,
		Total:      c.total,
		Cutoff:     c.cutoff,
		Generation: c.generation,
	}
}

// Start replays the events at or before cutoff. It returns false without
// touching the running replay if one is already in progress.
func (c *Controller) Start(events []domain.VoteEvent, cutoff domain.Cutoff) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state == StateRunning {
		return false
	}

	admitted := tally.Resolve(events, domain.ViewAll, cutoff)
	ctx, cancel := context.WithCancel(context.Background())

	c.state = StateRunning
	c.cursor = 0
	c.total = len(admitted)
	c.cutoff = cutoff
	c.cancel = cancel
	c.runDone = make(chan struct{})

	c.logger.Debug("replay started", "generation", c.generation, "events", len(admitted), "delay", c.delay)

	go c.run(ctx, c.generation, admitted, cutoff, c.delay, c.runDone)

	return true
}

// run renders frames 0..len(events), pausing between them
func (c *Controller) run(ctx context.Context, gen uint64, events []domain.VoteEvent, cutoff domain.Cutoff, delay time.Duration, done chan struct{}) {
	defer close(done)

	for i := 0; i <= len(events); i++ {
		view := tally.BuildView(events[:i], c.mode(), domain.NoCutoff())

		if !c.emit(gen, Frame{Generation: gen, Cursor: i, Total: len(events), Cutoff: cutoff, View: view}) {
			c.logger.Debug("replay superseded", "generation", gen, "cursor", i)
			return
		}

		if i == len(events) {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Debug("replay superseded", "generation", gen, "cursor", i)
			return
		case <-timer.C:
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	c.state = StateIdle
	c.cancel()
	c.logger.Debug("replay completed", "generation", gen, "frames", len(events)+1)
	c.sink.ReplayDone(c.statusLocked())
}

// emit renders a frame unless its run has been superseded
func (c *Controller) emit(gen uint64, frame Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.cursor = frame.Cursor
	c.sink.RenderFrame(frame)
	return true
}

// Supersede abandons the running replay, if any. Its remaining frames are never rendered
// and a new replay may start immediately.
func (c *Controller) Supersede() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersedeLocked()
}

func (c *Controller) supersedeLocked() {
	c.generation++
	if c.state == StateRunning {
		c.cancel()
		c.state = StateIdle
	}
}

// Wait blocks until the most recent replay goroutine has exited
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.runDone
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops any replay and refuses new ones
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.supersedeLocked()
}
