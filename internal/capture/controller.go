package capture

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kimhsiao/gosauna/backend/internal/logging"
	"github.com/kimhsiao/gosauna/backend/internal/models"
	"github.com/kimhsiao/gosauna/backend/internal/uuid"
)

// Defaults for the confirmation poll loop.
const (
	DefaultPollInterval = 250 * time.Millisecond
	DefaultMaxPolls     = 40
)

var (
	confirmLabel     = regexp.MustCompile(`confirm booking`)
	confirmedHeading = regexp.MustCompile(`(?i)booking confirmed`)
)

// Abandon reasons.
const (
	ReasonTimeout = "timeout"
	ReasonStopped = "stopped"
)

// Committer persists a confirmed draft.
type Committer interface {
	Upsert(ctx context.Context, record models.Booking) models.Booking
}

// ClickResult is the outcome of HandleClick.
type ClickResult string

const (
	ClickIgnored    ClickResult = "ignored"    // not a confirm control
	ClickSuppressed ClickResult = "suppressed" // draft has no guest identity
	ClickBusy       ClickResult = "busy"       // a capture is already pending
	ClickWatching   ClickResult = "watching"   // a session was started
)

// OutcomeHandler is called once per session when it commits or is abandoned.
type OutcomeHandler func(Session)

// Config configures a Controller.
type Config struct {
	PollInterval time.Duration
	MaxPolls     int
	OnOutcome    OutcomeHandler
}

// Controller owns the capture session for one page.
type Controller struct {
	store     Committer
	page      PageAdapter
	interval  time.Duration
	maxPolls  int
	onOutcome OutcomeHandler

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active *Session
	last   *Session
	wg     sync.WaitGroup
}

// NewController creates a Controller committing into store.
func NewController(store Committer, page PageAdapter, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:     store,
		page:      page,
		interval:  cfg.PollInterval,
		maxPolls:  cfg.MaxPolls,
		onOutcome: cfg.OnOutcome,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// HandleClick reacts to a click on a control labelled label. Only confirm
// controls start a capture. The watch loop outlives ctx; it ends on
// confirmation, on the poll budget, or on Stop.
func (c *Controller) HandleClick(ctx context.Context, label string) (ClickResult, *Session) {
	if !confirmLabel.MatchString(strings.ToLower(strings.TrimSpace(label))) {
		return ClickIgnored, nil
	}
	if ctx.Err() != nil || c.ctx.Err() != nil {
		return ClickIgnored, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		logging.Debug("Capture already pending, click ignored",
			map[string]interface{}{"session_id": c.active.ID})
		return ClickBusy, c.snapshot(c.active)
	}

	draft := c.page.ExtractDraft()
	if !draft.HasGuestIdentity() {
		logging.Debug("Capture draft without guest identity suppressed", nil)
		return ClickSuppressed, nil
	}

	session := &Session{
		ID:        uuid.New(),
		State:     StateDrafted,
		Draft:     draft,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	c.active = session

	session.State = StateWatching
	c.wg.Add(1)
	go c.watch(session)

	logging.Info("Capture watching for confirmation",
		map[string]interface{}{
			"session_id": session.ID,
			"max_polls":  c.maxPolls,
		})

	return ClickWatching, c.snapshot(session)
}

// watch polls the page headings until confirmation, budget exhaustion or Stop.
func (c *Controller) watch(session *Session) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.finish(session, StateAbandoned, ReasonStopped)
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		session.Polls++
		polls := session.Polls
		c.mu.Unlock()

		if confirmed(c.page.Headings()) {
			record := c.store.Upsert(c.ctx, withLocalOrigin(session.Draft))
			c.mu.Lock()
			session.Record = record
			c.mu.Unlock()
			c.finish(session, StateCommitted, "")
			return
		}

		if polls >= c.maxPolls {
			c.finish(session, StateAbandoned, ReasonTimeout)
			return
		}
	}
}

func (c *Controller) finish(session *Session, state State, reason string) {
	c.mu.Lock()
	now := time.Now()
	session.State = state
	session.Reason = reason
	session.EndedAt = &now
	c.active = nil
	c.last = session
	out := *c.snapshot(session)
	c.mu.Unlock()

	close(session.done)

	fields := map[string]interface{}{
		"session_id": session.ID,
		"state":      state,
		"polls":      out.Polls,
	}
	if state == StateCommitted {
		fields["booking_id"] = out.Record.ID
		logging.Info("Capture committed", fields)
	} else {
		fields["reason"] = reason
		logging.Info("Capture abandoned, draft discarded", fields)
	}

	if c.onOutcome != nil {
		c.onOutcome(out)
	}
}

// State returns the active session's state, or idle when none is pending.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return StateIdle
	}
	return c.active.State
}

// Active returns a copy of the pending session, if any.
func (c *Controller) Active() (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil, false
	}
	return c.snapshot(c.active), true
}

// Last returns a copy of the most recently finished session, if any.
func (c *Controller) Last() (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil, false
	}
	return c.snapshot(c.last), true
}

// Wait blocks until no session is pending or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	session := c.active
	c.mu.Unlock()
	if session == nil {
		return nil
	}

	select {
	case <-session.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop abandons any pending session and waits for its loop to exit. The
// controller ignores clicks afterwards.
func (c *Controller) Stop() {
	c.cancel()
	c.wg.Wait()
}

// snapshot copies s for callers; c.mu must be held.
func (c *Controller) snapshot(s *Session) *Session {
	cp := *s
	return &cp
}

func confirmed(headings []string) bool {
	for _, h := range headings {
		if confirmedHeading.MatchString(h) {
			return true
		}
	}
	return false
}

func withLocalOrigin(draft models.Booking) models.Booking {
	draft.Origin = models.OriginLocal
	return draft
}
