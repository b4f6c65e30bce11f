package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/mozilla/clouseau/internal/common"
	"github.com/mozilla/clouseau/internal/domain"
	"github.com/mozilla/clouseau/pkg/logger"
	"github.com/rs/zerolog"
)

// Loader performs the upstream fetches a session needs
type Loader interface {
	FetchCatalog(ctx context.Context) (domain.Catalog, error)
	FetchDataset(ctx context.Context, key domain.DatasetKey) (domain.Dataset, error)
}

// Notifier is told when a fetch completion changed a session's state
type Notifier interface {
	ViewChanged(sessionID string, idle bool)
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithNotifier reports fetch-driven state changes to n
func WithNotifier(n Notifier) SessionOption {
	return func(s *Session) { s.notifier = n }
}

type envelope struct {
	ev      Event
	applied chan struct{}
}

// Session owns one State. A single goroutine applies every event, user
// actions and fetch completions alike, so transitions never interleave.
type Session struct {
	id       string
	loader   Loader
	notifier Notifier
	log      zerolog.Logger

	events chan envelope
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.RWMutex
	state    State
	idle     chan struct{}
	lastSeen time.Time
}

// NewSession starts the event loop of a new session
func NewSession(id string, loader Loader, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	s := &Session{
		id:       id,
		loader:   loader,
		log:      logger.WithSessionID(id),
		events:   make(chan envelope, 16),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		idle:     idle,
		lastSeen: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }

// Dispatch queues ev and returns once the loop has applied it
func (s *Session) Dispatch(ctx context.Context, ev Event) error {
	env := envelope{ev: ev, applied: make(chan struct{})}
	select {
	case s.events <- env:
	case <-s.ctx.Done():
		return common.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-env.applied:
		return nil
	case <-s.ctx.Done():
		return common.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// WaitIdle blocks until no current-generation fetch is outstanding or ctx
// ends, and returns the state at that point. On ctx expiry the returned
// state is still usable and the error is ctx.Err().
func (s *Session) WaitIdle(ctx context.Context) (State, error) {
	s.mu.RLock()
	idle := s.idle
	s.mu.RUnlock()

	select {
	case <-idle:
		return s.Snapshot(), nil
	case <-s.ctx.Done():
		return s.Snapshot(), common.ErrSessionClosed
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Close stops the loop and abandons in-flight fetches
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.events:
			s.apply(env.ev)
			if env.applied != nil {
				close(env.applied)
			}
		}
	}
}

func (s *Session) apply(ev Event) {
	current := s.Snapshot()
	if current.Stale(ev) {
		staleResultsDiscarded.WithLabelValues(string(ev.Kind)).Inc()
		s.log.Debug().
			Str("event", string(ev.Kind)).
			Uint64("generation", ev.Generation).
			Msg("discarding superseded result")
		return
	}

	next, cmds := Dispatch(current, ev)
	s.logOutcome(next, ev)

	s.mu.Lock()
	s.state = next
	s.updateIdleLocked()
	s.mu.Unlock()

	for _, cmd := range cmds {
		s.execute(cmd)
	}
	if s.notifier != nil && ev.completion() {
		s.notifier.ViewChanged(s.id, next.Idle())
	}
}

func (s *Session) logOutcome(next State, ev Event) {
	switch ev.Kind {
	case EventCatalogFailed, EventDatasetFailed:
		loadFailures.WithLabelValues(string(ev.Kind)).Inc()
		s.log.Error().
			Err(ev.Err).
			Str("event", string(ev.Kind)).
			Str("key", next.Key().String()).
			Uint64("generation", ev.Generation).
			Msg("load failed")
	case EventSelectSignature:
		if !next.HasSignature || next.Signature != ev.Signature {
			s.log.Debug().Str("signature", ev.Signature).Msg("ignoring unknown signature")
		}
	case EventDatasetLoaded:
		s.log.Debug().
			Str("key", next.Key().String()).
			Int("signatures", len(next.Dataset)).
			Str("selected", next.Signature).
			Msg("dataset applied")
	}
}

// updateIdleLocked keeps s.idle closed exactly while the state is idle
func (s *Session) updateIdleLocked() {
	select {
	case <-s.idle:
		if !s.state.Idle() {
			s.idle = make(chan struct{})
		}
	default:
		if s.state.Idle() {
			close(s.idle)
		}
	}
}

func (s *Session) execute(cmd Command) {
	switch cmd.Kind {
	case CommandFetchCatalog:
		go func() {
			catalog, err := s.loader.FetchCatalog(s.ctx)
			if err != nil {
				s.post(CatalogFailed(cmd.Generation, err))
				return
			}
			s.post(CatalogLoaded(cmd.Generation, catalog))
		}()
	case CommandFetchDataset:
		go func() {
			ds, err := s.loader.FetchDataset(s.ctx, cmd.Key)
			if err != nil {
				s.post(DatasetFailed(cmd.Generation, err))
				return
			}
			s.post(DatasetLoaded(cmd.Generation, ds))
		}()
	}
}

// post hands a completion back to the loop
func (s *Session) post(ev Event) {
	select {
	case s.events <- envelope{ev: ev}:
	case <-s.ctx.Done():
	}
}
