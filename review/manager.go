package review

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"auto_thread_publisher/generator"
	"auto_thread_publisher/metrics"
)

// Options tune a Manager. Zero values fall back to defaults.
type Options struct {
	TTL    time.Duration
	Now    func() time.Time
	Logger zerolog.Logger
}

// Manager creates sessions and keeps them in memory for the process lifetime.
type Manager struct {
	gen    Generator
	pub    Publisher
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	// tombstones remember the terminal state of swept sessions
	tombstones map[string]tombstone
}

// TombstoneTTL is how long a swept session keeps answering with its terminal state
// instead of ErrSessionNotFound.
const TombstoneTTL = 24 * time.Hour

type tombstone struct {
	state State
	at    time.Time
}

func NewManager(gen Generator, pub Publisher, opts Options) (*Manager, error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		gen:        gen,
		pub:        pub,
		ttl:        opts.TTL,
		now:        opts.Now,
		logger:     opts.Logger,
		sessions:   make(map[string]*Session),
		tombstones: make(map[string]tombstone),
	}, nil
}

// TTL returns the inactivity window applied to new sessions.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Create validates the request, generates the first draft and registers an active session.
func (m *Manager) Create(ctx context.Context, req generator.Request, owner string) (*Session, error) {
	if owner == "" {
		return nil, ErrForbidden
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Clone()
	req.Deadline, _ = generator.NormalizeDeadline(req.Deadline)

	posts, err := m.gen.Generate(ctx, req)
	if err != nil {
		m.logger.Error().Err(err).Str("owner", owner).Msg("initial generation failed")
		return nil, err
	}

	now := m.now()
	id := uuid.NewString()
	sess := &Session{
		ID:    id,
		Owner: owner,
		state: StateActive,
		draft: Draft{
			Posts:     posts,
			Owner:     owner,
			Request:   req,
			CreatedAt: now,
		},
		createdAt:    now,
		lastActivity: now,
		ttl:          m.ttl,
		now:          m.now,
		gen:          m.gen,
		pub:          m.pub,
		logger:       m.logger.With().Str("session", id).Str("owner", owner).Logger(),
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.ActiveSessions.Inc()
	sess.logger.Info().Int("posts", len(posts)).Str("tone", string(req.Tone)).Msg("session created")
	return sess, nil
}

// Get looks up a session by id. A swept session reports ErrAlreadyFinalized or
// ErrSessionExpired for TombstoneTTL after removal.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}
	if ts, ok := m.tombstones[id]; ok {
		if ts.state == StateFinalized {
			return nil, ErrAlreadyFinalized
		}
		return nil, ErrSessionExpired
	}
	return nil, ErrSessionNotFound
}

// Len returns the number of sessions held, in any state.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep expires idle sessions and forgets every session idle past the TTL.
// Sessions busy with an external call are skipped until the next sweep.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, sess := range m.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		sess.expireIfStale()
		idle := m.now().Sub(sess.lastActivity) >= m.ttl
		state := sess.state
		sess.mu.Unlock()

		if state.IsTerminal() && idle {
			delete(m.sessions, id)
			m.tombstones[id] = tombstone{state: state, at: m.now()}
			removed++
		}
	}
	for id, ts := range m.tombstones {
		if m.now().Sub(ts.at) >= TombstoneTTL {
			delete(m.tombstones, id)
		}
	}
	if removed > 0 {
		m.logger.Debug().Int("removed", removed).Int("remaining", len(m.sessions)).Msg("session sweep")
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
