package review

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"auto_thread_publisher/generator"
	"auto_thread_publisher/metrics"
)

// Generator produces a thread for a request.
type Generator interface {
	Generate(ctx context.Context, req generator.Request) (generator.Thread, error)
}

// Publisher turns the final posts into a shareable draft URL.
// schedule is the thread's normalized deadline, empty for the publisher default.
type Publisher interface {
	Publish(ctx context.Context, posts []string, schedule string) (string, error)
}

// Session 持有一次推文串的多轮修订上下文。
// mu is held for the whole operation, including the external call, so a
// double-clicked finalize publishes once.
type Session struct {
	ID    string
	Owner string

	mu           sync.Mutex
	state        State
	draft        Draft
	shareURL     string
	createdAt    time.Time
	lastActivity time.Time

	ttl    time.Duration
	now    func() time.Time
	gen    Generator
	pub    Publisher
	logger zerolog.Logger
}

// expireIfStale moves an idle active session to expired. Caller holds mu.
func (s *Session) expireIfStale() {
	if s.state == StateActive && s.now().Sub(s.lastActivity) >= s.ttl {
		s.state = StateExpired
		metrics.ActiveSessions.Dec()
		s.logger.Info().Msg("session expired")
	}
}

// access runs the lazy expiry and the owner/state checks. Caller holds mu.
func (s *Session) access(caller string) error {
	s.expireIfStale()
	if caller != s.Owner {
		return ErrForbidden
	}
	switch s.state {
	case StateFinalized:
		return ErrAlreadyFinalized
	case StateExpired:
		return ErrSessionExpired
	}
	return nil
}

// Revise regenerates the thread with feedback appended to the request context.
func (s *Session) Revise(ctx context.Context, caller, feedback string) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.access(caller); err != nil {
		return Draft{}, err
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return Draft{}, fmt.Errorf("%w: feedback is required", generator.ErrInvalidRequest)
	}
	if utf8.RuneCountInString(feedback) > MaxFeedbackLen {
		return Draft{}, fmt.Errorf("%w: feedback must be at most %d characters", generator.ErrInvalidRequest, MaxFeedbackLen)
	}

	rev := s.draft.Revision + 1
	req := s.draft.Request.WithFeedback(rev, feedback)
	posts, err := s.gen.Generate(ctx, req)

	// the window may have closed while the model was running; the result is dropped
	s.expireIfStale()
	if s.state != StateActive {
		s.logger.Info().Int("revision", rev).Msg("revision finished after expiry, discarded")
		return Draft{}, ErrSessionExpired
	}
	if err != nil {
		s.logger.Error().Err(err).Int("revision", rev).Msg("revision failed")
		return Draft{}, err
	}

	now := s.now()
	s.draft = Draft{
		Posts:     posts,
		Owner:     s.Owner,
		Request:   req,
		Revision:  rev,
		CreatedAt: now,
	}
	s.lastActivity = now
	metrics.Revisions.Inc()
	s.logger.Info().Int("revision", rev).Int("posts", len(posts)).Msg("draft revised")
	return s.draft.clone(), nil
}

// Finalize publishes the current draft. A failed publish leaves the session active.
func (s *Session) Finalize(ctx context.Context, caller string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.access(caller); err != nil {
		return "", err
	}

	url, err := s.pub.Publish(ctx, s.draft.Posts, s.draft.Request.Deadline)
	if err != nil {
		metrics.IncFinalize("error")
		s.logger.Error().Err(err).Msg("finalize failed")
		return "", err
	}

	s.state = StateFinalized
	s.shareURL = url
	s.lastActivity = s.now()
	metrics.IncFinalize("ok")
	metrics.ActiveSessions.Dec()
	s.logger.Info().Str("share_url", url).Msg("session finalized")
	return url, nil
}

// Snapshot returns the current view, applying the same checks as the operations.
// Finalized sessions stay readable by their owner.
func (s *Session) Snapshot(caller string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.access(caller); err != nil && err != ErrAlreadyFinalized {
		return Snapshot{}, err
	}
	return s.snapshot(), nil
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:           s.ID,
		Owner:        s.Owner,
		State:        s.state,
		Draft:        s.draft.clone(),
		ShareURL:     s.shareURL,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		ExpiresAt:    s.lastActivity.Add(s.ttl),
	}
}

// State reports the current state after applying lazy expiry.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireIfStale()
	return s.state
}
