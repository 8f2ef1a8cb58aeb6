// Package review holds in-flight thread drafts while their owner revises or finalizes them.
package review

import (
	"errors"
	"time"

	"auto_thread_publisher/generator"
)

const (
	// DefaultTTL is the inactivity window after which a session expires.
	DefaultTTL = 10 * time.Minute
	// MaxFeedbackLen bounds a single revision comment, in characters.
	MaxFeedbackLen = 1000
)

var (
	ErrForbidden        = errors.New("session belongs to another user")
	ErrSessionExpired   = errors.New("session expired")
	ErrAlreadyFinalized = errors.New("session already finalized")
	ErrSessionNotFound  = errors.New("session not found")
)

// State is the lifecycle state of a Session.
type State string

const (
	StateActive    State = "active"
	StateFinalized State = "finalized"
	StateExpired   State = "expired"
)

// IsTerminal reports whether no further operations are accepted.
func (s State) IsTerminal() bool {
	return s == StateFinalized || s == StateExpired
}

func (s State) String() string { return string(s) }

// Draft is one generated version of the thread. Revisions replace it, never mutate it.
type Draft struct {
	Posts     []string          `json:"posts"`
	Owner     string            `json:"owner_id"`
	Request   generator.Request `json:"source_request"`
	Revision  int               `json:"revision"`
	CreatedAt time.Time         `json:"created_at"`
}

func (d Draft) clone() Draft {
	out := d
	out.Posts = append([]string(nil), d.Posts...)
	out.Request = d.Request.Clone()
	return out
}

// Snapshot is a read-only view of a Session.
type Snapshot struct {
	ID           string    `json:"session_id"`
	Owner        string    `json:"owner_id"`
	State        State     `json:"state"`
	Draft        Draft     `json:"draft"`
	ShareURL     string    `json:"share_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}
