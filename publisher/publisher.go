package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL   = "https://api.typefully.com"
	defaultShareBase = "https://typefully.com/draft/"
	draftsPath       = "/v1/drafts/"

	// PostDelimiter separates posts in the draft body; Typefully splits on it when threadify is set.
	PostDelimiter = "\n\n\n\n"
)

// ErrPublish is matched by every *PublishError.
var ErrPublish = errors.New("publish failed")

// PublishError wraps a failed draft creation.
type PublishError struct {
	Reason string
	Status int
	Err    error
}

func (e *PublishError) Error() string {
	msg := "publish: " + e.Reason
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool { return target == ErrPublish }

// Config holds the Typefully credentials and endpoints.
type Config struct {
	APIKey    string
	BaseURL   string
	ShareBase string
	// Schedule is the default schedule-date for drafts published without their own,
	// e.g. "next-free-slot" or an ISO timestamp.
	Schedule string
	Timeout  time.Duration
}

type draftPayload struct {
	Content      string `json:"content"`
	Threadify    bool   `json:"threadify"`
	Share        bool   `json:"share"`
	ScheduleDate string `json:"schedule-date,omitempty"`
}

type draftResp struct {
	ID       json.RawMessage `json:"id"`
	ShareURL string          `json:"share_url"`
}

// Client creates shareable thread drafts.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("typefully api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ShareBase == "" {
		cfg.ShareBase = defaultShareBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("X-API-KEY", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "auto-thread-publisher/1.0")

	return &Client{cfg: cfg, http: client, logger: logger}, nil
}

// Publish creates a threadified, shared draft and returns its share URL.
// schedule is sent as schedule-date; empty falls back to Config.Schedule.
func (c *Client) Publish(ctx context.Context, posts []string, schedule string) (string, error) {
	if len(posts) == 0 {
		return "", &PublishError{Reason: "thread has no posts"}
	}
	if schedule = strings.TrimSpace(schedule); schedule == "" {
		schedule = c.cfg.Schedule
	}
	payload := draftPayload{
		Content:      strings.Join(posts, PostDelimiter),
		Threadify:    true,
		Share:        true,
		ScheduleDate: schedule,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(draftsPath)
	if err != nil {
		c.logger.Error().Err(err).Msg("typefully request failed")
		return "", &PublishError{Reason: "request failed", Err: err}
	}
	if !resp.IsSuccess() {
		c.logger.Error().Int("status", resp.StatusCode()).Str("body", resp.String()).Msg("typefully api error")
		return "", &PublishError{Reason: "unexpected response", Status: resp.StatusCode()}
	}

	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 {
		return "", &PublishError{Reason: "empty response body", Status: resp.StatusCode()}
	}
	var data draftResp
	if err := json.Unmarshal(body, &data); err != nil {
		return "", &PublishError{Reason: "invalid response body", Status: resp.StatusCode(), Err: err}
	}

	shareURL := c.shareURL(data)
	if shareURL == "" {
		return "", &PublishError{Reason: "response has neither share_url nor id", Status: resp.StatusCode()}
	}
	c.logger.Info().Str("share_url", shareURL).Int("posts", len(posts)).Msg("thread draft created")
	return shareURL, nil
}

func (c *Client) shareURL(data draftResp) string {
	if u := strings.TrimSpace(data.ShareURL); u != "" {
		return u
	}
	id := draftID(data.ID)
	if id == "" {
		return ""
	}
	return c.cfg.ShareBase + id
}

// draftID accepts the id as a JSON string or number.
func draftID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
