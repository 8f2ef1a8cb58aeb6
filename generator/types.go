package generator

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MinLength and MaxLength bound Request.Length（帖子数量）。
	MinLength = 1
	MaxLength = 10

	// PostCharLimit is the platform limit for a single post.
	PostCharLimit = 280
)

// ErrInvalidRequest marks user-supplied input that cannot be turned into a prompt.
var ErrInvalidRequest = errors.New("invalid request")

// Tone selects the style preamble used as the system prompt.
type Tone string

const (
	ToneNormal      Tone = "normal"
	ToneCasual      Tone = "casual"
	TonePromotional Tone = "promotional"
)

// AllTones lists the supported tones in display order.
var AllTones = []Tone{ToneNormal, ToneCasual, TonePromotional}

// ParseTone 将用户输入映射到 Tone，未知值回落到 normal。
func ParseTone(s string) Tone {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "casual", "intern":
		return ToneCasual
	case "promotional", "marketing":
		return TonePromotional
	default:
		return ToneNormal
	}
}

// Request describes the thread the user wants generated.
type Request struct {
	Topic    string   `json:"main_topic"`
	Context  string   `json:"context"`
	Keywords []string `json:"keywords"`
	Mentions []string `json:"mentions,omitempty"`
	Tone     Tone     `json:"tone"`
	Length   int      `json:"desired_length"`
	Link     string   `json:"link,omitempty"`
	// Deadline schedules the published draft; ISO-8601, empty means the publisher default.
	Deadline string   `json:"deadline,omitempty"`
}

// deadlineLayouts are the accepted ISO-8601 forms, zoned first.
var deadlineLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339, true},
	{"2006-01-02T15:04Z07:00", true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02 15:04", false},
	{"2006-01-02", false},
}

// NormalizeDeadline parses an ISO-8601 date or timestamp and returns it in the
// form sent as schedule-date. Timestamps without an offset stay local to the API account.
func NormalizeDeadline(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, l := range deadlineLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		if l.zoned {
			return t.Format(time.RFC3339), nil
		}
		return t.Format("2006-01-02T15:04:05"), nil
	}
	return "", fmt.Errorf("%w: deadline must be an ISO-8601 date or time, e.g. 2026-05-01T18:00:00+08:00", ErrInvalidRequest)
}

// Validate reports the first problem with the request, wrapped in ErrInvalidRequest.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return fmt.Errorf("%w: main topic is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Context) == "" {
		return fmt.Errorf("%w: context is required", ErrInvalidRequest)
	}
	if len(r.Keywords) == 0 {
		return fmt.Errorf("%w: at least one keyword is required", ErrInvalidRequest)
	}
	if r.Length < MinLength || r.Length > MaxLength {
		return fmt.Errorf("%w: length must be between %d and %d", ErrInvalidRequest, MinLength, MaxLength)
	}
	if _, err := NormalizeDeadline(r.Deadline); err != nil {
		return err
	}
	return nil
}

// Clone returns a copy that shares no slices with r.
func (r Request) Clone() Request {
	out := r
	out.Keywords = append([]string(nil), r.Keywords...)
	if r.Mentions != nil {
		out.Mentions = append([]string(nil), r.Mentions...)
	}
	return out
}

// WithFeedback returns a copy whose context carries the feedback as a numbered addendum.
// The previous context is kept as-is.
func (r Request) WithFeedback(revision int, feedback string) Request {
	out := r.Clone()
	out.Context = fmt.Sprintf("%s\n\n[Revision %d feedback]: %s", strings.TrimRight(r.Context, "\n"), revision, strings.TrimSpace(feedback))
	return out
}

// SplitList splits comma separated input, dropping blank items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Thread is the parsed model output: one string per post.
type Thread []string
