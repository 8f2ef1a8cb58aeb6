package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"auto_thread_publisher/generator"
	"auto_thread_publisher/review"
)

// maxMessageLen is Telegram's limit for a single text message.
const maxMessageLen = 4096

const usage = `Create a thread draft:

/create
topic: ETHTaipei side events
context: what happens, who it is for
keywords: zk, defi, community
tag: @ethtaipei, @someone
length: 5
tone: normal | casual | promotional
link: https://example.com (optional)
deadline: 2026-05-01T18:00:00+08:00 (optional)

keywords are required, tag, link and deadline are optional, length is 1-10.
deadline is an ISO-8601 date or time and schedules the published thread.
After the draft arrives, use Feedback to revise it or Finalize to publish it.`

// parseCreate reads "field: value" lines into a request.
func parseCreate(args string) (generator.Request, error) {
	var req generator.Request
	var lengthSet bool
	for _, line := range strings.Split(args, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return req, fmt.Errorf("%w: expected \"field: value\", got %q", generator.ErrInvalidRequest, truncate(line, 40))
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "topic", "main", "main topic":
			req.Topic = value
		case "context":
			req.Context = value
		case "keywords", "keyword":
			req.Keywords = generator.SplitList(value)
		case "tag", "tags", "mentions":
			req.Mentions = generator.SplitList(value)
		case "length":
			n, err := strconv.Atoi(value)
			if err != nil {
				return req, fmt.Errorf("%w: length must be a number", generator.ErrInvalidRequest)
			}
			req.Length = n
			lengthSet = true
		case "tone":
			req.Tone = generator.ParseTone(value)
		case "link":
			req.Link = value
		case "deadline", "schedule":
			req.Deadline = value
		default:
			return req, fmt.Errorf("%w: unknown field %q", generator.ErrInvalidRequest, strings.TrimSpace(key))
		}
	}
	if req.Tone == "" {
		req.Tone = generator.ToneNormal
	}
	if !lengthSet {
		return req, fmt.Errorf("%w: length is required", generator.ErrInvalidRequest)
	}
	return req, req.Validate()
}

// formatDraft renders the preview message for a session snapshot.
func formatDraft(snap review.Snapshot) string {
	var b strings.Builder
	title := "Draft"
	if snap.Draft.Revision > 0 {
		title = fmt.Sprintf("Draft (revision %d)", snap.Draft.Revision)
	}
	b.WriteString(fmt.Sprintf("%s: %s\n\n", title, snap.Draft.Request.Topic))

	over := map[int]bool{}
	for _, i := range generator.OverLimit(snap.Draft.Posts, generator.PostCharLimit) {
		over[i] = true
	}
	n := len(snap.Draft.Posts)
	for i, post := range snap.Draft.Posts {
		b.WriteString(fmt.Sprintf("%d/%d %s", i+1, n, post))
		if over[i] {
			b.WriteString(fmt.Sprintf(" [%d chars, over limit]", utf8.RuneCountInString(post)))
		}
		b.WriteString("\n\n")
	}
	if snap.Draft.Request.Deadline != "" {
		b.WriteString(fmt.Sprintf("Scheduled for %s.\n", snap.Draft.Request.Deadline))
	}
	b.WriteString(fmt.Sprintf("Expires after %s of inactivity.", snap.ExpiresAt.Sub(snap.LastActivity).Round(time.Second)))
	return truncate(b.String(), maxMessageLen)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
