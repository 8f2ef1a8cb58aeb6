package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRequest() Request {
	return Request{
		Topic:    "Launch week",
		Context:  "We ship a new SDK",
		Keywords: []string{"alpha", "beta"},
		Tone:     ToneNormal,
		Length:   4,
	}
}

func TestBuildPrompt_KeywordsNoMentions(t *testing.T) {
	p, err := BuildPrompt(baseRequest(), nil)
	require.NoError(t, err)

	assert.Contains(t, p.User, "alpha, beta")
	assert.NotContains(t, p.User, "Accounts to Tag")
	assert.NotContains(t, p.User, "Link:")
	assert.Contains(t, p.User, "Approximate Thread Length: 4 posts")
	assert.Contains(t, p.User, "280 characters")
	assert.Equal(t, DefaultTones()[ToneNormal], p.System)
}

func TestBuildPrompt_FieldOrder(t *testing.T) {
	req := baseRequest()
	req.Mentions = []string{"@one", "@two"}
	req.Link = "https://example.com/post"

	p, err := BuildPrompt(req, nil)
	require.NoError(t, err)

	order := []string{
		"Main Topic: Launch week",
		"Context: We ship a new SDK",
		"Required Keywords: alpha, beta",
		"Accounts to Tag: @one, @two",
		"Link: https://example.com/post",
		"Approximate Thread Length: 4 posts",
		"numbered list",
	}
	last := -1
	for _, s := range order {
		i := strings.Index(p.User, s)
		require.GreaterOrEqual(t, i, 0, "missing %q", s)
		assert.Greater(t, i, last, "%q out of order", s)
		last = i
	}
	assert.Contains(t, p.User, "does not have to be the last post")
}

func TestBuildPrompt_ToneNotInInstruction(t *testing.T) {
	req := baseRequest()
	req.Tone = TonePromotional
	p, err := BuildPrompt(req, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultTones()[TonePromotional], p.System)
	assert.NotContains(t, p.User, p.System)
}

func TestBuildPrompt_UnknownToneFallsBack(t *testing.T) {
	req := baseRequest()
	req.Tone = Tone("pirate")
	p, err := BuildPrompt(req, Tones{ToneNormal: "normal preamble"})
	require.NoError(t, err)
	assert.Equal(t, "normal preamble", p.System)
}

func TestBuildPrompt_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"no topic", func(r *Request) { r.Topic = "  " }},
		{"no context", func(r *Request) { r.Context = "" }},
		{"no keywords", func(r *Request) { r.Keywords = nil }},
		{"length too small", func(r *Request) { r.Length = 0 }},
		{"length too large", func(r *Request) { r.Length = MaxLength + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(&req)
			_, err := BuildPrompt(req, nil)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestParseTone(t *testing.T) {
	assert.Equal(t, ToneCasual, ParseTone("Casual"))
	assert.Equal(t, ToneCasual, ParseTone("intern"))
	assert.Equal(t, TonePromotional, ParseTone("marketing"))
	assert.Equal(t, ToneNormal, ParseTone(""))
	assert.Equal(t, ToneNormal, ParseTone("weird"))
}

func TestWithFeedbackAppends(t *testing.T) {
	req := baseRequest()
	rev := req.WithFeedback(1, " shorter ")

	assert.Equal(t, "We ship a new SDK", req.Context)
	assert.True(t, strings.HasPrefix(rev.Context, "We ship a new SDK"))
	assert.Contains(t, rev.Context, "[Revision 1 feedback]: shorter")

	rev.Keywords[0] = "changed"
	assert.Equal(t, "alpha", req.Keywords[0])
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, SplitList(" a, b c ,, d ,"))
	assert.Nil(t, SplitList(" , "))
}

func TestNormalizeDeadline(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{" 2026-05-01T18:00:00+08:00 ", "2026-05-01T18:00:00+08:00"},
		{"2026-05-01T10:00:00Z", "2026-05-01T10:00:00Z"},
		{"2026-05-01T18:00", "2026-05-01T18:00:00"},
		{"2026-05-01 18:30:15", "2026-05-01T18:30:15"},
		{"2026-05-01", "2026-05-01T00:00:00"},
	}
	for _, tt := range tests {
		got, err := NormalizeDeadline(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"tomorrow", "2026-13-01", "05/01/2026 18:00"} {
		_, err := NormalizeDeadline(bad)
		assert.ErrorIs(t, err, ErrInvalidRequest, bad)
	}
}

func TestValidate_Deadline(t *testing.T) {
	req := baseRequest()
	req.Deadline = "next week"
	err := req.Validate()
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "deadline")

	req.Deadline = "2026-05-01T18:00:00+08:00"
	assert.NoError(t, req.Validate())
}
