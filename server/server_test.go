package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_thread_publisher/generator"
	"auto_thread_publisher/publisher"
	"auto_thread_publisher/review"
)

type stubPub struct {
	err      error
	calls    int
	schedule string
}

func (p *stubPub) Publish(_ context.Context, posts []string, schedule string) (string, error) {
	p.calls++
	p.schedule = schedule
	if p.err != nil {
		return "", p.err
	}
	return "https://typefully.com/draft/abc123", nil
}

type testEnv struct {
	ts    *httptest.Server
	pub   *stubPub
	now   time.Time
	clock func() time.Time
}

func newTestEnv(t *testing.T, apiEnabled bool) *testEnv {
	t.Helper()
	env := &testEnv{pub: &stubPub{}, now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	env.clock = func() time.Time { return env.now }

	agent, err := generator.NewAgent(generator.MockLLM{}, nil)
	require.NoError(t, err)
	mgr, err := review.NewManager(agent, env.pub, review.Options{Now: env.clock, Logger: zerolog.Nop()})
	require.NoError(t, err)
	srv, err := New(mgr, Options{APIEnabled: apiEnabled, Logger: zerolog.Nop()})
	require.NoError(t, err)

	env.ts = httptest.NewServer(srv.Routes())
	t.Cleanup(env.ts.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, user, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rdr)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

const createBody = `{"main_topic":"Launch","context":"new SDK","keywords":["go"," sdk "],"mentions":[],"tone":"casual","desired_length":3}`

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	for _, path := range []string{"/healthz", "/"} {
		resp, body := env.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK", string(body))
	}
}

func TestMetricsExposed(t *testing.T) {
	env := newTestEnv(t, false)
	resp, body := env.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "threadbot_sessions_created_total")
}

func TestAPIDisabled(t *testing.T) {
	env := newTestEnv(t, false)
	resp, _ := env.do(t, http.MethodPost, "/api/sessions", "u1", createBody)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func createSession(t *testing.T, env *testEnv) review.Snapshot {
	t.Helper()
	resp, body := env.do(t, http.MethodPost, "/api/sessions", "u1", createBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var snap review.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	return snap
}

func TestSessionFlow(t *testing.T) {
	env := newTestEnv(t, true)
	snap := createSession(t, env)
	assert.Equal(t, review.StateActive, snap.State)
	assert.Len(t, snap.Draft.Posts, 3)
	assert.Equal(t, []string{"go", "sdk"}, snap.Draft.Request.Keywords)

	resp, body := env.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/revise", "u1", `{"feedback":"shorter"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var revised review.Snapshot
	require.NoError(t, json.Unmarshal(body, &revised))
	assert.Equal(t, 1, revised.Draft.Revision)
	assert.NotEqual(t, snap.Draft.Posts, revised.Draft.Posts)

	resp, body = env.do(t, http.MethodGet, "/api/sessions/"+snap.ID+"/preview", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "revised: shorter")

	resp, body = env.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/finalize", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var fin finalizeResp
	require.NoError(t, json.Unmarshal(body, &fin))
	assert.Equal(t, "https://typefully.com/draft/abc123", fin.ShareURL)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/finalize", "u1", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 1, env.pub.calls)
}

func TestSessionErrors(t *testing.T) {
	env := newTestEnv(t, true)
	snap := createSession(t, env)

	resp, _ := env.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/revise", "intruder", `{"feedback":"x"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/sessions/"+snap.ID, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/sessions/does-not-exist", "u1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions", "u1", `{"main_topic":"x","context":"y","keywords":[],"desired_length":3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions", "u1", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.pub.err = &publisher.PublishError{Reason: "unexpected response", Status: 500}
	resp, body := env.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/finalize", "u1", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.NotContains(t, string(body), "status 500")

	env.now = env.now.Add(review.DefaultTTL)
	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/finalize", "u1", "")
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, 1, env.pub.calls)
}

func TestSessionDeadline(t *testing.T) {
	env := newTestEnv(t, true)
	body := strings.Replace(createBody, `"desired_length":3`, `"desired_length":3,"deadline":"2026-05-01T18:00:00+08:00"`, 1)
	resp, raw := env.do(t, http.MethodPost, "/api/sessions", "u1", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var snap review.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, "2026-05-01T18:00:00+08:00", snap.Draft.Request.Deadline)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/finalize", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2026-05-01T18:00:00+08:00", env.pub.schedule)

	bad := strings.Replace(createBody, `"desired_length":3`, `"desired_length":3,"deadline":"someday"`, 1)
	resp, raw = env.do(t, http.MethodPost, "/api/sessions", "u1", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "deadline")
}

func TestRenderPreviewEscapesAndFlags(t *testing.T) {
	snap := review.Snapshot{
		ID:    "s1",
		State: review.StateActive,
		Draft: review.Draft{
			Posts:   []string{"**bold** <script>alert(1)</script>", strings.Repeat("x", generator.PostCharLimit+1)},
			Request: generator.Request{Topic: "<Topic>"},
		},
	}
	page, err := RenderPreview(snap)
	require.NoError(t, err)
	assert.Contains(t, page, "<strong>bold</strong>")
	assert.NotContains(t, page, "<script>")
	assert.Contains(t, page, "&lt;Topic&gt;")
	assert.Contains(t, page, "over the limit")
}
