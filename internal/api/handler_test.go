//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/memchat/internal/config"
	"github.com/ashureev/memchat/internal/domain"
	"github.com/ashureev/memchat/internal/identity"
	"github.com/ashureev/memchat/internal/judge"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

type fakeChat struct {
	mu       sync.Mutex
	messages map[string][]domain.ChatMessage
	resets   []string
}

func newFakeChat() *fakeChat {
	return &fakeChat{messages: make(map[string][]domain.ChatMessage)}
}

func (f *fakeChat) History(_ context.Context, id string) []domain.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages[id]) == 0 {
		f.messages[id] = []domain.ChatMessage{{Role: domain.RoleAssistant, Content: "**Hello!**"}}
	}
	return f.messages[id]
}

func (f *fakeChat) Send(_ context.Context, id, text string) []domain.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	turn := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: text},
		{Role: domain.RoleAssistant, Content: "you said " + text},
	}
	f.messages[id] = append(f.messages[id], turn...)
	return turn
}

func (f *fakeChat) Reset(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, id)
	f.resets = append(f.resets, id)
}

type fakeClassifier struct {
	verdict *judge.Verdict
	err     error
}

func (f fakeClassifier) Classify(_ context.Context, raw string) (*judge.Verdict, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, judge.ErrEmptyEmail
	}
	return f.verdict, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type recordingPublisher struct {
	mu   sync.Mutex
	sent map[string][]MessageView
}

func (p *recordingPublisher) Publish(id string, msgs []MessageView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent == nil {
		p.sent = make(map[string][]MessageView)
	}
	p.sent[id] = append(p.sent[id], msgs...)
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		h.Close()
	})
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func decodeMessages(t *testing.T, resp *http.Response) []MessageView {
	t.Helper()
	defer resp.Body.Close()
	var body chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Messages
}

func TestChatFlow(t *testing.T) {
	t.Parallel()

	svc := newFakeChat()
	pub := &recordingPublisher{}
	h := NewHandler(svc, nil, nil, nil, nil)
	h.SetPublisher(pub)
	srv := newTestServer(t, h)
	client := newClient(t)

	resp, err := client.Get(srv.URL + "/api/chat")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeMessages(t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, domain.RoleAssistant, history[0].Role)
	assert.Contains(t, history[0].HTML, "<strong>Hello!</strong>")

	resp, err = client.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{"message":"I am Frank"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	turn := decodeMessages(t, resp)
	require.Len(t, turn, 2)
	assert.Equal(t, "I am Frank", turn[0].Content)
	assert.Empty(t, turn[0].HTML)
	assert.Equal(t, "you said I am Frank", turn[1].Content)

	resp, err = client.Get(srv.URL + "/api/chat")
	require.NoError(t, err)
	assert.Len(t, decodeMessages(t, resp), 3, "the same cookie sees the same conversation")

	pub.mu.Lock()
	assert.Len(t, pub.sent, 1)
	pub.mu.Unlock()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/chat", nil)
	require.NoError(t, err)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Len(t, svc.resets, 1)
}

func TestPostChatValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, NewHandler(newFakeChat(), nil, nil, nil, nil))
	client := newClient(t)

	for _, body := range []string{`{"message":"   "}`, `not json`} {
		resp, err := client.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}

	h := NewHandler(newFakeChat(), nil, nil, nil, nil)
	defer h.Close()
	big := bytes.Repeat([]byte("a"), maxRequestBodySize+10)
	payload := append([]byte(`{"message":"`), append(big, []byte(`"}`)...)...)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	req = req.WithContext(identity.WithUISessionID(req.Context(), "ui-1"))
	rec := httptest.NewRecorder()
	h.PostChat(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChatRequiresUISession(t *testing.T) {
	t.Parallel()

	h := NewHandler(newFakeChat(), nil, nil, nil, nil)
	defer h.Close()
	rec := httptest.NewRecorder()
	h.GetChat(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostChatRateLimited(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.RateLimit.RequestsPerWindow = 2
	srv := newTestServer(t, NewHandler(newFakeChat(), nil, nil, cfg, nil))
	client := newClient(t)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := client.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{"message":"hi"}`))
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestClassifyEmail(t *testing.T) {
	t.Parallel()

	verdict := &judge.Verdict{Label: judge.LabelImportant, Reasoning: "career fair", Markdown: "📌 IMPORTANT"}
	srv := newTestServer(t, NewHandler(newFakeChat(), fakeClassifier{verdict: verdict}, nil, nil, nil))
	client := newClient(t)

	resp, err := client.Post(srv.URL+"/api/email/classify", "application/json", strings.NewReader(`{"email":"Subject: fair\n\ncome"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got judge.Verdict
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, judge.LabelImportant, got.Label)
	assert.Equal(t, "career fair", got.Reasoning)

	resp2, err := client.Post(srv.URL+"/api/email/classify", "application/json", strings.NewReader(`{"email":""}`))
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestClassifyEmailFailures(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, NewHandler(newFakeChat(), fakeClassifier{err: errors.New("upstream down")}, nil, nil, nil))
	resp, err := newClient(t).Post(srv.URL+"/api/email/classify", "application/json", strings.NewReader(`{"email":"hello"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	unconfigured := newTestServer(t, NewHandler(newFakeChat(), nil, nil, nil, nil))
	resp, err = newClient(t).Post(unconfigured.URL+"/api/email/classify", "application/json", strings.NewReader(`{"email":"hello"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestEmailSamples(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, NewHandler(newFakeChat(), nil, nil, nil, nil))
	resp, err := http.Get(srv.URL + "/api/email/samples")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Samples []sampleView `json:"samples"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Samples, len(judge.Samples))
	assert.Equal(t, "internship-fair", body.Samples[0].Name)
	assert.Contains(t, body.Samples[0].Email, "Subject:")
}

func TestHealth(t *testing.T) {
	t.Parallel()

	healthy := newTestServer(t, NewHandler(newFakeChat(), nil, fakePinger{}, nil, nil))
	resp, err := http.Get(healthy.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	broken := newTestServer(t, NewHandler(newFakeChat(), nil, fakePinger{err: errors.New("closed")}, nil, nil))
	resp, err = http.Get(broken.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRateLimiterWindow(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 30*time.Millisecond)
	defer rl.Stop()

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	time.Sleep(40 * time.Millisecond)
	assert.True(t, rl.Allow("a"))

	rl.Stop()
	rl.Stop()
}
