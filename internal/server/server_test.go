package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "trackrelay/pkg/logx"
)

const testToken = "12345:TESTTOKEN"

type recordHandler struct {
	mu      sync.Mutex
	updates []tele.Update
	block   chan struct{} // if non-nil, Handle blocks on it
}

func (h *recordHandler) Handle(ctx context.Context, u tele.Update) {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	h.updates = append(h.updates, u)
	h.mu.Unlock()
}

func (h *recordHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.updates)
}

func newTestServer(t *testing.T, h UpdateHandler) *httptest.Server {
	t.Helper()
	s := New(Config{}, testToken, h, logx.Nop())
	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestIndexBody(t *testing.T) {
	ts := newTestServer(t, &recordHandler{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "Hi there" {
		t.Fatalf("index body = %q", b)
	}
}

func TestWebhookAcksAndDispatches(t *testing.T) {
	h := &recordHandler{}
	ts := newTestServer(t, h)

	payload := []byte(`{"update_id":1,"message":{"message_id":5,"chat":{"id":42},"text":"hi"}}`)
	resp, err := http.Post(ts.URL+"/"+testToken, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "ok" {
		t.Fatalf("ack body = %q", b)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never received the update")
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.mu.Lock()
	got := h.updates[0]
	h.mu.Unlock()
	if got.Message == nil || got.Message.ID != 5 {
		t.Fatalf("decoded update wrong: %+v", got)
	}
}

func TestWebhookAckDoesNotWaitOnHandler(t *testing.T) {
	h := &recordHandler{block: make(chan struct{})}
	defer close(h.block)
	ts := newTestServer(t, h)

	payload := []byte(`{"update_id":1,"message":{"message_id":1,"chat":{"id":1}}}`)
	start := time.Now()
	resp, err := http.Post(ts.URL+"/"+testToken, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	resp.Body.Close()
	if took := time.Since(start); took > time.Second {
		t.Fatalf("ack waited on handler: %v", took)
	}
}

func TestWebhookMalformedPayloadStillAcked(t *testing.T) {
	h := &recordHandler{}
	ts := newTestServer(t, h)

	resp, err := http.Post(ts.URL+"/"+testToken, "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "ok" {
		t.Fatalf("ack body = %q", b)
	}
	time.Sleep(50 * time.Millisecond)
	if h.count() != 0 {
		t.Fatalf("malformed payload must not reach the handler")
	}
}

func TestWrongTokenIs404(t *testing.T) {
	ts := newTestServer(t, &recordHandler{})

	resp, err := http.Post(ts.URL+"/12345:WRONG", "application/json", bytes.NewReader([]byte("{}")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
