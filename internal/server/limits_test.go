package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/ttscore/internal/core"
)

func TestTTS_OversizedTextRejectedAs413(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{}, fakeVoiceLister{}, WithMaxTextBytes(10))

	body := map[string]string{"text": strings.Repeat("a", 11), "voice": "alba"}
	rec := postJSON(h, "/tts", body)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d; want 413", rec.Code)
	}
}

func TestTTS_TextAtExactLimitIsAccepted(t *testing.T) {
	sub := &fakeSynthesizer{resp: &core.Response{Audio: []byte{1}}}
	h := NewHandler(sub, fakeVoiceLister{}, WithMaxTextBytes(10))

	body := map[string]string{"text": strings.Repeat("a", 10), "voice": "alba"}
	rec := postJSON(h, "/tts", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200, body=%s", rec.Code, rec.Body.String())
	}
}

// blockingSynthesizer blocks on Synthesize until released, letting tests
// observe worker-semaphore throttling deterministically.
type blockingSynthesizer struct {
	release chan struct{}
}

func (b *blockingSynthesizer) Synthesize(ctx context.Context, req core.Request) (*core.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &core.Response{Audio: []byte{1}}, nil
}

func (b *blockingSynthesizer) SynthesizeStream(ctx context.Context, req core.Request) (string, <-chan core.ChunkResult, func(), error) {
	return "", nil, nil, nil
}

func TestTTS_ConcurrencyThrottling(t *testing.T) {
	sub := &blockingSynthesizer{release: make(chan struct{})}
	h := NewHandler(sub, fakeVoiceLister{}, WithWorkers(1))

	var wg sync.WaitGroup
	results := make([]*httptest.ResponseRecorder, 2)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(map[string]string{"text": "hello there", "voice": "alba"})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/tts", bytes.NewReader(body))
			h.ServeHTTP(rec, req)
			results[i] = rec
		}(i)
	}

	// Give both goroutines a chance to reach the handler; one should be
	// holding the single worker slot while the other queues behind it.
	time.Sleep(50 * time.Millisecond)
	close(sub.release)
	wg.Wait()

	for i, rec := range results {
		if rec.Code != http.StatusOK {
			t.Errorf("result[%d].Code = %d; want 200, body=%s", i, rec.Code, rec.Body.String())
		}
	}
}

func TestTTS_WaiterCancelledWhileThrottled(t *testing.T) {
	sub := &blockingSynthesizer{release: make(chan struct{})}
	defer close(sub.release)

	h := NewHandler(sub, fakeVoiceLister{}, WithWorkers(1))

	// Occupy the only worker slot.
	go func() {
		body, _ := json.Marshal(map[string]string{"text": "hello there", "voice": "alba"})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/tts", bytes.NewReader(body))
		h.ServeHTTP(rec, req)
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body, _ := json.Marshal(map[string]string{"text": "hello there", "voice": "alba"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tts", bytes.NewReader(body)).WithContext(ctx)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want 503, body=%s", rec.Code, rec.Body.String())
	}
}
