package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/ttscore/internal/core"
)

func TestTTSStream_MethodNotAllowed(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{}, fakeVoiceLister{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tts/stream", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d; want 405", rec.Code)
	}
}

func TestTTSStream_EmptyTextReturns400(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{}, fakeVoiceLister{})

	rec := postJSON(h, "/tts/stream", map[string]string{"voice": "alba"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

func TestTTSStream_SetsGenerationIDHeaderAndBody(t *testing.T) {
	sub := &fakeSynthesizer{chunks: []core.ChunkResult{
		{Ordinal: 0, Audio: []byte{1, 2}, Duration: 0.1},
		{Ordinal: 1, Audio: []byte{3, 4}, Duration: 0.1, Final: true},
	}}
	h := NewHandler(sub, fakeVoiceLister{})

	rec := postJSON(h, "/tts/stream", map[string]string{"text": "hello there", "voice": "alba"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200, body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Generation-ID") != "gen-123" {
		t.Errorf("X-Generation-ID = %q; want gen-123", rec.Header().Get("X-Generation-ID"))
	}
	want := []byte{1, 2, 3, 4}
	if !bytes.Equal(rec.Body.Bytes(), want) {
		t.Errorf("body = %v; want %v", rec.Body.Bytes(), want)
	}
}

func TestTTSStream_SkipsFailedChunks(t *testing.T) {
	sub := &fakeSynthesizer{chunks: []core.ChunkResult{
		{Ordinal: 0, Err: errSentinel{}},
		{Ordinal: 1, Audio: []byte{9}, Final: true},
	}}
	h := NewHandler(sub, fakeVoiceLister{})

	rec := postJSON(h, "/tts/stream", map[string]string{"text": "hello there", "voice": "alba"})

	if !bytes.Equal(rec.Body.Bytes(), []byte{9}) {
		t.Errorf("body = %v; want [9]", rec.Body.Bytes())
	}
}

func TestTTSSSE_EmitsStartChunkAndComplete(t *testing.T) {
	sub := &fakeSynthesizer{chunks: []core.ChunkResult{
		{Ordinal: 0, Audio: []byte{5, 6}, Duration: 0.2, Final: true},
	}}
	h := NewHandler(sub, fakeVoiceLister{})

	rec := postJSON(h, "/tts/sse", map[string]string{"text": "hello there", "voice": "alba"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200, body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q; want text/event-stream", rec.Header().Get("Content-Type"))
	}

	events, datas := parseSSE(t, rec.Body.Bytes())
	if len(events) < 3 {
		t.Fatalf("got %d events; want at least 3 (start, chunk, complete): %v", len(events), events)
	}
	if events[0] != "start" {
		t.Errorf("first event = %q; want start", events[0])
	}
	if events[len(events)-1] != "complete" {
		t.Errorf("last event = %q; want complete", events[len(events)-1])
	}

	var sawChunk bool
	for i, ev := range events {
		if ev != "chunk" {
			continue
		}
		sawChunk = true
		var payload sseEvent
		if err := json.Unmarshal([]byte(datas[i]), &payload); err != nil {
			t.Fatalf("unmarshal chunk event: %v", err)
		}
		if payload.ChunkID != 0 || !payload.Final {
			t.Errorf("chunk payload = %+v; want ChunkID=0 Final=true", payload)
		}
	}
	if !sawChunk {
		t.Error("no chunk event found")
	}
}

func TestTTSSSE_EmitsErrorEventOnChunkFailure(t *testing.T) {
	sub := &fakeSynthesizer{chunks: []core.ChunkResult{
		{Ordinal: 0, Err: errSentinel{}},
	}}
	h := NewHandler(sub, fakeVoiceLister{})

	rec := postJSON(h, "/tts/sse", map[string]string{"text": "hello there", "voice": "alba"})

	events, _ := parseSSE(t, rec.Body.Bytes())

	var sawError bool
	for _, ev := range events {
		if ev == "error" {
			sawError = true
		}
	}
	if !sawError {
		t.Errorf("events = %v; want at least one error event", events)
	}
}

// parseSSE splits a text/event-stream body into parallel event/data slices.
func parseSSE(t *testing.T, body []byte) (events []string, datas []string) {
	t.Helper()

	scanner := bufio.NewScanner(bytes.NewReader(body))
	var curEvent, curData string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case bytes.HasPrefix([]byte(line), []byte("event: ")):
			curEvent = line[len("event: "):]
		case bytes.HasPrefix([]byte(line), []byte("data: ")):
			curData = line[len("data: "):]
		case line == "":
			if curEvent != "" {
				events = append(events, curEvent)
				datas = append(datas, curData)
			}
			curEvent, curData = "", ""
		}
	}
	return events, datas
}
