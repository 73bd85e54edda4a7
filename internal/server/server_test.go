package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/ttscore/internal/audio"
	"github.com/example/ttscore/internal/core"
)

// fakeSynthesizer is a Synthesizer double for handler-level tests.
type fakeSynthesizer struct {
	resp      *core.Response
	err       error
	chunks    []core.ChunkResult
	streamErr error
	cancelled bool
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, req core.Request) (*core.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeSynthesizer) SynthesizeStream(_ context.Context, req core.Request) (string, <-chan core.ChunkResult, func(), error) {
	if err := req.Validate(); err != nil {
		return "", nil, nil, err
	}
	if f.streamErr != nil {
		return "", nil, nil, f.streamErr
	}

	out := make(chan core.ChunkResult, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)

	return "gen-123", out, func() { f.cancelled = true }, nil
}

type fakeVoiceLister struct {
	names []string
}

func (f fakeVoiceLister) List() []string { return f.names }

func postJSON(h http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth_ReturnsOK(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{}, fakeVoiceLister{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q; want %q", body["status"], "ok")
	}
}

func TestVoices_ReturnsNames(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{}, fakeVoiceLister{names: []string{"alba", "cosette"}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/voices", nil)
	h.ServeHTTP(rec, req)

	var names []string
	if err := json.NewDecoder(rec.Body).Decode(&names); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(names) != 2 || names[0] != "alba" {
		t.Errorf("names = %v; want [alba cosette]", names)
	}
}

func TestVoices_EmptyListerReturnsEmptyArray(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{}, fakeVoiceLister{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/voices", nil)
	h.ServeHTTP(rec, req)

	if rec.Body.String() != "[]\n" {
		t.Errorf("body = %q; want %q", rec.Body.String(), "[]\n")
	}
}

func TestTTS_MissingBodyReturns400(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{}, fakeVoiceLister{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tts", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

func TestTTS_EmptyTextReturns400(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{}, fakeVoiceLister{})

	rec := postJSON(h, "/tts", map[string]string{"voice": "alba"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

func TestTTS_WrongMethodReturns405(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{}, fakeVoiceLister{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tts", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d; want 405", rec.Code)
	}
}

func TestTTS_ReturnsAudioOnSuccess(t *testing.T) {
	sub := &fakeSynthesizer{resp: &core.Response{
		Audio:         []byte{1, 2, 3, 4},
		Format:        audio.FormatWAV,
		SampleRate:    24000,
		AudioDuration: 0.5,
		ChunkCount:    1,
	}}
	h := NewHandler(sub, fakeVoiceLister{})

	rec := postJSON(h, "/tts", map[string]string{"text": "hello there", "voice": "alba"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200, body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "audio/wav" {
		t.Errorf("Content-Type = %q; want audio/wav", rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), []byte{1, 2, 3, 4}) {
		t.Errorf("body = %v; want [1 2 3 4]", rec.Body.Bytes())
	}
}

func TestTTS_SynthesizerErrorReturns500(t *testing.T) {
	sub := &fakeSynthesizer{err: errSentinel{}}
	h := NewHandler(sub, fakeVoiceLister{})

	rec := postJSON(h, "/tts", map[string]string{"text": "hello there", "voice": "alba"})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500, body=%s", rec.Code, rec.Body.String())
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "boom" }

func TestTTS_InputValidationErrorReturns400(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{}, fakeVoiceLister{})

	// voice and voice_blend both set: mutually exclusive per Request.Validate.
	rec := postJSON(h, "/tts", map[string]any{
		"text":        "hello there",
		"voice":       "alba",
		"voice_blend": []map[string]any{{"name": "cosette", "weight": 1.0}},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400, body=%s", rec.Code, rec.Body.String())
	}
}
