package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/ttscore/internal/config"
	"github.com/example/ttscore/internal/metrics"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"", false},
		{"info", false},
		{"INFO", false},
		{"debug", false},
		{"warn", false},
		{"warning", false},
		{"error", false},
		{"bogus", true},
	}

	for _, tt := range tests {
		_, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v; wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestOptions_Defaults(t *testing.T) {
	opts := defaultOptions()
	if opts.maxTextBytes != 20000 {
		t.Errorf("maxTextBytes = %d; want 20000", opts.maxTextBytes)
	}
	if opts.workers != 2 {
		t.Errorf("workers = %d; want 2", opts.workers)
	}
	if opts.requestTimeout != 60*time.Second {
		t.Errorf("requestTimeout = %v; want 60s", opts.requestTimeout)
	}
}

func TestOptions_WithWorkers_ZeroStillBuildsHandler(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{}, fakeVoiceLister{}, WithWorkers(0))
	hh, ok := h.(http.Handler)
	if !ok || hh == nil {
		t.Fatal("NewHandler returned nil handler")
	}
}

func TestWithShutdownTimeout(t *testing.T) {
	srv := New(config.DefaultConfig(), &fakeSynthesizer{}, fakeVoiceLister{}, nil)
	srv.WithShutdownTimeout(5 * time.Second)

	if srv.shutdownTimeout != 5*time.Second {
		t.Errorf("shutdownTimeout = %v; want 5s", srv.shutdownTimeout)
	}
}

func TestNew_DefaultShutdownTimeout(t *testing.T) {
	srv := New(config.DefaultConfig(), &fakeSynthesizer{}, fakeVoiceLister{}, nil)
	if srv.shutdownTimeout != 30*time.Second {
		t.Errorf("shutdownTimeout = %v; want 30s", srv.shutdownTimeout)
	}
}

func TestProbeHTTP_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := ProbeHTTP(srv.Listener.Addr().String()); err != nil {
		t.Errorf("ProbeHTTP() error = %v", err)
	}
}

func TestProbeHTTP_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := ProbeHTTP(srv.Listener.Addr().String()); err == nil {
		t.Error("ProbeHTTP() = nil error; want error for 503 response")
	}
}

func TestProbeHTTP_ConnectionRefused(t *testing.T) {
	if err := ProbeHTTP("127.0.0.1:1"); err == nil {
		t.Error("ProbeHTTP() = nil error; want error for refused connection")
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Server.Workers = 1
	cfg.Server.RequestTimeoutSec = 5

	srv := New(cfg, &fakeSynthesizer{}, fakeVoiceLister{}, nil)
	srv.WithShutdownTimeout(time.Second)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestServer_UsesMetricsCollectorWhenProvided(t *testing.T) {
	collector := metrics.NewCollector(prometheus.NewRegistry())
	srv := New(config.DefaultConfig(), &fakeSynthesizer{}, fakeVoiceLister{}, collector)
	if srv.collector == nil {
		t.Error("collector = nil; want non-nil")
	}
}
