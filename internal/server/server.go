// Package server exposes a core.Service over HTTP: a single-shot endpoint,
// a chunked-binary streaming endpoint, and a server-sent-events streaming
// endpoint, per the wire formats this core's external interface defines.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ttscore/internal/audio"
	"github.com/example/ttscore/internal/config"
	"github.com/example/ttscore/internal/core"
	"github.com/example/ttscore/internal/metrics"
	"github.com/example/ttscore/internal/stretch"
	"github.com/example/ttscore/internal/voice"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// VoiceLister returns the names of voices known to the store.
type VoiceLister interface {
	List() []string
}

// discoveringLister adapts a *voice.Store's on-disk Discover into the
// error-free VoiceLister shape the handler expects, falling back to the
// cache-resident List on a scan failure.
type discoveringLister struct {
	store *voice.Store
	log   *slog.Logger
}

// NewVoiceLister wraps store so GET /voices reports every voice found on
// disk, not just those already loaded into the cache.
func NewVoiceLister(store *voice.Store, log *slog.Logger) VoiceLister {
	if log == nil {
		log = slog.Default()
	}
	return &discoveringLister{store: store, log: log}
}

func (d *discoveringLister) List() []string {
	names, err := d.store.Discover()
	if err != nil {
		d.log.Warn("voice discovery failed, falling back to cache contents", slog.String("error", err.Error()))
		return d.store.List()
	}
	return names
}

// Synthesizer is the subset of core.Service the handler depends on. A
// narrow interface, rather than a concrete *core.Service, lets tests
// substitute a fake without constructing a full inference pipeline.
type Synthesizer interface {
	Synthesize(ctx context.Context, req core.Request) (*core.Response, error)
	SynthesizeStream(ctx context.Context, req core.Request) (sessionID string, out <-chan core.ChunkResult, cancel func(), err error)
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
	collector      *metrics.Collector
}

func defaultOptions() options {
	return options{
		maxTextBytes:   20000,
		workers:        2,
		requestTimeout: 60 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /tts.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent synthesis calls.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request synthesis deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics exposes a Prometheus /metrics endpoint backed by collector.
// If nil (the default), /metrics is not registered.
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *options) { o.collector = collector }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	svc    Synthesizer
	voices VoiceLister
	opts   options
	sem    chan struct{} // semaphore for worker pool
	log    *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, /voices, POST
// /tts, POST /tts/stream, and POST /tts/sse against svc.
func NewHandler(svc Synthesizer, voices VoiceLister, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		svc:    svc,
		voices: voices,
		opts:   opts,
		log:    opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/voices", h.handleVoices)
	mux.HandleFunc("/tts", h.handleTTS)
	mux.HandleFunc("/tts/stream", h.handleTTSStream)
	mux.HandleFunc("/tts/sse", h.handleTTSSSE)

	if opts.collector != nil {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}

	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

func (h *handler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	var names []string
	if h.voices != nil {
		names = h.voices.List()
	}
	if names == nil {
		names = []string{}
	}

	writeJSON(w, http.StatusOK, names)
}

// ttsRequest is the wire shape of a synthesis request.
type ttsRequest struct {
	Text             string          `json:"text"`
	Voice            string          `json:"voice"`
	VoiceBlend       []weightedVoice `json:"voice_blend,omitempty"`
	ResponseFormat   string          `json:"response_format"`
	Speed            float64         `json:"speed"`
	VolumeMultiplier float64         `json:"volume_multiplier"`
	Emotion          string          `json:"emotion,omitempty"`
	Stream           bool            `json:"stream"`

	TimeStretchingEnabled bool   `json:"time_stretching_enabled,omitempty"`
	TimeStretchingRate    int    `json:"time_stretching_rate,omitempty"`
	TimeStretchingQuality string `json:"time_stretching_quality,omitempty"`
}

type weightedVoice struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

func (req ttsRequest) toCoreRequest() core.Request {
	blend := make([]voice.Weighted, 0, len(req.VoiceBlend))
	for _, w := range req.VoiceBlend {
		blend = append(blend, voice.Weighted{Name: w.Name, Weight: w.Weight})
	}

	format := audio.Format(req.ResponseFormat)
	if format == "" {
		format = audio.FormatWAV
	}

	quality := stretch.Quality(req.TimeStretchingQuality)
	if quality == "" {
		quality = stretch.QualityPhaseVocoder
	}

	return core.Request{
		Text:               req.Text,
		Voice:              req.Voice,
		VoiceBlend:         blend,
		Format:             format,
		Speed:              req.Speed,
		VolumeMultiplier:   req.VolumeMultiplier,
		Emotion:            req.Emotion,
		Stream:             req.Stream,
		TimeStretchEnabled: req.TimeStretchingEnabled,
		TimeStretchRate:    req.TimeStretchingRate,
		TimeStretchQuality: quality,
	}
}

func (h *handler) handleTTS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	if !h.acquireWorker(r.Context(), w) {
		return
	}
	if h.sem != nil {
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := h.svc.Synthesize(ctx, req.toCoreRequest())
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		h.writeSynthesisError(w, r, err, req.Text, durationMS)
		return
	}

	h.log.InfoContext(r.Context(), "synthesis complete",
		slog.String("voice", req.Voice),
		slog.Int("text_len", len(req.Text)),
		slog.Int64("duration_ms", durationMS),
		slog.Int("audio_bytes", len(resp.Audio)),
	)

	w.Header().Set("Content-Type", contentTypeForFormat(string(resp.Format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Audio)
}

func (h *handler) handleTTSStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	req.Stream = true

	if !h.acquireWorker(r.Context(), w) {
		return
	}
	if h.sem != nil {
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	coreReq := req.toCoreRequest()

	sessionID, chunks, cancelStream, err := h.svc.SynthesizeStream(ctx, coreReq)
	if err != nil {
		h.writeSynthesisError(w, r, err, req.Text, 0)
		return
	}
	defer cancelStream()

	w.Header().Set("Content-Type", contentTypeForFormat(string(coreReq.Format)))
	w.Header().Set("X-Generation-ID", sessionID)
	w.Header().Set("Transfer-Encoding", "chunked")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	start := time.Now()
	var totalBytes int

	for chunk := range chunks {
		if chunk.Err != nil {
			h.log.WarnContext(r.Context(), "chunk synthesis failed, skipping",
				slog.String("session_id", sessionID),
				slog.Int("ordinal", chunk.Ordinal),
				slog.String("error", chunk.Err.Error()),
			)
			continue
		}

		totalBytes += len(chunk.Audio)
		if _, err := w.Write(chunk.Audio); err != nil {
			h.log.ErrorContext(r.Context(), "failed to write audio chunk", slog.String("error", err.Error()))
			cancelStream()
			break
		}

		flusher.Flush()
	}

	h.log.InfoContext(r.Context(), "streaming synthesis complete",
		slog.String("session_id", sessionID),
		slog.String("voice", req.Voice),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.Int("total_bytes", totalBytes),
	)
}

// sseEvent mirrors the SSE chunk payload shape.
type sseEvent struct {
	ChunkID  int     `json:"chunk_id"`
	Audio    string  `json:"audio_data"`
	Duration float64 `json:"duration"`
	Final    bool    `json:"is_final"`
	Metadata string  `json:"metadata,omitempty"`
}

func (h *handler) handleTTSSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	req.Stream = true

	if !h.acquireWorker(r.Context(), w) {
		return
	}
	if h.sem != nil {
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	sessionID, chunks, cancelStream, err := h.svc.SynthesizeStream(ctx, req.toCoreRequest())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer cancelStream()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Generation-ID", sessionID)
	w.WriteHeader(http.StatusOK)

	writeSSE(w, "start", map[string]string{"generation_id": sessionID})
	flusher.Flush()

	var delivered, total int
	var failed bool

	for chunk := range chunks {
		total++
		if chunk.Err != nil {
			failed = true
			writeSSE(w, "error", map[string]string{"error": chunk.Err.Error()})
			flusher.Flush()
			continue
		}

		delivered++
		writeSSE(w, "chunk", sseEvent{
			ChunkID:  chunk.Ordinal,
			Audio:    base64.StdEncoding.EncodeToString(chunk.Audio),
			Duration: chunk.Duration,
			Final:    chunk.Final,
		})
		writeSSE(w, "progress", map[string]float64{"fraction": float64(delivered) / float64(max1(total))})
		flusher.Flush()
	}

	if failed {
		writeSSE(w, "error", map[string]string{"error": "one or more chunks failed"})
	} else {
		writeSSE(w, "complete", map[string]int{"chunks": delivered})
	}
	flusher.Flush()
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func writeSSE(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func (h *handler) decodeRequest(w http.ResponseWriter, r *http.Request) (ttsRequest, bool) {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return ttsRequest{}, false
	}

	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return ttsRequest{}, false
	}

	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return ttsRequest{}, false
	}

	return req, true
}

func (h *handler) writeSynthesisError(w http.ResponseWriter, r *http.Request, err error, text string, durationMS int64) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		h.log.WarnContext(r.Context(), "synthesis timed out",
			slog.Int("text_len", len(text)),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusGatewayTimeout, "synthesis timed out")
		return
	}

	var coreErr *core.Error
	status := http.StatusInternalServerError
	if errors.As(err, &coreErr) && coreErr.Kind == core.KindInputValidation {
		status = http.StatusBadRequest
	}

	h.log.ErrorContext(r.Context(), "synthesis failed",
		slog.Int("text_len", len(text)),
		slog.Int64("duration_ms", durationMS),
		slog.String("error", err.Error()),
	)
	writeError(w, status, err.Error())
}

// acquireWorker tries to acquire a worker slot from the semaphore. Returns
// true on success. On failure (context cancelled) it writes an HTTP error
// and returns false. When sem is nil (no throttling) it returns true
// immediately.
func (h *handler) acquireWorker(ctx context.Context, w http.ResponseWriter) bool {
	if h.sem == nil {
		return true
	}

	select {
	case h.sem <- struct{}{}:
		return true
	default:
		h.log.Info("request queued for worker slot")

		select {
		case h.sem <- struct{}{}:
			return true
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return false
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func contentTypeForFormat(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "ogg":
		return "audio/ogg"
	case "flac":
		return "audio/flac"
	default:
		return "audio/wav"
	}
}

// ---------------------------------------------------------------------------
// Server — wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	svc             Synthesizer
	voices          VoiceLister
	collector       *metrics.Collector
	shutdownTimeout time.Duration
}

// New builds a Server around an already-constructed core.Service.
func New(cfg config.Config, svc Synthesizer, voices VoiceLister, collector *metrics.Collector) *Server {
	return &Server{
		cfg:             cfg,
		svc:             svc,
		voices:          voices,
		collector:       collector,
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	workers := s.cfg.Server.Workers
	if workers <= 0 {
		workers = 2
	}

	opts := []Option{
		WithWorkers(workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeoutSec) * time.Second),
	}
	if s.collector != nil {
		opts = append(opts, WithMetrics(s.collector))
	}

	h := NewHandler(s.svc, s.voices, opts...)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}

	return nil
}
