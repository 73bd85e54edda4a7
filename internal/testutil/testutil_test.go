package testutil_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/example/ttscore/internal/testutil"
)

func TestSilenceWAVPath_FileExists(t *testing.T) {
	// Walk up from internal/testutil to the repo root and check the fixture.
	root := filepath.Join("..", "..")
	p := filepath.Join(root, testutil.SilenceWAVPath())
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("silence fixture not found at %q: %v", p, err)
	}
}

func TestRequireEspeak_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("TTSCORE_ESPEAK_PATH", "/nonexistent/espeak-ng-binary")

	if !captureSkip(func(tb testing.TB) { testutil.RequireEspeak(tb) }) {
		t.Error("expected RequireEspeak to skip when binary is absent")
	}
}

func TestRequireONNXRuntime_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("ORT_LIBRARY_PATH", "/nonexistent/libonnxruntime.so")
	t.Setenv("TTSCORE_ORT_LIB", "")

	if !captureSkip(func(tb testing.TB) { testutil.RequireONNXRuntime(tb) }) {
		t.Error("expected RequireONNXRuntime to skip when library is absent")
	}
}

func TestRequireVoiceFile_SkipsWhenFileAbsent(t *testing.T) {
	dir := t.TempDir()

	if !captureSkip(func(tb testing.TB) { testutil.RequireVoiceFile(tb, dir, "any-voice") }) {
		t.Error("expected RequireVoiceFile to skip when the voice file is absent")
	}
}

func TestRequireAcousticModel_SkipsWhenAbsent(t *testing.T) {
	if !captureSkip(func(tb testing.TB) { testutil.RequireAcousticModel(tb, "/nonexistent/model.onnx") }) {
		t.Error("expected RequireAcousticModel to skip when the model file is absent")
	}
}

// captureSkip runs fn in a fresh goroutine with a stub TB and returns true if
// the function called Skip/Skipf. Because the real testing.T.Skipf calls
// runtime.Goexit(), we run fn in an isolated goroutine so Goexit only
// terminates that goroutine and does not propagate to the parent test.
func captureSkip(fn func(testing.TB)) (skipped bool) {
	stub := &stubTB{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(stub)
	}()
	<-done
	return stub.skipped
}

// stubTB is a minimal testing.TB that records Skip calls and terminates the
// calling goroutine (via runtime.Goexit) exactly as the real testing.T does.
type stubTB struct {
	testing.TB // intentionally nil — only Skip methods are called
	skipped    bool
}

func (s *stubTB) Helper()                 {}
func (s *stubTB) Log(_ ...any)            {}
func (s *stubTB) Logf(_ string, _ ...any) {}

func (s *stubTB) Skip(_ ...any) {
	s.skipped = true
	runtime.Goexit()
}

func (s *stubTB) Skipf(_ string, _ ...any) {
	s.skipped = true
	runtime.Goexit()
}

func (s *stubTB) SkipNow() {
	s.skipped = true
	runtime.Goexit()
}
