// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequireEspeak(t)
//	    testutil.RequireVoiceFile(t, "voices", "alba")
//	    ...
//	}
package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// RequireEspeak skips the test if the espeak-ng binary is not found in PATH
// or at the path given by the TTSCORE_ESPEAK_PATH environment variable.
func RequireEspeak(t testing.TB) {
	t.Helper()
	exe := os.Getenv("TTSCORE_ESPEAK_PATH")
	if exe == "" {
		exe = "espeak-ng"
	}
	if _, err := exec.LookPath(exe); err != nil {
		t.Skipf("espeak-ng binary not available (%q not in PATH); set TTSCORE_ESPEAK_PATH to override", exe)
	}
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located. It checks (in order): the ORT_LIBRARY_PATH env var, then the
// TTSCORE_ORT_LIB env var, then common system library paths.
func RequireONNXRuntime(t testing.TB) {
	t.Helper()
	for _, env := range []string{"ORT_LIBRARY_PATH", "TTSCORE_ORT_LIB"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return // found
			}
			t.Skipf("ONNX Runtime library not found at %s=%q", env, p)
		}
	}
	// Fall back to common system locations.
	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return // found
		}
	}
	t.Skip("ONNX Runtime shared library not found; set ORT_LIBRARY_PATH or TTSCORE_ORT_LIB")
}

// RequireVoiceFile skips the test if the voice identified by name cannot be
// found as "<voiceDir>/<name>.safetensors".
func RequireVoiceFile(t testing.TB, voiceDir, name string) {
	t.Helper()
	path := filepath.Join(voiceDir, fmt.Sprintf("%s.safetensors", name))
	if _, err := os.Stat(path); err != nil {
		t.Skipf("voice %q not available at %q: %v", name, path, err)
	}
}

// RequireAcousticModel skips the test if the acoustic ONNX graph cannot be
// found at path.
func RequireAcousticModel(t testing.TB, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Skipf("acoustic model not available at %q: %v", path, err)
	}
}

// SilenceWAVPath returns the path to the committed 100 ms silence fixture WAV
// relative to the repository root. Callers should use this as a stand-in
// reference waveform when no synthesized audio is available.
func SilenceWAVPath() string {
	return filepath.Join("internal", "testutil", "testdata", "silence_100ms.wav")
}
