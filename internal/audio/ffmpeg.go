package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
)

// FFmpegPath is overridable for tests and deployments that vendor ffmpeg
// under a non-default name.
var FFmpegPath = "ffmpeg"

// EncodeMP3 and EncodeOGG delegate to an external ffmpeg process: the core
// service has no MP3/Vorbis encoder of its own, so it feeds ffmpeg a WAV
// header plus PCM16 samples on stdin and reads the encoded container back on
// stdout.
func EncodeMP3(ctx context.Context, samples []float32, sampleRate int) ([]byte, error) {
	return encodeViaFFmpeg(ctx, samples, sampleRate, "mp3", []string{"-codec:a", "libmp3lame", "-qscale:a", "2"})
}

func EncodeOGG(ctx context.Context, samples []float32, sampleRate int) ([]byte, error) {
	return encodeViaFFmpeg(ctx, samples, sampleRate, "ogg", []string{"-codec:a", "libvorbis", "-qscale:a", "5"})
}

func encodeViaFFmpeg(ctx context.Context, samples []float32, sampleRate int, format string, codecArgs []string) ([]byte, error) {
	wavBytes, err := EncodeWAVPCM16(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("audio: encode intermediate wav: %w", err)
	}

	args := append([]string{"-hide_banner", "-loglevel", "error", "-f", "wav", "-i", "pipe:0"}, codecArgs...)
	args = append(args, "-f", format, "pipe:1")

	cmd := exec.CommandContext(ctx, FFmpegPath, args...)
	cmd.Stdin = bytes.NewReader(wavBytes)

	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("audio: ffmpeg %s encode: %w: %s", format, err, errOut.String())
	}

	return out.Bytes(), nil
}

// FFmpegVersion runs "ffmpeg -version" and returns its first output line,
// for doctor-style preflight checks.
func FFmpegVersion() (string, error) {
	cmd := exec.Command(FFmpegPath, "-version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = io.Discard

	if err := cmd.Run(); err != nil {
		return "", err
	}

	line := out.String()
	if idx := bytes.IndexByte(out.Bytes(), '\n'); idx >= 0 {
		line = out.String()[:idx]
	}

	return line, nil
}
