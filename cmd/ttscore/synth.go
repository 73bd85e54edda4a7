package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/ttscore/internal/audio"
	"github.com/example/ttscore/internal/core"
	"github.com/spf13/cobra"
)

func newSynthCmd() *cobra.Command {
	var (
		text   string
		out    string
		voice  string
		format string
		speed  float64
		volume float64
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text to an audio file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			inputText, err := readSynthText(text, os.Stdin)
			if err != nil {
				return err
			}

			svc, closeEngine, err := core.Build(cfg, nil)
			if err != nil {
				return err
			}
			defer closeEngine()

			resp, err := svc.Synthesize(cmd.Context(), core.Request{
				Text:             inputText,
				Voice:            voice,
				Format:           audio.Format(format),
				Speed:            speed,
				VolumeMultiplier: volume,
			})
			if err != nil {
				return fmt.Errorf("synth failed: %w", err)
			}

			return writeSynthOutput(out, resp.Audio, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize (if empty, read from stdin)")
	cmd.Flags().StringVar(&out, "out", "out.wav", "Output audio path ('-' for stdout)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice name from the configured voice directory")
	cmd.Flags().StringVar(&format, "format", "", "Output format (wav|mp3|ogg|flac); default wav")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Speech rate multiplier, 0 uses the default")
	cmd.Flags().Float64Var(&volume, "volume", 0, "Volume multiplier, 0 uses the default")

	return cmd
}

func readSynthText(text string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(b))
	if input == "" {
		return "", fmt.Errorf("either provide --text or pipe text on stdin")
	}
	return input, nil
}

func writeSynthOutput(outPath string, data []byte, stdout io.Writer) error {
	if outPath == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}
