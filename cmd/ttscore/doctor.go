package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/example/ttscore/internal/doctor"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dcfg := doctor.Config{
				EspeakVersion: func() (string, error) { return probeVersion(cfg.Phonemizer.EspeakPath, "--version") },
				SkipEspeak:    cfg.Phonemizer.DisableExternal,
				FFmpegVersion: func() (string, error) { return probeVersion("ffmpeg", "-version") },
				VoiceFiles:    collectVoiceFiles(cfg.Paths.VoiceDir),
			}

			result := doctor.Run(dcfg, os.Stdout)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")
			return nil
		},
	}

	return cmd
}

// probeVersion runs "exe arg" and returns the first line of its trimmed
// output.
func probeVersion(exe, arg string) (string, error) {
	if exe == "" {
		return "", fmt.Errorf("no executable configured")
	}
	out, err := exec.CommandContext(context.Background(), exe, arg).Output()
	if err != nil {
		return "", fmt.Errorf("%s %s failed: %w", exe, arg, err)
	}
	lines := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)
	return lines[0], nil
}

// collectVoiceFiles lists the .safetensors voice files present in dir for
// the doctor check to verify. A listing failure yields an empty list rather
// than failing the whole command — the voice-file check simply reports
// nothing to verify.
func collectVoiceFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".safetensors") {
			continue
		}
		paths = append(paths, dir+"/"+e.Name())
	}
	return paths
}
