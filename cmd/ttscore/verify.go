package main

import (
	"fmt"
	"os"

	"github.com/example/ttscore/internal/inference"
	"github.com/example/ttscore/internal/model"
	"github.com/example/ttscore/internal/vocab"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Smoke-test the acoustic graph with synthetic input",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			vocabSize := 0
			if table, err := vocab.Load(cfg.Paths.VocabPath); err == nil {
				vocabSize = table.Size()
			}

			err = model.VerifySmoke(cmd.Context(), model.VerifyOptions{
				RunnerConfig: inference.RunnerConfig{
					LibraryPath: cfg.Runtime.ORTLibraryPath,
					ModelPath:   cfg.Paths.ModelPath,
				},
				VocabSize: vocabSize,
				Stdout:    os.Stdout,
			})
			if err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}
			return nil
		},
	}

	return cmd
}
