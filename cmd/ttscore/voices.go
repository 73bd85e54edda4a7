package main

import (
	"fmt"
	"os"

	"github.com/example/ttscore/internal/voice"
	"github.com/spf13/cobra"
)

func newVoicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List voices available on disk",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			store, err := voice.New(cfg.Paths.VoiceDir, cfg.Voices.CacheSize)
			if err != nil {
				return err
			}

			names, err := store.Discover()
			if err != nil {
				return err
			}

			for _, name := range names {
				if _, err := fmt.Fprintln(os.Stdout, name); err != nil {
					return err
				}
			}
			return nil
		},
	}

	return cmd
}
