package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [file.wav]",
	Short: "Play a recording",
	Long: `Play a WAV file with the first available external player.
Tries vlc, mpv, ffplay and aplay in that order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newService().Play(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		return nil
	},
}
