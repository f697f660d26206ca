package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/echonote/internal/audio"
	"github.com/audiolibrelab/echonote/internal/config"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List audio backends and whether they can be used",
	Long: `List the capture backends compiled into EchoNote and probe each one.
Recording always uses the system default input device of the selected backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		selected := audio.NewBackend(cfg.Audio).GetType()

		fmt.Printf("Audio Backends (%s)\n", runtime.GOOS)
		fmt.Printf("=======================================\n\n")

		for _, backendType := range audio.GetAvailableBackends() {
			audioCfg := config.AudioConfig{
				Backend:   string(backendType),
				Synthetic: cfg.Audio.Synthetic,
			}

			status := "available"
			if err := audio.NewBackend(audioCfg).Probe(); err != nil {
				status = fmt.Sprintf("unavailable (%v)", err)
			}

			marker := " "
			if backendType == selected {
				marker = "*"
			}
			fmt.Printf("%s %-10s %s\n", marker, backendType, status)
		}

		fmt.Printf("\nConfigured backend: %s (audio.backend)\n", cfg.Audio.Backend)
		return nil
	},
}
