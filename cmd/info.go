package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/echonote/internal/audio"
)

var infoCmd = &cobra.Command{
	Use:   "info [file.wav]",
	Short: "Show format, length and peak level of a recording",
	Long:  `Decode a WAV file and display its format, data size, frame count, duration and peak level.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		info, err := newService().Inspect(args[0])
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		printWAVInfo(info)
		return nil
	},
}

func printWAVInfo(info *audio.WAVInfo) {
	fmt.Printf("=== %s ===\n", info.Path)
	fmt.Printf("sample_rate: %d Hz\n", info.SampleRate)
	fmt.Printf("bits_per_sample: %d\n", info.BitsPerSample)
	fmt.Printf("channels: %d\n", info.Channels)
	fmt.Printf("data_size: %d bytes\n", info.DataSize)
	fmt.Printf("frames: %d\n", info.Frames)
	fmt.Printf("duration: %s\n", info.Duration)
	fmt.Printf("peak_level: %.3f\n", info.PeakLevel)
}

func init() {
	infoCmd.Flags().Bool("json", false, "print as JSON")
}
