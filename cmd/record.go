package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [output.wav]",
	Short: "Record a timed voice note",
	Long: `Record from the default microphone until --duration has elapsed or Ctrl+C is pressed.
Audio captured before Ctrl+C is still saved.

Without an output path the recording goes to a uniquely named file in the temp directory.
The path of the written file is printed on stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, _ := cmd.Flags().GetDuration("duration")
		prefix, _ := cmd.Flags().GetString("prefix")
		noMeter, _ := cmd.Flags().GetBool("no-meter")

		svc := newService()

		// Handle interruption
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if duration == 0 {
			duration = cfg.Record.MaxDuration
		}
		slog.Info("Recording... Press Ctrl+C to stop early", "max_duration", duration)

		onLevel := levelFunc(noMeter, os.Stderr)

		var path string
		var err error
		if len(args) == 1 {
			path, err = svc.RecordToFile(ctx, args[0], duration, onLevel)
		} else {
			path, err = svc.RecordToTempFile(ctx, prefix, duration, onLevel)
		}
		if onLevel != nil {
			clearMeter(os.Stderr)
		}
		if err != nil {
			return fmt.Errorf("recording failed: %w", err)
		}

		fmt.Println(path)

		// Execute pipeline if specified
		return executePipeline(cmd.Context(), svc, path, 'r')
	},
}

func init() {
	recordCmd.Flags().DurationP("duration", "d", 0, "maximum recording length (default from record.max_duration)")
	recordCmd.Flags().String("prefix", "", "temp file name prefix (default from output.file_prefix)")
	recordCmd.Flags().Bool("no-meter", false, "do not draw the level meter")
}
