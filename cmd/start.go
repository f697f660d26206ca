package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start [prefix]",
	Short: "Record until Enter is pressed",
	Long: `Start an interactive recording into the recordings directory and stop it
when Enter or Ctrl+C is pressed. The file is named <prefix><unix millis>.wav.

Pressing Ctrl+C again while the file is being written stops waiting for it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		noMeter, _ := cmd.Flags().GetBool("no-meter")

		svc := newService()

		onLevel := levelFunc(noMeter, os.Stderr)
		if err := svc.StartInteractiveRecording(prefix, onLevel); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}

		slog.Info("Recording... Press Enter to stop")

		// Wait for Enter or an interrupt signal
		enter := make(chan struct{})
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Scan()
			close(enter)
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-enter:
		case <-sigChan:
		}
		signal.Stop(sigChan)

		if onLevel != nil {
			clearMeter(os.Stderr)
		}
		slog.Info("Stopping recording...")

		stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		path, err := svc.StopInteractiveRecording(stopCtx)
		if err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		fmt.Println(path)

		// Execute pipeline if specified
		return executePipeline(cmd.Context(), svc, path, 'r')
	},
}

func init() {
	startCmd.Flags().Bool("no-meter", false, "do not draw the level meter")
}
