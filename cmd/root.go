package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/audiolibrelab/echonote/internal/config"
	"github.com/audiolibrelab/echonote/internal/service"
)

var (
	cfg          *config.Config
	cfgFile      string
	pipeline     string
	profile      string
	verboseLevel int

	logFile *lumberjack.Logger
)

var rootCmd = &cobra.Command{
	Use:   "echonote [prefix]",
	Short: "Record voice notes from the microphone as WAV files",
	Long: `EchoNote records mono 16-bit 44.1kHz audio from the default microphone
and saves it as an uncompressed WAV file, ready to be handed to a transcriber.

Recordings are either timed (record) or interactive (start, stopped with Enter).
When a prefix is provided, it acts as 'echonote start [prefix]'.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env values are visible to viper's env lookup
		config.LoadEnv()

		// Log to stderr until the config says otherwise
		setupLogging(verboseLevel, config.LoggingConfig{})

		// Use default config path if not specified
		if cfgFile == "" {
			cfgFile = config.DefaultPath()
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		setupLogging(verboseLevel, cfg.Logging)

		// Validate pipeline if provided
		return validatePipeline()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If a prefix is provided, delegate to start command
		if len(args) == 1 {
			return startCmd.RunE(cmd, args)
		}
		// Otherwise show help
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/echonote.yaml)")
	rootCmd.PersistentFlags().StringVarP(&pipeline, "pipeline", "p", "", "steps after recording: i=info, p=play (e.g., 'rip', 'rp')")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug")

	rootCmd.Flags().Bool("no-meter", false, "do not draw the level meter")

	// Add subcommands
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(serveCmd)
}

func newService() *service.EchoNoteService {
	return service.New(cfg, nil)
}

// setupLogging configures slog based on the verbose level. When a log file is
// configured, records also go to a rotating file.
func setupLogging(level int, logging config.LoggingConfig) {
	var slogLevel slog.Level
	switch {
	case level >= 1:
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if logging.File != "" {
		if logFile != nil {
			logFile.Close()
		}
		logFile = &lumberjack.Logger{
			Filename:   logging.File,
			MaxSize:    logging.MaxSizeMB,
			MaxBackups: logging.MaxBackups,
			MaxAge:     logging.MaxAgeDays,
		}
		out = io.MultiWriter(os.Stderr, logFile)
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(out, opts)
	slog.SetDefault(slog.New(handler))
}
