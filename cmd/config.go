package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/echonote/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage EchoNote configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, _ := cmd.Flags().GetBool("resolved")
		if resolved {
			printResolvedConfig(cfg)
			return nil
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configuration profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := config.ListProfiles(cfgFile)
		if err != nil {
			return err
		}
		sort.Strings(names)
		for _, name := range names {
			marker := " "
			if name == cfg.Inheritance.Profile {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use [profile]",
	Short: "Set the active configuration profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UpdateActiveConfig(cfgFile, args[0]); err != nil {
			return err
		}
		fmt.Printf("Active profile: %s\n", args[0])
		return nil
	},
}

// printResolvedConfig displays the configuration with inheritance indicators
func printResolvedConfig(c *config.Config) {
	inh := c.Inheritance

	fmt.Printf("=== RESOLVED CONFIGURATION (%s) ===\n", inh.Profile)

	fmt.Printf("\n[Audio]\n")
	fmt.Printf("backend: %s %s\n", c.Audio.Backend, getInheritanceIndicator(inh.Audio.Backend))
	fmt.Printf("chunk_size: %d %s\n", c.Audio.ChunkSize, getInheritanceIndicator(inh.Audio.ChunkSize))
	fmt.Printf("synthetic: waveform=%s frequency=%.1f amplitude=%.2f %s\n",
		c.Audio.Synthetic.Waveform, c.Audio.Synthetic.Frequency, c.Audio.Synthetic.Amplitude,
		getInheritanceIndicator(inh.Audio.Synthetic))

	fmt.Printf("\n[Output]\n")
	fmt.Printf("recordings_directory: %s %s\n", c.Output.RecordingsDirectory, getInheritanceIndicator(inh.Output.RecordingsDirectory))
	fmt.Printf("temp_directory: %s %s\n", c.Output.TempDirectory, getInheritanceIndicator(inh.Output.TempDirectory))
	fmt.Printf("file_prefix: %s %s\n", c.Output.FilePrefix, getInheritanceIndicator(inh.Output.FilePrefix))

	fmt.Printf("\n[Record]\n")
	fmt.Printf("max_duration: %s %s\n", c.Record.MaxDuration, getInheritanceIndicator(inh.Record.MaxDuration))
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	case "builtin":
		return "[builtin]"
	default:
		return "[unknown]"
	}
}

func init() {
	configShowCmd.Flags().Bool("resolved", false, "show where each value comes from")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configUseCmd)
}
