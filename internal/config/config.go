package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	inherited       = "inherited"
	profileSpecific = "profile-specific"
	builtin         = "builtin"
)

type RootConfig struct {
	ActiveConfig string             `mapstructure:"active_config" yaml:"active_config"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Configs      map[string]*Config `mapstructure:"configs" yaml:"configs"`
}

type Config struct {
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Record  RecordConfig  `mapstructure:"record" yaml:"record"`
	Logging LoggingConfig `mapstructure:"-" yaml:"logging"`

	// Internal field to track inheritance information for config show
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`
}

type InheritanceInfo struct {
	Profile string
	Audio   struct {
		Backend   string // "builtin", "inherited" or "profile-specific"
		ChunkSize string
		Synthetic string
	}
	Output struct {
		RecordingsDirectory string
		TempDirectory       string
		FilePrefix          string
	}
	Record struct {
		MaxDuration string
	}
}

type AudioConfig struct {
	Backend   string          `mapstructure:"backend" yaml:"backend"` // "malgo", "synthetic", "auto"
	ChunkSize int             `mapstructure:"chunk_size" yaml:"chunk_size"`
	Synthetic SyntheticConfig `mapstructure:"synthetic" yaml:"synthetic"`
}

type SyntheticConfig struct {
	Waveform  string  `mapstructure:"waveform" yaml:"waveform"` // "silence", "sine"
	Frequency float64 `mapstructure:"frequency" yaml:"frequency"`
	Amplitude float64 `mapstructure:"amplitude" yaml:"amplitude"`
}

type OutputConfig struct {
	RecordingsDirectory string `mapstructure:"recordings_directory" yaml:"recordings_directory"`
	TempDirectory       string `mapstructure:"temp_directory" yaml:"temp_directory"` // empty means the OS temp dir
	FilePrefix          string `mapstructure:"file_prefix" yaml:"file_prefix"`
}

type RecordConfig struct {
	MaxDuration time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
}

type LoggingConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

var defaultConfig = Config{
	Audio: AudioConfig{
		Backend:   "auto",
		ChunkSize: 4096,
		Synthetic: SyntheticConfig{
			Waveform:  "silence",
			Frequency: 440,
			Amplitude: 0.5,
		},
	},
	Output: OutputConfig{
		RecordingsDirectory: "recordings",
		FilePrefix:          "echonote-recording-",
	},
	Record: RecordConfig{
		MaxDuration: 60 * time.Second,
	},
	Logging: LoggingConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	},
}

// Default returns a copy of the built-in configuration
func Default() *Config {
	cfg := defaultConfig
	cfg.Inheritance = builtinInheritance("default")
	return &cfg
}

// DefaultPath returns the default config file location
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/echonote.yaml")
}

// LoadEnv loads .env files into the process environment. Missing files are ignored.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to load env file", "file", f, "error", err)
		}
	}
}

// LoadWithProfile resolves the given profile from configFile. An empty profile
// falls back to ECHONOTE_PROFILE, then active_config, then "default". A missing
// config file yields the built-in defaults.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	v := newViper(configFile)

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Config file not found, using defaults", "file", configFile)
		cfg := Default()
		applyEnvOverrides(v, cfg)
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
		return cfg, nil
	}

	rootConfig, err := readRootConfig(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Determine which config to use
	configName := profile
	if configName == "" {
		configName = v.GetString("profile")
	}
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selected, exists := rootConfig.Configs[configName]
	if !exists && configName != "default" {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	// Built-in defaults, then the file's default profile, then the selected profile
	base := Default()
	if defaultProfile, ok := rootConfig.Configs["default"]; ok {
		base = mergeConfigs(base, defaultProfile)
		markBuiltinAsInherited(base.Inheritance)
	}
	result := base
	if configName != "default" {
		result = mergeConfigs(base, selected)
	}
	result.Inheritance.Profile = configName

	result.Logging = mergeLogging(defaultConfig.Logging, rootConfig.Logging)

	result.Output.RecordingsDirectory = expandPath(result.Output.RecordingsDirectory)
	result.Output.TempDirectory = expandPath(result.Output.TempDirectory)
	result.Logging.File = expandPath(result.Logging.File)

	applyEnvOverrides(v, result)

	if err := validate(result); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return result, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	// Read current config
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	if !v.IsSet("configs."+newActiveConfig) && newActiveConfig != "default" {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// ListProfiles returns the profile names defined in configFile
func ListProfiles(configFile string) ([]string, error) {
	rootConfig, err := readRootConfig(newViper(configFile), configFile)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	return names, nil
}

func newViper(configFile string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("ECHONOTE")
	v.AutomaticEnv()
	return v
}

func readRootConfig(v *viper.Viper, configFile string) (*RootConfig, error) {
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for name, profile := range rootConfig.Configs {
		if profile == nil {
			return nil, fmt.Errorf("config '%s' is empty", name)
		}
	}

	return &rootConfig, nil
}

// applyEnvOverrides applies ECHONOTE_BACKEND and ECHONOTE_RECORDINGS_DIRECTORY
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if backend := v.GetString("backend"); backend != "" {
		cfg.Audio.Backend = backend
		cfg.Inheritance.Audio.Backend = profileSpecific
	}
	if dir := v.GetString("recordings_directory"); dir != "" {
		cfg.Output.RecordingsDirectory = expandPath(dir)
		cfg.Inheritance.Output.RecordingsDirectory = profileSpecific
	}
}

func builtinInheritance(profile string) *InheritanceInfo {
	info := &InheritanceInfo{Profile: profile}
	info.Audio.Backend = builtin
	info.Audio.ChunkSize = builtin
	info.Audio.Synthetic = builtin
	info.Output.RecordingsDirectory = builtin
	info.Output.TempDirectory = builtin
	info.Output.FilePrefix = builtin
	info.Record.MaxDuration = builtin
	return info
}

// markBuiltinAsInherited turns "profile-specific" marks set by the file's default
// profile into "inherited", since other profiles inherit them
func markBuiltinAsInherited(info *InheritanceInfo) {
	for _, field := range []*string{
		&info.Audio.Backend, &info.Audio.ChunkSize, &info.Audio.Synthetic,
		&info.Output.RecordingsDirectory, &info.Output.TempDirectory, &info.Output.FilePrefix,
		&info.Record.MaxDuration,
	} {
		if *field == profileSpecific {
			*field = inherited
		}
	}
}

// mergeConfigs overlays the non-zero fields of profile onto base and records
// which values came from the profile
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{}

	if base != nil {
		*result = *base
	}
	result.Inheritance = builtinInheritance("")
	if base != nil && base.Inheritance != nil {
		*result.Inheritance = *base.Inheritance
	}

	if profile == nil {
		return result
	}

	if profile.Audio.Backend != "" {
		result.Audio.Backend = profile.Audio.Backend
		result.Inheritance.Audio.Backend = profileSpecific
	}
	if profile.Audio.ChunkSize != 0 {
		result.Audio.ChunkSize = profile.Audio.ChunkSize
		result.Inheritance.Audio.ChunkSize = profileSpecific
	}
	synthetic := profile.Audio.Synthetic
	if synthetic.Waveform != "" || synthetic.Frequency != 0 || synthetic.Amplitude != 0 {
		if synthetic.Waveform != "" {
			result.Audio.Synthetic.Waveform = synthetic.Waveform
		}
		if synthetic.Frequency != 0 {
			result.Audio.Synthetic.Frequency = synthetic.Frequency
		}
		if synthetic.Amplitude != 0 {
			result.Audio.Synthetic.Amplitude = synthetic.Amplitude
		}
		result.Inheritance.Audio.Synthetic = profileSpecific
	}

	if profile.Output.RecordingsDirectory != "" {
		result.Output.RecordingsDirectory = profile.Output.RecordingsDirectory
		result.Inheritance.Output.RecordingsDirectory = profileSpecific
	}
	if profile.Output.TempDirectory != "" {
		result.Output.TempDirectory = profile.Output.TempDirectory
		result.Inheritance.Output.TempDirectory = profileSpecific
	}
	if profile.Output.FilePrefix != "" {
		result.Output.FilePrefix = profile.Output.FilePrefix
		result.Inheritance.Output.FilePrefix = profileSpecific
	}

	if profile.Record.MaxDuration != 0 {
		result.Record.MaxDuration = profile.Record.MaxDuration
		result.Inheritance.Record.MaxDuration = profileSpecific
	}

	return result
}

func mergeLogging(base, override LoggingConfig) LoggingConfig {
	if override.File != "" {
		base.File = override.File
	}
	if override.MaxSizeMB != 0 {
		base.MaxSizeMB = override.MaxSizeMB
	}
	if override.MaxBackups != 0 {
		base.MaxBackups = override.MaxBackups
	}
	if override.MaxAgeDays != 0 {
		base.MaxAgeDays = override.MaxAgeDays
	}
	return base
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// validate checks a resolved configuration
func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Audio.Backend) {
	case "auto", "malgo", "synthetic":
	default:
		return fmt.Errorf("audio.backend must be 'auto', 'malgo' or 'synthetic', got: %s", cfg.Audio.Backend)
	}

	if cfg.Audio.ChunkSize <= 0 {
		return fmt.Errorf("audio.chunk_size must be > 0, got: %d", cfg.Audio.ChunkSize)
	}
	if cfg.Audio.ChunkSize%2 != 0 {
		return fmt.Errorf("audio.chunk_size must be a whole number of frames (even), got: %d", cfg.Audio.ChunkSize)
	}

	synthetic := cfg.Audio.Synthetic
	if synthetic.Waveform != "silence" && synthetic.Waveform != "sine" {
		return fmt.Errorf("audio.synthetic.waveform must be 'silence' or 'sine', got: %s", synthetic.Waveform)
	}
	if synthetic.Amplitude < 0 || synthetic.Amplitude > 1 {
		return fmt.Errorf("audio.synthetic.amplitude must be within [0,1], got: %.2f", synthetic.Amplitude)
	}
	if synthetic.Waveform == "sine" && synthetic.Frequency <= 0 {
		return fmt.Errorf("audio.synthetic.frequency must be > 0, got: %.2f", synthetic.Frequency)
	}

	if cfg.Output.RecordingsDirectory == "" {
		return fmt.Errorf("output.recordings_directory is required")
	}

	if cfg.Record.MaxDuration <= 0 {
		return fmt.Errorf("record.max_duration must be > 0, got: %s", cfg.Record.MaxDuration)
	}

	return nil
}
