package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestLoadWithProfile_ValidConfig(t *testing.T) {
	configContent := `
active_config: studio
logging:
  file: /tmp/echonote-test.log
  max_backups: 5
configs:
  default:
    audio:
      backend: auto
    output:
      recordings_directory: /data/recordings
  studio:
    audio:
      backend: synthetic
      chunk_size: 2048
      synthetic:
        waveform: sine
        frequency: 220
    record:
      max_duration: 30s
`

	configFile := createTempConfig(t, configContent)
	defer os.Remove(configFile)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Expected valid config to load, got error: %v", err)
	}

	if cfg.Inheritance.Profile != "studio" {
		t.Errorf("Expected active profile 'studio', got %s", cfg.Inheritance.Profile)
	}
	if cfg.Audio.Backend != "synthetic" {
		t.Errorf("Expected backend 'synthetic', got %s", cfg.Audio.Backend)
	}
	if cfg.Audio.ChunkSize != 2048 {
		t.Errorf("Expected chunk size 2048, got %d", cfg.Audio.ChunkSize)
	}
	if cfg.Audio.Synthetic.Frequency != 220 {
		t.Errorf("Expected frequency 220, got %.1f", cfg.Audio.Synthetic.Frequency)
	}
	if cfg.Record.MaxDuration != 30*time.Second {
		t.Errorf("Expected max duration 30s, got %s", cfg.Record.MaxDuration)
	}

	// Inherited from the default profile
	if cfg.Output.RecordingsDirectory != "/data/recordings" {
		t.Errorf("Expected recordings directory '/data/recordings', got %s", cfg.Output.RecordingsDirectory)
	}
	if cfg.Inheritance.Output.RecordingsDirectory != inherited {
		t.Errorf("Expected recordings directory to be inherited, got %s", cfg.Inheritance.Output.RecordingsDirectory)
	}

	// Built-in default kept
	if cfg.Output.FilePrefix != "echonote-recording-" {
		t.Errorf("Expected builtin prefix, got %s", cfg.Output.FilePrefix)
	}

	if cfg.Logging.File != "/tmp/echonote-test.log" {
		t.Errorf("Expected log file '/tmp/echonote-test.log', got %s", cfg.Logging.File)
	}
	if cfg.Logging.MaxBackups != 5 {
		t.Errorf("Expected 5 log backups, got %d", cfg.Logging.MaxBackups)
	}
}

func TestLoadWithProfile_ExplicitProfileWins(t *testing.T) {
	configContent := `
active_config: studio
configs:
  studio:
    audio:
      backend: synthetic
  field:
    output:
      file_prefix: field-
`

	configFile := createTempConfig(t, configContent)
	defer os.Remove(configFile)

	cfg, err := LoadWithProfile(configFile, "field")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Output.FilePrefix != "field-" {
		t.Errorf("Expected prefix 'field-', got %s", cfg.Output.FilePrefix)
	}
	if cfg.Audio.Backend != "auto" {
		t.Errorf("Expected builtin backend 'auto', got %s", cfg.Audio.Backend)
	}
}

func TestLoadWithProfile_ProfileFromEnvironment(t *testing.T) {
	configContent := `
configs:
  field:
    output:
      file_prefix: field-
`

	configFile := createTempConfig(t, configContent)
	defer os.Remove(configFile)

	t.Setenv("ECHONOTE_PROFILE", "field")

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Output.FilePrefix != "field-" {
		t.Errorf("Expected prefix 'field-', got %s", cfg.Output.FilePrefix)
	}
}

func TestLoadWithProfile_BackendFromEnvironment(t *testing.T) {
	t.Setenv("ECHONOTE_BACKEND", "synthetic")

	cfg, err := LoadWithProfile(filepath.Join(t.TempDir(), "missing.yaml"), "")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Audio.Backend != "synthetic" {
		t.Errorf("Expected backend 'synthetic', got %s", cfg.Audio.Backend)
	}
	if cfg.Inheritance.Audio.Backend != profileSpecific {
		t.Errorf("Expected env backend to be marked profile-specific, got %s", cfg.Inheritance.Audio.Backend)
	}
}

func TestLoadWithProfile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithProfile(filepath.Join(t.TempDir(), "missing.yaml"), "")
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got error: %v", err)
	}
	if cfg.Record.MaxDuration != 60*time.Second {
		t.Errorf("Expected default max duration 60s, got %s", cfg.Record.MaxDuration)
	}
}

func TestLoadWithProfile_NoConfigFile(t *testing.T) {
	_, err := LoadWithProfile("", "")
	if err == nil {
		t.Fatal("Expected error for empty config path")
	}
}

func TestLoadWithProfile_UnknownProfile(t *testing.T) {
	configContent := `
configs:
  studio:
    audio:
      backend: synthetic
`

	configFile := createTempConfig(t, configContent)
	defer os.Remove(configFile)

	_, err := LoadWithProfile(configFile, "nonexistent")
	if err == nil {
		t.Fatal("Expected error for unknown profile")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected 'not found' error, got: %v", err)
	}
}

func TestLoadWithProfile_EmptyProfile(t *testing.T) {
	configContent := `
configs:
  studio:
`

	configFile := createTempConfig(t, configContent)
	defer os.Remove(configFile)

	// An empty profile body is either rejected as empty or dropped by the parser
	_, err := LoadWithProfile(configFile, "studio")
	if err == nil {
		t.Fatal("Expected error for empty profile")
	}
}

func TestLoadWithProfile_InvalidValues(t *testing.T) {
	configContent := `
configs:
  default:
    audio:
      backend: pulse
`

	configFile := createTempConfig(t, configContent)
	defer os.Remove(configFile)

	_, err := LoadWithProfile(configFile, "")
	if err == nil {
		t.Fatal("Expected validation error for unknown backend")
	}
	if !strings.Contains(err.Error(), "audio.backend") {
		t.Errorf("Expected error to mention audio.backend, got: %v", err)
	}
}

func TestUpdateActiveConfig(t *testing.T) {
	configContent := `
active_config: default
configs:
  field:
    output:
      file_prefix: field-
`

	configFile := createTempConfig(t, configContent)
	defer os.Remove(configFile)

	if err := UpdateActiveConfig(configFile, "field"); err != nil {
		t.Fatalf("Failed to update active config: %v", err)
	}

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Failed to reload configuration: %v", err)
	}
	if cfg.Inheritance.Profile != "field" {
		t.Errorf("Expected active profile 'field', got %s", cfg.Inheritance.Profile)
	}

	if err := UpdateActiveConfig(configFile, "nonexistent"); err == nil {
		t.Error("Expected error when activating unknown profile")
	}
}

func TestListProfiles(t *testing.T) {
	configContent := `
configs:
  studio:
    audio:
      backend: synthetic
  field:
    output:
      file_prefix: field-
`

	configFile := createTempConfig(t, configContent)
	defer os.Remove(configFile)

	names, err := ListProfiles(configFile)
	if err != nil {
		t.Fatalf("Failed to list profiles: %v", err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "field" || names[1] != "studio" {
		t.Errorf("Expected [field studio], got %v", names)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("ECHONOTE_TEST_LOADENV=hello\n"), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("ECHONOTE_TEST_LOADENV", "")
	os.Unsetenv("ECHONOTE_TEST_LOADENV")

	// Missing files are ignored
	LoadEnv(filepath.Join(dir, "missing.env"), envFile)

	if got := os.Getenv("ECHONOTE_TEST_LOADENV"); got != "hello" {
		t.Errorf("Expected ECHONOTE_TEST_LOADENV=hello, got %q", got)
	}
}

// Helper function to create temporary config file for testing
func createTempConfig(t *testing.T, content string) string {
	tmpfile, err := os.CreateTemp("", "echonote-test-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}

	if err := tmpfile.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}

	return tmpfile.Name()
}
