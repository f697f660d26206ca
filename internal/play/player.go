package play

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/spf13/afero"
)

// players in order of preference
var players = []string{"vlc", "mpv", "ffplay", "aplay"}

// lookPath is replaced in tests
var lookPath = exec.LookPath

type Player struct {
	fs afero.Fs
}

// New creates a player that checks files on fs before handing them to an external program
func New(fs afero.Fs) *Player {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Player{fs: fs}
}

// Play plays a WAV file with the first available external player and blocks until it exits
func (p *Player) Play(ctx context.Context, audioFile string) error {
	// Check if file exists
	if _, err := p.fs.Stat(audioFile); err != nil {
		return fmt.Errorf("audio file not found: %s", audioFile)
	}

	player, err := findAudioPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	cmd := exec.CommandContext(ctx, player, playerArgs(player, audioFile)...)

	slog.Info("Playing recording", "file", audioFile, "player", player)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}

	slog.Debug("Playback completed", "file", audioFile)
	return nil
}

func playerArgs(player, audioFile string) []string {
	switch player {
	case "vlc":
		return []string{"--play-and-exit", audioFile}
	case "mpv":
		return []string{"--no-video", audioFile}
	case "ffplay":
		return []string{"-nodisp", "-autoexit", audioFile}
	default:
		return []string{audioFile}
	}
}

func findAudioPlayer() (string, error) {
	for _, player := range players {
		if _, err := lookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}
