package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/audiolibrelab/echonote/internal/audio"
)

const meterWidth = 30

var (
	quietStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	loudStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	clipStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// newLevelMeter draws a single-line level bar on w for every captured chunk
func newLevelMeter(w io.Writer) audio.LevelFunc {
	return func(level float64) {
		fmt.Fprintf(w, "\r%s", meterStyle(level).Render(renderMeter(level)))
	}
}

func meterStyle(level float64) lipgloss.Style {
	switch {
	case level >= 0.9:
		return clipStyle
	case level >= 0.5:
		return loudStyle
	default:
		return quietStyle
	}
}

func renderMeter(level float64) string {
	level = min(1.0, max(0.0, level))
	filled := int(level*meterWidth + 0.5)
	return fmt.Sprintf("[%s%s] %3.0f%%", strings.Repeat("#", filled), strings.Repeat(" ", meterWidth-filled), level*100)
}

// clearMeter erases the meter line
func clearMeter(w io.Writer) {
	fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", meterWidth+7))
}

func levelFunc(noMeter bool, w io.Writer) audio.LevelFunc {
	if noMeter {
		return nil
	}
	return newLevelMeter(w)
}
