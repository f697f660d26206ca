package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/audiolibrelab/echonote/internal/service"
)

// executePipeline runs the pipeline steps that follow startStep on a finished recording
func executePipeline(ctx context.Context, svc service.Service, path string, startStep rune) error {
	if pipeline == "" {
		return nil
	}

	steps := []rune(strings.ToLower(pipeline))

	// Find the starting position in the pipeline
	startIndex := -1
	for i, step := range steps {
		if step == startStep {
			startIndex = i
			break
		}
	}

	if startIndex == -1 {
		return fmt.Errorf("step '%c' not found in pipeline '%s'", startStep, pipeline)
	}

	// Execute remaining steps in the pipeline
	for i := startIndex + 1; i < len(steps); i++ {
		step := steps[i]

		switch step {
		case 'i':
			info, err := svc.Inspect(path)
			if err != nil {
				return fmt.Errorf("pipeline info failed: %w", err)
			}
			printWAVInfo(info)

		case 'p':
			if err := svc.Play(ctx, path); err != nil {
				return fmt.Errorf("pipeline play failed: %w", err)
			}

		default:
			return fmt.Errorf("unknown pipeline step: '%c' (valid: r=record, i=info, p=play)", step)
		}
	}

	return nil
}

func validatePipeline() error {
	if pipeline == "" {
		return nil
	}

	validSteps := map[rune]bool{
		'r': true, // record
		'i': true, // info
		'p': true, // play
	}

	steps := []rune(strings.ToLower(pipeline))
	for _, step := range steps {
		if !validSteps[step] {
			return fmt.Errorf("invalid pipeline step: '%c' (valid: r=record, i=info, p=play)", step)
		}
	}
	if steps[0] != 'r' {
		return fmt.Errorf("pipeline must start with 'r' (record), got '%s'", pipeline)
	}

	return nil
}
