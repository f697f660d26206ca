package audio

import "errors"

var (
	// ErrDeviceUnavailable means no input line matching the capture format could be opened
	ErrDeviceUnavailable = errors.New("audio input device unavailable")

	// ErrEncodingFailure means the WAV container could not be written; the output must be treated as absent
	ErrEncodingFailure = errors.New("failed to write WAV file")

	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not currently recording")

	// ErrInterruptedWait means the caller stopped waiting for the capture worker to finish
	ErrInterruptedWait = errors.New("interrupted while stopping recording")
)
