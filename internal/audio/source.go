package audio

// Source is an audio input line delivering PCM16Mono bytes
type Source interface {
	// Open acquires the device. Failures wrap ErrDeviceUnavailable.
	Open() error

	// Read blocks until at least one byte is available or the source is closed.
	// After Close, buffered bytes are drained and then io.EOF is returned.
	Read(p []byte) (int, error)

	// Close stops and releases the device. It is safe to call more than once
	// and concurrently with Read.
	Close() error
}
