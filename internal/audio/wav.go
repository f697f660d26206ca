package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE header written by EncodeWAV
const WAVHeaderSize = 44

const wavFormatPCM = 1

// wavHeader is the canonical 44-byte PCM header, laid out field by field
type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

func newWAVHeader(dataSize int, f Format) wavHeader {
	return wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataSize),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   wavFormatPCM,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.ByteRate()),
		BlockAlign:    uint16(f.FrameSize),
		BitsPerSample: uint16(f.BitsPerSample),
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(dataSize),
	}
}

// EncodeWAV writes pcm as a RIFF/WAVE stream. Only whole frames are written;
// a trailing partial frame is dropped.
func EncodeWAV(w io.Writer, pcm []byte, f Format) error {
	dataSize := f.Frames(len(pcm)) * f.FrameSize
	if err := checkDataSize(dataSize); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, newWAVHeader(dataSize, f)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(pcm[:dataSize]); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// checkDataSize rejects data chunks whose sizes do not fit the 32-bit RIFF fields
func checkDataSize(dataSize int) error {
	if uint64(dataSize) > math.MaxUint32-36 {
		return fmt.Errorf("%w: %d bytes of audio exceed the WAV size limit", ErrEncodingFailure, dataSize)
	}
	return nil
}

// WriteWAV encodes pcm into a new file at path, creating the parent directory
// if needed. Failures are reported as ErrEncodingFailure and leave no file behind.
func WriteWAV(fs afero.Fs, path string, pcm []byte, f Format) error {
	if err := ensureDir(fs, filepath.Dir(path)); err != nil {
		return fmt.Errorf("%w %s: %w", ErrEncodingFailure, path, err)
	}

	file, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrEncodingFailure, path, err)
	}

	bw := bufio.NewWriter(file)
	err = EncodeWAV(bw, pcm, f)
	if err == nil {
		err = bw.Flush()
	}
	if err == nil {
		err = file.Sync()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fs.Remove(path)
		return fmt.Errorf("%w %s: %w", ErrEncodingFailure, path, err)
	}
	return nil
}

func ensureDir(fs afero.Fs, dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("unable to create directory %s: %w", dir, err)
	}
	return nil
}

// WAVInfo describes a decoded WAV file
type WAVInfo struct {
	Path          string        `json:"path"`
	SampleRate    int           `json:"sample_rate"`
	BitsPerSample int           `json:"bits_per_sample"`
	Channels      int           `json:"channels"`
	DataSize      int           `json:"data_size"`
	Frames        int           `json:"frames"`
	Duration      time.Duration `json:"duration"`
	PeakLevel     float64       `json:"peak_level"`
}

// ReadWAVInfo reads the header of the WAV file at path without decoding samples.
// PeakLevel is left at zero.
func ReadWAVInfo(fs afero.Fs, path string) (*WAVInfo, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	_, info, err := decodeWAVHeader(file, path)
	return info, err
}

// InspectWAV decodes the header and samples of the WAV file at path
func InspectWAV(fs afero.Fs, path string) (*WAVInfo, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	d, info, err := decodeWAVHeader(file, path)
	if err != nil {
		return nil, err
	}

	if d.PCMSize > 0 {
		buf, err := d.FullPCMBuffer()
		if err != nil {
			return nil, fmt.Errorf("failed to read samples from %s: %w", path, err)
		}
		info.PeakLevel = peakLevel(buf)
	}

	return info, nil
}

// decodeWAVHeader parses the format chunk and positions the decoder at the PCM data
func decodeWAVHeader(r io.ReadSeeker, path string) (*wav.Decoder, *WAVInfo, error) {
	d := wav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, nil, fmt.Errorf("invalid wav file %s: %w", path, err)
	}
	if d.NumChans < 1 || d.BitDepth < 8 || d.SampleRate == 0 {
		return nil, nil, fmt.Errorf("invalid wav file %s: missing format chunk", path)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, nil, fmt.Errorf("invalid wav file %s: %w", path, err)
	}

	f := Format{
		SampleRate:    int(d.SampleRate),
		BitsPerSample: int(d.BitDepth),
		Channels:      int(d.NumChans),
		FrameSize:     int(d.NumChans) * int(d.BitDepth) / 8,
	}
	return d, &WAVInfo{
		Path:          path,
		SampleRate:    f.SampleRate,
		BitsPerSample: f.BitsPerSample,
		Channels:      f.Channels,
		DataSize:      d.PCMSize,
		Frames:        f.Frames(d.PCMSize),
		Duration:      f.Duration(d.PCMSize),
	}, nil
}

// peakLevel returns the largest absolute sample in buf normalized to [0,1]
func peakLevel(buf *goaudio.IntBuffer) float64 {
	if buf == nil || len(buf.Data) == 0 || buf.SourceBitDepth <= 0 {
		return 0
	}
	fullScale := float64(int(1) << (buf.SourceBitDepth - 1))

	peak := 0
	for _, v := range buf.Data {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return min(1.0, float64(peak)/fullScale)
}
