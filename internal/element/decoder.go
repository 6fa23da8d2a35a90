package element

import (
	"errors"
	"io"
	"time"

	"github.com/gen2brain/malgo"
)

// Common decoder errors
var (
	ErrInvalidData       = errors.New("invalid audio data")
	ErrReadFailure       = errors.New("failed to read audio data")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// AudioData represents decoded audio ready for playback
type AudioData struct {
	Samples    []byte           // Raw interleaved PCM data
	Channels   uint32           // Number of audio channels
	SampleRate uint32           // Sample rate in Hz
	Format     malgo.FormatType // Sample format (e.g. malgo.FormatS16)
}

// BytesPerSample returns the sample width for the data's format
func (a *AudioData) BytesPerSample() int {
	return bytesPerSample(a.Format)
}

// BytesPerFrame returns the size of one interleaved frame
func (a *AudioData) BytesPerFrame() int {
	return int(a.Channels) * a.BytesPerSample()
}

// TotalFrames returns the number of frames in the decoded data
func (a *AudioData) TotalFrames() uint32 {
	bpf := a.BytesPerFrame()
	if bpf == 0 {
		return 0
	}
	return uint32(len(a.Samples) / bpf)
}

// Duration returns the playback length of the decoded data
func (a *AudioData) Duration() time.Duration {
	if a.SampleRate == 0 {
		return 0
	}
	return time.Duration(a.TotalFrames()) * time.Second / time.Duration(a.SampleRate)
}

// Decoder interface for audio format decoding
type Decoder interface {
	// Decode reads audio data from reader and returns decoded PCM data
	Decode(reader io.Reader) (*AudioData, error)

	// CanDecode checks if this decoder can handle the given filename
	CanDecode(filename string) bool

	// FormatName returns the name of the format this decoder handles
	FormatName() string
}
