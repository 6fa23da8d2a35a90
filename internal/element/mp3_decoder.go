package element

import (
	"io"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// Mp3Decoder handles MP3 audio format decoding
type Mp3Decoder struct{}

// NewMp3Decoder creates a new MP3 decoder instance
func NewMp3Decoder() *Mp3Decoder {
	slog.Debug("creating new MP3 decoder instance")
	return &Mp3Decoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *Mp3Decoder) FormatName() string {
	return "MP3"
}

// CanDecode checks if this decoder can handle the given filename
func (d *Mp3Decoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".mp3") || strings.HasSuffix(lower, ".mpeg")
}

// Decode reads MP3 audio data from reader and returns decoded PCM data
func (d *Mp3Decoder) Decode(reader io.Reader) (*AudioData, error) {
	slog.Debug("starting MP3 decode operation")

	decoder, err := mp3.NewDecoder(reader)
	if err != nil {
		slog.Error("failed to create MP3 decoder", "error", err)
		return nil, ErrInvalidData
	}

	sampleRate := decoder.SampleRate()
	if sampleRate <= 0 {
		slog.Error("invalid MP3 sample rate", "sample_rate", sampleRate)
		return nil, ErrInvalidData
	}

	slog.Debug("MP3 format detected", "sample_rate", sampleRate)

	var samples []byte
	buf := make([]byte, 4096)
	for {
		n, err := decoder.Read(buf)
		if n > 0 {
			samples = append(samples, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Error("failed to read MP3 PCM data", "error", err)
			return nil, ErrReadFailure
		}
		if n == 0 {
			break
		}
	}

	if len(samples) == 0 {
		slog.Error("no audio data found in MP3 file")
		return nil, ErrInvalidData
	}

	// go-mp3 always outputs 16-bit signed stereo
	audioData := &AudioData{
		Samples:    samples,
		Channels:   2,
		SampleRate: uint32(sampleRate),
		Format:     malgo.FormatS16,
	}

	slog.Info("MP3 decode completed successfully",
		"sample_rate", audioData.SampleRate,
		"data_size", len(audioData.Samples),
		"duration", audioData.Duration())

	return audioData, nil
}
