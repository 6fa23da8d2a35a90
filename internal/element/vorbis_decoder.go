package element

import (
	"io"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/jfreymuth/oggvorbis"
)

// VorbisDecoder handles OGG/Vorbis audio format decoding
type VorbisDecoder struct{}

// NewVorbisDecoder creates a new OGG/Vorbis decoder instance
func NewVorbisDecoder() *VorbisDecoder {
	slog.Debug("creating new OGG/Vorbis decoder instance")
	return &VorbisDecoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *VorbisDecoder) FormatName() string {
	return "OGG"
}

// CanDecode checks if this decoder can handle the given filename
func (d *VorbisDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".ogg") || strings.HasSuffix(lower, ".oga")
}

// Decode reads OGG/Vorbis audio data from reader and returns decoded PCM data
func (d *VorbisDecoder) Decode(reader io.Reader) (*AudioData, error) {
	slog.Debug("starting OGG/Vorbis decode operation")

	floats, format, err := oggvorbis.ReadAll(reader)
	if err != nil {
		slog.Error("failed to decode OGG/Vorbis data", "error", err)
		return nil, ErrInvalidData
	}

	if format == nil || format.Channels == 0 || format.SampleRate == 0 {
		slog.Error("invalid OGG/Vorbis format parameters")
		return nil, ErrInvalidData
	}

	if len(floats) == 0 {
		slog.Error("no audio data found in OGG/Vorbis file")
		return nil, ErrInvalidData
	}

	slog.Debug("OGG/Vorbis format detected",
		"sample_rate", format.SampleRate,
		"channels", format.Channels,
		"samples", len(floats))

	// oggvorbis decodes to interleaved float32 in [-1,1]; convert to S16LE
	samples := make([]byte, 0, len(floats)*2)
	for _, f := range floats {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		s := int16(f * 32767)
		samples = append(samples, byte(s), byte(s>>8))
	}

	audioData := &AudioData{
		Samples:    samples,
		Channels:   uint32(format.Channels),
		SampleRate: uint32(format.SampleRate),
		Format:     malgo.FormatS16,
	}

	slog.Info("OGG/Vorbis decode completed successfully",
		"sample_rate", audioData.SampleRate,
		"channels", audioData.Channels,
		"data_size", len(audioData.Samples),
		"duration", audioData.Duration())

	return audioData, nil
}
