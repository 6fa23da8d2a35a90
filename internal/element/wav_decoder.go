package element

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/youpy/go-wav"
)

// WavDecoder handles WAV audio format decoding
type WavDecoder struct{}

// NewWavDecoder creates a new WAV decoder instance
func NewWavDecoder() *WavDecoder {
	slog.Debug("creating new WAV decoder instance")
	return &WavDecoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *WavDecoder) FormatName() string {
	return "WAV"
}

// CanDecode checks if this decoder can handle the given filename
func (d *WavDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".wave")
}

// Decode reads WAV audio data from reader and returns decoded PCM data
func (d *WavDecoder) Decode(reader io.Reader) (*AudioData, error) {
	slog.Debug("starting WAV decode operation")

	// youpy/go-wav needs a ReadSeeker, so buffer the data first
	data, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read WAV data", "error", err)
		return nil, ErrReadFailure
	}

	if len(data) == 0 {
		slog.Error("empty WAV data")
		return nil, ErrInvalidData
	}

	wavReader := wav.NewReader(bytes.NewReader(data))

	format, err := wavReader.Format()
	if err != nil {
		slog.Error("failed to read WAV format", "error", err)
		return nil, ErrInvalidData
	}

	slog.Debug("WAV format detected",
		"sample_rate", format.SampleRate,
		"channels", format.NumChannels,
		"bits_per_sample", format.BitsPerSample)

	if format.NumChannels == 0 || format.SampleRate == 0 {
		slog.Error("invalid WAV format parameters",
			"channels", format.NumChannels,
			"sample_rate", format.SampleRate)
		return nil, ErrInvalidData
	}

	var malgoFormat malgo.FormatType
	switch format.BitsPerSample {
	case 8:
		malgoFormat = malgo.FormatU8
	case 16:
		malgoFormat = malgo.FormatS16
	case 24:
		malgoFormat = malgo.FormatS24
	case 32:
		malgoFormat = malgo.FormatS32
	default:
		slog.Error("unsupported WAV bit depth", "bits", format.BitsPerSample)
		return nil, ErrUnsupportedFormat
	}

	// The wav reader yields raw PCM once the format chunk is consumed
	samples, err := io.ReadAll(wavReader)
	if err != nil {
		slog.Error("failed to read WAV PCM data", "error", err)
		return nil, ErrReadFailure
	}

	if len(samples) == 0 {
		slog.Error("no audio data found in WAV file")
		return nil, ErrInvalidData
	}

	audioData := &AudioData{
		Samples:    samples,
		Channels:   uint32(format.NumChannels),
		SampleRate: format.SampleRate,
		Format:     malgoFormat,
	}

	slog.Info("WAV decode completed successfully",
		"sample_rate", audioData.SampleRate,
		"channels", audioData.Channels,
		"data_size", len(audioData.Samples),
		"duration", audioData.Duration())

	return audioData, nil
}
