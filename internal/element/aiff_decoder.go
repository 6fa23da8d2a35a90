package element

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
)

// AiffDecoder handles AIFF audio format decoding
type AiffDecoder struct{}

// NewAiffDecoder creates a new AIFF decoder instance
func NewAiffDecoder() *AiffDecoder {
	slog.Debug("creating new AIFF decoder instance")
	return &AiffDecoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *AiffDecoder) FormatName() string {
	return "AIFF"
}

// CanDecode checks if this decoder can handle the given filename
func (d *AiffDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".aiff") || strings.HasSuffix(lower, ".aif")
}

// Decode reads AIFF audio data from reader and returns decoded PCM data
func (d *AiffDecoder) Decode(reader io.Reader) (*AudioData, error) {
	slog.Debug("starting AIFF decode operation")

	// go-audio/aiff needs a ReadSeeker, so buffer the data first
	data, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read AIFF data", "error", err)
		return nil, ErrReadFailure
	}

	if len(data) == 0 {
		slog.Error("empty AIFF data")
		return nil, ErrInvalidData
	}

	decoder := aiff.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		slog.Error("invalid AIFF file format")
		return nil, ErrInvalidData
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		slog.Error("failed to read AIFF PCM data", "error", err)
		return nil, ErrReadFailure
	}

	if buf == nil || len(buf.Data) == 0 {
		slog.Error("no audio data found in AIFF file")
		return nil, ErrInvalidData
	}

	format := buf.Format
	if format == nil || format.NumChannels == 0 || format.SampleRate == 0 {
		slog.Error("invalid AIFF format parameters")
		return nil, ErrInvalidData
	}

	bitDepth := buf.SourceBitDepth
	slog.Debug("AIFF format detected",
		"sample_rate", format.SampleRate,
		"channels", format.NumChannels,
		"bits_per_sample", bitDepth)

	samples, err := intBufferToS16(buf, bitDepth)
	if err != nil {
		return nil, err
	}

	audioData := &AudioData{
		Samples:    samples,
		Channels:   uint32(format.NumChannels),
		SampleRate: uint32(format.SampleRate),
		Format:     malgo.FormatS16,
	}

	slog.Info("AIFF decode completed successfully",
		"sample_rate", audioData.SampleRate,
		"channels", audioData.Channels,
		"data_size", len(audioData.Samples),
		"duration", audioData.Duration())

	return audioData, nil
}

// intBufferToS16 converts a go-audio integer buffer to little-endian 16-bit
// signed PCM, rescaling from the source bit depth
func intBufferToS16(buf *audio.IntBuffer, bitDepth int) ([]byte, error) {
	var shift int
	switch bitDepth {
	case 8:
		shift = -8 // widen
	case 16:
		shift = 0
	case 24:
		shift = 8 // narrow
	case 32:
		shift = 16
	default:
		slog.Error("unsupported AIFF bit depth", "bits", bitDepth)
		return nil, ErrUnsupportedFormat
	}

	out := make([]byte, 0, len(buf.Data)*2)
	for _, v := range buf.Data {
		var s int16
		if shift < 0 {
			s = int16(v << uint(-shift))
		} else {
			s = int16(v >> uint(shift))
		}
		out = append(out, byte(s), byte(s>>8))
	}
	return out, nil
}
