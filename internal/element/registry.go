package element

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DecoderRegistry manages audio format decoders and provides format detection
type DecoderRegistry struct {
	decoders []Decoder
}

// NewDecoderRegistry creates a new empty decoder registry
func NewDecoderRegistry() *DecoderRegistry {
	slog.Debug("creating new decoder registry")
	return &DecoderRegistry{
		decoders: make([]Decoder, 0),
	}
}

// NewDefaultRegistry creates a registry with WAV, MP3, AIFF, and OGG decoders
func NewDefaultRegistry() *DecoderRegistry {
	registry := NewDecoderRegistry()

	registry.Register(NewWavDecoder())
	registry.Register(NewMp3Decoder())
	registry.Register(NewAiffDecoder())
	registry.Register(NewVorbisDecoder())

	slog.Info("default decoder registry initialized",
		"supported_formats", registry.SupportedFormats())

	return registry
}

// Register adds a decoder to the registry
func (r *DecoderRegistry) Register(decoder Decoder) {
	if decoder == nil {
		slog.Warn("attempted to register nil decoder")
		return
	}

	r.decoders = append(r.decoders, decoder)

	slog.Debug("decoder registered",
		"format", decoder.FormatName(),
		"total_decoders", len(r.decoders))
}

// SupportedFormats returns a list of all supported format names
func (r *DecoderRegistry) SupportedFormats() []string {
	formats := make([]string, 0, len(r.decoders))
	for _, decoder := range r.decoders {
		formats = append(formats, decoder.FormatName())
	}
	return formats
}

// DetectFormat detects the appropriate decoder based on filename extension only
func (r *DecoderRegistry) DetectFormat(filename string) Decoder {
	if filename == "" {
		return nil
	}

	// First registered decoder has priority
	for _, decoder := range r.decoders {
		if decoder.CanDecode(filename) {
			slog.Debug("format detected by extension",
				"filename", filename,
				"format", decoder.FormatName())
			return decoder
		}
	}

	slog.Debug("no decoder matched extension", "filename", filename)
	return nil
}

// DetectFormatWithContent detects format using magic bytes first, falling
// back to extension matching
func (r *DecoderRegistry) DetectFormatWithContent(filename string, reader io.Reader) Decoder {
	buffer := make([]byte, 512)
	n, err := reader.Read(buffer)
	if err != nil && err != io.EOF {
		slog.Error("failed to read header for magic detection", "error", err)
		return r.DetectFormat(filename)
	}

	if n == 0 {
		slog.Debug("empty content, using extension fallback")
		return r.DetectFormat(filename)
	}

	mtype := mimetype.Detect(buffer[:n])
	mimeStr := strings.ToLower(mtype.String())

	slog.Debug("magic byte detection result",
		"filename", filename,
		"detected_mime", mimeStr,
		"bytes_analyzed", n)

	var formatDecoder Decoder
	switch {
	case strings.Contains(mimeStr, "wav") || mimeStr == "audio/vnd.wave":
		formatDecoder = r.findDecoderByFormat("WAV")
	case strings.Contains(mimeStr, "mpeg") || strings.Contains(mimeStr, "mp3"):
		formatDecoder = r.findDecoderByFormat("MP3")
	case strings.Contains(mimeStr, "aiff"):
		formatDecoder = r.findDecoderByFormat("AIFF")
	case strings.Contains(mimeStr, "ogg"):
		formatDecoder = r.findDecoderByFormat("OGG")
	}

	if formatDecoder != nil {
		slog.Info("format detected by magic bytes",
			"filename", filename,
			"format", formatDecoder.FormatName(),
			"mime_type", mimeStr)
		return formatDecoder
	}

	slog.Debug("magic detection failed, falling back to extension", "filename", filename)
	return r.DetectFormat(filename)
}

// findDecoderByFormat finds a decoder by its format name
func (r *DecoderRegistry) findDecoderByFormat(formatName string) Decoder {
	for _, decoder := range r.decoders {
		if strings.EqualFold(decoder.FormatName(), formatName) {
			return decoder
		}
	}
	return nil
}

// DecodeSource decodes an audio source using the appropriate decoder
func (r *DecoderRegistry) DecodeSource(filename string, reader io.Reader) (*AudioData, error) {
	slog.Debug("starting source decode operation", "filename", filename)

	// Buffer everything so format detection does not consume the reader
	content, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read source content", "filename", filename, "error", err)
		return nil, fmt.Errorf("failed to read source content: %w", err)
	}

	decoder := r.DetectFormatWithContent(filename, bytes.NewReader(content))
	if decoder == nil {
		slog.Error("unsupported audio format", "filename", filename)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	data, err := decoder.Decode(bytes.NewReader(content))
	if err != nil {
		slog.Error("decode failed",
			"filename", filename,
			"format", decoder.FormatName(),
			"error", err)
		return nil, err
	}

	slog.Debug("source decoded",
		"filename", filename,
		"format", decoder.FormatName(),
		"duration", data.Duration())
	return data, nil
}
