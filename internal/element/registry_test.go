package element

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/youpy/go-wav"
)

func TestDefaultRegistryFormats(t *testing.T) {
	registry := NewDefaultRegistry()

	formats := registry.SupportedFormats()
	want := []string{"WAV", "MP3", "AIFF", "OGG"}

	if len(formats) != len(want) {
		t.Fatalf("formats = %v, want %v", formats, want)
	}
	for i, f := range want {
		if formats[i] != f {
			t.Errorf("formats[%d] = %s, want %s", i, formats[i], f)
		}
	}
}

func TestDetectFormatByExtension(t *testing.T) {
	registry := NewDefaultRegistry()

	tests := []struct {
		filename string
		want     string
	}{
		{"sound.wav", "WAV"},
		{"SOUND.WAV", "WAV"},
		{"music.mp3", "MP3"},
		{"clip.aiff", "AIFF"},
		{"clip.aif", "AIFF"},
		{"stream.ogg", "OGG"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			decoder := registry.DetectFormat(tt.filename)
			if decoder == nil {
				t.Fatalf("no decoder for %s", tt.filename)
			}
			if decoder.FormatName() != tt.want {
				t.Errorf("format = %s, want %s", decoder.FormatName(), tt.want)
			}
		})
	}
}

func TestDetectFormatUnknown(t *testing.T) {
	registry := NewDefaultRegistry()

	if registry.DetectFormat("notes.txt") != nil {
		t.Error("expected no decoder for .txt")
	}
	if registry.DetectFormat("") != nil {
		t.Error("expected no decoder for empty filename")
	}
}

func TestDetectFormatWithContentIgnoresWrongExtension(t *testing.T) {
	registry := NewDefaultRegistry()

	// A WAV header behind a meaningless extension: magic bytes win
	header := append([]byte("RIFF"), 0x24, 0, 0, 0)
	header = append(header, []byte("WAVEfmt ")...)
	header = append(header, make([]byte, 20)...)

	decoder := registry.DetectFormatWithContent("mystery.bin", bytes.NewReader(header))
	if decoder == nil || decoder.FormatName() != "WAV" {
		t.Fatalf("expected WAV decoder from magic bytes, got %v", decoder)
	}
}

func TestDetectFormatWithContentFallsBackToExtension(t *testing.T) {
	registry := NewDefaultRegistry()

	decoder := registry.DetectFormatWithContent("clip.mp3", strings.NewReader("not audio at all"))
	if decoder == nil || decoder.FormatName() != "MP3" {
		t.Fatalf("expected MP3 decoder from extension fallback, got %v", decoder)
	}
}

// makeWav builds a small mono 16-bit PCM WAV in memory
func makeWav(t *testing.T, numSamples int) []byte {
	t.Helper()

	var buf bytes.Buffer
	writer := wav.NewWriter(&buf, uint32(numSamples), 1, 8000, 16)

	samples := make([]wav.Sample, numSamples)
	for i := range samples {
		samples[i].Values[0] = i % 64
	}
	if err := writer.WriteSamples(samples); err != nil {
		t.Fatalf("write samples: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeSourceWav(t *testing.T) {
	registry := NewDefaultRegistry()

	data, err := registry.DecodeSource("tone.wav", bytes.NewReader(makeWav(t, 800)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if data.Channels != 1 {
		t.Errorf("channels = %d, want 1", data.Channels)
	}
	if data.SampleRate != 8000 {
		t.Errorf("sample rate = %d, want 8000", data.SampleRate)
	}
	if got := data.TotalFrames(); got != 800 {
		t.Errorf("frames = %d, want 800", got)
	}
	// 800 frames at 8 kHz = 100 ms
	if ms := data.Duration().Milliseconds(); ms != 100 {
		t.Errorf("duration = %dms, want 100ms", ms)
	}
}

func TestDecodeSourceUnsupported(t *testing.T) {
	registry := NewDefaultRegistry()

	_, err := registry.DecodeSource("notes.txt", strings.NewReader("plain text"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestRegisterNilDecoderIgnored(t *testing.T) {
	registry := NewDecoderRegistry()
	registry.Register(nil)

	if len(registry.SupportedFormats()) != 0 {
		t.Error("nil decoder must not be registered")
	}
}
