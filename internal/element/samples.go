package element

import (
	"log/slog"

	"github.com/gen2brain/malgo"
)

// bytesPerSample returns the number of bytes per sample for a given format
func bytesPerSample(format malgo.FormatType) int {
	switch format {
	case malgo.FormatU8:
		return 1
	case malgo.FormatS16:
		return 2
	case malgo.FormatS24:
		return 3
	case malgo.FormatS32, malgo.FormatF32:
		return 4
	default:
		slog.Warn("unknown audio format, assuming 2 bytes per sample", "format", format)
		return 2
	}
}

// applyVolumeToSamples applies volume scaling to audio samples based on format
func applyVolumeToSamples(samples []byte, format malgo.FormatType, volume float32) {
	switch format {
	case malgo.FormatS16:
		for i := 0; i < len(samples)-1; i += 2 {
			sample := int16(samples[i]) | int16(samples[i+1])<<8
			sample = int16(float32(sample) * volume)
			samples[i] = byte(sample)
			samples[i+1] = byte(sample >> 8)
		}
	case malgo.FormatS24:
		for i := 0; i < len(samples)-2; i += 3 {
			sample := int32(samples[i]) | int32(samples[i+1])<<8 | int32(samples[i+2])<<16
			// Sign extend from 24-bit
			if sample&0x800000 != 0 {
				sample |= ^0xFFFFFF
			}
			sample = int32(float32(sample) * volume)
			samples[i] = byte(sample)
			samples[i+1] = byte(sample >> 8)
			samples[i+2] = byte(sample >> 16)
		}
	case malgo.FormatS32:
		for i := 0; i < len(samples)-3; i += 4 {
			sample := int32(samples[i]) | int32(samples[i+1])<<8 | int32(samples[i+2])<<16 | int32(samples[i+3])<<24
			sample = int32(float32(sample) * volume)
			samples[i] = byte(sample)
			samples[i+1] = byte(sample >> 8)
			samples[i+2] = byte(sample >> 16)
			samples[i+3] = byte(sample >> 24)
		}
	default:
		slog.Warn("volume adjustment not implemented for format", "format", format)
	}
}
