package element

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// progressInterval is how often a playing element reports time updates
const progressInterval = 100 * time.Millisecond

// MalgoElement plays decoded PCM audio through a malgo playback device.
// It decodes the entire source on Load and feeds samples to the device
// callback, applying volume scaling and loop wrapping inline.
type MalgoElement struct {
	registry *DecoderRegistry

	mu      sync.Mutex
	handler Handler
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	data    *AudioData
	source  string
	gen     int // load generation; stale async results are dropped
	playing bool
	closed  bool

	progressDone chan struct{}

	// Read from the device callback thread, so kept lock-free
	frameOffset atomic.Uint32
	totalFrames atomic.Uint32
	volumeBits  atomic.Uint64
	loop        atomic.Bool
	endedSignal chan struct{}
}

// NewMalgoElement creates a playback element using the given decoder registry
func NewMalgoElement(registry *DecoderRegistry) *MalgoElement {
	slog.Debug("creating new malgo element")

	m := &MalgoElement{
		registry:    registry,
		endedSignal: make(chan struct{}, 1),
	}
	m.volumeBits.Store(math.Float64bits(1.0))
	return m
}

// SetHandler attaches the notification handler. Must be called before Load.
func (m *MalgoElement) SetHandler(h Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Load decodes the source asynchronously. Readiness or failure is reported
// through the handler; Load itself never blocks on decoding.
func (m *MalgoElement) Load(source string) {
	m.mu.Lock()
	if m.closed {
		handler := m.handler
		m.mu.Unlock()
		if handler != nil {
			handler.OnError(ErrElementClosed)
		}
		return
	}

	m.teardownDeviceLocked()
	m.gen++
	gen := m.gen
	m.source = source
	m.data = nil
	m.frameOffset.Store(0)
	m.totalFrames.Store(0)
	m.mu.Unlock()

	slog.Debug("loading source", "source", source, "generation", gen)

	go m.decode(source, gen)
}

// decode runs off the caller's goroutine and installs the result if the
// element has not been re-loaded or closed in the meantime
func (m *MalgoElement) decode(source string, gen int) {
	file, err := os.Open(source)
	if err != nil {
		slog.Error("failed to open source", "source", source, "error", err)
		m.reportLoadError(gen, fmt.Errorf("failed to open source: %w", err))
		return
	}
	defer file.Close()

	data, err := m.registry.DecodeSource(source, file)
	if err != nil {
		m.reportLoadError(gen, err)
		return
	}

	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		slog.Debug("discarding stale decode result", "source", source, "generation", gen)
		return
	}
	m.data = data
	m.totalFrames.Store(data.TotalFrames())
	handler := m.handler
	m.mu.Unlock()

	slog.Info("source ready",
		"source", source,
		"duration", data.Duration(),
		"sample_rate", data.SampleRate,
		"channels", data.Channels)

	if handler != nil {
		handler.OnCanPlay()
	}
}

func (m *MalgoElement) reportLoadError(gen int, err error) {
	m.mu.Lock()
	stale := m.closed || gen != m.gen
	handler := m.handler
	m.mu.Unlock()

	if stale || handler == nil {
		return
	}
	handler.OnError(err)
}

// Play starts or resumes playback of the loaded source
func (m *MalgoElement) Play() error {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return ErrElementClosed
	}
	if m.data == nil {
		m.mu.Unlock()
		return ErrNoSource
	}
	if m.playing {
		m.mu.Unlock()
		return nil
	}

	if m.device == nil {
		if err := m.initDeviceLocked(); err != nil {
			m.mu.Unlock()
			return err
		}
	}

	if err := m.device.Start(); err != nil {
		slog.Error("failed to start playback device", "source", m.source, "error", err)
		m.mu.Unlock()
		return fmt.Errorf("failed to start playback: %w", err)
	}

	m.playing = true
	m.progressDone = make(chan struct{})
	go m.watch(m.progressDone)
	source := m.source
	m.mu.Unlock()

	slog.Debug("playback started", "source", source)
	return nil
}

// initDeviceLocked creates the malgo playback device for the loaded data,
// initializing the shared audio context on first use. Caller holds m.mu.
func (m *MalgoElement) initDeviceLocked() error {
	if m.ctx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
			slog.Debug("malgo", "message", message)
		})
		if err != nil {
			return fmt.Errorf("failed to initialize audio context: %w", err)
		}
		m.ctx = ctx
		slog.Debug("audio context initialized")
	}

	data := m.data

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = data.Format
	deviceConfig.Playback.Channels = data.Channels
	deviceConfig.SampleRate = data.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	slog.Debug("device configuration",
		"source", m.source,
		"format", data.Format,
		"channels", data.Channels,
		"sample_rate", data.SampleRate)

	// Drain any stale end signal from a previous device
	select {
	case <-m.endedSignal:
	default:
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, framecount uint32) {
			m.fillSamples(data, pOutput, framecount)
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		slog.Error("failed to initialize playback device", "source", m.source, "error", err)
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	m.device = device
	return nil
}

// fillSamples runs on the audio thread. It copies PCM data into the output
// buffer, applies volume, wraps on loop, and signals natural completion.
func (m *MalgoElement) fillSamples(data *AudioData, pOutput []byte, framecount uint32) {
	bytesPerFrame := data.BytesPerFrame()
	offset := m.frameOffset.Load()
	total := m.totalFrames.Load()

	if offset >= total {
		if m.loop.Load() && total > 0 {
			offset = 0
			m.frameOffset.Store(0)
		} else {
			for i := range pOutput {
				pOutput[i] = 0
			}
			m.signalEnded()
			return
		}
	}

	startByte := int(offset) * bytesPerFrame
	requested := int(framecount) * bytesPerFrame
	available := len(data.Samples) - startByte

	toCopy := requested
	if toCopy > available {
		toCopy = available
	}
	copy(pOutput[:toCopy], data.Samples[startByte:startByte+toCopy])

	// The rest of the buffer must be silence or the device plays garbage
	for i := toCopy; i < len(pOutput); i++ {
		pOutput[i] = 0
	}

	volume := math.Float64frombits(m.volumeBits.Load())
	if volume != 1.0 {
		applyVolumeToSamples(pOutput[:toCopy], data.Format, float32(volume))
	}

	m.frameOffset.Add(uint32(toCopy / bytesPerFrame))
}

// signalEnded notifies the watcher goroutine at most once per device run
func (m *MalgoElement) signalEnded() {
	select {
	case m.endedSignal <- struct{}{}:
	default:
	}
}

// watch emits periodic time updates and fires OnEnded on natural completion
func (m *MalgoElement) watch(done chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-m.endedSignal:
			m.mu.Lock()
			m.playing = false
			m.teardownDeviceLocked()
			handler := m.handler
			source := m.source
			m.mu.Unlock()

			slog.Debug("playback completed", "source", source)
			if handler != nil {
				handler.OnEnded()
			}
			return
		case <-ticker.C:
			m.mu.Lock()
			handler := m.handler
			playing := m.playing
			m.mu.Unlock()

			if handler != nil && playing {
				pos, dur := m.Position()
				handler.OnTimeUpdate(pos, dur)
			}
		}
	}
}

// Pause halts playback, retaining the current position
func (m *MalgoElement) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrElementClosed
	}
	if !m.playing || m.device == nil {
		return nil
	}

	if err := m.device.Stop(); err != nil {
		slog.Error("failed to pause playback device", "source", m.source, "error", err)
		return fmt.Errorf("failed to pause playback: %w", err)
	}

	m.playing = false
	m.stopWatcherLocked()

	slog.Debug("playback paused", "source", m.source, "frame_offset", m.frameOffset.Load())
	return nil
}

// Seek moves the playback position within the loaded source
func (m *MalgoElement) Seek(position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrElementClosed
	}
	if m.data == nil {
		return ErrNoSource
	}

	if position < 0 {
		position = 0
	}

	frame := uint32(position.Seconds() * float64(m.data.SampleRate))
	total := m.totalFrames.Load()
	if frame > total {
		frame = total
	}
	m.frameOffset.Store(frame)

	slog.Debug("seeked", "source", m.source, "position", position, "frame", frame)
	return nil
}

// Stop halts playback and releases the device without firing OnEnded
func (m *MalgoElement) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrElementClosed
	}

	m.teardownDeviceLocked()
	m.frameOffset.Store(0)

	slog.Debug("playback stopped", "source", m.source)
	return nil
}

// teardownDeviceLocked stops the watcher and releases the device.
// Caller holds m.mu.
func (m *MalgoElement) teardownDeviceLocked() {
	m.stopWatcherLocked()
	m.playing = false

	if m.device != nil {
		m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
}

func (m *MalgoElement) stopWatcherLocked() {
	if m.progressDone != nil {
		close(m.progressDone)
		m.progressDone = nil
	}
}

// SetVolume sets the playback volume, clamped to [0,1]
func (m *MalgoElement) SetVolume(level float64) error {
	if math.IsNaN(level) {
		return ErrInvalidVolume
	}
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	m.volumeBits.Store(math.Float64bits(level))
	slog.Debug("element volume set", "volume", level)
	return nil
}

// Volume returns the current playback volume
func (m *MalgoElement) Volume() float64 {
	return math.Float64frombits(m.volumeBits.Load())
}

// SetLoop toggles looping of the loaded source
func (m *MalgoElement) SetLoop(loop bool) {
	m.loop.Store(loop)
	slog.Debug("element loop set", "loop", loop)
}

// Position reports the current playback position and total duration
func (m *MalgoElement) Position() (time.Duration, time.Duration) {
	m.mu.Lock()
	data := m.data
	m.mu.Unlock()

	if data == nil || data.SampleRate == 0 {
		return 0, 0
	}

	pos := time.Duration(m.frameOffset.Load()) * time.Second / time.Duration(data.SampleRate)
	return pos, data.Duration()
}

// Close releases the device and audio context
func (m *MalgoElement) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.gen++
	m.teardownDeviceLocked()
	ctx := m.ctx
	m.ctx = nil
	m.mu.Unlock()

	if ctx != nil {
		// malgo contexts need both Uninit and Free
		if err := ctx.Uninit(); err != nil {
			return fmt.Errorf("failed to release audio context: %w", err)
		}
		ctx.Free()
	}

	slog.Debug("malgo element closed")
	return nil
}
