package element

import (
	"sync"
	"time"
)

// MockElement is a fully scripted Element for tests. It performs no real
// playback and fires notifications only when the test asks it to via the
// Fire methods, which keeps controller tests deterministic.
type MockElement struct {
	mu      sync.Mutex
	handler Handler

	LoadedSources []string
	PlayCalls     int
	PauseCalls    int
	StopCalls     int
	CloseCalls    int
	SeekCalls     []time.Duration

	PlayErr  error
	PauseErr error

	volume   float64
	loop     bool
	position time.Duration
	duration time.Duration
}

// NewMockElement creates a mock element with full volume
func NewMockElement() *MockElement {
	return &MockElement{volume: 1.0}
}

// SetHandler attaches the notification handler
func (m *MockElement) SetHandler(h Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Load records the source; the test decides when readiness fires
func (m *MockElement) Load(source string) {
	m.mu.Lock()
	m.LoadedSources = append(m.LoadedSources, source)
	m.position = 0
	m.mu.Unlock()
}

// LastLoaded returns the most recently loaded source, or ""
func (m *MockElement) LastLoaded() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.LoadedSources) == 0 {
		return ""
	}
	return m.LoadedSources[len(m.LoadedSources)-1]
}

// Play records the call and returns the scripted error, if any
func (m *MockElement) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlayCalls++
	return m.PlayErr
}

// Pause records the call and returns the scripted error, if any
func (m *MockElement) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PauseCalls++
	return m.PauseErr
}

// Seek records the requested position
func (m *MockElement) Seek(position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SeekCalls = append(m.SeekCalls, position)
	m.position = position
	return nil
}

// Stop records the call
func (m *MockElement) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls++
	m.position = 0
	return nil
}

// SetVolume stores the volume, clamped to [0,1]
func (m *MockElement) SetVolume(level float64) error {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	m.mu.Lock()
	m.volume = level
	m.mu.Unlock()
	return nil
}

// Volume returns the stored volume
func (m *MockElement) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// SetLoop stores the loop flag
func (m *MockElement) SetLoop(loop bool) {
	m.mu.Lock()
	m.loop = loop
	m.mu.Unlock()
}

// Loop returns the stored loop flag
func (m *MockElement) Loop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loop
}

// Position reports the scripted position and duration
func (m *MockElement) Position() (time.Duration, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position, m.duration
}

// Close records the call
func (m *MockElement) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

// FireCanPlay delivers a readiness notification with the given duration
func (m *MockElement) FireCanPlay(duration time.Duration) {
	m.mu.Lock()
	m.duration = duration
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		handler.OnCanPlay()
	}
}

// FireProgress delivers a time update notification
func (m *MockElement) FireProgress(position time.Duration) {
	m.mu.Lock()
	m.position = position
	handler := m.handler
	duration := m.duration
	m.mu.Unlock()

	if handler != nil {
		handler.OnTimeUpdate(position, duration)
	}
}

// FireEnded delivers a natural-completion notification
func (m *MockElement) FireEnded() {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		handler.OnEnded()
	}
}

// FireError delivers a failure notification
func (m *MockElement) FireError(err error) {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		handler.OnError(err)
	}
}

// MockFactory returns the same scripted elements in creation order,
// falling back to fresh mocks when the script runs out
type MockFactory struct {
	mu       sync.Mutex
	Scripted []Element
	Created  []Element
}

// CreateElement returns the next scripted element
func (f *MockFactory) CreateElement(kind string) (Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var el Element
	if len(f.Scripted) > 0 {
		el = f.Scripted[0]
		f.Scripted = f.Scripted[1:]
	} else {
		el = NewMockElement()
	}
	f.Created = append(f.Created, el)
	return el, nil
}

// GetSupportedKinds lists the mock kind
func (f *MockFactory) GetSupportedKinds() []string { return []string{"mock"} }

// IsValidKind accepts any kind
func (f *MockFactory) IsValidKind(kind string) bool { return true }
