package cli

import "testing"

// fakeTerminalDetector returns a fixed answer for any fd
type fakeTerminalDetector struct {
	interactive bool
	calls       int
}

func (f *fakeTerminalDetector) IsTerminal(fd int) bool {
	f.calls++
	return f.interactive
}

func TestIsInteractiveTerminalUsesInjectedDetector(t *testing.T) {
	detector := &fakeTerminalDetector{interactive: true}
	c := NewCLI()
	c.terminalDetector = detector

	if !c.isInteractiveTerminal(0) {
		t.Error("expected injected detector's answer")
	}
	if detector.calls != 1 {
		t.Errorf("detector calls = %d, want 1", detector.calls)
	}
}

func TestIsInteractiveTerminalDefaultsWhenUnset(t *testing.T) {
	c := NewCLI()
	c.terminalDetector = nil

	// Pipes and regular files are never terminals under the default detector
	c.isInteractiveTerminal(0)

	if _, ok := c.terminalDetector.(*DefaultTerminalDetector); !ok {
		t.Errorf("detector = %T, want *DefaultTerminalDetector", c.terminalDetector)
	}
}

func TestDefaultTerminalDetectorOnInvalidFd(t *testing.T) {
	d := &DefaultTerminalDetector{}
	if d.IsTerminal(-1) {
		t.Error("invalid fd must not be a terminal")
	}
}
