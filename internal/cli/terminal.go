package cli

import (
	"log/slog"

	"golang.org/x/term"
)

// TerminalDetector abstracts interactive-terminal detection so tests can
// inject a fake
type TerminalDetector interface {
	IsTerminal(fd int) bool
}

// DefaultTerminalDetector uses golang.org/x/term
type DefaultTerminalDetector struct{}

// IsTerminal implements TerminalDetector
func (d *DefaultTerminalDetector) IsTerminal(fd int) bool {
	isTerminal := term.IsTerminal(fd)
	slog.Debug("terminal detection", "fd", fd, "is_terminal", isTerminal)
	return isTerminal
}

// isInteractiveTerminal reports whether the file descriptor is an
// interactive terminal
func (c *CLI) isInteractiveTerminal(fd int) bool {
	if c.terminalDetector == nil {
		c.terminalDetector = &DefaultTerminalDetector{}
	}
	return c.terminalDetector.IsTerminal(fd)
}
