package element

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Factory errors
var (
	ErrInvalidElementKind = errors.New("invalid element kind")
)

// Factory creates Element instances based on configuration
type Factory interface {
	CreateElement(kind string) (Element, error)
	GetSupportedKinds() []string
	IsValidKind(kind string) bool
}

// DefaultFactory implements Factory with environment-based auto selection
type DefaultFactory struct {
	registry   *DecoderRegistry
	silentFunc func() bool
}

// NewFactory creates a DefaultFactory with the default decoder registry
func NewFactory() *DefaultFactory {
	return NewFactoryWithRegistry(NewDefaultRegistry())
}

// NewFactoryWithRegistry creates a factory using the given decoder registry
func NewFactoryWithRegistry(registry *DecoderRegistry) *DefaultFactory {
	return &DefaultFactory{
		registry:   registry,
		silentFunc: silentFromEnvironment,
	}
}

// NewFactoryWithDependencies creates a factory with injected detection for testing
func NewFactoryWithDependencies(registry *DecoderRegistry, silentFunc func() bool) *DefaultFactory {
	return &DefaultFactory{
		registry:   registry,
		silentFunc: silentFunc,
	}
}

// CreateElement creates an Element instance of the requested kind.
// An empty kind defaults to "auto".
func (f *DefaultFactory) CreateElement(kind string) (Element, error) {
	if kind == "" {
		kind = "auto"
	}

	slog.Debug("creating element", "kind", kind)

	switch kind {
	case "auto":
		if f.silentFunc() {
			slog.Info("silent environment detected, using null element")
			return NewNullElement(0), nil
		}
		return NewMalgoElement(f.registry), nil
	case "malgo":
		return NewMalgoElement(f.registry), nil
	case "null":
		return NewNullElement(0), nil
	default:
		slog.Error("invalid element kind requested", "kind", kind)
		return nil, fmt.Errorf("%w: %s", ErrInvalidElementKind, kind)
	}
}

// GetSupportedKinds returns a list of all supported element kinds
func (f *DefaultFactory) GetSupportedKinds() []string {
	return []string{"auto", "malgo", "null"}
}

// IsValidKind checks if an element kind is supported.
// An empty string is valid and defaults to auto.
func (f *DefaultFactory) IsValidKind(kind string) bool {
	if kind == "" {
		return true
	}
	for _, supported := range f.GetSupportedKinds() {
		if kind == supported {
			return true
		}
	}
	return false
}

// silentFromEnvironment reports whether CUELOOP_SILENT requests silent mode
func silentFromEnvironment() bool {
	value := os.Getenv("CUELOOP_SILENT")
	if value == "" {
		return false
	}

	silent, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("invalid CUELOOP_SILENT environment variable", "value", value, "error", err)
		return false
	}
	return silent
}
