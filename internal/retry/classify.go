package retry

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"os"

	"cueloop.dev/internal/element"
)

// Kind classifies a playback failure
type Kind string

// Failure kinds
const (
	KindNetwork     Kind = "network"
	KindDecode      Kind = "decode"
	KindPermission  Kind = "permission"
	KindTimeout     Kind = "timeout"
	KindAbort       Kind = "abort"
	KindUnsupported Kind = "unsupported"
	KindUnknown     Kind = "unknown"
)

// ErrLoadTimeout marks a load that exceeded the configured timeout
var ErrLoadTimeout = errors.New("load timed out")

// Classify maps a native playback failure onto a failure kind
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var kind Kind
	switch {
	case errors.Is(err, ErrLoadTimeout), errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindAbort
	case errors.Is(err, element.ErrUnsupportedFormat):
		kind = KindUnsupported
	case errors.Is(err, element.ErrInvalidData):
		kind = KindDecode
	case errors.Is(err, os.ErrPermission):
		kind = KindPermission
	case errors.Is(err, fs.ErrNotExist), isNetworkError(err):
		// A missing source behaves like an unreachable one
		kind = KindNetwork
	case errors.Is(err, element.ErrReadFailure):
		kind = KindNetwork
	default:
		kind = KindUnknown
	}

	slog.Debug("classified playback failure", "kind", kind, "error", err)
	return kind
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
