package volume

import (
	"log/slog"

	"github.com/tanema/gween/ease"
)

// Easing names a volume transition curve
type Easing string

// Supported easing curves
const (
	EasingLinear    Easing = "linear"
	EasingEaseIn    Easing = "ease-in"
	EasingEaseOut   Easing = "ease-out"
	EasingEaseInOut Easing = "ease-in-out"
)

// easingFunc maps an easing name onto its tween function.
// Unknown names fall back to linear.
func easingFunc(e Easing) ease.TweenFunc {
	switch e {
	case EasingLinear, "":
		return ease.Linear
	case EasingEaseIn:
		return ease.InQuad
	case EasingEaseOut:
		return ease.OutQuad
	case EasingEaseInOut:
		return ease.InOutQuad
	default:
		slog.Warn("unknown easing, falling back to linear", "easing", e)
		return ease.Linear
	}
}

// IsValidEasing checks whether the name maps to a supported curve
func IsValidEasing(e Easing) bool {
	switch e {
	case EasingLinear, EasingEaseIn, EasingEaseOut, EasingEaseInOut, "":
		return true
	default:
		return false
	}
}
