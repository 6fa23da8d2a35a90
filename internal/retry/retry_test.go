package retry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cueloop.dev/internal/element"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"load timeout", ErrLoadTimeout, KindTimeout},
		{"wrapped timeout", fmt.Errorf("load: %w", ErrLoadTimeout), KindTimeout},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"canceled", context.Canceled, KindAbort},
		{"unsupported format", element.ErrUnsupportedFormat, KindUnsupported},
		{"invalid data", fmt.Errorf("decode: %w", element.ErrInvalidData), KindDecode},
		{"permission", os.ErrPermission, KindPermission},
		{"missing file", fs.ErrNotExist, KindNetwork},
		{"read failure", element.ErrReadFailure, KindNetwork},
		{"anything else", errors.New("mystery"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestEvaluateRetryBackoffSchedule(t *testing.T) {
	m := NewManager(Config{
		Enabled:            true,
		MaxRetries:         3,
		BaseDelay:          100 * time.Millisecond,
		ExponentialBackoff: true,
	})

	failure := errors.New("boom")

	// Three budgeted retries at 100, 200, 400 ms
	wantDelays := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}
	for attempt, want := range wantDelays {
		d := m.Evaluate(attempt, 0, failure)
		require.Equal(t, ActionRetry, d.Action, "attempt %d", attempt)
		assert.Equal(t, want, d.Delay, "attempt %d", attempt)
	}

	// The fourth failure is terminal
	d := m.Evaluate(3, 0, failure)
	assert.Equal(t, ActionTerminal, d.Action)
	assert.False(t, d.Skip)
}

func TestEvaluateFlatBackoff(t *testing.T) {
	m := NewManager(Config{
		Enabled:    true,
		MaxRetries: 2,
		BaseDelay:  50 * time.Millisecond,
	})

	for attempt := 0; attempt < 2; attempt++ {
		d := m.Evaluate(attempt, 0, errors.New("x"))
		require.Equal(t, ActionRetry, d.Action)
		assert.Equal(t, 50*time.Millisecond, d.Delay)
	}
}

func TestEvaluateFallbacksBeforeRetries(t *testing.T) {
	m := NewManager(Config{
		Enabled:      true,
		MaxRetries:   1,
		BaseDelay:    10 * time.Millisecond,
		FallbackURLs: []string{"first.wav", "second.wav"},
	})

	failure := errors.New("x")

	d := m.Evaluate(0, 0, failure)
	require.Equal(t, ActionFallback, d.Action)
	assert.Equal(t, "first.wav", d.Source)

	d = m.Evaluate(0, 1, failure)
	require.Equal(t, ActionFallback, d.Action)
	assert.Equal(t, "second.wav", d.Source)

	// Fallbacks exhausted: the retry budget is still intact
	d = m.Evaluate(0, 2, failure)
	assert.Equal(t, ActionRetry, d.Action)
}

func TestEvaluateDisabledGoesStraightToTerminal(t *testing.T) {
	m := NewManager(Config{
		Enabled:       false,
		MaxRetries:    5,
		SkipOnFailure: true,
	})

	d := m.Evaluate(0, 0, errors.New("x"))
	assert.Equal(t, ActionTerminal, d.Action)
	assert.True(t, d.Skip)
}

func TestEvaluateCarriesClassification(t *testing.T) {
	m := NewManager(DefaultConfig())

	d := m.Evaluate(0, 0, ErrLoadTimeout)
	assert.Equal(t, KindTimeout, d.Kind)
}

func TestSetConfigReplacesWholesale(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.SetConfig(Config{Enabled: false, FallbackURLs: []string{"a"}})

	cfg := m.Config()
	assert.False(t, cfg.Enabled)
	assert.Zero(t, cfg.MaxRetries, "old fields must not leak through")
	assert.Equal(t, []string{"a"}, cfg.FallbackURLs)
}

func TestConfigReturnsCopy(t *testing.T) {
	m := NewManager(Config{FallbackURLs: []string{"a", "b"}})

	cfg := m.Config()
	cfg.FallbackURLs[0] = "mutated"

	assert.Equal(t, "a", m.Config().FallbackURLs[0])
}

func TestDelayShiftCap(t *testing.T) {
	m := NewManager(Config{
		Enabled:            true,
		BaseDelay:          time.Nanosecond,
		ExponentialBackoff: true,
	})

	// Absurd attempt numbers must not overflow into negative delays
	assert.Greater(t, m.Delay(500), time.Duration(0))
}

func TestTimeout(t *testing.T) {
	m := NewManager(Config{Timeout: 5 * time.Second})
	assert.Equal(t, 5*time.Second, m.Timeout())
}
