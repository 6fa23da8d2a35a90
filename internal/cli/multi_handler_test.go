package cli

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// levelHandlers builds two text handlers at different levels over separate
// buffers
func levelHandlers() (*bytes.Buffer, *bytes.Buffer, *MultiLevelHandler) {
	var warnBuf, debugBuf bytes.Buffer
	warnHandler := slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn})
	debugHandler := slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &warnBuf, &debugBuf, NewMultiLevelHandler(warnHandler, debugHandler)
}

func TestMultiLevelHandlerRoutesByLevel(t *testing.T) {
	warnBuf, debugBuf, handler := levelHandlers()
	logger := slog.New(handler)

	logger.Debug("quiet detail")
	logger.Warn("something odd")

	if strings.Contains(warnBuf.String(), "quiet detail") {
		t.Error("warn-level handler must not receive debug records")
	}
	if !strings.Contains(warnBuf.String(), "something odd") {
		t.Error("warn-level handler missed a warn record")
	}
	if !strings.Contains(debugBuf.String(), "quiet detail") ||
		!strings.Contains(debugBuf.String(), "something odd") {
		t.Error("debug-level handler must receive everything")
	}
}

func TestMultiLevelHandlerEnabledIfAnyAccepts(t *testing.T) {
	_, _, handler := levelHandlers()
	ctx := context.Background()

	if !handler.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug should be enabled through the debug-level handler")
	}

	onlyWarn := NewMultiLevelHandler(
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if onlyWarn.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug must be disabled when no handler accepts it")
	}
}

func TestMultiLevelHandlerWithAttrs(t *testing.T) {
	warnBuf, debugBuf, handler := levelHandlers()
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("channel", "3")}))

	logger.Warn("tagged")

	for name, buf := range map[string]*bytes.Buffer{"warn": warnBuf, "debug": debugBuf} {
		if !strings.Contains(buf.String(), "channel=3") {
			t.Errorf("%s output missing attribute: %q", name, buf.String())
		}
	}
}

func TestMultiLevelHandlerWithGroup(t *testing.T) {
	warnBuf, _, handler := levelHandlers()
	logger := slog.New(handler.WithGroup("playback"))

	logger.Warn("grouped", "state", "paused")

	if !strings.Contains(warnBuf.String(), "playback.state=paused") {
		t.Errorf("group prefix missing: %q", warnBuf.String())
	}
}
