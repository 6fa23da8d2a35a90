package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestGetConfigPathsIncludesFilename(t *testing.T) {
	x := NewXDGDirs()

	paths := x.GetConfigPaths("config.json")
	if len(paths) == 0 {
		t.Fatal("expected at least one config path")
	}

	for _, p := range paths {
		if !strings.Contains(p, "cueloop") {
			t.Errorf("path %q missing app directory", p)
		}
		if filepath.Base(p) != "config.json" {
			t.Errorf("path %q missing filename", p)
		}
	}
}

func TestGetConfigPathsUserFirst(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/home/user/.config")

	x := NewXDGDirs()
	paths := x.GetConfigPaths("")

	if len(paths) == 0 {
		t.Fatal("expected at least one config path")
	}
	// adrg/xdg caches env at init, so only the shape is asserted here:
	// user path first, then system dirs
	if !strings.HasSuffix(paths[0], filepath.Join("", "cueloop")) {
		t.Errorf("first path %q should end with the app directory", paths[0])
	}
}

func TestGetCachePath(t *testing.T) {
	x := NewXDGDirs()

	base := x.GetCachePath("")
	logs := x.GetCachePath("logs")

	if !strings.Contains(base, "cueloop") {
		t.Errorf("cache path %q missing app directory", base)
	}
	if filepath.Base(logs) != "logs" {
		t.Errorf("cache path %q missing purpose directory", logs)
	}
}
