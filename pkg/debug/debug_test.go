package debug

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "strategies", map[string]bool{"strategies": true}},
		{"multiple", "strategies,replay", map[string]bool{"strategies": true, "replay": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " strategies , replay ", map[string]bool{"strategies": true, "replay": true}},
		{"uppercase normalized", "STRATEGIES,Replay", map[string]bool{"strategies": true, "replay": true}},
		{"empty segments", "strategies,,replay", map[string]bool{"strategies": true, "replay": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %v, want %v", k, got[k], v)
				}
			}
			if len(got) != len(tt.want) {
				t.Errorf("len(got) = %d, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	// Save and restore.
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("strategies,replay")

	if !Enabled("strategies") {
		t.Error("strategies should be enabled")
	}
	if !Enabled("replay") {
		t.Error("replay should be enabled")
	}
	if Enabled("credentials") {
		t.Error("credentials should not be enabled")
	}
	if Enabled("all") {
		t.Error("all should not be enabled (not in categories)")
	}
}

func TestEnabled_All(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("all")

	if !Enabled("strategies") {
		t.Error("strategies should be enabled via 'all'")
	}
	if !Enabled("replay") {
		t.Error("replay should be enabled via 'all'")
	}
	if !Enabled("anything") {
		t.Error("anything should be enabled via 'all'")
	}
}

func TestEnabled_Empty(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	if Enabled("strategies") {
		t.Error("nothing should be enabled when no categories set")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLog_DisabledCategory(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	// Should not panic or produce output.
	Log("strategies", "test message", "key", "value")
	Trace("strategies", "trace message", "key", "value")
}

func TestInit_JSONFormatAndTrace(t *testing.T) {
	origCats := categories
	origLogger := slog.Default()
	defer func() {
		categories = origCats
		slog.SetDefault(origLogger)
	}()
	t.Setenv("AUTHGATE_DEBUG", "")
	t.Setenv("AUTHGATE_LOG_LEVEL", "")

	var buf bytes.Buffer
	initTo(&buf, Options{Categories: "strategies", Level: "TRACE", Format: "json"})

	if !TraceIsEnabled("strategies") {
		t.Fatal("trace should be enabled for strategies")
	}
	if TraceIsEnabled("replay") {
		t.Error("trace should not be enabled for replay")
	}

	Trace("strategies", "normalized string", "value", "hawk.1.header")
	if !strings.Contains(buf.String(), `"msg":"normalized string"`) {
		t.Errorf("expected JSON trace output, got %q", buf.String())
	}
}

func TestInit_EnvOverridesOptions(t *testing.T) {
	origCats := categories
	origLogger := slog.Default()
	defer func() {
		categories = origCats
		slog.SetDefault(origLogger)
	}()
	t.Setenv("AUTHGATE_DEBUG", "auth")
	t.Setenv("AUTHGATE_LOG_LEVEL", "ERROR")

	var buf bytes.Buffer
	initTo(&buf, Options{Categories: "strategies", Level: "DEBUG"})

	if !Enabled("auth") || Enabled("strategies") {
		t.Errorf("categories = %v, want only auth", categories)
	}
	if slog.Default().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("WARN should be disabled at ERROR level")
	}
}
