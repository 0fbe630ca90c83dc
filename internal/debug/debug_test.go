package debug

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func captureOutput(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(lvl)
	t.Cleanup(func() {
		Init(LevelOff)
	})
	return &buf
}

func TestInit_OffProducesNothing(t *testing.T) {
	buf := captureOutput(t, LevelOff)
	Info("hello %d", 1)
	Error(errors.New("boom"))
	if buf.Len() != 0 {
		t.Errorf("expected no output at level 0, got %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, LevelLive)

	Info("info line")
	Live("live line")
	Verbose("verbose line")
	Trace("trace line")

	out := buf.String()
	if !strings.Contains(out, "[INFO] info line") {
		t.Errorf("missing info line in %q", out)
	}
	if !strings.Contains(out, "[LIVE] live line") {
		t.Errorf("missing live line in %q", out)
	}
	if strings.Contains(out, "verbose line") || strings.Contains(out, "trace line") {
		t.Errorf("verbose/trace should be filtered at level 2: %q", out)
	}
}

func TestPrefix(t *testing.T) {
	buf := captureOutput(t, LevelInfo)
	Info("x")
	if !strings.HasPrefix(buf.String(), prefix) {
		t.Errorf("output %q should start with %q", buf.String(), prefix)
	}
}

func TestExposure_AutoAndManual(t *testing.T) {
	buf := captureOutput(t, LevelLive)
	Exposure("auto", 0, 0)
	Exposure("manual", 66666666, 100)

	out := buf.String()
	if !strings.Contains(out, "Exposure: auto") {
		t.Errorf("missing auto line: %q", out)
	}
	if !strings.Contains(out, "manual 66666666ns ISO 100") {
		t.Errorf("missing manual line: %q", out)
	}
}

func TestIsEnabled(t *testing.T) {
	captureOutput(t, LevelVerbose)
	if !IsEnabled(LevelInfo) || !IsEnabled(LevelVerbose) {
		t.Error("levels <= 3 should be enabled")
	}
	if IsEnabled(LevelTrace) {
		t.Error("trace should not be enabled at level 3")
	}
}
