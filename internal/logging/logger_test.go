package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_JSONInProd(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "prod", slog.LevelInfo, "station-replay")

	l.Debug("hidden")
	l.Info("series assembled", "parameter", "wind")

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "hidden") {
		t.Fatal("debug record written at info level")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", line, err)
	}
	if rec["app"] != "station-replay" || rec["env"] != "prod" || rec["parameter"] != "wind" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewLogger_TextInDev(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "dev", slog.LevelDebug, "station-replay")

	l.Debug("missing value", "parameter", "air_pressure")

	out := buf.String()
	if !strings.Contains(out, "missing value") || !strings.Contains(out, "air_pressure") {
		t.Errorf("unexpected dev output %q", out)
	}
	if json.Valid([]byte(strings.TrimSpace(out))) {
		t.Error("dev output should not be JSON")
	}
}
