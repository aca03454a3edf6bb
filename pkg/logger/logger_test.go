package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// lines decodes every JSON line written to buf
func lines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %q is not JSON: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWithWriter_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")

	log.Debug("table written")
	log.Info("chain started")
	log.Warn("job execution failed")
	log.Error("job failed after all retries")

	got := lines(t, &buf)
	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2 (warn and error only)", len(got))
	}
	if got[0]["level"] != "warn" || got[1]["level"] != "error" {
		t.Errorf("levels = %v, %v", got[0]["level"], got[1]["level"])
	}
	if got[0]["message"] != "job execution failed" {
		t.Errorf("message = %v", got[0]["message"])
	}
	if _, ok := got[0]["time"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestWithRun(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info")

	log.WithRun("4f1c", "data_processing").Info("Job started")
	log.WithRun("", "assessment").Info("Job started")

	got := lines(t, &buf)
	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	if got[0][FieldRunID] != "4f1c" || got[0][FieldJob] != "data_processing" {
		t.Errorf("run fields = %v / %v", got[0][FieldRunID], got[0][FieldJob])
	}
	if _, ok := got[1][FieldRunID]; ok {
		t.Error("empty run id must be omitted")
	}
	if got[1][FieldJob] != "assessment" {
		t.Errorf("job = %v", got[1][FieldJob])
	}
}

func TestStageFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug").WithRun("r1", "assessment")

	log.WithCounts(6, 5).Info("Assessment completed")
	log.WithTable("result.csv", 5).Debug("Table written")

	got := lines(t, &buf)
	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}

	// JSON numbers decode as float64
	if got[0][FieldInput] != float64(6) || got[0][FieldOutput] != float64(5) {
		t.Errorf("counts = %v / %v", got[0][FieldInput], got[0][FieldOutput])
	}
	if got[1][FieldTable] != "result.csv" || got[1][FieldRows] != float64(5) {
		t.Errorf("table fields = %v / %v", got[1][FieldTable], got[1][FieldRows])
	}
	for i, m := range got {
		if m[FieldRunID] != "r1" {
			t.Errorf("line %d lost run id: %v", i, m)
		}
	}
	if _, ok := got[1][FieldInput]; ok {
		t.Error("counts leaked into a sibling logger")
	}
}

func TestWithErrorAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info")

	log.WithError(errors.New("source unavailable")).
		WithFields(map[string]interface{}{"attempt": 2}).
		WithField("path", "sales.csv").
		Error("Job execution failed")

	got := lines(t, &buf)
	if len(got) != 1 {
		t.Fatalf("got %d lines, want 1", len(got))
	}
	if got[0]["error"] != "source unavailable" {
		t.Errorf("error = %v", got[0]["error"])
	}
	if got[0]["attempt"] != float64(2) || got[0]["path"] != "sales.csv" {
		t.Errorf("fields = %v", got[0])
	}
}
