package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rmoreira/hearing-sync/internal/auth"
	"github.com/rmoreira/hearing-sync/internal/runner"
)

func sampleReport() *runner.Report {
	return &runner.Report{
		StartedAt:  time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 29, 9, 2, 0, 0, time.UTC),
		Systems: []runner.SystemReport{
			{SystemID: "TRT2", AuthOutcome: auth.OutcomeReusedCache, Records: 42},
			{SystemID: "TRT15", Err: errors.New("gateway timeout")},
		},
		Added:    3,
		Modified: 1,
		Removed:  0,
		Sinks: []runner.SinkReport{
			{Name: "sheets"},
			{Name: "calendar", Err: errors.New("quota exceeded")},
		},
	}
}

func TestWriteReportText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), errors.New("TRT15: gateway timeout"), FormatText); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"TRT2: 42 hearings fetched (reused-cache)",
		"TRT15: FAILED",
		"3 added, 1 rescheduled or updated, 0 removed",
		"sheets: ok",
		"calendar: FAILED",
		"Run finished with errors",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteReportTextNoChanges(t *testing.T) {
	report := &runner.Report{
		Systems: []runner.SystemReport{{SystemID: "TRT2", AuthOutcome: auth.OutcomeFreshLogin}},
	}
	var buf bytes.Buffer
	if err := WriteReport(&buf, report, nil, FormatText); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if !strings.Contains(buf.String(), "No changes since the last sync.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), nil, FormatJSON); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	var result outputResult
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if result.Added != 3 || result.Modified != 1 {
		t.Errorf("counts = +%d ~%d", result.Added, result.Modified)
	}
	if len(result.Systems) != 2 || result.Systems[0].AuthOutcome != "reused-cache" {
		t.Errorf("systems = %+v", result.Systems)
	}
	if result.Systems[1].Error == "" {
		t.Error("failed system should carry its error")
	}
	if len(result.Sinks) != 2 || result.Sinks[1].Error == "" {
		t.Errorf("sinks = %+v", result.Sinks)
	}
}

func TestWriteReportUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), nil, OutputFormat("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
