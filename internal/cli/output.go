package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rmoreira/hearing-sync/internal/runner"
)

// OutputFormat specifies the output format.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// outputResult is the JSON shape of a run report.
type outputResult struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Systems    []systemOutput `json:"systems"`
	Added      int            `json:"added"`
	Modified   int            `json:"modified"`
	Removed    int            `json:"removed"`
	Sinks      []sinkOutput   `json:"sinks,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type systemOutput struct {
	System      string `json:"system"`
	AuthOutcome string `json:"auth_outcome,omitempty"`
	Records     int    `json:"records"`
	Error       string `json:"error,omitempty"`
}

type sinkOutput struct {
	Sink  string `json:"sink"`
	Error string `json:"error,omitempty"`
}

// WriteReport writes the run report in the specified format.
func WriteReport(w io.Writer, report *runner.Report, runErr error, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report, runErr)
	case FormatText:
		return writeText(w, report, runErr)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, report *runner.Report, runErr error) error {
	result := outputResult{
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Added:      report.Added,
		Modified:   report.Modified,
		Removed:    report.Removed,
	}
	for _, s := range report.Systems {
		out := systemOutput{
			System:      s.SystemID,
			AuthOutcome: string(s.AuthOutcome),
			Records:     s.Records,
		}
		if s.Err != nil {
			out.Error = s.Err.Error()
		}
		result.Systems = append(result.Systems, out)
	}
	for _, s := range report.Sinks {
		out := sinkOutput{Sink: s.Name}
		if s.Err != nil {
			out.Error = s.Err.Error()
		}
		result.Sinks = append(result.Sinks, out)
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func writeText(w io.Writer, report *runner.Report, runErr error) error {
	for _, s := range report.Systems {
		if s.Err != nil {
			fmt.Fprintf(w, "%s: FAILED (%v)\n", s.SystemID, s.Err)
			continue
		}
		fmt.Fprintf(w, "%s: %d hearings fetched (%s)\n", s.SystemID, s.Records, s.AuthOutcome)
	}

	total := report.Added + report.Modified + report.Removed
	if total == 0 {
		fmt.Fprintln(w, "\nNo changes since the last sync.")
	} else {
		fmt.Fprintf(w, "\nChanges: %d added, %d rescheduled or updated, %d removed\n",
			report.Added, report.Modified, report.Removed)
	}

	for _, s := range report.Sinks {
		if s.Err != nil {
			fmt.Fprintf(w, "  %s: FAILED (%v)\n", s.Name, s.Err)
		} else {
			fmt.Fprintf(w, "  %s: ok\n", s.Name)
		}
	}

	if runErr != nil {
		fmt.Fprintf(w, "\nRun finished with errors: %v\n", runErr)
	}
	return nil
}
