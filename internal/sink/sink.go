package sink

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"github.com/rmoreira/hearing-sync/internal/hearing"
	"github.com/rmoreira/hearing-sync/internal/logger"
	"github.com/rmoreira/hearing-sync/internal/retry"
)

// Sink pushes a reconciled change set to one destination.
type Sink interface {
	// Name identifies the sink in logs and reports.
	Name() string
	// Apply pushes the change set. Implementations must tolerate being
	// called with an empty set.
	Apply(ctx context.Context, changes *hearing.ChangeSet) error
}

// RetryClassifier lets a sink tell the applier which of its failures are
// worth retrying. Sinks that do not implement it get every failure retried.
type RetryClassifier interface {
	Retryable(err error) bool
}

// Status records one sink's outcome for the run report.
type Status struct {
	Name string
	Err  error
}

// ApplyAll applies the change set to every sink under the given retry
// policy. Each sink fails independently; the combined error carries every
// failing sink.
func ApplyAll(ctx context.Context, sinks []Sink, changes *hearing.ChangeSet, p retry.Policy, log *logger.Logger) ([]Status, error) {
	if log == nil {
		log = logger.Default()
	}

	statuses := make([]Status, 0, len(sinks))
	var combined error
	for _, s := range sinks {
		classify := retry.Always
		if rc, ok := s.(RetryClassifier); ok {
			classify = rc.Retryable
		}

		err := retry.Run(ctx, fmt.Sprintf("apply %s sink", s.Name()), p, classify, func() error {
			return s.Apply(ctx, changes)
		})
		statuses = append(statuses, Status{Name: s.Name(), Err: err})
		if err != nil {
			log.Error("Sink failed", logger.Fields{"sink": s.Name()}, err)
			combined = multierr.Append(combined, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		log.Info("Sink applied", logger.Fields{
			"sink":     s.Name(),
			"added":    len(changes.Added),
			"modified": len(changes.Modified),
			"removed":  len(changes.Removed),
		})
	}
	return statuses, combined
}

// DryRun prints what each destination would receive without touching
// anything.
type DryRun struct {
	Out io.Writer
}

// NewDryRun creates a dry-run sink writing to out.
func NewDryRun(out io.Writer) *DryRun {
	return &DryRun{Out: out}
}

func (d *DryRun) Name() string { return "dry-run" }

// Apply prints the change set grouped by kind of change.
func (d *DryRun) Apply(_ context.Context, changes *hearing.ChangeSet) error {
	if changes.Empty() {
		fmt.Fprintln(d.Out, "No changes detected.")
		return nil
	}

	for i, rec := range changes.Added {
		fmt.Fprintf(d.Out, "--- New hearing %d/%d ---\n", i+1, len(changes.Added))
		printRecord(d.Out, rec)
	}
	for i, ch := range changes.Modified {
		fmt.Fprintf(d.Out, "--- Updated hearing %d/%d ---\n", i+1, len(changes.Modified))
		printRecord(d.Out, ch.Current)
		if ch.Previous.Status != ch.Current.Status {
			fmt.Fprintf(d.Out, "  status: %s -> %s\n", ch.Previous.Status, ch.Current.Status)
		}
	}
	for i, rec := range changes.Removed {
		fmt.Fprintf(d.Out, "--- Removed hearing %d/%d ---\n", i+1, len(changes.Removed))
		printRecord(d.Out, rec)
	}
	return nil
}

func printRecord(out io.Writer, rec hearing.Record) {
	fmt.Fprintf(out, "%s %s %s %s às %s\n", rec.SystemID, rec.ProcessNumber, rec.Kind, rec.Date, rec.Time)
	if rec.Claimant != "" || rec.Respondent != "" {
		fmt.Fprintf(out, "  %s x %s\n", rec.Claimant, rec.Respondent)
	}
	if rec.Venue != "" {
		fmt.Fprintf(out, "  %s\n", rec.Venue)
	}
}
