package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/rmoreira/hearing-sync/internal/auth"
	"github.com/rmoreira/hearing-sync/internal/court"
	"github.com/rmoreira/hearing-sync/internal/hearing"
	"github.com/rmoreira/hearing-sync/internal/logger"
	"github.com/rmoreira/hearing-sync/internal/retry"
	"github.com/rmoreira/hearing-sync/internal/sink"
	"github.com/rmoreira/hearing-sync/internal/token"
)

// FutureYears is how many whole years beyond the current one each fetch
// covers.
const FutureYears = 3

// Authenticator yields a session for one portal, reusing the cache or
// walking the operator through an interactive login.
type Authenticator interface {
	Authenticate(ctx context.Context, systemID, loginURL string) (auth.Result, error)
}

// Fetcher retrieves the scheduled hearings for one portal.
type Fetcher interface {
	Fetch(ctx context.Context, now time.Time, futureYears int) ([]hearing.Record, error)
}

// FetcherFactory builds a Fetcher bound to one portal session.
type FetcherFactory func(system court.System, tok token.Token) (Fetcher, error)

// PreviousSource supplies the schedule from the last successful sync. The
// spreadsheet is the source of truth; the local snapshot store is the
// fallback when it is unreachable.
type PreviousSource interface {
	Previous(ctx context.Context) ([]hearing.Record, error)
}

// SnapshotStore persists per-system schedules between runs.
type SnapshotStore interface {
	Load(systemID string) ([]hearing.Record, error)
	Save(systemID string, records []hearing.Record) error
}

// SystemReport records one portal's outcome.
type SystemReport struct {
	SystemID    string
	AuthOutcome auth.Outcome
	Records     int
	Err         error
}

// SinkReport records one destination's outcome.
type SinkReport struct {
	Name string
	Err  error
}

// Report summarizes one sync run.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Systems    []SystemReport
	Added      int
	Modified   int
	Removed    int
	Sinks      []SinkReport
}

// Failed reports whether anything in the run went wrong.
func (r *Report) Failed() bool {
	for _, s := range r.Systems {
		if s.Err != nil {
			return true
		}
	}
	for _, s := range r.Sinks {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// AllSystemsFailed reports whether no portal produced a schedule.
func (r *Report) AllSystemsFailed() bool {
	for _, s := range r.Systems {
		if s.Err == nil {
			return false
		}
	}
	return len(r.Systems) > 0
}

// Coordinator wires the pipeline together. All fields must be set except
// Previous, which may be nil when no spreadsheet is configured.
type Coordinator struct {
	Systems    []court.System
	Auth       Authenticator
	NewFetcher FetcherFactory
	Cache      token.Cache
	Previous   PreviousSource
	Snapshots  SnapshotStore
	Sinks      []sink.Sink
	Policy     retry.Policy
	Log        *logger.Logger
	Now        func() time.Time
}

type systemResult struct {
	report  SystemReport
	records []hearing.Record
}

// Run executes one full sync and always returns a report, even on failure.
// The error aggregates every portal and sink failure; a run where at least
// one portal synced is still applied.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	if c.Log == nil {
		c.Log = logger.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	report := &Report{StartedAt: c.Now()}

	results := c.fetchAll(ctx)

	var runErr error
	current := make([][]hearing.Record, 0, len(results))
	succeeded := make(map[string]bool, len(results))
	for _, res := range results {
		report.Systems = append(report.Systems, res.report)
		if res.report.Err != nil {
			runErr = multierr.Append(runErr, fmt.Errorf("%s: %w", res.report.SystemID, res.report.Err))
			continue
		}
		succeeded[res.report.SystemID] = true
		current = append(current, res.records)
	}

	if len(succeeded) == 0 {
		report.FinishedAt = c.Now()
		return report, multierr.Append(runErr, errors.New("no portal produced a schedule"))
	}

	previous := c.loadPrevious(ctx, succeeded)
	currentAll := hearing.Merge(current...)
	changes := hearing.Reconcile(previous, currentAll)
	report.Added = len(changes.Added)
	report.Modified = len(changes.Modified)
	report.Removed = len(changes.Removed)

	c.Log.Info("Schedules reconciled", logger.Fields{
		"systems":  len(succeeded),
		"records":  len(currentAll),
		"added":    report.Added,
		"modified": report.Modified,
		"removed":  report.Removed,
	})

	statuses, sinkErr := sink.ApplyAll(ctx, c.Sinks, changes, c.Policy, c.Log)
	for _, st := range statuses {
		report.Sinks = append(report.Sinks, SinkReport{Name: st.Name, Err: st.Err})
	}
	runErr = multierr.Append(runErr, sinkErr)

	if sinkErr == nil {
		c.saveSnapshots(currentAll, succeeded)
	}

	report.FinishedAt = c.Now()
	return report, runErr
}

// fetchAll authenticates and fetches every portal concurrently. Order of the
// results follows c.Systems regardless of completion order.
func (c *Coordinator) fetchAll(ctx context.Context) []systemResult {
	results := make([]systemResult, len(c.Systems))
	var wg sync.WaitGroup
	for i, system := range c.Systems {
		wg.Add(1)
		go func(i int, system court.System) {
			defer wg.Done()
			results[i] = c.fetchSystem(ctx, system)
		}(i, system)
	}
	wg.Wait()
	return results
}

func (c *Coordinator) fetchSystem(ctx context.Context, system court.System) systemResult {
	res := systemResult{report: SystemReport{SystemID: system.ID}}

	authRes, err := c.Auth.Authenticate(ctx, system.ID, system.LoginURL)
	if err != nil {
		res.report.Err = fmt.Errorf("authenticating: %w", err)
		return res
	}
	res.report.AuthOutcome = authRes.Outcome

	fetcher, err := c.NewFetcher(system, authRes.Token)
	if err != nil {
		res.report.Err = fmt.Errorf("building client: %w", err)
		return res
	}

	records, err := fetcher.Fetch(ctx, c.Now(), FutureYears)
	if err != nil {
		if errors.Is(err, court.ErrUnauthorized) && c.Cache != nil {
			// The portal dropped the session mid-run. Clear the cache so
			// the next run goes through a fresh login.
			if invErr := c.Cache.Invalidate(system.ID); invErr != nil {
				c.Log.Warn("Failed to invalidate rejected session", logger.Fields{
					"system": system.ID,
					"error":  invErr.Error(),
				})
			}
		}
		res.report.Err = fmt.Errorf("fetching schedule: %w", err)
		return res
	}

	res.records = records
	res.report.Records = len(records)
	return res
}

// loadPrevious returns the last synced schedule restricted to the systems
// that fetched successfully this run, so a portal outage never looks like a
// mass cancellation.
func (c *Coordinator) loadPrevious(ctx context.Context, succeeded map[string]bool) []hearing.Record {
	var previous []hearing.Record

	if c.Previous != nil {
		records, err := c.Previous.Previous(ctx)
		if err == nil {
			previous = records
		} else {
			c.Log.Warn("Falling back to local snapshots", logger.Fields{"error": err.Error()})
		}
	}

	if previous == nil && c.Snapshots != nil {
		for id := range succeeded {
			records, err := c.Snapshots.Load(id)
			if err != nil {
				c.Log.Warn("Failed to load snapshot", logger.Fields{"system": id, "error": err.Error()})
				continue
			}
			previous = append(previous, records...)
		}
	}

	// Copy rather than filter in place; the source may hand out a slice it
	// still owns.
	filtered := make([]hearing.Record, 0, len(previous))
	for _, rec := range previous {
		if succeeded[rec.SystemID] {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func (c *Coordinator) saveSnapshots(current []hearing.Record, succeeded map[string]bool) {
	if c.Snapshots == nil {
		return
	}
	bySystem := make(map[string][]hearing.Record)
	for _, rec := range current {
		bySystem[rec.SystemID] = append(bySystem[rec.SystemID], rec)
	}
	for id := range succeeded {
		if err := c.Snapshots.Save(id, bySystem[id]); err != nil {
			c.Log.Warn("Failed to save snapshot", logger.Fields{"system": id, "error": err.Error()})
		}
	}
}
