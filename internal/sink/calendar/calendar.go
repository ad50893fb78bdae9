package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/rmoreira/hearing-sync/internal/hearing"
	"github.com/rmoreira/hearing-sync/internal/logger"
)

// listMax is the calendar API's per-page ceiling. The schedule never comes
// close, so one page is always enough.
const listMax = 2500

// Sink mirrors the change set onto one Google Calendar.
type Sink struct {
	svc        *calendar.Service
	calendarID string
	now        func() time.Time
	log        *logger.Logger
}

// New builds a calendar sink authenticated by a service account key file.
func New(ctx context.Context, credentialsFile, calendarID string) (*Sink, error) {
	svc, err := calendar.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("building calendar service: %w", err)
	}
	return &Sink{
		svc:        svc,
		calendarID: calendarID,
		now:        time.Now,
		log:        logger.Default(),
	}, nil
}

// WithLogger overrides the sink's logger.
func (s *Sink) WithLogger(log *logger.Logger) *Sink {
	s.log = log
	return s
}

func (s *Sink) Name() string { return "calendar" }

// Retryable treats quota and server-side failures as transient.
func (s *Sink) Retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return true
}

// Apply deletes events for removed and modified hearings, then inserts
// events for added hearings and the new version of modified ones. Events
// whose title already exists are left alone so reruns stay idempotent.
func (s *Sink) Apply(ctx context.Context, changes *hearing.ChangeSet) error {
	if changes.Empty() {
		return nil
	}

	existing, err := s.eventsBySummary(ctx)
	if err != nil {
		return err
	}

	for _, rec := range changes.Removed {
		if err := s.deleteBySummary(ctx, existing, Summary(rec)); err != nil {
			return err
		}
	}
	for _, ch := range changes.Modified {
		if err := s.deleteBySummary(ctx, existing, Summary(ch.Previous)); err != nil {
			return err
		}
	}

	inserted := 0
	for _, rec := range changes.Added {
		ok, err := s.insertIfAbsent(ctx, existing, rec)
		if err != nil {
			return err
		}
		if ok {
			inserted++
		}
	}
	for _, ch := range changes.Modified {
		ok, err := s.insertIfAbsent(ctx, existing, ch.Current)
		if err != nil {
			return err
		}
		if ok {
			inserted++
		}
	}

	s.log.Info("Calendar synced", logger.Fields{
		"inserted": inserted,
		"removed":  len(changes.Removed) + len(changes.Modified),
	})
	return nil
}

// eventsBySummary lists upcoming events (from yesterday on, to keep hearings
// happening today) keyed by title.
func (s *Sink) eventsBySummary(ctx context.Context) (map[string][]string, error) {
	timeMin := s.now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	result, err := s.svc.Events.List(s.calendarID).
		TimeMin(timeMin).
		SingleEvents(true).
		MaxResults(listMax).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing calendar events: %w", err)
	}

	events := make(map[string][]string, len(result.Items))
	for _, item := range result.Items {
		events[item.Summary] = append(events[item.Summary], item.Id)
	}
	return events, nil
}

// deleteBySummary removes every event carrying the given title. A 404 means
// someone already deleted it by hand, which is fine.
func (s *Sink) deleteBySummary(ctx context.Context, existing map[string][]string, summary string) error {
	ids, ok := existing[summary]
	if !ok {
		s.log.Warn("Event not found for removal", logger.Fields{"summary": summary})
		return nil
	}
	for _, id := range ids {
		err := s.svc.Events.Delete(s.calendarID, id).Context(ctx).Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
				s.log.Warn("Event already removed", logger.Fields{"id": id})
				continue
			}
			return fmt.Errorf("deleting event %s: %w", id, err)
		}
	}
	delete(existing, summary)
	return nil
}

// insertIfAbsent creates the event unless one with the same title already
// exists. Reports whether an insert happened.
func (s *Sink) insertIfAbsent(ctx context.Context, existing map[string][]string, rec hearing.Record) (bool, error) {
	summary := Summary(rec)
	if _, ok := existing[summary]; ok {
		return false, nil
	}

	start := rec.StartTime()
	if start.IsZero() {
		s.log.Warn("Skipping calendar event with unparseable date", logger.Fields{
			"process": rec.ProcessNumber,
			"date":    rec.Date,
		})
		return false, nil
	}
	end := start.Add(eventDuration)

	event := &calendar.Event{
		Summary:     summary,
		Location:    rec.Venue,
		Description: Description(rec),
		Start: &calendar.EventDateTime{
			DateTime: start.Format("2006-01-02T15:04:05"),
			TimeZone: timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format("2006-01-02T15:04:05"),
			TimeZone: timeZone,
		},
		ColorId: eventColor,
	}

	created, err := s.svc.Events.Insert(s.calendarID, event).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("inserting event for %s: %w", rec.ProcessNumber, err)
	}
	existing[summary] = append(existing[summary], created.Id)
	return true, nil
}
