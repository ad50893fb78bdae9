package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/rmoreira/hearing-sync/internal/hearing"
	"github.com/rmoreira/hearing-sync/internal/logger"
)

func sampleRecord() hearing.Record {
	return hearing.Record{
		SystemID:      "TRT2",
		ProcessNumber: "0001234-55.2025.5.02.0011",
		Date:          "10/03/2026",
		Time:          "14:30:00",
		Claimant:      "Maria Silva",
		Respondent:    "Acme Ltda",
		Venue:         "11a Vara do Trabalho de Sao Paulo",
		Kind:          "Una",
		Status:        "Designada",
	}
}

func TestSummary(t *testing.T) {
	got := Summary(sampleRecord())
	want := "Una - Maria Silva x Acme Ltda 10/03/2026 às 14:30:00 - 11a Vara do Trabalho de Sao Paulo"
	if got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestDescription(t *testing.T) {
	got := Description(sampleRecord())
	for _, want := range []string{"0001234-55.2025.5.02.0011", "10/03/2026", "Maria Silva", "Designada"} {
		if !strings.Contains(got, want) {
			t.Errorf("Description missing %q: %s", want, got)
		}
	}
}

func TestGenerateICS(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	ics := GenerateICS(sampleRecord(), now)

	checks := []string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"DTSTART:20260310T143000Z",
		"DTEND:20260310T153000Z",
		"UID:TRT2-0001234-55.2025.5.02.0011-10032026@hearing-sync",
		"END:VCALENDAR",
	}
	for _, want := range checks {
		if !strings.Contains(ics, want) {
			t.Errorf("ICS missing %q:\n%s", want, ics)
		}
	}
	if !strings.Contains(ics, "\r\n") {
		t.Error("ICS lines must be CRLF terminated")
	}
}

func TestEscapeICS(t *testing.T) {
	got := escapeICS("a,b;c\nd\\e")
	want := `a\,b\;c\nd\\e`
	if got != want {
		t.Errorf("escapeICS = %q, want %q", got, want)
	}
}

// fakeCalendar serves a minimal events API: list, insert, delete.
type fakeCalendar struct {
	events   map[string]*calendarapi.Event // by id
	inserted int
	deleted  []string
	nextID   int
}

func newFakeCalendar(summaries ...string) *fakeCalendar {
	f := &fakeCalendar{events: map[string]*calendarapi.Event{}}
	for _, s := range summaries {
		f.nextID++
		id := fmt.Sprintf("evt-%d", f.nextID)
		f.events[id] = &calendarapi.Event{Id: id, Summary: s}
	}
	return f
}

func (f *fakeCalendar) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/events"):
			items := make([]*calendarapi.Event, 0, len(f.events))
			for _, e := range f.events {
				items = append(items, e)
			}
			json.NewEncoder(w).Encode(&calendarapi.Events{Items: items})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/events"):
			var event calendarapi.Event
			json.NewDecoder(r.Body).Decode(&event)
			f.nextID++
			event.Id = fmt.Sprintf("evt-%d", f.nextID)
			f.events[event.Id] = &event
			f.inserted++
			json.NewEncoder(w).Encode(&event)
		case r.Method == http.MethodDelete:
			parts := strings.Split(r.URL.Path, "/")
			id := parts[len(parts)-1]
			if _, ok := f.events[id]; !ok {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"error": {"code": 404}}`)
				return
			}
			delete(f.events, id)
			f.deleted = append(f.deleted, id)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestSink(t *testing.T, fake *fakeCalendar) *Sink {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	svc, err := calendarapi.NewService(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &Sink{
		svc:        svc,
		calendarID: "cal-1",
		now:        func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) },
		log:        logger.New(logger.LevelError, io.Discard),
	}
}

func TestApply(t *testing.T) {
	t.Run("inserts added hearings", func(t *testing.T) {
		fake := newFakeCalendar()
		sink := newTestSink(t, fake)

		changes := &hearing.ChangeSet{Added: []hearing.Record{sampleRecord()}}
		if err := sink.Apply(context.Background(), changes); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if fake.inserted != 1 {
			t.Errorf("inserted = %d, want 1", fake.inserted)
		}
	})

	t.Run("reruns are idempotent", func(t *testing.T) {
		fake := newFakeCalendar(Summary(sampleRecord()))
		sink := newTestSink(t, fake)

		changes := &hearing.ChangeSet{Added: []hearing.Record{sampleRecord()}}
		if err := sink.Apply(context.Background(), changes); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if fake.inserted != 0 {
			t.Errorf("inserted = %d, want 0 for an already present event", fake.inserted)
		}
	})

	t.Run("modified hearing replaces its event", func(t *testing.T) {
		prev := sampleRecord()
		fake := newFakeCalendar(Summary(prev))
		sink := newTestSink(t, fake)

		curr := prev
		curr.Time = "16:00:00"
		changes := &hearing.ChangeSet{Modified: []hearing.Change{{Previous: prev, Current: curr}}}
		if err := sink.Apply(context.Background(), changes); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if len(fake.deleted) != 1 {
			t.Errorf("deleted = %v, want the old event gone", fake.deleted)
		}
		if fake.inserted != 1 {
			t.Errorf("inserted = %d, want 1", fake.inserted)
		}
	})

	t.Run("removed hearing deletes its event", func(t *testing.T) {
		rec := sampleRecord()
		fake := newFakeCalendar(Summary(rec))
		sink := newTestSink(t, fake)

		changes := &hearing.ChangeSet{Removed: []hearing.Record{rec}}
		if err := sink.Apply(context.Background(), changes); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if len(fake.events) != 0 {
			t.Errorf("expected empty calendar, still has %d events", len(fake.events))
		}
	})

	t.Run("missing event on removal is tolerated", func(t *testing.T) {
		fake := newFakeCalendar()
		sink := newTestSink(t, fake)

		changes := &hearing.ChangeSet{Removed: []hearing.Record{sampleRecord()}}
		if err := sink.Apply(context.Background(), changes); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	})

	t.Run("empty change set makes no calls", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}))
		defer server.Close()

		svc, err := calendarapi.NewService(context.Background(),
			option.WithEndpoint(server.URL), option.WithoutAuthentication())
		if err != nil {
			t.Fatalf("NewService: %v", err)
		}
		sink := &Sink{svc: svc, calendarID: "cal-1", now: time.Now, log: logger.New(logger.LevelError, io.Discard)}
		if err := sink.Apply(context.Background(), &hearing.ChangeSet{}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	})
}
