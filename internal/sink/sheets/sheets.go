// Package sheets syncs the hearing schedule to Google Sheets: a main
// spreadsheet rewritten with the full current schedule, and a changed-rows
// spreadsheet appended with the previous version of every modified hearing.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/rmoreira/hearing-sync/internal/hearing"
	"github.com/rmoreira/hearing-sync/internal/logger"
)

// readRange covers the header plus up to 1501 data rows, one more than the
// largest page the court API returns per system.
const readRange = "A1:I1502"

var header = []string{
	"Tribunal",
	"Data da Audiência",
	"Hora da Audiência",
	"Número do Processo",
	"Reclamante",
	"Reclamado",
	"Órgão Julgador",
	"Tipo",
	"Status",
}

// Sink writes hearing schedules to a pair of spreadsheets.
type Sink struct {
	svc           *sheets.Service
	spreadsheetID string
	changedID     string
	log           *logger.Logger
}

// New builds a sheets sink authenticated by a service account key file.
// changedID may be empty to skip the changed-rows spreadsheet.
func New(ctx context.Context, credentialsFile, spreadsheetID, changedID string) (*Sink, error) {
	svc, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("building sheets service: %w", err)
	}
	return &Sink{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		changedID:     changedID,
		log:           logger.Default(),
	}, nil
}

// WithLogger overrides the sink's logger.
func (s *Sink) WithLogger(log *logger.Logger) *Sink {
	s.log = log
	return s
}

func (s *Sink) Name() string { return "sheets" }

// Retryable treats quota and server-side failures as transient and every
// other API rejection as permanent.
func (s *Sink) Retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return true
}

// Previous reads the main spreadsheet and returns the schedule it currently
// holds. An empty spreadsheet yields no records.
func (s *Sink) Previous(ctx context.Context) ([]hearing.Record, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading spreadsheet: %w", err)
	}
	if len(resp.Values) <= 1 {
		return nil, nil
	}

	records := make([]hearing.Record, 0, len(resp.Values)-1)
	for _, row := range resp.Values[1:] {
		rec := recordFromRow(row)
		if !rec.Valid() {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Apply folds the change set into the spreadsheet's current contents and
// rewrites the main sheet with the result, then appends the previous
// versions of modified hearings to the changed-rows spreadsheet.
func (s *Sink) Apply(ctx context.Context, changes *hearing.ChangeSet) error {
	if changes.Empty() {
		return nil
	}

	previous, err := s.Previous(ctx)
	if err != nil {
		return err
	}

	byKey, _ := hearing.Index(previous)
	for _, rec := range changes.Removed {
		delete(byKey, rec.Key())
	}
	for _, ch := range changes.Modified {
		byKey[ch.Current.Key()] = ch.Current
	}
	for _, rec := range changes.Added {
		byKey[rec.Key()] = rec
	}

	current := make([]hearing.Record, 0, len(byKey))
	for _, rec := range byKey {
		current = append(current, rec)
	}
	sort.Slice(current, func(i, j int) bool { return hearing.Less(current[i], current[j]) })

	if err := s.rewrite(ctx, current); err != nil {
		return err
	}

	if s.changedID != "" && len(changes.Modified) > 0 {
		if err := s.appendChanged(ctx, changes.Modified); err != nil {
			return err
		}
	}
	return nil
}

// rewrite clears the main sheet and writes the full schedule with a header
// row in one RAW update.
func (s *Sink) rewrite(ctx context.Context, records []hearing.Record) error {
	if len(records) == 0 {
		s.log.Warn("Refusing to rewrite spreadsheet with an empty schedule", logger.Fields{
			"spreadsheet": logger.Redact(s.spreadsheetID),
		})
		return nil
	}

	values := make([][]interface{}, 0, len(records)+1)
	values = append(values, rowFromStrings(header))
	for _, rec := range records {
		values = append(values, rowFromRecord(rec))
	}

	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, readRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clearing spreadsheet: %w", err)
	}

	writeRange := fmt.Sprintf("A1:I%d", len(values))
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing spreadsheet: %w", err)
	}

	s.log.Info("Spreadsheet rewritten", logger.Fields{"rows": len(records)})
	return nil
}

// appendChanged records the pre-change version of each modified hearing so
// the history of reschedules stays visible.
func (s *Sink) appendChanged(ctx context.Context, modified []hearing.Change) error {
	values := make([][]interface{}, 0, len(modified))
	for _, ch := range modified {
		values = append(values, rowFromRecord(ch.Previous))
	}

	_, err := s.svc.Spreadsheets.Values.Append(s.changedID, readRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending changed rows: %w", err)
	}

	s.log.Info("Changed rows appended", logger.Fields{"rows": len(values)})
	return nil
}

func rowFromRecord(rec hearing.Record) []interface{} {
	return []interface{}{
		rec.SystemID,
		rec.Date,
		rec.Time,
		rec.ProcessNumber,
		rec.Claimant,
		rec.Respondent,
		rec.Venue,
		rec.Kind,
		rec.Status,
	}
}

func rowFromStrings(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func recordFromRow(row []interface{}) hearing.Record {
	cell := func(i int) string {
		if i >= len(row) {
			return ""
		}
		s, _ := row[i].(string)
		return s
	}
	return hearing.Record{
		SystemID:      cell(0),
		Date:          cell(1),
		Time:          cell(2),
		ProcessNumber: cell(3),
		Claimant:      cell(4),
		Respondent:    cell(5),
		Venue:         cell(6),
		Kind:          cell(7),
		Status:        cell(8),
	}
}
