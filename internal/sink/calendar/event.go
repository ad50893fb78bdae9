// Package calendar mirrors the hearing schedule onto a Google Calendar and
// can export individual hearings as iCalendar files.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/rmoreira/hearing-sync/internal/hearing"
)

const (
	eventDuration = time.Hour
	timeZone      = "America/Sao_Paulo"
	// colorId "3" renders purple, the color the office uses for hearings.
	eventColor = "3"
)

// Summary renders the calendar event title for a hearing. The title doubles
// as the dedupe key: two runs must produce the same title for the same
// hearing or the calendar fills with duplicates.
func Summary(rec hearing.Record) string {
	return fmt.Sprintf("%s - %s x %s %s às %s - %s",
		rec.Kind, rec.Claimant, rec.Respondent, rec.Date, rec.Time, rec.Venue)
}

// Description renders the long-form event body.
func Description(rec hearing.Record) string {
	return fmt.Sprintf(
		"Audiência Trabalhista do Tipo %s nos Autos do Processo %s do(a) %s, "+
			"marcada para %s às %s. Reclamante: %s x Reclamado: %s. "+
			"O Status da Audiência é %s",
		rec.Kind, rec.ProcessNumber, rec.Venue, rec.Date, rec.Time,
		rec.Claimant, rec.Respondent, rec.Status)
}

// GenerateICS renders one hearing as an iCalendar file.
func GenerateICS(rec hearing.Record, now time.Time) string {
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//hearing-sync//hearing-sync//PT-BR\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	ics.WriteString("BEGIN:VEVENT\r\n")

	uid := fmt.Sprintf("%s-%s-%s", rec.SystemID, rec.ProcessNumber, strings.ReplaceAll(rec.Date, "/", ""))
	ics.WriteString(fmt.Sprintf("UID:%s@hearing-sync\r\n", uid))
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICSTime(now)))

	start := rec.StartTime()
	if start.IsZero() {
		start = now.AddDate(0, 0, 7)
	}
	ics.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICSTime(start)))
	ics.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICSTime(start.Add(eventDuration))))

	ics.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICS(Summary(rec))))
	ics.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS(Description(rec))))
	ics.WriteString(fmt.Sprintf("LOCATION:%s\r\n", escapeICS(rec.Venue)))

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("SEQUENCE:0\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")

	ics.WriteString("END:VEVENT\r\n")
	ics.WriteString("END:VCALENDAR\r\n")

	return ics.String()
}

// formatICSTime formats a time as an iCalendar UTC datetime.
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes text per RFC 5545.
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
