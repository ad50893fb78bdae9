package hearing

import "time"

// ParseDate attempts to parse a record date into a time.Time.
// Returns time.Time{} (zero value) if parsing fails.
// Supports formats: "25/01/2026", "2026-01-25", "2026-01-25T10:30:00"
func ParseDate(dateText string) time.Time {
	if dateText == "" {
		return time.Time{}
	}

	// Try "25/01/2026" format (spreadsheet display format)
	t, err := time.Parse("02/01/2006", dateText)
	if err == nil {
		return t
	}

	// Try "2026-01-25" format (API query format)
	t, err = time.Parse("2006-01-02", dateText)
	if err == nil {
		return t
	}

	// Try "2026-01-25T10:30:00" format (API response timestamps)
	t, err = time.Parse("2006-01-02T15:04:05", dateText)
	if err == nil {
		return t
	}

	// Could not parse, return zero time
	return time.Time{}
}

// FormatDate renders a time in the dd/mm/yyyy display format used on
// spreadsheets and in notifications.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// sortableDate converts a record date to a lexically sortable form.
// Unparseable dates sort last so defective records stay visible at the end.
func sortableDate(dateText string) string {
	t := ParseDate(dateText)
	if t.IsZero() {
		return "9999-99-99|" + dateText
	}
	return t.Format("2006-01-02")
}

// StartTime combines a record's date and time fields into a single timestamp.
// Returns time.Time{} when the date cannot be parsed; a missing or malformed
// time field yields midnight on the record's date.
func (r Record) StartTime() time.Time {
	d := ParseDate(r.Date)
	if d.IsZero() {
		return time.Time{}
	}
	hm, err := time.Parse("15:04:05", r.Time)
	if err != nil {
		hm, err = time.Parse("15:04", r.Time)
		if err != nil {
			return d
		}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hm.Hour(), hm.Minute(), hm.Second(), 0, d.Location())
}
