package hearing

import "strings"

// Record represents one scheduled hearing occurrence at a court portal.
type Record struct {
	SystemID      string `json:"system_id"`      // court identifier, e.g. "TRT2"
	ProcessNumber string `json:"process_number"` // unique business key within one system
	Date          string `json:"date"`           // dd/mm/yyyy
	Time          string `json:"time"`           // HH:MM:SS
	Claimant      string `json:"claimant"`
	Respondent    string `json:"respondent"`
	Venue         string `json:"venue"` // adjudicating body, e.g. "2ª Vara do Trabalho de Campinas"
	Kind          string `json:"kind"`  // hearing type, e.g. "Una", "Instrução"
	Status        string `json:"status"`
}

// Key is the composite identity of one scheduled occurrence.
type Key struct {
	SystemID      string
	ProcessNumber string
	Date          string
	Time          string
}

// Key returns the composite key identifying this occurrence.
func (r Record) Key() Key {
	return Key{
		SystemID:      r.SystemID,
		ProcessNumber: r.ProcessNumber,
		Date:          r.Date,
		Time:          r.Time,
	}
}

// Valid reports whether the record carries the fields required to identify it.
// Records without a date or process number cannot be keyed and are dropped by
// callers with a data-integrity warning.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.ProcessNumber) != "" && strings.TrimSpace(r.Date) != ""
}

// FieldsChanged reports whether any tracked mutable field differs between two
// records that share a key.
func (r Record) FieldsChanged(other Record) bool {
	return r.Status != other.Status ||
		r.Venue != other.Venue ||
		r.Kind != other.Kind ||
		r.Claimant != other.Claimant ||
		r.Respondent != other.Respondent
}

// Less orders records ascending by (date, time, process number, system).
// Dates are compared chronologically, not lexically. The system tie-break
// keeps the order total: process numbers are unique only within one system,
// so distinct records can tie on the first three fields.
func Less(a, b Record) bool {
	da, db := sortableDate(a.Date), sortableDate(b.Date)
	if da != db {
		return da < db
	}
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	if a.ProcessNumber != b.ProcessNumber {
		return a.ProcessNumber < b.ProcessNumber
	}
	return a.SystemID < b.SystemID
}
