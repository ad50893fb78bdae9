// Package sink defines the destinations a reconciled change set is pushed
// to: the spreadsheet, the calendar, email summaries and a dry-run printer.
// Sinks are applied independently so one failing destination never blocks
// the others.
package sink
