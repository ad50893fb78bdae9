// Package hearing provides the domain model for court hearing records and the
// snapshot reconciliation engine.
//
// A Record is one scheduled hearing occurrence as reported by a court portal.
// Records are identified by the composite key (system, process number, date,
// time); two records with the same key are the same occurrence even when their
// mutable fields (status, venue, kind, party names) differ. Reconcile compares
// two record sets keyed this way and classifies every occurrence as added,
// modified, or removed, producing a deterministic, sorted ChangeSet.
package hearing
