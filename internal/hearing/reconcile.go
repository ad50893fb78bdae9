package hearing

import "sort"

// Change pairs the previous and current versions of one modified occurrence.
type Change struct {
	Previous Record `json:"previous"`
	Current  Record `json:"current"`
}

// ChangeSet is the classified result of reconciling two record sets.
// A given key appears in at most one bucket. Buckets are sorted ascending by
// (date, time, process number, system) so output is reproducible regardless
// of input ordering. A ChangeSet is never mutated after Reconcile returns it.
type ChangeSet struct {
	Added    []Record `json:"added"`
	Modified []Change `json:"modified"`
	Removed  []Record `json:"removed"`
}

// Empty reports whether the change set contains no changes.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Modified) == 0 && len(cs.Removed) == 0
}

// Index builds a key-to-record map from a record sequence.
// When the same key occurs more than once within one sequence (an upstream
// data defect), the last occurrence wins; the duplicated keys are returned so
// the caller can log a data-integrity warning. Invalid records are skipped.
func Index(records []Record) (map[Key]Record, []Key) {
	byKey := make(map[Key]Record, len(records))
	var duplicates []Key
	for _, rec := range records {
		if !rec.Valid() {
			continue
		}
		k := rec.Key()
		if _, seen := byKey[k]; seen {
			duplicates = append(duplicates, k)
		}
		byKey[k] = rec
	}
	return byKey, duplicates
}

// Merge combines record sequences into one deduplicated, sorted sequence.
// Duplicate keys across sequences resolve last-seen-wins, consistent with
// Index.
func Merge(sets ...[]Record) []Record {
	total := 0
	for _, s := range sets {
		total += len(s)
	}
	all := make([]Record, 0, total)
	for _, s := range sets {
		all = append(all, s...)
	}
	byKey, _ := Index(all)

	merged := make([]Record, 0, len(byKey))
	for _, rec := range byKey {
		merged = append(merged, rec)
	}
	sort.Slice(merged, func(i, j int) bool { return Less(merged[i], merged[j]) })
	return merged
}

// Reconcile compares the previous known record set against a freshly fetched
// one and classifies every occurrence:
//
//   - keys present only in current are Added
//   - keys present only in previous are Removed
//   - keys present in both with a differing mutable field are Modified
//   - keys present in both and identical produce no entry
//
// The computation is pure: inputs are not mutated and the result depends only
// on the contents of the two sets, never on their ordering.
func Reconcile(previous, current []Record) *ChangeSet {
	prevByKey, _ := Index(previous)
	currByKey, _ := Index(current)

	cs := &ChangeSet{}

	for k, curr := range currByKey {
		prev, existed := prevByKey[k]
		if !existed {
			cs.Added = append(cs.Added, curr)
			continue
		}
		if prev.FieldsChanged(curr) {
			cs.Modified = append(cs.Modified, Change{Previous: prev, Current: curr})
		}
	}

	for k, prev := range prevByKey {
		if _, exists := currByKey[k]; !exists {
			cs.Removed = append(cs.Removed, prev)
		}
	}

	sort.Slice(cs.Added, func(i, j int) bool { return Less(cs.Added[i], cs.Added[j]) })
	sort.Slice(cs.Modified, func(i, j int) bool { return Less(cs.Modified[i].Current, cs.Modified[j].Current) })
	sort.Slice(cs.Removed, func(i, j int) bool { return Less(cs.Removed[i], cs.Removed[j]) })

	return cs
}
