package engine

import (
	"davsync/internal/dav"
)

// KindStats accumulates counters for one collection kind during a run.
//
// In dry-run mode ItemsMigrated counts items that would migrate.
type KindStats struct {
	CollectionsMigrated int `json:"collections_migrated"`
	CollectionsFailed   int `json:"collections_failed"`
	ItemsMigrated       int `json:"items_migrated"`
	ItemsFailed         int `json:"items_failed"`
	ItemsSkipped        int `json:"items_skipped"`
}

// CollectionDetail describes one discovered collection in a dry run.
type CollectionDetail struct {
	Name         string `json:"name"`
	ItemCount    int    `json:"item_count"`
	SkippedCount int    `json:"skipped_count"`
}

// Stats is the mutable accumulator owned by one engine run. It is mutated
// only from the run's goroutine and returned as a snapshot at run end.
type Stats struct {
	Events   KindStats `json:"events"`
	Contacts KindStats `json:"contacts"`

	// Partial marks statistics from a run that stopped at a cancellation
	// checkpoint before processing all discovered units.
	Partial bool `json:"partial,omitempty"`

	// Dry-run detail listings, one entry per discovered collection.
	Calendars    []CollectionDetail `json:"calendars,omitempty"`
	AddressBooks []CollectionDetail `json:"addressbooks,omitempty"`
}

// NewStats returns a zeroed accumulator.
func NewStats() *Stats {
	return &Stats{}
}

// Kind returns the counter block for the given collection kind.
func (s *Stats) Kind(kind dav.Kind) *KindStats {
	if kind == dav.KindContact {
		return &s.Contacts
	}
	return &s.Events
}

// addDetail appends a dry-run detail entry for the given kind.
func (s *Stats) addDetail(kind dav.Kind, detail CollectionDetail) {
	if kind == dav.KindContact {
		s.AddressBooks = append(s.AddressBooks, detail)
	} else {
		s.Calendars = append(s.Calendars, detail)
	}
}

// Snapshot returns a copy safe to hand to other goroutines.
func (s *Stats) Snapshot() Stats {
	out := *s
	out.Calendars = append([]CollectionDetail(nil), s.Calendars...)
	out.AddressBooks = append([]CollectionDetail(nil), s.AddressBooks...)
	return out
}
