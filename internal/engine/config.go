package engine

import (
	"fmt"

	"davsync/internal/dav"
	"davsync/internal/shared"
)

// Config is the immutable per-run input of the sync engine.
//
// CalendarsOnly and ContactsOnly are mutually exclusive selectors that narrow
// the Migrate* flags; they never enable a kind that Migrate* disables.
type Config struct {
	Source      dav.Client
	Destination dav.Client

	MigrateCalendars bool
	MigrateContacts  bool
	CreateMissing    bool // create destination collections that have no name match
	SkipDummyEvents  bool // skip events whose title is the "dummy" sentinel
	DryRun           bool // discover and count only, no writes
	CalendarsOnly    bool
	ContactsOnly     bool

	// UploadRate limits destination writes in requests per second.
	// Zero selects the default of 5 req/s.
	UploadRate float64
}

// Validate rejects contradictory or incomplete configurations before a run starts.
func (c Config) Validate() error {
	if c.Source == nil || c.Destination == nil {
		return fmt.Errorf("%w: source and destination adapters are required", shared.ErrInvalidConfig)
	}
	if c.CalendarsOnly && c.ContactsOnly {
		return fmt.Errorf("%w: calendars_only and contacts_only are mutually exclusive", shared.ErrInvalidConfig)
	}
	if !c.includeEvents() && !c.includeContacts() {
		return fmt.Errorf("%w: nothing selected to migrate", shared.ErrInvalidConfig)
	}
	return nil
}

func (c Config) includeEvents() bool {
	return c.MigrateCalendars && !c.ContactsOnly
}

func (c Config) includeContacts() bool {
	return c.MigrateContacts && !c.CalendarsOnly
}

// kinds returns the selected collection kinds in processing order.
func (c Config) kinds() []dav.Kind {
	var out []dav.Kind
	if c.includeEvents() {
		out = append(out, dav.KindEvent)
	}
	if c.includeContacts() {
		out = append(out, dav.KindContact)
	}
	return out
}
