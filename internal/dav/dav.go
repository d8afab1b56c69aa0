// package dav defines the capability interface over a CalDAV/CardDAV endpoint
//
// The sync engine talks to remote servers exclusively through [Client];
// the concrete WebDAV implementation lives in client.go.
package dav

import (
	"context"
)

// Kind distinguishes the two collection families a directory server exposes.
type Kind int

const (
	KindEvent   Kind = iota // calendars containing iCalendar events
	KindContact             // address books containing vCards
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "events"
	case KindContact:
		return "contacts"
	default:
		return "unknown"
	}
}

// CollectionName returns the human word for a container of this kind.
func (k Kind) CollectionName() string {
	if k == KindContact {
		return "address book"
	}
	return "calendar"
}

// CollectionRef identifies one collection (calendar or address book) on a server.
type CollectionRef struct {
	ID          string // server-side identifier, typically the collection href
	DisplayName string
	Kind        Kind
}

// ItemRef identifies one event or contact inside a collection.
//
// Payload may be populated when the server returned item bodies during
// enumeration (CardDAV REPORT does); otherwise it is fetched on demand
// through [Client.FetchItem].
type ItemRef struct {
	ID      string
	Payload []byte
}

// Client defines the operations the migration engine needs from a directory endpoint.
//
// Implementations must return errors wrapping shared.ErrConnection for
// authentication and connectivity failures, and shared.ErrRemote when the
// server rejects a single create operation.
type Client interface {
	// Authenticate verifies connectivity and credentials against the endpoint.
	Authenticate(ctx context.Context) error

	// ListCollections enumerates collections of the given kind in server order.
	ListCollections(ctx context.Context, kind Kind) ([]CollectionRef, error)

	// ListItems enumerates the items of a collection in server order.
	ListItems(ctx context.Context, col CollectionRef) ([]ItemRef, error)

	// FetchItem retrieves the raw payload of one item.
	FetchItem(ctx context.Context, col CollectionRef, itemID string) ([]byte, error)

	// CreateCollection creates a collection with the given display name.
	CreateCollection(ctx context.Context, displayName string, kind Kind) (CollectionRef, error)

	// CreateItem uploads a raw payload into the collection, unmodified.
	CreateItem(ctx context.Context, col CollectionRef, payload []byte) error

	// Name returns a short label for the endpoint, used in logs.
	Name() string
}
