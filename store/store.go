// Package store defines the persistence interfaces for calendar events.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrEventNotFound is returned when the referenced event does not exist.
var ErrEventNotFound = errors.New("event not found")

// Event represents a calendar event record for storage.
type Event struct {
	ID        int64
	Title     string
	Note      string
	Start     time.Time
	End       time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FindEvents is the filter for event listings.
type FindEvents struct {
	// Start and End bound the listing window; an event matches when it
	// overlaps the window. Nil means unbounded on that side.
	Start *time.Time
	End   *time.Time
	Limit int
}

// ScheduleStore defines the interface for calendar event persistence.
type ScheduleStore interface {
	// CreateEvent saves a new event and returns it with its assigned ID.
	CreateEvent(ctx context.Context, event *Event) (*Event, error)

	// GetEvent retrieves an event by ID.
	GetEvent(ctx context.Context, id int64) (*Event, error)

	// ListEvents retrieves events matching the filter, ordered by start time.
	ListEvents(ctx context.Context, find FindEvents) ([]*Event, error)

	// UpdateEventTime moves an event to a new start/end.
	UpdateEventTime(ctx context.Context, id int64, start, end time.Time) (*Event, error)

	// DeleteEvent removes an event by ID.
	DeleteEvent(ctx context.Context, id int64) error
}

// Driver is a storage backend that can hand out the schedule store.
type Driver interface {
	ScheduleStore() ScheduleStore
	Migrate(ctx context.Context) error
	Close() error
}
