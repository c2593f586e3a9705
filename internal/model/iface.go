package model

import "time"

// EventWriter provides append-oriented writes for translated webhook events.
type EventWriter interface {
	InsertEvents(events []*Event) (int64, error)
}

// EventQuerier provides read-only queries on stored events.
type EventQuerier interface {
	RecentEvents(q EventQuery) ([]Event, error)
	EventSummary() ([]TypeCount, error)
	TotalEventCount() (int64, error)
}

// EventStore is the unified contract used by the HTTP API.
type EventStore interface {
	EventWriter
	EventQuerier
}

// EventPruner deletes events older than a cutoff.
type EventPruner interface {
	DeleteBefore(cutoff time.Time) (int64, error)
}
