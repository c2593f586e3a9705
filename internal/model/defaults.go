package model

import "time"

// Shared defaults used by both the server and viewer binaries.
const (
	DefaultEventsURL      = "http://localhost:5000/events"
	DefaultPollInterval   = 15 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultAPIPort        = 5000
	FeedHeading           = "GitHub Webhook Events"
)
