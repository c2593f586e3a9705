package model

import "time"

// Event types produced from GitHub webhook deliveries.
const (
	EventTypePush        = "push"
	EventTypePullRequest = "pull_request"
	EventTypeMerge       = "merge"
)

// Event is one stored webhook event. Message is the human-readable line
// served to the viewer; the remaining fields back filtering and summaries.
type Event struct {
	DeliveryID string    `json:"delivery_id"`
	Type       string    `json:"type"`       // push / pull_request / merge
	GitHubName string    `json:"event_type"` // X-GitHub-Event header value
	Action     string    `json:"action,omitempty"`
	Message    string    `json:"message"`
	Author     string    `json:"author"`
	Branch     string    `json:"branch,omitempty"`
	FromBranch string    `json:"from_branch,omitempty"`
	ToBranch   string    `json:"to_branch,omitempty"`
	Repository string    `json:"repository"`
	PRNumber   int       `json:"pr_number,omitempty"`
	ReceivedAt time.Time `json:"timestamp"`
}

// TypeCount is one row of the per-type event summary.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// EventQuery holds filters for recent-event reads.
type EventQuery struct {
	Limit int
	Type  string // empty = all types
}
