package domain

import "time"

// CandidatePermit is the transient shape a source transformer emits. It is
// discarded once normalized into a Permit.
type CandidatePermit struct {
	ExternalID   string `json:"external_id,omitempty"`
	ProjectTitle string `json:"project_title,omitempty"`
	Location     string `json:"location,omitempty"`
	Country      string `json:"country,omitempty"`
	Activity     string `json:"activity,omitempty"`
	Status       string `json:"status,omitempty"`
	Category     string `json:"category,omitempty"`
	Notes        string `json:"notes,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
}

// Permit is the canonical, durable permit record.
//
// IngestKey is the only identity used for upsert: it is stable across runs for
// the same logical permit from the same source. FirstSeenAt never changes
// after creation; LastSeenAt and UpdatedAt advance on every re-ingestion even
// when no field changed.
type Permit struct {
	IngestKey    string    `json:"ingest_key"`
	SourceKey    string    `json:"source_key"`
	ExternalID   string    `json:"external_id,omitempty"`
	ProjectTitle string    `json:"project_title"`
	Location     string    `json:"location"`
	Country      string    `json:"country"`
	Activity     string    `json:"activity"`
	Status       string    `json:"status"`
	Category     string    `json:"category,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	SourceName   string    `json:"source_name,omitempty"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StatusChangeEvent is an append-only record of a permit status transition.
// Events are created only when the normalized status actually changed, and are
// never mutated or deleted.
type StatusChangeEvent struct {
	ID             int64     `json:"id"`
	PermitKey      string    `json:"permit_key"`
	SourceKey      string    `json:"source_key"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ChangedAt      time.Time `json:"changed_at"`
	RunID          string    `json:"run_id"`
}
