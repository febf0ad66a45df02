package model

import "time"

// Sequence phases relative to a webinar occurrence.
const (
	PhasePre  = "pre"
	PhasePost = "post"
)

// Sequence is a message template fired at a fixed offset (minutes, signed)
// from a webinar occurrence start.
type Sequence struct {
	ID            int        `db:"id" json:"id"`
	TenantID      int        `db:"tenant_id" json:"tenant_id"`
	WebinarID     int        `db:"webinar_id" json:"webinar_id"`
	Name          string     `db:"name" json:"name"`
	Phase         string     `db:"phase" json:"phase"`
	OffsetMinutes int        `db:"offset_minutes" json:"offset_minutes"`
	Template      string     `db:"template" json:"template"`
	Enabled       bool       `db:"enabled" json:"enabled"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Occurrence is a concrete run of a webinar; sequences materialize
// against its start timestamp.
type Occurrence struct {
	ID        int       `db:"id" json:"id"`
	TenantID  int       `db:"tenant_id" json:"tenant_id"`
	WebinarID int       `db:"webinar_id" json:"webinar_id"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
}
