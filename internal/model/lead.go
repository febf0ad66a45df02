package model

import "time"

// Lead is a webinar registrant reachable over WhatsApp.
type Lead struct {
	ID           int       `db:"id" json:"id"`
	TenantID     int       `db:"tenant_id" json:"tenant_id"`
	Phone        string    `db:"phone" json:"phone"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	OccurrenceID *int      `db:"occurrence_id" json:"occurrence_id,omitempty"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}
