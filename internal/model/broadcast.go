package model

import "time"

// Broadcast statuses.
const (
	BroadcastDraft     = "draft"
	BroadcastSending   = "sending"
	BroadcastCompleted = "completed"
	BroadcastCancelled = "cancelled"
)

// Recipient filter kinds for a broadcast.
const (
	FilterAll       = "all"
	FilterDateRange = "date_range"
	FilterSession   = "session"
	FilterList      = "list"
)

// Broadcast is a one-off campaign to a recipient set resolved once at
// launch. Counters satisfy
// sent + failed + cancelled + pending == total at every rest point.
type Broadcast struct {
	ID              int        `db:"id" json:"id"`
	TenantID        int        `db:"tenant_id" json:"tenant_id"`
	Name            string     `db:"name" json:"name"`
	Template        string     `db:"template" json:"template"`
	FilterKind      string     `db:"filter_kind" json:"filter_kind"`
	FilterFrom      *time.Time `db:"filter_from" json:"filter_from,omitempty"`
	FilterTo        *time.Time `db:"filter_to" json:"filter_to,omitempty"`
	FilterSessionID *int       `db:"filter_session_id" json:"filter_session_id,omitempty"`
	FilterLeadIDs   []int64    `db:"filter_lead_ids" json:"filter_lead_ids,omitempty"`
	Status          string     `db:"status" json:"status"`
	TotalRecipients int        `db:"total_recipients" json:"total_recipients"`
	SentCount       int        `db:"sent_count" json:"sent_count"`
	FailedCount     int        `db:"failed_count" json:"failed_count"`
	CancelledCount  int        `db:"cancelled_count" json:"cancelled_count"`
	PendingCount    int        `db:"pending_count" json:"pending_count"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
