package model

import "time"

// Message statuses. sending is transient: a recovery sweep requeues
// anything stuck there past the staleness window.
const (
	MessageQueued    = "queued"
	MessageSending   = "sending"
	MessageSent      = "sent"
	MessageFailed    = "failed"
	MessageCancelled = "cancelled"
)

// Message is the unit the dispatcher operates on. Rows are never deleted,
// only moved to a terminal status, so the send history stays auditable.
type Message struct {
	ID                int        `db:"id" json:"id"`
	TenantID          int        `db:"tenant_id" json:"tenant_id"`
	SequenceID        *int       `db:"sequence_id" json:"sequence_id,omitempty"`
	BroadcastID       *int       `db:"broadcast_id" json:"broadcast_id,omitempty"`
	LeadID            int        `db:"lead_id" json:"lead_id"`
	OccurrenceAt      *time.Time `db:"occurrence_at" json:"occurrence_at,omitempty"`
	Scope             string     `db:"scope" json:"scope"`
	TargetAddress     string     `db:"target_address" json:"target_address"`
	Payload           string     `db:"payload" json:"payload"`
	SendAt            time.Time  `db:"send_at" json:"send_at"`
	Status            string     `db:"status" json:"status"`
	Attempts          int        `db:"attempts" json:"attempts"`
	LastError         string     `db:"last_error" json:"last_error,omitempty"`
	AssignedAccountID *int       `db:"assigned_account_id" json:"assigned_account_id,omitempty"`
	ProviderMessageID *string    `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ClaimedAt         *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether a status ends the message lifecycle.
func IsTerminal(status string) bool {
	switch status {
	case MessageSent, MessageFailed, MessageCancelled:
		return true
	default:
		return false
	}
}

// MessageFilter holds filtering options for listing queue and history.
type MessageFilter struct {
	TenantID    int
	BroadcastID int
	SequenceID  int
	Status      string
	Page        int
	PageSize    int
}
