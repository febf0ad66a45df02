package model

import "time"

// Account connection statuses, driven by the connectivity layer.
const (
	AccountDisconnected    = "disconnected"
	AccountConnecting      = "connecting"
	AccountAwaitingPairing = "awaiting_pairing"
	AccountConnected       = "connected"
	AccountBanned          = "banned"
)

// Account scopes. Notification accounts carry webinar drip sequences,
// marketing accounts carry broadcasts.
const (
	ScopeNotification = "notification"
	ScopeMarketing    = "marketing"
)

// Adapter kinds select the channel implementation for an account.
const (
	AdapterSession = "session"
	AdapterCloud   = "cloud"
)

// Account is a connectable WhatsApp sending identity with its own quota.
type Account struct {
	ID                   int        `db:"id" json:"id"`
	TenantID             int        `db:"tenant_id" json:"tenant_id"`
	Name                 string     `db:"name" json:"name"`
	PhoneNumber          string     `db:"phone_number" json:"phone_number"`
	Status               string     `db:"status" json:"status"`
	Scope                string     `db:"scope" json:"scope"`
	Adapter              string     `db:"adapter" json:"adapter"`
	GatewayURL           string     `db:"gateway_url" json:"gateway_url,omitempty"`
	APIToken             string     `db:"api_token" json:"-"`
	Priority             int        `db:"priority" json:"priority"`
	HourlyLimit          int        `db:"hourly_limit" json:"hourly_limit"`
	DailyLimit           int        `db:"daily_limit" json:"daily_limit"`
	MessagesSentThisHour int        `db:"messages_sent_this_hour" json:"messages_sent_this_hour"`
	MessagesSentToday    int        `db:"messages_sent_today" json:"messages_sent_today"`
	LastHourResetAt      time.Time  `db:"last_hour_reset_at" json:"last_hour_reset_at"`
	LastDayResetKey      string     `db:"last_day_reset_key" json:"last_day_reset_key"`
	LastUsedAt           *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// IsValidAccountStatus checks a status value coming from the connectivity webhook.
func IsValidAccountStatus(status string) bool {
	switch status {
	case AccountDisconnected, AccountConnecting, AccountAwaitingPairing, AccountConnected, AccountBanned:
		return true
	default:
		return false
	}
}
