package model

import "time"

// Tenant owns accounts, leads and all outbound traffic. MaxAttempts is the
// per-tenant retry cap applied by the dispatcher.
type Tenant struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	MaxAttempts int       `db:"max_attempts" json:"max_attempts"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
