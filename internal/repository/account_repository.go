package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/webinarflow/whatsapp-dispatch/internal/errors"
	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

type AccountRepositoryInterface interface {
	// Account CRUD
	Create(a *model.Account) error
	Update(a *model.Account) error
	GetByID(id int) (*model.Account, error)
	ListByTenant(tenantID int, status string) ([]*model.Account, error)
	UpdateStatus(accountID int, status string) error
	Delete(id int) error

	// Selection and quota
	ListEligible(tenantID int, scope string) ([]*model.Account, error)
	ReserveQuota(a *model.Account, oldHour, oldDay int, now time.Time) (bool, error)
}

type AccountRepository struct {
	DB *sql.DB
}

const accountColumns = `id, tenant_id, name, phone_number, status, scope, adapter, gateway_url, api_token,
       priority, hourly_limit, daily_limit, messages_sent_this_hour, messages_sent_today,
       last_hour_reset_at, last_day_reset_key, last_used_at, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID, &a.TenantID, &a.Name, &a.PhoneNumber, &a.Status, &a.Scope, &a.Adapter,
		&a.GatewayURL, &a.APIToken, &a.Priority, &a.HourlyLimit, &a.DailyLimit,
		&a.MessagesSentThisHour, &a.MessagesSentToday, &a.LastHourResetAt,
		&a.LastDayResetKey, &a.LastUsedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) Create(a *model.Account) error {
	a.CreatedAt = time.Now()
	if a.Status == "" {
		a.Status = model.AccountDisconnected
	}
	if a.LastDayResetKey == "" {
		a.LastDayResetKey = a.CreatedAt.UTC().Format("2006-01-02")
	}
	if a.LastHourResetAt.IsZero() {
		a.LastHourResetAt = a.CreatedAt
	}
	query := `
        INSERT INTO accounts (tenant_id, name, phone_number, status, scope, adapter, gateway_url, api_token,
                              priority, hourly_limit, daily_limit, messages_sent_this_hour, messages_sent_today,
                              last_hour_reset_at, last_day_reset_key, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, 0, $12, $13, $14)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		a.TenantID, a.Name, a.PhoneNumber, a.Status, a.Scope, a.Adapter, a.GatewayURL, a.APIToken,
		a.Priority, a.HourlyLimit, a.DailyLimit, a.LastHourResetAt, a.LastDayResetKey, a.CreatedAt,
	).Scan(&a.ID)
}

func (r *AccountRepository) Update(a *model.Account) error {
	query := `
        UPDATE accounts
        SET name=$1, phone_number=$2, scope=$3, adapter=$4, gateway_url=$5, api_token=$6,
            priority=$7, hourly_limit=$8, daily_limit=$9, updated_at=NOW()
        WHERE id=$10
    `
	_, err := r.DB.Exec(query, a.Name, a.PhoneNumber, a.Scope, a.Adapter, a.GatewayURL, a.APIToken,
		a.Priority, a.HourlyLimit, a.DailyLimit, a.ID)
	return err
}

func (r *AccountRepository) UpdateStatus(accountID int, status string) error {
	query := `UPDATE accounts SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), accountID)
	return err
}

func (r *AccountRepository) GetByID(id int) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	a, err := scanAccount(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewAccountNotFound(id)
		}
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) ListByTenant(tenantID int, status string) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id=$1`
	args := []interface{}{tenantID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY priority ASC, id ASC`

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []*model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) Delete(id int) error {
	_, err := r.DB.Exec(`DELETE FROM accounts WHERE id=$1`, id)
	return err
}

// ListEligible returns connected accounts of the given scope ordered the
// way the pool consumes them: priority ascending, then least recently
// used so equal-priority accounts share the load.
func (r *AccountRepository) ListEligible(tenantID int, scope string) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + `
        FROM accounts
        WHERE tenant_id=$1 AND scope=$2 AND status=$3
        ORDER BY priority ASC, last_used_at ASC NULLS FIRST, id ASC`

	rows, err := r.DB.Query(query, tenantID, scope, model.AccountConnected)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []*model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ReserveQuota persists counters already advanced by quota.Apply. The
// WHERE clause compares against the pre-Apply counter values, so two
// workers racing on the same account can never both commit the same unit
// of quota: the loser sees zero rows affected and moves on.
func (r *AccountRepository) ReserveQuota(a *model.Account, oldHour, oldDay int, now time.Time) (bool, error) {
	query := `
        UPDATE accounts
        SET messages_sent_this_hour=$1, messages_sent_today=$2,
            last_hour_reset_at=$3, last_day_reset_key=$4,
            last_used_at=$5, updated_at=NOW()
        WHERE id=$6 AND status=$7
          AND messages_sent_this_hour=$8 AND messages_sent_today=$9
    `
	res, err := r.DB.Exec(query,
		a.MessagesSentThisHour, a.MessagesSentToday,
		a.LastHourResetAt, a.LastDayResetKey,
		now, a.ID, model.AccountConnected, oldHour, oldDay,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

var _ AccountRepositoryInterface = (*AccountRepository)(nil)
