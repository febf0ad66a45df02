package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/webinarflow/whatsapp-dispatch/internal/errors"
	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

type BroadcastRepositoryInterface interface {
	Create(b *model.Broadcast) error
	GetByID(id int) (*model.Broadcast, error)
	ListByTenant(tenantID int, status string, offset, limit int) ([]*model.Broadcast, int, error)
	UpdateStatus(broadcastID int, status string) error

	// Launch fixes the recipient total; ApplyTerminal/ApplyCancelled keep
	// sent + failed + cancelled + pending == total.
	FixTotals(broadcastID, total int) error
	ApplyTerminal(broadcastID int, status string) error
	ApplyCancelled(broadcastID int, n int64) error
}

type BroadcastRepository struct {
	DB *sql.DB
}

const broadcastColumns = `id, tenant_id, name, template, filter_kind, filter_from, filter_to, filter_session_id, filter_lead_ids,
       status, total_recipients, sent_count, failed_count, cancelled_count, pending_count, created_at, updated_at`

func scanBroadcast(row interface{ Scan(...any) error }) (*model.Broadcast, error) {
	var b model.Broadcast
	var leadIDs pq.Int64Array
	err := row.Scan(
		&b.ID, &b.TenantID, &b.Name, &b.Template, &b.FilterKind, &b.FilterFrom, &b.FilterTo,
		&b.FilterSessionID, &leadIDs, &b.Status, &b.TotalRecipients, &b.SentCount, &b.FailedCount,
		&b.CancelledCount, &b.PendingCount, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.FilterLeadIDs = []int64(leadIDs)
	return &b, nil
}

func (r *BroadcastRepository) Create(b *model.Broadcast) error {
	b.CreatedAt = time.Now()
	if b.Status == "" {
		b.Status = model.BroadcastDraft
	}
	query := `
        INSERT INTO broadcasts (tenant_id, name, template, filter_kind, filter_from, filter_to, filter_session_id, filter_lead_ids,
                                status, total_recipients, sent_count, failed_count, cancelled_count, pending_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, 0, 0, 0, $10)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		b.TenantID, b.Name, b.Template, b.FilterKind, b.FilterFrom, b.FilterTo, b.FilterSessionID,
		pq.Int64Array(b.FilterLeadIDs), b.Status, b.CreatedAt,
	).Scan(&b.ID)
}

func (r *BroadcastRepository) GetByID(id int) (*model.Broadcast, error) {
	query := `SELECT ` + broadcastColumns + ` FROM broadcasts WHERE id=$1`
	b, err := scanBroadcast(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewBroadcastNotFound(id)
		}
		return nil, err
	}
	return b, nil
}

func (r *BroadcastRepository) ListByTenant(tenantID int, status string, offset, limit int) ([]*model.Broadcast, int, error) {
	where := ` WHERE tenant_id=$1`
	args := []interface{}{tenantID}
	argPos := 2
	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query := `SELECT ` + broadcastColumns + ` FROM broadcasts` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	rows, err := r.DB.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	broadcasts := []*model.Broadcast{}
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, 0, err
		}
		broadcasts = append(broadcasts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM broadcasts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return broadcasts, total, nil
}

func (r *BroadcastRepository) UpdateStatus(broadcastID int, status string) error {
	query := `UPDATE broadcasts SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, status, broadcastID)
	return err
}

func (r *BroadcastRepository) FixTotals(broadcastID, total int) error {
	query := `
        UPDATE broadcasts
        SET total_recipients=$1, pending_count=$1, status=$2, updated_at=NOW()
        WHERE id=$3
    `
	_, err := r.DB.Exec(query, total, model.BroadcastSending, broadcastID)
	return err
}

// ApplyTerminal moves one message outcome from pending into the matching
// counter in a single statement, then flips the broadcast to completed
// once nothing is pending.
func (r *BroadcastRepository) ApplyTerminal(broadcastID int, status string) error {
	query := `
        UPDATE broadcasts
        SET pending_count = pending_count - 1,
            sent_count      = sent_count      + CASE WHEN $1 = 'sent'      THEN 1 ELSE 0 END,
            failed_count    = failed_count    + CASE WHEN $1 = 'failed'    THEN 1 ELSE 0 END,
            cancelled_count = cancelled_count + CASE WHEN $1 = 'cancelled' THEN 1 ELSE 0 END,
            updated_at = NOW()
        WHERE id=$2 AND pending_count > 0
    `
	if _, err := r.DB.Exec(query, status, broadcastID); err != nil {
		return err
	}

	complete := `
        UPDATE broadcasts SET status=$1, updated_at=NOW()
        WHERE id=$2 AND pending_count=0 AND status=$3
    `
	_, err := r.DB.Exec(complete, model.BroadcastCompleted, broadcastID, model.BroadcastSending)
	return err
}

// ApplyCancelled accounts for a bulk cancel of n queued messages.
func (r *BroadcastRepository) ApplyCancelled(broadcastID int, n int64) error {
	query := `
        UPDATE broadcasts
        SET pending_count = pending_count - $1,
            cancelled_count = cancelled_count + $1,
            status=$2, updated_at=NOW()
        WHERE id=$3
    `
	_, err := r.DB.Exec(query, n, model.BroadcastCancelled, broadcastID)
	return err
}

var _ BroadcastRepositoryInterface = (*BroadcastRepository)(nil)
