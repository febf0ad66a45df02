package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

type MessageRepositoryInterface interface {
	Create(m *model.Message) error
	GetByID(id int) (*model.Message, error)
	List(f model.MessageFilter) ([]*model.Message, int, error)
	ExistsForOccurrence(sequenceID, leadID int, occurrenceAt time.Time) (bool, error)
	ExistsForBroadcast(broadcastID, leadID int) (bool, error)

	// Dispatch loop
	FetchDue(now time.Time, limit int) ([]*model.Message, error)
	Claim(id int, now time.Time) (bool, error)
	Release(id int) error
	BeginAttempt(id, accountID int) (int, error)
	MarkSent(id, attempt int, providerMessageID string) (bool, error)
	MarkFailed(id, attempt int, lastError string) (bool, error)
	Requeue(id, attempt int, sendAt time.Time, lastError string) (bool, error)
	RecoverStale(olderThan time.Time) (int64, error)

	// Cancellation
	CancelQueued(id int) (bool, error)
	CancelQueuedByBroadcast(broadcastID int) (int64, error)
}

type MessageRepository struct {
	DB *sql.DB
}

const messageColumns = `id, tenant_id, sequence_id, broadcast_id, lead_id, occurrence_at, scope,
       target_address, payload, send_at, status, attempts, last_error,
       assigned_account_id, provider_message_id, claimed_at, created_at, updated_at`

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
	var m model.Message
	err := row.Scan(
		&m.ID, &m.TenantID, &m.SequenceID, &m.BroadcastID, &m.LeadID, &m.OccurrenceAt, &m.Scope,
		&m.TargetAddress, &m.Payload, &m.SendAt, &m.Status, &m.Attempts, &m.LastError,
		&m.AssignedAccountID, &m.ProviderMessageID, &m.ClaimedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepository) Create(m *model.Message) error {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = model.MessageQueued
	}
	query := `
        INSERT INTO messages (tenant_id, sequence_id, broadcast_id, lead_id, occurrence_at, scope,
                              target_address, payload, send_at, status, attempts, last_error, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, '', $11, $12)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		m.TenantID, m.SequenceID, m.BroadcastID, m.LeadID, m.OccurrenceAt, m.Scope,
		m.TargetAddress, m.Payload, m.SendAt, m.Status, m.CreatedAt, m.UpdatedAt,
	).Scan(&m.ID)
}

func (r *MessageRepository) GetByID(id int) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id=$1`
	m, err := scanMessage(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *MessageRepository) List(f model.MessageFilter) ([]*model.Message, int, error) {
	where := ` WHERE tenant_id=$1`
	args := []interface{}{f.TenantID}
	argPos := 2

	if f.BroadcastID != 0 {
		where += fmt.Sprintf(" AND broadcast_id=$%d", argPos)
		args = append(args, f.BroadcastID)
		argPos++
	}
	if f.SequenceID != 0 {
		where += fmt.Sprintf(" AND sequence_id=$%d", argPos)
		args = append(args, f.SequenceID)
		argPos++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, f.Status)
		argPos++
	}

	query := `SELECT ` + messageColumns + ` FROM messages` + where +
		fmt.Sprintf(" ORDER BY send_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	limit := f.PageSize
	offset := (f.Page - 1) * f.PageSize
	rows, err := r.DB.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM messages`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// ExistsForOccurrence backs idempotent sequence materialization: the same
// (sequence, occurrence, lead) tuple never produces a second live row.
func (r *MessageRepository) ExistsForOccurrence(sequenceID, leadID int, occurrenceAt time.Time) (bool, error) {
	query := `
        SELECT 1 FROM messages
        WHERE sequence_id=$1 AND lead_id=$2 AND occurrence_at=$3 AND status <> $4
        LIMIT 1
    `
	var tmp int
	err := r.DB.QueryRow(query, sequenceID, leadID, occurrenceAt, model.MessageCancelled).Scan(&tmp)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExistsForBroadcast backs idempotent broadcast launches: a redelivered
// launch job must not create a second live row for a recipient.
func (r *MessageRepository) ExistsForBroadcast(broadcastID, leadID int) (bool, error) {
	query := `
        SELECT 1 FROM messages
        WHERE broadcast_id=$1 AND lead_id=$2 AND status <> $3
        LIMIT 1
    `
	var tmp int
	err := r.DB.QueryRow(query, broadcastID, leadID, model.MessageCancelled).Scan(&tmp)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ====================== Dispatch loop ======================

func (r *MessageRepository) FetchDue(now time.Time, limit int) ([]*model.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages
        WHERE status=$1 AND send_at<=$2
        ORDER BY send_at ASC
        LIMIT $3`

	rows, err := r.DB.Query(query, model.MessageQueued, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Claim atomically moves queued -> sending. Exactly one of N racing
// workers sees one row affected.
func (r *MessageRepository) Claim(id int, now time.Time) (bool, error) {
	query := `
        UPDATE messages SET status=$1, claimed_at=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4
    `
	res, err := r.DB.Exec(query, model.MessageSending, now, id, model.MessageQueued)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Release undoes a claim after a capacity deferral. Attempts and send_at
// stay untouched so the message is retried on the next poll.
func (r *MessageRepository) Release(id int) error {
	query := `
        UPDATE messages SET status=$1, claimed_at=NULL, updated_at=NOW()
        WHERE id=$2 AND status=$3
    `
	_, err := r.DB.Exec(query, model.MessageQueued, id, model.MessageSending)
	return err
}

// BeginAttempt charges one attempt and pins the sending account. The
// returned counter guards every later outcome write against stale
// acknowledgments from a recovered claim.
func (r *MessageRepository) BeginAttempt(id, accountID int) (int, error) {
	query := `
        UPDATE messages SET attempts=attempts+1, assigned_account_id=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3
        RETURNING attempts
    `
	var attempts int
	err := r.DB.QueryRow(query, accountID, id, model.MessageSending).Scan(&attempts)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("message %d no longer in sending state", id)
		}
		return 0, err
	}
	return attempts, nil
}

func (r *MessageRepository) MarkSent(id, attempt int, providerMessageID string) (bool, error) {
	query := `
        UPDATE messages SET status=$1, provider_message_id=$2, last_error='', claimed_at=NULL, updated_at=NOW()
        WHERE id=$3 AND status=$4 AND attempts=$5
    `
	res, err := r.DB.Exec(query, model.MessageSent, providerMessageID, id, model.MessageSending, attempt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *MessageRepository) MarkFailed(id, attempt int, lastError string) (bool, error) {
	query := `
        UPDATE messages SET status=$1, last_error=$2, claimed_at=NULL, updated_at=NOW()
        WHERE id=$3 AND status=$4 AND attempts=$5
    `
	res, err := r.DB.Exec(query, model.MessageFailed, lastError, id, model.MessageSending, attempt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *MessageRepository) Requeue(id, attempt int, sendAt time.Time, lastError string) (bool, error) {
	query := `
        UPDATE messages SET status=$1, send_at=$2, last_error=$3, claimed_at=NULL,
                            assigned_account_id=NULL, updated_at=NOW()
        WHERE id=$4 AND status=$5 AND attempts=$6
    `
	res, err := r.DB.Exec(query, model.MessageQueued, sendAt, lastError, id, model.MessageSending, attempt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RecoverStale requeues sending rows whose worker likely died mid-send.
// A late success from the original worker is discarded by the attempts
// guard in MarkSent.
func (r *MessageRepository) RecoverStale(olderThan time.Time) (int64, error) {
	query := `
        UPDATE messages SET status=$1, claimed_at=NULL, updated_at=NOW()
        WHERE status=$2 AND claimed_at < $3
    `
	res, err := r.DB.Exec(query, model.MessageQueued, model.MessageSending, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ====================== Cancellation ======================

func (r *MessageRepository) CancelQueued(id int) (bool, error) {
	query := `
        UPDATE messages SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3
    `
	res, err := r.DB.Exec(query, model.MessageCancelled, id, model.MessageQueued)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CancelQueuedByBroadcast bulk-cancels only queued rows; in-flight sends
// complete naturally and report through the coordinator as usual.
func (r *MessageRepository) CancelQueuedByBroadcast(broadcastID int) (int64, error) {
	query := `
        UPDATE messages SET status=$1, updated_at=NOW()
        WHERE broadcast_id=$2 AND status=$3
    `
	res, err := r.DB.Exec(query, model.MessageCancelled, broadcastID, model.MessageQueued)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
