package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/webinarflow/whatsapp-dispatch/internal/errors"
	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

type SequenceRepositoryInterface interface {
	Create(s *model.Sequence) error
	Update(s *model.Sequence) error
	GetByID(id int) (*model.Sequence, error)
	ListByTenant(tenantID int) ([]*model.Sequence, error)
	ListEnabledForWebinar(webinarID int) ([]*model.Sequence, error)
	SetEnabled(sequenceID int, enabled bool) error

	// Occurrences the scheduler materializes against
	GetOccurrenceByID(id int) (*model.Occurrence, error)
	ListOccurrencesBetween(from, to time.Time) ([]*model.Occurrence, error)
}

type SequenceRepository struct {
	DB *sql.DB
}

const sequenceColumns = `id, tenant_id, webinar_id, name, phase, offset_minutes, template, enabled, created_at, updated_at`

func scanSequence(row interface{ Scan(...any) error }) (*model.Sequence, error) {
	var s model.Sequence
	err := row.Scan(&s.ID, &s.TenantID, &s.WebinarID, &s.Name, &s.Phase, &s.OffsetMinutes,
		&s.Template, &s.Enabled, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SequenceRepository) Create(s *model.Sequence) error {
	s.CreatedAt = time.Now()
	query := `
        INSERT INTO sequences (tenant_id, webinar_id, name, phase, offset_minutes, template, enabled, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(query, s.TenantID, s.WebinarID, s.Name, s.Phase, s.OffsetMinutes,
		s.Template, s.Enabled, s.CreatedAt).Scan(&s.ID)
}

func (r *SequenceRepository) Update(s *model.Sequence) error {
	query := `
        UPDATE sequences
        SET name=$1, phase=$2, offset_minutes=$3, template=$4, enabled=$5, updated_at=NOW()
        WHERE id=$6
    `
	_, err := r.DB.Exec(query, s.Name, s.Phase, s.OffsetMinutes, s.Template, s.Enabled, s.ID)
	return err
}

func (r *SequenceRepository) GetByID(id int) (*model.Sequence, error) {
	query := `SELECT ` + sequenceColumns + ` FROM sequences WHERE id=$1`
	s, err := scanSequence(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewSequenceNotFound(id)
		}
		return nil, err
	}
	return s, nil
}

func (r *SequenceRepository) ListByTenant(tenantID int) ([]*model.Sequence, error) {
	return r.list(`SELECT `+sequenceColumns+` FROM sequences WHERE tenant_id=$1 ORDER BY id ASC`, tenantID)
}

func (r *SequenceRepository) ListEnabledForWebinar(webinarID int) ([]*model.Sequence, error) {
	return r.list(`SELECT `+sequenceColumns+` FROM sequences WHERE webinar_id=$1 AND enabled=true ORDER BY offset_minutes ASC`, webinarID)
}

func (r *SequenceRepository) list(query string, args ...interface{}) ([]*model.Sequence, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sequences := []*model.Sequence{}
	for rows.Next() {
		s, err := scanSequence(rows)
		if err != nil {
			return nil, err
		}
		sequences = append(sequences, s)
	}
	return sequences, rows.Err()
}

func (r *SequenceRepository) SetEnabled(sequenceID int, enabled bool) error {
	_, err := r.DB.Exec(`UPDATE sequences SET enabled=$1, updated_at=NOW() WHERE id=$2`, enabled, sequenceID)
	return err
}

func (r *SequenceRepository) GetOccurrenceByID(id int) (*model.Occurrence, error) {
	row := r.DB.QueryRow(`SELECT id, tenant_id, webinar_id, starts_at FROM occurrences WHERE id=$1`, id)
	var o model.Occurrence
	if err := row.Scan(&o.ID, &o.TenantID, &o.WebinarID, &o.StartsAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *SequenceRepository) ListOccurrencesBetween(from, to time.Time) ([]*model.Occurrence, error) {
	query := `
        SELECT id, tenant_id, webinar_id, starts_at
        FROM occurrences
        WHERE starts_at >= $1 AND starts_at <= $2
        ORDER BY starts_at ASC
    `
	rows, err := r.DB.Query(query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	occurrences := []*model.Occurrence{}
	for rows.Next() {
		var o model.Occurrence
		if err := rows.Scan(&o.ID, &o.TenantID, &o.WebinarID, &o.StartsAt); err != nil {
			return nil, err
		}
		occurrences = append(occurrences, &o)
	}
	return occurrences, rows.Err()
}

var _ SequenceRepositoryInterface = (*SequenceRepository)(nil)
