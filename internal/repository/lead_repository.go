package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

// LeadRepositoryInterface defines the recipient lookups the scheduler needs.
type LeadRepositoryInterface interface {
	GetByID(id int) (*model.Lead, error)
	ListAll(tenantID int) ([]*model.Lead, error)
	ListByIDs(tenantID int, ids []int) ([]*model.Lead, error)
	ListByOccurrence(occurrenceID int) ([]*model.Lead, error)
	ListRegisteredBetween(tenantID int, from, to time.Time) ([]*model.Lead, error)
}

type LeadRepository struct {
	DB *sql.DB
}

const leadColumns = `id, tenant_id, phone, first_name, last_name, occurrence_id, registered_at`

func (r *LeadRepository) GetByID(id int) (*model.Lead, error) {
	row := r.DB.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id=$1`, id)
	var l model.Lead
	if err := row.Scan(&l.ID, &l.TenantID, &l.Phone, &l.FirstName, &l.LastName, &l.OccurrenceID, &l.RegisteredAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &l, nil
}

func (r *LeadRepository) ListAll(tenantID int) ([]*model.Lead, error) {
	return r.list(`SELECT `+leadColumns+` FROM leads WHERE tenant_id=$1 ORDER BY id ASC`, tenantID)
}

func (r *LeadRepository) ListByIDs(tenantID int, ids []int) ([]*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id=$1 AND id = ANY($2) ORDER BY id ASC`
	return r.list(query, tenantID, pq.Array(ids))
}

func (r *LeadRepository) ListByOccurrence(occurrenceID int) ([]*model.Lead, error) {
	return r.list(`SELECT `+leadColumns+` FROM leads WHERE occurrence_id=$1 ORDER BY id ASC`, occurrenceID)
}

func (r *LeadRepository) ListRegisteredBetween(tenantID int, from, to time.Time) ([]*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id=$1 AND registered_at >= $2 AND registered_at <= $3 ORDER BY id ASC`
	return r.list(query, tenantID, from, to)
}

func (r *LeadRepository) list(query string, args ...interface{}) ([]*model.Lead, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []*model.Lead{}
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ID, &l.TenantID, &l.Phone, &l.FirstName, &l.LastName, &l.OccurrenceID, &l.RegisteredAt); err != nil {
			return nil, err
		}
		leads = append(leads, &l)
	}
	return leads, rows.Err()
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
