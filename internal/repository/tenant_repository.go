package repository

import (
	"database/sql"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

type TenantRepositoryInterface interface {
	GetByID(id int) (*model.Tenant, error)
}

type TenantRepository struct {
	DB *sql.DB
}

func (r *TenantRepository) GetByID(id int) (*model.Tenant, error) {
	row := r.DB.QueryRow(`SELECT id, name, max_attempts, created_at FROM tenants WHERE id=$1`, id)
	var t model.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.MaxAttempts, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

var _ TenantRepositoryInterface = (*TenantRepository)(nil)
