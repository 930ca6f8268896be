package postgres

import (
	"context"
	"fmt"
	"strings"

	"project-tracker-api/internal/models"
	"project-tracker-api/internal/repository"

	"github.com/jackc/pgx/v5"
)

const managerColumns = `
		m.pm_id, m.name, m.email, m.phone, m.department, m.employee_id,
		m.created_at, m.updated_at, m.is_active`

// scanManager reads a manager row; leading columns go into prefix.
func scanManager(row pgx.Row, prefix ...any) (models.ProjectManager, error) {
	var pm models.ProjectManager
	dest := append(prefix,
		&pm.ID, &pm.Name, &pm.Email, &pm.Phone, &pm.Department, &pm.EmployeeID,
		&pm.CreatedAt, &pm.UpdatedAt, &pm.IsActive,
	)
	err := row.Scan(dest...)
	return pm, err
}

func (q *queries) GetManager(ctx context.Context, id int64, lock bool) (*models.ProjectManager, error) {
	sqlStr := "SELECT" + managerColumns + " FROM project_managers m WHERE m.pm_id = $1"
	if lock {
		sqlStr += " FOR UPDATE"
	}
	pm, err := scanManager(q.db.QueryRow(ctx, sqlStr, id))
	if err != nil {
		return nil, fmt.Errorf("get manager %d: %w", id, mapError(err))
	}
	return &pm, nil
}

func (q *queries) ManagerExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM project_managers WHERE pm_id = $1)", id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check manager %d: %w", id, err)
	}
	return exists, nil
}

func (q *queries) FindManagers(ctx context.Context, f repository.ManagerFilter) ([]models.ProjectManager, error) {
	clauses := []string{}
	args := []any{}
	arg := 1

	if !f.IncludeInactive {
		clauses = append(clauses, "m.is_active = true")
	}
	if f.Name != nil {
		clauses = append(clauses, fmt.Sprintf("m.name ILIKE $%d", arg))
		args = append(args, "%"+escapeLike(*f.Name)+"%")
		arg++
	}
	if f.Department != nil {
		clauses = append(clauses, fmt.Sprintf("m.department = $%d", arg))
		args = append(args, *f.Department)
		arg++
	}
	if f.Email != nil {
		clauses = append(clauses, fmt.Sprintf("m.email = $%d", arg))
		args = append(args, *f.Email)
		arg++
	}
	if f.EmployeeID != nil {
		clauses = append(clauses, fmt.Sprintf("m.employee_id = $%d", arg))
		args = append(args, *f.EmployeeID)
		arg++
	}

	sqlStr := "SELECT" + managerColumns + " FROM project_managers m"
	if len(clauses) > 0 {
		sqlStr += " WHERE " + strings.Join(clauses, " AND ")
	}
	sqlStr += " ORDER BY m.name ASC, m.pm_id ASC"

	rows, err := q.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query managers: %w", err)
	}
	defer rows.Close()

	managers := []models.ProjectManager{}
	for rows.Next() {
		pm, err := scanManager(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manager: %w", err)
		}
		managers = append(managers, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate managers: %w", err)
	}
	return managers, nil
}

func (q *queries) CreateManager(ctx context.Context, pm *models.ProjectManager) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO project_managers (
			name, email, phone, department, employee_id, created_at, updated_at, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING pm_id`,
		pm.Name, pm.Email, pm.Phone, pm.Department, pm.EmployeeID,
		pm.CreatedAt, pm.UpdatedAt, pm.IsActive,
	).Scan(&pm.ID)
	if err != nil {
		return fmt.Errorf("insert manager %q: %w", pm.Email, mapError(err))
	}
	return nil
}
