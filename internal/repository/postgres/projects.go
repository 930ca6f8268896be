package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"project-tracker-api/internal/models"
	"project-tracker-api/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const projectColumns = `
		p.project_id, p.name, p.description, p.project_code, p.status, p.priority,
		p.start_date, p.end_date, p.estimated_end_date, p.budget, p.actual_cost,
		p.client_name, p.technology_stack, p.team_size, p.completion_percentage,
		p.created_at, p.updated_at, p.is_active`

// buildProjectWhere turns the filter into a WHERE clause with $n placeholders
func buildProjectWhere(f repository.ProjectFilter) (string, []any) {
	clauses := []string{}
	args := []any{}
	arg := 1

	if !f.IncludeInactive {
		clauses = append(clauses, "p.is_active = true")
	}
	if f.ManagerID != nil {
		clauses = append(clauses, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM project_manager_assignments a
			WHERE a.project_id = p.project_id AND a.pm_id = $%d)`, arg))
		args = append(args, *f.ManagerID)
		arg++
	}
	if f.ManagerEmail != nil {
		clauses = append(clauses, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM project_manager_assignments a
			JOIN project_managers m ON m.pm_id = a.pm_id
			WHERE a.project_id = p.project_id AND m.email = $%d)`, arg))
		args = append(args, *f.ManagerEmail)
		arg++
	}
	if f.ManagerEmployeeID != nil {
		clauses = append(clauses, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM project_manager_assignments a
			JOIN project_managers m ON m.pm_id = a.pm_id
			WHERE a.project_id = p.project_id AND m.employee_id = $%d)`, arg))
		args = append(args, *f.ManagerEmployeeID)
		arg++
	}
	if f.Status != nil {
		clauses = append(clauses, fmt.Sprintf("p.status = $%d", arg))
		args = append(args, string(*f.Status))
		arg++
	}
	if f.ClientName != nil {
		clauses = append(clauses, fmt.Sprintf("p.client_name ILIKE $%d", arg))
		args = append(args, "%"+escapeLike(*f.ClientName)+"%")
		arg++
	}
	if f.Code != nil {
		clauses = append(clauses, fmt.Sprintf("p.project_code = $%d", arg))
		args = append(args, *f.Code)
		arg++
	}
	if f.StartFrom != nil {
		clauses = append(clauses, fmt.Sprintf("p.start_date >= $%d", arg))
		args = append(args, f.StartFrom.Time())
		arg++
	}
	if f.StartTo != nil {
		clauses = append(clauses, fmt.Sprintf("p.start_date <= $%d", arg))
		args = append(args, f.StartTo.Time())
		arg++
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// buildOrderBy renders whitelisted sort keys; unknown keys are skipped
func buildOrderBy(sort []repository.SortField) string {
	sort = repository.WithTieBreaker(sort)
	parts := make([]string, 0, len(sort))
	for _, s := range sort {
		col, ok := repository.ProjectSortColumns[s.Field]
		if !ok {
			continue
		}
		if s.Desc {
			parts = append(parts, "p."+pq.QuoteIdentifier(col)+" DESC NULLS FIRST")
		} else {
			parts = append(parts, "p."+pq.QuoteIdentifier(col)+" ASC NULLS LAST")
		}
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// escapeLike makes user input match literally inside ILIKE
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanProject(row pgx.Row, extra ...any) (models.Project, error) {
	var (
		p         models.Project
		status    string
		priority  string
		startDate time.Time
		endDate   pgtype.Date
		estDate   pgtype.Date
		teamSize  pgtype.Int4
	)
	dest := []any{
		&p.ID, &p.Name, &p.Description, &p.ProjectCode, &status, &priority,
		&startDate, &endDate, &estDate, &p.Budget, &p.ActualCost,
		&p.ClientName, &p.TechnologyStack, &teamSize, &p.CompletionPercentage,
		&p.CreatedAt, &p.UpdatedAt, &p.IsActive,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return p, err
	}

	p.Status = models.ProjectStatus(status)
	p.Priority = models.ProjectPriority(priority)
	p.StartDate = models.DateOf(startDate)
	p.EndDate = fromPgDate(endDate)
	p.EstimatedEndDate = fromPgDate(estDate)
	if teamSize.Valid {
		n := int(teamSize.Int32)
		p.TeamSize = &n
	}
	return p, nil
}

func fromPgDate(d pgtype.Date) *models.Date {
	if !d.Valid {
		return nil
	}
	v := models.DateOf(d.Time)
	return &v
}

func dateArg(d *models.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Time()
}

func decimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func (q *queries) FindProjects(ctx context.Context, f repository.ProjectFilter) ([]models.Project, error) {
	where, args := buildProjectWhere(f)
	sqlStr := "SELECT" + projectColumns + " FROM projects p" + where + buildOrderBy(f.Sort)

	rows, err := q.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	if err := q.attachManagers(ctx, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (q *queries) FindProjectsPage(ctx context.Context, f repository.ProjectFilter, page repository.PageRequest) ([]models.Project, int64, error) {
	if page.Offset() < 0 {
		total, err := q.CountProjects(ctx, f)
		if err != nil {
			return nil, 0, err
		}
		return []models.Project{}, total, nil
	}

	where, args := buildProjectWhere(f)
	sqlStr := "SELECT" + projectColumns + ", COUNT(*) OVER() AS total_count FROM projects p" + where
	sqlStr += buildOrderBy(page.Sort)
	sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", page.Size, page.Offset())

	rows, err := q.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query project page: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	var total int64
	for rows.Next() {
		p, err := scanProject(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate projects: %w", err)
	}
	rows.Close()

	// past the last page the window function yields no row to read the total from
	if len(projects) == 0 && page.Offset() > 0 {
		total, err = q.CountProjects(ctx, f)
		if err != nil {
			return nil, 0, err
		}
	}

	if err := q.attachManagers(ctx, projects); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (q *queries) CountProjects(ctx context.Context, f repository.ProjectFilter) (int64, error) {
	where, args := buildProjectWhere(f)
	var n int64
	if err := q.db.QueryRow(ctx, "SELECT COUNT(*) FROM projects p"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

func (q *queries) GetProject(ctx context.Context, id int64, lock bool) (*models.Project, error) {
	sqlStr := "SELECT" + projectColumns + " FROM projects p WHERE p.project_id = $1"
	if lock {
		sqlStr += " FOR UPDATE"
	}
	p, err := scanProject(q.db.QueryRow(ctx, sqlStr, id))
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, mapError(err))
	}

	one := []models.Project{p}
	if err := q.attachManagers(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (q *queries) CreateProject(ctx context.Context, p *models.Project) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO projects (
			name, description, project_code, status, priority,
			start_date, end_date, estimated_end_date, budget, actual_cost,
			client_name, technology_stack, team_size, completion_percentage,
			created_at, updated_at, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING project_id`,
		p.Name, p.Description, p.ProjectCode, string(p.Status), string(p.Priority),
		p.StartDate.Time(), dateArg(p.EndDate), dateArg(p.EstimatedEndDate),
		decimalArg(p.Budget), decimalArg(p.ActualCost),
		p.ClientName, p.TechnologyStack, p.TeamSize, p.CompletionPercentage,
		p.CreatedAt, p.UpdatedAt, p.IsActive,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert project %q: %w", p.ProjectCode, mapError(err))
	}
	return nil
}

func (q *queries) UpdateProject(ctx context.Context, p *models.Project) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE projects SET
			name = $1, description = $2, status = $3, priority = $4,
			start_date = $5, end_date = $6, estimated_end_date = $7,
			budget = $8, actual_cost = $9, client_name = $10, technology_stack = $11,
			team_size = $12, completion_percentage = $13, updated_at = $14, is_active = $15
		WHERE project_id = $16`,
		p.Name, p.Description, string(p.Status), string(p.Priority),
		p.StartDate.Time(), dateArg(p.EndDate), dateArg(p.EstimatedEndDate),
		decimalArg(p.Budget), decimalArg(p.ActualCost), p.ClientName, p.TechnologyStack,
		p.TeamSize, p.CompletionPercentage, p.UpdatedAt, p.IsActive,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project %d: %w", p.ID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update project %d: %w", p.ID, repository.ErrNotFound)
	}
	return nil
}

func (q *queries) AddAssignment(ctx context.Context, projectID, pmID int64) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO project_manager_assignments (project_id, pm_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, projectID, pmID)
	if err != nil {
		return fmt.Errorf("assign manager %d to project %d: %w", pmID, projectID, mapError(err))
	}
	return nil
}

func (q *queries) RemoveAssignment(ctx context.Context, projectID, pmID int64) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM project_manager_assignments
		WHERE project_id = $1 AND pm_id = $2`, projectID, pmID)
	if err != nil {
		return fmt.Errorf("remove manager %d from project %d: %w", pmID, projectID, err)
	}
	return nil
}

// attachManagers loads the assignment table for all given projects in one query
func (q *queries) attachManagers(ctx context.Context, projects []models.Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]int64, len(projects))
	index := make(map[int64]int, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
		index[projects[i].ID] = i
		projects[i].Managers = []models.ProjectManager{}
	}

	rows, err := q.db.Query(ctx, `
		SELECT a.project_id,`+managerColumns+`
		FROM project_manager_assignments a
		JOIN project_managers m ON m.pm_id = a.pm_id
		WHERE a.project_id = ANY($1)
		ORDER BY a.project_id, m.pm_id`, ids)
	if err != nil {
		return fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var projectID int64
		pm, err := scanManager(rows, &projectID)
		if err != nil {
			return fmt.Errorf("scan assignment: %w", err)
		}
		i := index[projectID]
		projects[i].Managers = append(projects[i].Managers, pm)
	}
	return rows.Err()
}
