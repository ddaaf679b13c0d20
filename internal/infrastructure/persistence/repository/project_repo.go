package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ProjectRepository implements port.ProjectRepository
type ProjectRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB, logger *zap.Logger) port.ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a project. Projects are owned elsewhere; this exists for provisioning.
func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	query := `
		INSERT INTO projects (name, budget, status, created_at)
		VALUES (?, ?, ?, ?)
	`

	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now()
	}
	if project.Status == "" {
		project.Status = "ACTIVE"
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		project.Name,
		project.Budget.String(),
		project.Status,
		formatTime(project.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create project", zap.String("name", project.Name), zap.Error(err))
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	project.ID = id
	return nil
}

// GetByID retrieves a project by ID, returning nil when it does not exist
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*entity.Project, error) {
	query := `SELECT id, name, budget, status, created_at FROM projects WHERE id = ?`

	project, err := scanProject(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get project", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// List returns all projects ordered by ID
func (r *ProjectRepository) List(ctx context.Context) ([]*entity.Project, error) {
	query := `SELECT id, name, budget, status, created_at FROM projects ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list projects", zap.Error(err))
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*entity.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func scanProject(s scanner) (*entity.Project, error) {
	var p entity.Project
	var budget, createdAt string
	if err := s.Scan(&p.ID, &p.Name, &budget, &p.Status, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if p.Budget, err = parseDecimal(budget); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.ProjectRepository = (*ProjectRepository)(nil)
