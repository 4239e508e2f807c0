package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"todo-tracker/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// GormTaskRepository stores tasks in a SQL database (postgres or sqlite).
type GormTaskRepository struct {
	db *gorm.DB
}

var _ TaskStore = (*GormTaskRepository)(nil)

func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) Migrate() error {
	return r.db.AutoMigrate(&models.Task{})
}

func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *GormTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &task, nil
}

func (r *GormTaskRepository) List(ctx context.Context, query ListQuery) ([]models.Task, int64, error) {
	tasks := make([]models.Task, 0, query.Limit)
	err := r.filtered(ctx, query.Search).
		Order("created_at DESC").
		Order("id DESC").
		Offset(query.Offset()).
		Limit(query.Limit).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	total, err := r.Count(ctx, query.Search)
	if err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *GormTaskRepository) Count(ctx context.Context, search string) (int64, error) {
	var total int64
	if err := r.filtered(ctx, search).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return total, nil
}

func (r *GormTaskRepository) Update(ctx context.Context, task *models.Task) error {
	result := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]interface{}{
			"title":       task.Title,
			"description": task.Description,
			"status":      task.Status,
			"updated_at":  task.UpdatedAt,
		})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *GormTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *GormTaskRepository) Health(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *GormTaskRepository) filtered(ctx context.Context, search string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Task{})
	if search != "" {
		q = q.Where(`LOWER(title) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(search))+"%")
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes search text match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
