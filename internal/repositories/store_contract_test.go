package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"todo-tracker/internal/models"
	"todo-tracker/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func newTask(title string, status models.TaskStatus, offset int) *models.Task {
	created := baseTime.Add(time.Duration(offset) * time.Minute)
	return &models.Task{
		ID:        uuid.Must(uuid.NewV4()),
		Title:     title,
		Status:    status,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// runStoreContract exercises behaviour every TaskStore must share. The store
// must be empty when passed in.
func runStoreContract(t *testing.T, store repositories.TaskStore) {
	ctx := context.Background()

	titles := []string{"Buy milk", "Walk dog", "Buy MILK powder", "100% done", "under_score", "Read book", "Oat milk"}
	created := make([]*models.Task, 0, len(titles))
	for i, title := range titles {
		task := newTask(title, models.StatusPending, i)
		require.NoError(t, store.Create(ctx, task))
		created = append(created, task)
	}

	t.Run("find by id", func(t *testing.T) {
		found, err := store.FindByID(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Buy milk", found.Title)
		assert.Equal(t, models.StatusPending, found.Status)
		assert.True(t, found.CreatedAt.Equal(created[0].CreatedAt))
	})

	t.Run("find missing id", func(t *testing.T) {
		_, err := store.FindByID(ctx, uuid.Must(uuid.NewV4()))
		assert.ErrorIs(t, err, repositories.ErrTaskNotFound)
	})

	t.Run("list sorts newest first and pages", func(t *testing.T) {
		page1, total, err := store.List(ctx, repositories.ListQuery{Page: 1, Limit: 3})
		require.NoError(t, err)
		assert.EqualValues(t, len(titles), total)
		require.Len(t, page1, 3)
		assert.Equal(t, "Oat milk", page1[0].Title)
		assert.Equal(t, "Read book", page1[1].Title)
		assert.Equal(t, "under_score", page1[2].Title)

		page3, total, err := store.List(ctx, repositories.ListQuery{Page: 3, Limit: 3})
		require.NoError(t, err)
		assert.EqualValues(t, len(titles), total)
		require.Len(t, page3, 1)
		assert.Equal(t, "Buy milk", page3[0].Title)
	})

	t.Run("page beyond the end is empty with full total", func(t *testing.T) {
		tasks, total, err := store.List(ctx, repositories.ListQuery{Page: 5, Limit: 6})
		require.NoError(t, err)
		assert.Empty(t, tasks)
		assert.EqualValues(t, len(titles), total)
	})

	t.Run("search is case-insensitive substring and total is filtered", func(t *testing.T) {
		tasks, total, err := store.List(ctx, repositories.ListQuery{Page: 1, Limit: 2, Search: "milk"})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, tasks, 2)
		assert.Equal(t, "Oat milk", tasks[0].Title)
		assert.Equal(t, "Buy MILK powder", tasks[1].Title)
	})

	t.Run("search treats wildcard characters literally", func(t *testing.T) {
		total, err := store.Count(ctx, "%")
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)

		total, err = store.Count(ctx, "d_r")
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)

		total, err = store.Count(ctx, ".*")
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)
	})

	t.Run("update existing", func(t *testing.T) {
		task := *created[1]
		task.Status = models.StatusCompleted
		task.UpdatedAt = task.UpdatedAt.Add(time.Hour)
		require.NoError(t, store.Update(ctx, &task))

		found, err := store.FindByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, found.Status)
		assert.True(t, found.UpdatedAt.Equal(task.UpdatedAt))
		assert.True(t, found.CreatedAt.Equal(created[1].CreatedAt))
	})

	t.Run("update missing", func(t *testing.T) {
		err := store.Update(ctx, newTask("ghost", models.StatusPending, 99))
		assert.ErrorIs(t, err, repositories.ErrTaskNotFound)
	})

	t.Run("delete is not-found on every repeat", func(t *testing.T) {
		id := created[2].ID
		require.NoError(t, store.Delete(ctx, id))
		assert.ErrorIs(t, store.Delete(ctx, id), repositories.ErrTaskNotFound)
		assert.ErrorIs(t, store.Delete(ctx, id), repositories.ErrTaskNotFound)

		total, err := store.Count(ctx, "")
		require.NoError(t, err)
		assert.EqualValues(t, len(titles)-1, total)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, store.Health(ctx))
	})
}

func TestListQuery_Offset(t *testing.T) {
	tests := []struct {
		query    repositories.ListQuery
		expected int
	}{
		{repositories.ListQuery{Page: 1, Limit: 6}, 0},
		{repositories.ListQuery{Page: 2, Limit: 6}, 6},
		{repositories.ListQuery{Page: 4, Limit: 10}, 30},
		{repositories.ListQuery{Page: 0, Limit: 10}, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d limit %d", tt.query.Page, tt.query.Limit), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.query.Offset())
		})
	}
}
