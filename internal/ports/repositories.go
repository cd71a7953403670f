package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskvault/core/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	// GetByEmail matches case-insensitively; emails are stored lowercased.
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}

// TaskFilter narrows task listing. UserID is mandatory: the repository
// never returns tasks outside the requesting owner's scope.
type TaskFilter struct {
	UserID   uuid.UUID
	Status   *entities.TaskStatus
	Search   string
	Page     int
	PageSize int
}

// Offset returns the row offset for the filter's page.
func (f TaskFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// TaskRepository defines the interface for task data operations.
// Descriptions cross this boundary encrypted: callers above the service
// layer never see envelope strings.
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Task, error)
	Update(ctx context.Context, task *entities.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter TaskFilter) ([]*entities.Task, error)
	Count(ctx context.Context, filter TaskFilter) (int64, error)
}
