package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskvault/core/internal/domain/entities"
)

// AuthService interface for authentication operations
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*entities.User, error)
	Login(ctx context.Context, req LoginRequest) (*entities.User, error)
}

// TaskService interface for task management operations. Every method
// takes the owner extracted from the verified token; the service and
// repository below it enforce that scope unconditionally.
type TaskService interface {
	CreateTask(ctx context.Context, owner uuid.UUID, req CreateTaskRequest) (*entities.Task, error)
	GetTask(ctx context.Context, id, owner uuid.UUID) (*entities.Task, error)
	UpdateTask(ctx context.Context, id, owner uuid.UUID, req UpdateTaskRequest) (*entities.Task, error)
	DeleteTask(ctx context.Context, id, owner uuid.UUID) error
	ListTasks(ctx context.Context, owner uuid.UUID, req ListTasksRequest) ([]*entities.Task, int64, error)
}

// Request/Response Types

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateTaskRequest struct {
	Title       string              `json:"title" validate:"required,min=1,max=200"`
	Description string              `json:"description" validate:"max=2000"`
	Status      entities.TaskStatus `json:"status" validate:"omitempty,oneof=todo in-progress done"`
}

// UpdateTaskRequest is a partial patch: nil fields stay untouched. An
// explicit empty description clears the stored value.
type UpdateTaskRequest struct {
	Title       *string              `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string              `json:"description" validate:"omitempty,max=2000"`
	Status      *entities.TaskStatus `json:"status" validate:"omitempty,oneof=todo in-progress done"`
}

type ListTasksRequest struct {
	Page     int    `query:"page"`
	PageSize int    `query:"limit"`
	Status   string `query:"status"`
	Search   string `query:"search"`
}
