package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskvault/core/internal/domain/entities"
	"github.com/taskvault/core/internal/infrastructure/crypto"
	"github.com/taskvault/core/internal/infrastructure/logger"
	"github.com/taskvault/core/internal/ports"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// TaskService handles task operations. Descriptions are encrypted on
// the way into the repository and decrypted on the way out; callers of
// this service only ever see cleartext.
type TaskService struct {
	taskRepo ports.TaskRepository
	cipher   *crypto.Cipher
	logger   *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(taskRepo ports.TaskRepository, cipher *crypto.Cipher, logger *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		cipher:   cipher,
		logger:   logger,
	}
}

// CreateTask creates a new task owned by the requester.
func (s *TaskService) CreateTask(ctx context.Context, owner uuid.UUID, req ports.CreateTaskRequest) (*entities.Task, error) {
	status := req.Status
	if status == "" {
		status = entities.TaskStatusTodo
	}
	if !entities.ValidTaskStatus(status) {
		return nil, entities.ErrInvalidStatus
	}

	stored := ""
	if req.Description != "" {
		envelope, err := s.cipher.Encrypt(req.Description)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt description: %w", err)
		}
		stored = envelope
	}

	task := &entities.Task{
		Title:       req.Title,
		Description: stored,
		Status:      status,
		UserID:      owner,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Infow("Task created", "task_id", task.ID, "user_id", owner)

	// The caller gets the cleartext back; ciphertext never leaves the
	// storage boundary.
	task.Description = req.Description
	return task, nil
}

// GetTask retrieves a single task, enforcing ownership.
func (s *TaskService) GetTask(ctx context.Context, id, owner uuid.UUID) (*entities.Task, error) {
	task, err := s.loadOwned(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	task.Description = s.cipher.SafeDecrypt(task.Description)
	return task, nil
}

// UpdateTask applies a partial patch. Ownership is checked before any
// field of the patch is considered.
func (s *TaskService) UpdateTask(ctx context.Context, id, owner uuid.UUID, req ports.UpdateTaskRequest) (*entities.Task, error) {
	task, err := s.loadOwned(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Status != nil {
		if !entities.ValidTaskStatus(*req.Status) {
			return nil, entities.ErrInvalidStatus
		}
		task.Status = *req.Status
	}

	cleartext := ""
	if req.Description != nil {
		// Empty clears the field; non-empty is re-encrypted under a
		// fresh nonce.
		if *req.Description == "" {
			task.Description = ""
		} else {
			envelope, err := s.cipher.Encrypt(*req.Description)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt description: %w", err)
			}
			task.Description = envelope
			cleartext = *req.Description
		}
	} else {
		cleartext = s.cipher.SafeDecrypt(task.Description)
	}

	task.UpdatedAt = time.Now()

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.logger.Infow("Task updated", "task_id", task.ID, "user_id", owner)

	task.Description = cleartext
	return task, nil
}

// DeleteTask removes a task after the ownership check. Deletion is
// unconditional once authorized.
func (s *TaskService) DeleteTask(ctx context.Context, id, owner uuid.UUID) error {
	if _, err := s.loadOwned(ctx, id, owner); err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.logger.Infow("Task deleted", "task_id", id, "user_id", owner)

	return nil
}

// ListTasks returns the owner's tasks, filtered, searched and paginated,
// newest first, together with the pre-pagination total.
func (s *TaskService) ListTasks(ctx context.Context, owner uuid.UUID, req ports.ListTasksRequest) ([]*entities.Task, int64, error) {
	filter := ports.TaskFilter{
		UserID:   owner,
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	if req.Status != "" && req.Status != "all" {
		status := entities.TaskStatus(req.Status)
		if !entities.ValidTaskStatus(status) {
			return nil, 0, entities.ErrInvalidStatus
		}
		filter.Status = &status
	}

	total, err := s.taskRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	tasks, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	for _, task := range tasks {
		task.Description = s.cipher.SafeDecrypt(task.Description)
	}

	return tasks, total, nil
}

// loadOwned loads a task and compares its owner to the requester.
// A missing id reports ErrTaskNotFound; an existing task with a
// different owner reports ErrForbidden. The two cases stay distinct by
// design.
func (s *TaskService) loadOwned(ctx context.Context, id, owner uuid.UUID) (*entities.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if task.UserID != owner {
		s.logger.LogSecurityEvent("task_ownership_violation", owner.String(), "", map[string]interface{}{
			"task_id": id.String(),
		})
		return nil, entities.ErrForbidden
	}

	return task, nil
}
