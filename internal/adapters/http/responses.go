package http

import (
	"github.com/taskvault/core/internal/domain/entities"
)

// MessageResponse is a plain confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse is the outward shape of a user; the password hash never
// appears here.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newUserResponse(user *entities.User) UserResponse {
	return UserResponse{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
	}
}

// AuthResponse wraps a user after register/login; the token itself
// travels only in the cookie.
type AuthResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task *entities.Task `json:"task"`
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// TaskListResponse is the body of GET /tasks.
type TaskListResponse struct {
	Tasks      []*entities.Task `json:"tasks"`
	Pagination Pagination       `json:"pagination"`
}
