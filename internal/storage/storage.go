package storage

import (
	"context"
	"errors"

	"github.com/taskhive/taskhive-be/internal/models"
)

// ErrNotFound indicates a record does not exist (or is not visible to the
// requesting owner, which is deliberately indistinguishable).
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict, e.g. a duplicate email.
var ErrAlreadyExists = errors.New("record already exists")

// UserUpdate is a partial update; nil fields are left untouched.
// Password changes arrive here already hashed.
type UserUpdate struct {
	Name         *string
	Email        *string
	Age          *int
	PasswordHash *string
}

// TaskUpdate is a partial update; nil fields are left untouched.
type TaskUpdate struct {
	Description *string
	Completed   *bool
}

// TaskFilter narrows task listings. Zero values mean no constraint.
type TaskFilter struct {
	Completed *bool
	Limit     int
	Skip      int
}

// UserStore captures persistence operations needed by handlers and middleware.
//
// Session token mutations must be atomic read-modify-writes on the user
// record: a concurrent login and logout for the same user must not lose
// either update.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, id string, update UserUpdate) (models.User, error)
	DeleteUser(ctx context.Context, id string) (models.User, error)

	AddSessionToken(ctx context.Context, id, token string) error
	RemoveSessionToken(ctx context.Context, id, token string) error
	ClearSessionTokens(ctx context.Context, id string) error

	SetAvatar(ctx context.Context, id string, data []byte) error
	ClearAvatar(ctx context.Context, id string) error
	GetAvatar(ctx context.Context, id string) ([]byte, error)
}

// TaskStore captures persistence for tasks. Every operation that names a task
// id also names the owner; a mismatch is reported as ErrNotFound.
type TaskStore interface {
	CreateTask(ctx context.Context, task models.Task) (models.Task, error)
	GetTask(ctx context.Context, id, ownerID string) (models.Task, error)
	ListTasks(ctx context.Context, ownerID string, filter TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, id, ownerID string, update TaskUpdate) (models.Task, error)
	DeleteTask(ctx context.Context, id, ownerID string) (models.Task, error)
	DeleteTasksByOwner(ctx context.Context, ownerID string) error
}
