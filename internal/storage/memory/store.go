// Package memory provides a mutex-guarded in-process store. It backs the
// handler and middleware tests and serves as a development fallback when no
// database is configured.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/storage"
)

var (
	_ storage.UserStore = (*Store)(nil)
	_ storage.TaskStore = (*Store)(nil)
)

// Store keeps users and tasks in maps behind a single mutex, which makes
// every operation an atomic read-modify-write.
type Store struct {
	mu    sync.Mutex
	users map[string]models.User
	tasks map[string]models.Task
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users: make(map[string]models.User),
		tasks: make(map[string]models.Task),
	}
}

// CreateUser stores a new user with a generated id.
func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	s.users[user.ID] = user
	return cloneUser(user), nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return cloneUser(user), nil
}

// FindByEmail fetches a user by their normalized email.
func (s *Store) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// UpdateUser applies a partial update.
func (s *Store) UpdateUser(_ context.Context, id string, update storage.UserUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if update.Email != nil && *update.Email != user.Email {
		for otherID, other := range s.users {
			if otherID != id && other.Email == *update.Email {
				return models.User{}, storage.ErrAlreadyExists
			}
		}
		user.Email = *update.Email
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Age != nil {
		user.Age = *update.Age
	}
	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	s.users[id] = user
	return cloneUser(user), nil
}

// DeleteUser removes and returns the user.
func (s *Store) DeleteUser(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	delete(s.users, id)
	return cloneUser(user), nil
}

// AddSessionToken appends a token to the user's session list.
func (s *Store) AddSessionToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	user.SessionTokens = append(slices.Clone(user.SessionTokens), token)
	s.users[id] = user
	return nil
}

// RemoveSessionToken removes exactly the matching token.
func (s *Store) RemoveSessionToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	kept := make([]string, 0, len(user.SessionTokens))
	for _, t := range user.SessionTokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	user.SessionTokens = kept
	s.users[id] = user
	return nil
}

// ClearSessionTokens empties the user's session list.
func (s *Store) ClearSessionTokens(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	user.SessionTokens = nil
	s.users[id] = user
	return nil
}

// SetAvatar replaces the stored avatar bytes.
func (s *Store) SetAvatar(_ context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	user.Avatar = slices.Clone(data)
	s.users[id] = user
	return nil
}

// ClearAvatar removes the stored avatar.
func (s *Store) ClearAvatar(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	user.Avatar = nil
	s.users[id] = user
	return nil
}

// GetAvatar returns the avatar bytes; missing user and missing avatar are the
// same ErrNotFound.
func (s *Store) GetAvatar(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok || user.Avatar == nil {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(user.Avatar), nil
}

// CreateTask stores a new task with a generated id.
func (s *Store) CreateTask(_ context.Context, task models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = uuid.NewString()
	task.CreatedAt = time.Now()
	s.tasks[task.ID] = task
	return task, nil
}

// GetTask fetches a task within the owner's scope.
func (s *Store) GetTask(_ context.Context, id, ownerID string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return models.Task{}, storage.ErrNotFound
	}
	return task, nil
}

// ListTasks returns the owner's tasks in creation order, narrowed by filter.
func (s *Store) ListTasks(_ context.Context, ownerID string, filter storage.TaskFilter) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []models.Task{}
	for _, task := range s.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		matched = append(matched, task)
	}
	slices.SortFunc(matched, func(a, b models.Task) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	if filter.Skip > 0 {
		if filter.Skip >= len(matched) {
			return []models.Task{}, nil
		}
		matched = matched[filter.Skip:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// UpdateTask applies a partial update within the owner's scope.
func (s *Store) UpdateTask(_ context.Context, id, ownerID string, update storage.TaskUpdate) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return models.Task{}, storage.ErrNotFound
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Completed != nil {
		task.Completed = *update.Completed
	}
	s.tasks[id] = task
	return task, nil
}

// DeleteTask removes a task within the owner's scope and returns it.
func (s *Store) DeleteTask(_ context.Context, id, ownerID string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return models.Task{}, storage.ErrNotFound
	}
	delete(s.tasks, id)
	return task, nil
}

// DeleteTasksByOwner removes every task owned by the user.
func (s *Store) DeleteTasksByOwner(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, task := range s.tasks {
		if task.OwnerID == ownerID {
			delete(s.tasks, id)
		}
	}
	return nil
}

func cloneUser(u models.User) models.User {
	u.SessionTokens = slices.Clone(u.SessionTokens)
	u.Avatar = slices.Clone(u.Avatar)
	return u
}
