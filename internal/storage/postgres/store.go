package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/storage"
)

// Ensure Store satisfies the storage interfaces at compile time.
var (
	_ storage.UserStore = (*Store)(nil)
	_ storage.TaskStore = (*Store)(nil)
)

const pgUniqueViolation = "23505"

const userColumns = "id, name, email, age, password_hash, session_tokens, created_at"

// Store provides Postgres-backed persistence for users and tasks.
//
// Session token lists are mutated with single-statement array operations, so
// each read-modify-write of a user's sessions is atomic on the server side;
// concurrent logins and logouts for the same user cannot lose updates.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			age BIGINT NOT NULL DEFAULT 0,
			password_hash TEXT NOT NULL,
			session_tokens TEXT[] NOT NULL DEFAULT '{}',
			avatar BYTEA,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS tasks_owner_idx ON tasks (owner_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a new user row with a generated id.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	user.ID = uuid.NewString()
	query := `INSERT INTO users (id, name, email, age, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, user.ID, user.Name, user.Email, user.Age, user.PasswordHash)
	return scanUser(row)
}

// GetUser fetches a user by id, without the avatar blob.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByEmail fetches a user by their normalized email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// UpdateUser applies a partial update and returns the resulting row.
func (s *Store) UpdateUser(ctx context.Context, id string, update storage.UserUpdate) (models.User, error) {
	var age *int64
	if update.Age != nil {
		v := int64(*update.Age)
		age = &v
	}
	query := `UPDATE users SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			age = COALESCE($4, age),
			password_hash = COALESCE($5, password_hash)
		WHERE id = $1
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, id, update.Name, update.Email, age, update.PasswordHash)
	return scanUser(row)
}

// DeleteUser removes the user row and returns it. Task rows cascade at the
// database level as well.
func (s *Store) DeleteUser(ctx context.Context, id string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING `+userColumns, id)
	return scanUser(row)
}

// AddSessionToken appends a token to the user's session list.
func (s *Store) AddSessionToken(ctx context.Context, id, token string) error {
	return s.execOnUser(ctx,
		`UPDATE users SET session_tokens = array_append(session_tokens, $2) WHERE id = $1`, id, token)
}

// RemoveSessionToken removes exactly the matching token.
func (s *Store) RemoveSessionToken(ctx context.Context, id, token string) error {
	return s.execOnUser(ctx,
		`UPDATE users SET session_tokens = array_remove(session_tokens, $2) WHERE id = $1`, id, token)
}

// ClearSessionTokens empties the user's session list.
func (s *Store) ClearSessionTokens(ctx context.Context, id string) error {
	return s.execOnUser(ctx, `UPDATE users SET session_tokens = '{}' WHERE id = $1`, id)
}

// SetAvatar replaces the stored avatar bytes.
func (s *Store) SetAvatar(ctx context.Context, id string, data []byte) error {
	return s.execOnUser(ctx, `UPDATE users SET avatar = $2 WHERE id = $1`, id, data)
}

// ClearAvatar removes the stored avatar entirely.
func (s *Store) ClearAvatar(ctx context.Context, id string) error {
	return s.execOnUser(ctx, `UPDATE users SET avatar = NULL WHERE id = $1`, id)
}

// GetAvatar returns the avatar bytes. A missing user and a user without an
// avatar are the same ErrNotFound.
func (s *Store) GetAvatar(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT avatar FROM users WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if data == nil {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

// CreateTask inserts a new task row with a generated id.
func (s *Store) CreateTask(ctx context.Context, task models.Task) (models.Task, error) {
	task.ID = uuid.NewString()
	query := `INSERT INTO tasks (id, description, completed, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, description, completed, owner_id, created_at`
	row := s.pool.QueryRow(ctx, query, task.ID, task.Description, task.Completed, task.OwnerID)
	return scanTask(row)
}

// GetTask fetches a task by id within the owner's scope.
func (s *Store) GetTask(ctx context.Context, id, ownerID string) (models.Task, error) {
	query := `SELECT id, description, completed, owner_id, created_at
		FROM tasks WHERE id = $1 AND owner_id = $2`
	return scanTask(s.pool.QueryRow(ctx, query, id, ownerID))
}

// ListTasks returns the owner's tasks in creation order, narrowed by filter.
func (s *Store) ListTasks(ctx context.Context, ownerID string, filter storage.TaskFilter) ([]models.Task, error) {
	query := `SELECT id, description, completed, owner_id, created_at FROM tasks WHERE owner_id = $1`
	args := []any{ownerID}
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		query += fmt.Sprintf(" AND completed = $%d", len(args))
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Description, &t.Completed, &t.OwnerID, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask applies a partial update within the owner's scope.
func (s *Store) UpdateTask(ctx context.Context, id, ownerID string, update storage.TaskUpdate) (models.Task, error) {
	query := `UPDATE tasks SET
			description = COALESCE($3, description),
			completed = COALESCE($4, completed)
		WHERE id = $1 AND owner_id = $2
		RETURNING id, description, completed, owner_id, created_at`
	row := s.pool.QueryRow(ctx, query, id, ownerID, update.Description, update.Completed)
	return scanTask(row)
}

// DeleteTask removes a task within the owner's scope and returns it.
func (s *Store) DeleteTask(ctx context.Context, id, ownerID string) (models.Task, error) {
	query := `DELETE FROM tasks WHERE id = $1 AND owner_id = $2
		RETURNING id, description, completed, owner_id, created_at`
	return scanTask(s.pool.QueryRow(ctx, query, id, ownerID))
}

// DeleteTasksByOwner removes every task owned by the user.
func (s *Store) DeleteTasksByOwner(ctx context.Context, ownerID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE owner_id = $1`, ownerID)
	return err
}

func (s *Store) execOnUser(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Age, &user.PasswordHash, &user.SessionTokens, &user.CreatedAt)
	if err != nil {
		return models.User{}, mapError(err)
	}
	return user, nil
}

func scanTask(row pgx.Row) (models.Task, error) {
	var task models.Task
	err := row.Scan(&task.ID, &task.Description, &task.Completed, &task.OwnerID, &task.CreatedAt)
	if err != nil {
		return models.Task{}, mapError(err)
	}
	return task, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return storage.ErrAlreadyExists
	}
	return err
}
