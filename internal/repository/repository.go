package repository

import (
	"context"

	"todoapp/internal/model"
)

// CredentialRepository persists username -> password hash records of one
// namespace (regular users or admins).
type CredentialRepository interface {
	// Create stores a new record. It returns errors.ErrUsernameTaken when
	// the username is already present.
	Create(ctx context.Context, user *model.User) error
	// FindByUsername returns errors.ErrUserNotFound for unknown usernames.
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error
	// List returns every record ordered by username.
	List(ctx context.Context) ([]model.User, error)
}

// TaskRepository persists one ordered task collection per username. The
// collection is the unit of read and of write.
type TaskRepository interface {
	// Load returns an empty collection for users without tasks.
	Load(ctx context.Context, username string) ([]model.Task, error)
	// Save replaces the whole collection atomically.
	Save(ctx context.Context, username string, tasks []model.Task) error
}

// Store groups the repositories of one storage backend.
type Store interface {
	Users() CredentialRepository
	Admins() CredentialRepository
	Tasks() TaskRepository
	// DeleteUser removes the user's credential record together with its task
	// collection. It returns errors.ErrUserNotFound for unknown usernames.
	DeleteUser(ctx context.Context, username string) error
	Ping(ctx context.Context) error
	Close() error
}

// credentialDoc is the persisted form of a credential record. The key name
// matches documents written by earlier deployments.
type credentialDoc struct {
	Password string `json:"password"`
}

func normalize(tasks []model.Task) []model.Task {
	if tasks == nil {
		return []model.Task{}
	}
	for i := range tasks {
		tasks[i].Normalize()
	}
	return tasks
}
