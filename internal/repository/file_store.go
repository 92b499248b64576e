package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"todoapp/internal/errors"
	"todoapp/internal/model"
)

const (
	usersFile  = "users.json"
	adminsFile = "admins.json"
	tasksFile  = "tasks.json"
)

// FileStore keeps every document in memory and rewrites the whole JSON file
// on each mutation. Files are replaced with write-to-temp-then-rename so a
// crash never leaves a truncated document behind.
type FileStore struct {
	dir string

	mu     sync.RWMutex
	users  map[string]credentialDoc
	admins map[string]credentialDoc
	tasks  map[string][]model.Task
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore opens (creating when needed) the documents under dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Storage("create data dir", err)
	}
	s := &FileStore{dir: dir}
	if err := readDoc(filepath.Join(dir, usersFile), &s.users); err != nil {
		return nil, err
	}
	if err := readDoc(filepath.Join(dir, adminsFile), &s.admins); err != nil {
		return nil, err
	}
	if err := readDoc(filepath.Join(dir, tasksFile), &s.tasks); err != nil {
		return nil, err
	}
	if s.users == nil {
		s.users = map[string]credentialDoc{}
	}
	if s.admins == nil {
		s.admins = map[string]credentialDoc{}
	}
	if s.tasks == nil {
		s.tasks = map[string][]model.Task{}
	}
	return s, nil
}

func readDoc(path string, dst any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Storage("read "+filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Storage("decode "+filepath.Base(path), err)
	}
	return nil
}

// writeDoc atomically replaces path with the JSON encoding of v.
func writeDoc(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Storage("encode "+filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Storage("create temp file", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Storage("write "+filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Storage("sync "+filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Storage("close "+filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Storage("replace "+filepath.Base(path), err)
	}
	return nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStore) Users() CredentialRepository {
	return &fileCredentials{store: s, file: usersFile, docs: func() map[string]credentialDoc { return s.users }, set: func(m map[string]credentialDoc) { s.users = m }}
}

func (s *FileStore) Admins() CredentialRepository {
	return &fileCredentials{store: s, file: adminsFile, docs: func() map[string]credentialDoc { return s.admins }, set: func(m map[string]credentialDoc) { s.admins = m }}
}

func (s *FileStore) Tasks() TaskRepository {
	return &fileTasks{store: s}
}

// DeleteUser rewrites tasks.json before users.json: an interrupted delete
// leaves an account with an empty list, never tasks without an owner.
func (s *FileStore) DeleteUser(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return errors.ErrUserNotFound
	}

	if _, ok := s.tasks[username]; ok {
		tasks := cloneTaskMap(s.tasks)
		delete(tasks, username)
		if err := writeDoc(s.path(tasksFile), tasks); err != nil {
			return err
		}
		s.tasks = tasks
	}

	users := cloneCredMap(s.users)
	delete(users, username)
	if err := writeDoc(s.path(usersFile), users); err != nil {
		return err
	}
	s.users = users
	return nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return errors.Storage("stat data dir", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

type fileCredentials struct {
	store *FileStore
	file  string
	docs  func() map[string]credentialDoc
	set   func(map[string]credentialDoc)
}

func (r *fileCredentials) Create(ctx context.Context, user *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.docs()[user.Username]; ok {
		return errors.ErrUsernameTaken
	}
	next := cloneCredMap(r.docs())
	next[user.Username] = credentialDoc{Password: user.PasswordHash}
	if err := writeDoc(r.store.path(r.file), next); err != nil {
		return err
	}
	r.set(next)
	return nil
}

func (r *fileCredentials) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, ok := r.docs()[username]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return &model.User{Username: username, PasswordHash: doc.Password}, nil
}

func (r *fileCredentials) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.docs()[username]; !ok {
		return errors.ErrUserNotFound
	}
	next := cloneCredMap(r.docs())
	next[username] = credentialDoc{Password: passwordHash}
	if err := writeDoc(r.store.path(r.file), next); err != nil {
		return err
	}
	r.set(next)
	return nil
}

func (r *fileCredentials) List(ctx context.Context) ([]model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	users := make([]model.User, 0, len(r.docs()))
	for name, doc := range r.docs() {
		users = append(users, model.User{Username: name, PasswordHash: doc.Password})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

type fileTasks struct {
	store *FileStore
}

func (r *fileTasks) Load(ctx context.Context, username string) ([]model.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tasks := append([]model.Task(nil), r.store.tasks[username]...)
	return normalize(tasks), nil
}

func (r *fileTasks) Save(ctx context.Context, username string, tasks []model.Task) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	next := cloneTaskMap(r.store.tasks)
	next[username] = append([]model.Task{}, tasks...)
	if err := writeDoc(r.store.path(tasksFile), next); err != nil {
		return fmt.Errorf("save tasks of %s: %w", username, err)
	}
	r.store.tasks = next
	return nil
}

func cloneCredMap(m map[string]credentialDoc) map[string]credentialDoc {
	out := make(map[string]credentialDoc, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneTaskMap copies the outer map only; collections are never mutated in
// place once stored.
func cloneTaskMap(m map[string][]model.Task) map[string][]model.Task {
	out := make(map[string][]model.Task, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
