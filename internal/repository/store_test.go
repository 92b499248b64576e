package repository

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"todoapp/internal/errors"
	"todoapp/internal/model"
)

func strPtr(s string) *string { return &s }

func newFileStore(t *testing.T) Store {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func newRedisStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "test:")
}

func newGormStore(t *testing.T) Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)
	s, err := NewGormStore(gdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var backends = []struct {
	name string
	open func(t *testing.T) Store
}{
	{"file", newFileStore},
	{"redis", newRedisStore},
	{"gorm", newGormStore},
}

func TestStore_Credentials(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			users := s.Users()

			require.NoError(t, users.Create(ctx, &model.User{Username: "bob", PasswordHash: "h1"}))
			require.NoError(t, users.Create(ctx, &model.User{Username: "alice", PasswordHash: "h2"}))

			err := users.Create(ctx, &model.User{Username: "bob", PasswordHash: "other"})
			assert.ErrorIs(t, err, errors.ErrUsernameTaken)

			got, err := users.FindByUsername(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, "h1", got.PasswordHash)

			_, err = users.FindByUsername(ctx, "carol")
			assert.ErrorIs(t, err, errors.ErrUserNotFound)

			require.NoError(t, users.UpdatePasswordHash(ctx, "bob", "h3"))
			got, err = users.FindByUsername(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, "h3", got.PasswordHash)
			assert.ErrorIs(t, users.UpdatePasswordHash(ctx, "carol", "h"), errors.ErrUserNotFound)

			list, err := users.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "alice", list[0].Username)
			assert.Equal(t, "bob", list[1].Username)
		})
	}
}

func TestStore_UsernamesAreCaseSensitive(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			require.NoError(t, s.Users().Create(ctx, &model.User{Username: "alice", PasswordHash: "lower"}))
			require.NoError(t, s.Users().Create(ctx, &model.User{Username: "Alice", PasswordHash: "upper"}))
			require.NoError(t, s.Tasks().Save(ctx, "alice", []model.Task{{ID: 1, Text: "mine"}}))

			_, err := s.Users().FindByUsername(ctx, "ALICE")
			assert.ErrorIs(t, err, errors.ErrUserNotFound)
			got, err := s.Users().FindByUsername(ctx, "Alice")
			require.NoError(t, err)
			assert.Equal(t, "upper", got.PasswordHash)

			tasks, err := s.Tasks().Load(ctx, "Alice")
			require.NoError(t, err)
			assert.Empty(t, tasks)

			assert.ErrorIs(t, s.DeleteUser(ctx, "ALICE"), errors.ErrUserNotFound)
			require.NoError(t, s.DeleteUser(ctx, "Alice"))
			tasks, err = s.Tasks().Load(ctx, "alice")
			require.NoError(t, err)
			assert.Len(t, tasks, 1)
		})
	}
}

func TestBinaryKeyStatements(t *testing.T) {
	assert.Empty(t, binaryKeyStatements("sqlite"))

	stmts := binaryKeyStatements("mysql")
	require.Len(t, stmts, 3)
	for i, table := range []string{usersTable, adminsTable, taskCollectionsTable} {
		assert.Contains(t, stmts[i], "`"+table+"`")
		assert.Contains(t, stmts[i], "COLLATE utf8mb4_bin")
	}
	assert.Contains(t, mysqlTableOptions, "COLLATE=utf8mb4_bin")
}

func TestStore_AdminNamespaceIsSeparate(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			require.NoError(t, s.Admins().Create(ctx, &model.User{Username: "root", PasswordHash: "h"}))
			require.NoError(t, s.Users().Create(ctx, &model.User{Username: "root", PasswordHash: "u"}))

			_, err := s.Users().FindByUsername(ctx, "root")
			require.NoError(t, err)
			admins, err := s.Admins().List(ctx)
			require.NoError(t, err)
			require.Len(t, admins, 1)
			assert.Equal(t, "h", admins[0].PasswordHash)
		})
	}
}

func TestStore_Tasks(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			tasks := s.Tasks()

			empty, err := tasks.Load(ctx, "alice")
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			in := []model.Task{
				{ID: 2, Text: "second", Priority: model.PriorityHigh, Category: "work", Recurrence: model.RecurrenceNone},
				{ID: 1, Text: "first", Date: strPtr("2024-03-01"), Notes: strPtr("n"), Priority: model.PriorityLow, Category: "personal", Recurrence: model.RecurrenceWeekly},
			}
			require.NoError(t, tasks.Save(ctx, "alice", in))

			out, err := tasks.Load(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, in, out)

			require.NoError(t, tasks.Save(ctx, "alice", in[:1]))
			out, err = tasks.Load(ctx, "alice")
			require.NoError(t, err)
			assert.Len(t, out, 1)

			other, err := tasks.Load(ctx, "bob")
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestStore_DeleteUser(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			require.NoError(t, s.Users().Create(ctx, &model.User{Username: "alice", PasswordHash: "h"}))
			require.NoError(t, s.Tasks().Save(ctx, "alice", []model.Task{{ID: 1, Text: "x", Priority: model.PriorityMedium, Category: "personal", Recurrence: model.RecurrenceNone}}))

			require.NoError(t, s.DeleteUser(ctx, "alice"))

			_, err := s.Users().FindByUsername(ctx, "alice")
			assert.ErrorIs(t, err, errors.ErrUserNotFound)
			tasks, err := s.Tasks().Load(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, tasks)

			assert.ErrorIs(t, s.DeleteUser(ctx, "alice"), errors.ErrUserNotFound)
			assert.NoError(t, s.Ping(ctx))
		})
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Users().Create(ctx, &model.User{Username: "alice", PasswordHash: "h"}))
	require.NoError(t, s.Tasks().Save(ctx, "alice", []model.Task{{ID: 7, Text: "x", Priority: model.PriorityMedium, Category: "personal", Recurrence: model.RecurrenceNone}}))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	u, err := reopened.Users().FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h", u.PasswordHash)
	tasks, err := reopened.Tasks().Load(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(7), tasks[0].ID)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStore_ReadsLegacyDocuments(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, usersFile), []byte(`{"alice":{"password":"$2a$10$hash"}}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, tasksFile), []byte(`{"alice":[{"id":1,"text":"old","completed":false}]}`), 0o600))

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	u, err := s.Users().FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$hash", u.PasswordHash)

	tasks, err := s.Tasks().Load(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.PriorityMedium, tasks[0].Priority)
	assert.Equal(t, model.DefaultCategory, tasks[0].Category)
	assert.Equal(t, model.RecurrenceNone, tasks[0].Recurrence)
}

func TestFileStore_CorruptDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, tasksFile), []byte(`{not json`), 0o600))

	_, err := NewFileStore(dir)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrStorage))
}
