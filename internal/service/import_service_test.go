package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoapp/internal/auth"
	"todoapp/internal/model"
)

func TestImportLegacy(t *testing.T) {
	ctx := context.Background()
	hash, err := auth.HashPassword("pass")
	require.NoError(t, err)

	usersJSON := fmt.Sprintf(`{
		"alice": {"password": %q},
		"bob": {"password": %q},
		"mallory": {"password": "plaintext"}
	}`, hash, hash)
	tasksJSON := `{
		"alice": [
			{"id": 1700000000000, "text": "legacy", "date": "2024-05-01", "completed": false},
			{"id": 1700000000000, "text": "duplicate id"},
			{"id": 1700000000001, "text": ""}
		],
		"bob": [{"id": 1, "text": "bob's"}],
		"ghost": [{"id": 1, "text": "orphan"}]
	}`

	store := newTestStore(t, "bob")

	res, err := ImportLegacy(ctx, store, strings.NewReader(usersJSON), strings.NewReader(tasksJSON), false, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Users: 1, SkippedUsers: 2, Tasks: 1, SkippedTasks: 4}, res)

	svc := NewAuthService(store.Users(), auth.NewJWTService("test-secret", 0), zerolog.Nop())
	_, err = svc.Login(ctx, "alice", "pass")
	assert.NoError(t, err, "imported hashes keep working")

	tasks, err := store.Tasks().Load(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(1700000000000), tasks[0].ID)
	assert.Equal(t, model.PriorityMedium, tasks[0].Priority)
	assert.Equal(t, model.RecurrenceNone, tasks[0].Recurrence)

	bobTasks, err := store.Tasks().Load(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobTasks, "existing accounts are left untouched")
}

func TestImportLegacy_DryRun(t *testing.T) {
	ctx := context.Background()
	hash, err := auth.HashPassword("pass")
	require.NoError(t, err)
	store := newTestStore(t)

	res, err := ImportLegacy(ctx, store, strings.NewReader(fmt.Sprintf(`{"alice":{"password":%q}}`, hash)), nil, true, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Users)

	users, err := store.Users().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestImportLegacy_BadDocument(t *testing.T) {
	_, err := ImportLegacy(context.Background(), newTestStore(t), strings.NewReader(`[`), nil, false, zerolog.Nop())
	assert.Error(t, err)
}
