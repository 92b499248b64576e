package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog"

	"todoapp/internal/auth"
	"todoapp/internal/errors"
	"todoapp/internal/model"
	"todoapp/internal/repository"
)

// ImportResult summarizes a legacy import.
type ImportResult struct {
	Users        int `json:"users"`
	SkippedUsers int `json:"skippedUsers"`
	Tasks        int `json:"tasks"`
	SkippedTasks int `json:"skippedTasks"`
}

type legacyCredential struct {
	Password string `json:"password"`
}

// ImportLegacy loads users.json ({username: {"password": hash}}) and
// tasks.json ({username: [task...]}) documents into store. Existing accounts
// are never overwritten; their legacy tasks are skipped along with tasks of
// unknown users. tasks may be nil.
func ImportLegacy(ctx context.Context, store repository.Store, users, tasks io.Reader, dryRun bool, log zerolog.Logger) (ImportResult, error) {
	var res ImportResult

	var userDoc map[string]legacyCredential
	if err := json.NewDecoder(users).Decode(&userDoc); err != nil {
		return res, fmt.Errorf("decode users document: %w", err)
	}
	taskDoc := map[string][]model.Task{}
	if tasks != nil {
		if err := json.NewDecoder(tasks).Decode(&taskDoc); err != nil {
			return res, fmt.Errorf("decode tasks document: %w", err)
		}
	}

	usernames := make([]string, 0, len(userDoc))
	for u := range userDoc {
		usernames = append(usernames, u)
	}
	sort.Strings(usernames)

	imported := make(map[string]bool, len(usernames))
	for _, username := range usernames {
		hash := userDoc[username].Password
		if username == "" || !auth.IsPasswordHash(hash) {
			log.Warn().Str("username", username).Msg("skip user without a bcrypt hash")
			res.SkippedUsers++
			continue
		}
		if dryRun {
			if _, err := store.Users().FindByUsername(ctx, username); err == nil {
				res.SkippedUsers++
				continue
			}
		} else {
			err := store.Users().Create(ctx, &model.User{Username: username, PasswordHash: hash})
			if errors.Is(err, errors.ErrUsernameTaken) {
				log.Info().Str("username", username).Msg("skip existing user")
				res.SkippedUsers++
				continue
			}
			if err != nil {
				return res, err
			}
		}
		imported[username] = true
		res.Users++
	}

	for username, list := range taskDoc {
		if !imported[username] {
			res.SkippedTasks += len(list)
			continue
		}

		kept := make([]model.Task, 0, len(list))
		seen := make(map[int64]bool, len(list))
		for _, t := range list {
			if seen[t.ID] || t.Text == "" {
				res.SkippedTasks++
				continue
			}
			seen[t.ID] = true
			t.Normalize()
			kept = append(kept, t)
		}

		if !dryRun {
			if err := store.Tasks().Save(ctx, username, kept); err != nil {
				return res, err
			}
		}
		res.Tasks += len(kept)
	}

	log.Info().
		Int("users", res.Users).
		Int("skipped_users", res.SkippedUsers).
		Int("tasks", res.Tasks).
		Int("skipped_tasks", res.SkippedTasks).
		Bool("dry_run", dryRun).
		Msg("legacy import finished")
	return res, nil
}
