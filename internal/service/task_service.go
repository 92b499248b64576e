package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"todoapp/internal/cache"
	"todoapp/internal/errors"
	"todoapp/internal/model"
	"todoapp/internal/repository"
)

const taskListCacheTTL = 5 * time.Minute

// Field limits, in characters, shared by create and update.
const (
	maxTextLen     = 500
	maxCategoryLen = 64
	maxNotesLen    = 5000
)

// TaskService manages the task collection of the authenticated user.
type TaskService interface {
	List(ctx context.Context, username string) ([]model.Task, error)
	Create(ctx context.Context, username string, in model.NewTask) (*model.Task, error)
	// Update applies patch to the task. Completing a recurring task with a
	// date also appends its successor in the same write.
	Update(ctx context.Context, username string, id int64, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, username string, id int64) error
	// Reorder rewrites the collection in the given id order. Tasks whose id
	// is absent from order are dropped; the number dropped is returned.
	Reorder(ctx context.Context, username string, order []int64) (int, error)
}

type taskService struct {
	tasks repository.TaskRepository
	users repository.CredentialRepository
	cache *cache.Client
	locks *KeyedMutex
	log   zerolog.Logger
	now   func() time.Time
}

// NewTaskService builds a TaskService. locks must be shared with the admin
// service so account deletion and task writes never interleave.
func NewTaskService(store repository.Store, cache *cache.Client, locks *KeyedMutex, log zerolog.Logger) TaskService {
	return &taskService{
		tasks: store.Tasks(),
		users: store.Users(),
		cache: cache,
		locks: locks,
		log:   log.With().Str("component", "task_service").Logger(),
		now:   time.Now,
	}
}

func taskListKey(username string) string {
	return "tasks:" + username
}

func taskListVersionKey(username string) string {
	return "tasks_version:" + username
}

// invalidateTaskList drops the cached list and bumps its version so fills
// started before the write, in this or another process, are discarded.
func invalidateTaskList(ctx context.Context, c *cache.Client, username string) {
	c.Bump(ctx, taskListVersionKey(username), taskListKey(username))
}

func (s *taskService) List(ctx context.Context, username string) ([]model.Task, error) {
	var cached []model.Task
	if s.cache.GetJSON(ctx, taskListKey(username), &cached) && cached != nil {
		return cached, nil
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	// the version is read before loading: any save in between bumps it and
	// the fill is skipped
	version := s.cache.Version(ctx, taskListVersionKey(username))
	tasks, err := s.tasks.Load(ctx, username)
	if err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("load tasks")
		return nil, err
	}
	s.cache.SetJSONIfVersion(ctx, taskListKey(username), taskListVersionKey(username), version, tasks, taskListCacheTTL)
	return tasks, nil
}

func (s *taskService) Create(ctx context.Context, username string, in model.NewTask) (*model.Task, error) {
	task, err := buildTask(in)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	tasks, err := s.loadOwned(ctx, username)
	if err != nil {
		return nil, err
	}

	task.ID = s.nextID(tasks)
	tasks = append(tasks, task)
	if err := s.save(ctx, username, tasks); err != nil {
		return nil, err
	}

	s.log.Debug().Str("username", username).Int64("task_id", task.ID).Msg("task created")
	return &task, nil
}

func (s *taskService) Update(ctx context.Context, username string, id int64, patch model.TaskPatch) (*model.Task, error) {
	if err := validatePatch(&patch); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	tasks, err := s.loadOwned(ctx, username)
	if err != nil {
		return nil, err
	}

	idx := indexOf(tasks, id)
	if idx < 0 {
		return nil, errors.ErrTaskNotFound
	}

	wasCompleted := tasks[idx].Completed
	applyPatch(&tasks[idx], patch)
	updated := tasks[idx]

	if !wasCompleted && updated.Completed {
		next, err := successor(updated)
		if err != nil {
			// legacy rows may carry dates that do not parse; completion still applies
			s.log.Warn().Err(err).Str("username", username).Int64("task_id", id).Msg("skip recurrence")
		}
		if next != nil {
			next.ID = s.nextID(tasks)
			tasks = append(tasks, *next)
			s.log.Debug().Str("username", username).Int64("task_id", id).Int64("next_id", next.ID).Str("date", *next.Date).Msg("recurring task scheduled")
		}
	}

	if err := s.save(ctx, username, tasks); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *taskService) Delete(ctx context.Context, username string, id int64) error {
	unlock := s.locks.Lock(username)
	defer unlock()

	tasks, err := s.loadOwned(ctx, username)
	if err != nil {
		return err
	}

	idx := indexOf(tasks, id)
	if idx < 0 {
		return errors.ErrTaskNotFound
	}
	tasks = append(tasks[:idx], tasks[idx+1:]...)
	return s.save(ctx, username, tasks)
}

func (s *taskService) Reorder(ctx context.Context, username string, order []int64) (int, error) {
	unlock := s.locks.Lock(username)
	defer unlock()

	tasks, err := s.loadOwned(ctx, username)
	if err != nil {
		return 0, err
	}

	byID := make(map[int64]model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	reordered := make([]model.Task, 0, len(order))
	seen := make(map[int64]bool, len(order))
	for _, id := range order {
		t, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		reordered = append(reordered, t)
	}

	dropped := len(tasks) - len(reordered)
	if err := s.save(ctx, username, reordered); err != nil {
		return 0, err
	}
	if dropped > 0 {
		s.log.Warn().Str("username", username).Int("dropped", dropped).Msg("reorder dropped tasks missing from order")
	}
	return dropped, nil
}

// loadOwned loads the collection after confirming the account still exists,
// so a request racing an account deletion cannot recreate its tasks.
func (s *taskService) loadOwned(ctx context.Context, username string) ([]model.Task, error) {
	if _, err := s.users.FindByUsername(ctx, username); err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrUnauthorized
		}
		return nil, err
	}
	tasks, err := s.tasks.Load(ctx, username)
	if err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("load tasks")
		return nil, err
	}
	return tasks, nil
}

func (s *taskService) save(ctx context.Context, username string, tasks []model.Task) error {
	if err := s.tasks.Save(ctx, username, tasks); err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("save tasks")
		return err
	}
	invalidateTaskList(ctx, s.cache, username)
	return nil
}

// nextID keeps ids unique within the collection and increasing over time,
// also next to legacy millisecond-timestamp ids.
func (s *taskService) nextID(tasks []model.Task) int64 {
	id := s.now().UnixMilli()
	for _, t := range tasks {
		if t.ID >= id {
			id = t.ID + 1
		}
	}
	return id
}

func indexOf(tasks []model.Task, id int64) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func buildTask(in model.NewTask) (model.Task, error) {
	if strings.TrimSpace(in.Text) == "" {
		return model.Task{}, errors.ErrTaskTextRequired
	}
	if err := checkLengths(&in.Text, &in.Category, in.Notes); err != nil {
		return model.Task{}, err
	}
	date, err := normalizeDate(in.Date)
	if err != nil {
		return model.Task{}, err
	}

	task := model.Task{
		Text:       in.Text,
		Date:       date,
		Completed:  in.Completed,
		Priority:   in.Priority,
		Category:   in.Category,
		Notes:      normalizeNotes(in.Notes),
		Recurrence: in.Recurrence,
	}
	if task.Priority != "" && !task.Priority.Valid() {
		return model.Task{}, errors.ErrInvalidPriority
	}
	if task.Recurrence != "" && !task.Recurrence.Valid() {
		return model.Task{}, errors.ErrInvalidRecurrence
	}
	task.Normalize()
	return task, nil
}

// validatePatch checks the present fields and canonicalizes them in place.
func validatePatch(p *model.TaskPatch) error {
	if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
		return errors.ErrTaskTextRequired
	}
	var notes *string
	if p.Notes.Set {
		notes = p.Notes.Value
	}
	if err := checkLengths(p.Text, p.Category, notes); err != nil {
		return err
	}
	if p.Date.Set {
		date, err := normalizeDate(p.Date.Value)
		if err != nil {
			return err
		}
		p.Date.Value = date
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return errors.ErrInvalidPriority
	}
	if p.Recurrence != nil && !p.Recurrence.Valid() {
		return errors.ErrInvalidRecurrence
	}
	if p.Notes.Set {
		p.Notes.Value = normalizeNotes(p.Notes.Value)
	}
	return nil
}

// checkLengths enforces the field limits; nil fields are skipped.
func checkLengths(text, category, notes *string) error {
	fields := []struct {
		name  string
		value *string
		max   int
	}{
		{"text", text, maxTextLen},
		{"category", category, maxCategoryLen},
		{"notes", notes, maxNotesLen},
	}
	for _, f := range fields {
		if f.value != nil && utf8.RuneCountInString(*f.value) > f.max {
			return errors.Validation(fmt.Sprintf("%s must be at most %d characters", f.name, f.max))
		}
	}
	return nil
}

func applyPatch(t *model.Task, p model.TaskPatch) {
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.Date.Set {
		t.Date = p.Date.Value
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Category != nil {
		t.Category = *p.Category
		if t.Category == "" {
			t.Category = model.DefaultCategory
		}
	}
	if p.Notes.Set {
		t.Notes = p.Notes.Value
	}
	if p.Recurrence != nil {
		t.Recurrence = *p.Recurrence
	}
}

// normalizeDate maps "" to null and rejects anything but YYYY-MM-DD.
func normalizeDate(date *string) (*string, error) {
	if date == nil || *date == "" {
		return nil, nil
	}
	if _, err := model.ParseDate(*date); err != nil {
		return nil, errors.ErrInvalidDate
	}
	d := *date
	return &d, nil
}

func normalizeNotes(notes *string) *string {
	if notes == nil || *notes == "" {
		return nil
	}
	n := *notes
	return &n
}
