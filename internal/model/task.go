package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Priority of a task.
type Priority string

// Recurrence rule of a task.
type Recurrence string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"

	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"

	DefaultCategory = "personal"

	// DateLayout is the calendar date format used by Task.Date.
	DateLayout = "2006-01-02"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Valid reports whether r is one of the known recurrence rules.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Task is one entry of a user's task collection. The position inside the
// collection is the display order.
type Task struct {
	ID         int64      `json:"id"`
	Text       string     `json:"text"`
	Date       *string    `json:"date"`
	Completed  bool       `json:"completed"`
	Priority   Priority   `json:"priority"`
	Category   string     `json:"category"`
	Notes      *string    `json:"notes"`
	Recurrence Recurrence `json:"recurrence"`
}

// Normalize fills defaults for records written by older deployments that
// did not carry every field.
func (t *Task) Normalize() {
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if t.Recurrence == "" {
		t.Recurrence = RecurrenceNone
	}
}

// ParseDate parses a calendar date in DateLayout.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// NewTask holds the client supplied fields of a task being created.
type NewTask struct {
	Text       string
	Date       *string
	Completed  bool
	Priority   Priority
	Category   string
	Notes      *string
	Recurrence Recurrence
}

// TaskPatch is a partial update. Only fields present in the request body are
// applied; Date and Notes distinguish an explicit null from an absent key.
type TaskPatch struct {
	Text       *string     `json:"text"`
	Date       OptionalStr `json:"date"`
	Completed  *bool       `json:"completed"`
	Priority   *Priority   `json:"priority"`
	Category   *string     `json:"category"`
	Notes      OptionalStr `json:"notes"`
	Recurrence *Recurrence `json:"recurrence"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Text == nil && !p.Date.Set && p.Completed == nil && p.Priority == nil &&
		p.Category == nil && !p.Notes.Set && p.Recurrence == nil
}

// OptionalStr is a nullable string that remembers whether its key was present.
type OptionalStr struct {
	Set   bool
	Value *string
}

// Some returns a present, non-null OptionalStr.
func Some(s string) OptionalStr {
	return OptionalStr{Set: true, Value: &s}
}

// Null returns a present, null OptionalStr.
func Null() OptionalStr {
	return OptionalStr{Set: true}
}

// UnmarshalJSON is only invoked for keys present in the document, including
// explicit nulls.
func (o *OptionalStr) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// MarshalJSON renders the value or null.
func (o OptionalStr) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
