package service

import (
	"fmt"

	"todoapp/internal/model"
)

// NextOccurrence returns the date following date under rule. Monthly
// advances the month and lets the calendar normalize overflowing days, so
// 2025-01-31 becomes 2025-03-03.
func NextOccurrence(date string, rule model.Recurrence) (string, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", date, err)
	}
	switch rule {
	case model.RecurrenceDaily:
		d = d.AddDate(0, 0, 1)
	case model.RecurrenceWeekly:
		d = d.AddDate(0, 0, 7)
	case model.RecurrenceMonthly:
		d = d.AddDate(0, 1, 0)
	default:
		return "", fmt.Errorf("recurrence %q has no next occurrence", rule)
	}
	return d.Format(model.DateLayout), nil
}

// successor builds the task spawned by completing t, or returns nil when
// completion does not recur.
func successor(t model.Task) (*model.Task, error) {
	if t.Recurrence == model.RecurrenceNone || t.Date == nil {
		return nil, nil
	}
	next, err := NextOccurrence(*t.Date, t.Recurrence)
	if err != nil {
		return nil, err
	}
	s := t
	s.Date = &next
	s.Completed = false
	if t.Notes != nil {
		notes := *t.Notes
		s.Notes = &notes
	}
	return &s, nil
}
