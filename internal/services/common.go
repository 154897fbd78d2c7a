package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"teamtasks/backend/internal/apperr"
)

// Optional distinguishes an absent JSON field from an explicit null.
// Set is true whenever the key was present; Value is nil for null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// notFound turns gorm's missing-row error into the API's NotFound.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(what)
	}
	return err
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// nullable unwraps p for a map-based gorm update, keeping nil as SQL NULL.
func nullable[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func requireText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperr.Invalid(field, "is required")
	}
	if utf8.RuneCountInString(value) > max {
		return "", apperr.Invalid(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return value, nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.FromString(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperr.Invalid(field, "must be a UUID")
	}
	return id, nil
}

// parseDay accepts a calendar date or an RFC 3339 timestamp. endOfDay moves a
// bare date to its last instant.
func parseDay(field, raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperr.Invalid(field, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring pattern for use with
// "LIKE ? ESCAPE '\'". Wildcards typed by the user match literally.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}
