package logbook

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fuelsync/fuelsync/internal/model"
)

// Sane input bounds. A mutation failing these is rejected before any
// state change.
const (
	maxNameLen        = 200
	maxCalories       = 10000
	maxMacroGrams     = 1000
	maxWaterML        = 10000
	maxDurationMin    = 1440
	maxBurnedCalories = 10000
)

// ErrNotFound is returned when a removal targets an entry that is not
// present in local state.
var ErrNotFound = errors.New("entry not found")

// ValidationError rejects a mutation before any state change. It is
// caller-visible; hosts surface Message directly.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func validateName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if n > maxNameLen {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", maxNameLen)}
	}
	return nil
}

func validateRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be between %d and %d", lo, hi)}
	}
	return nil
}

func validateMacro(field string, v float64) error {
	if v < 0 || v > maxMacroGrams {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be between 0 and %d", maxMacroGrams)}
	}
	return nil
}

func validateDateKey(dateKey string) error {
	if dateKey == "" {
		return nil // defaulted to today
	}
	if !model.ValidDayKey(dateKey) {
		return &ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	return nil
}

func validateMeal(meal model.MealType) error {
	if !model.ValidMealType(meal) {
		return &ValidationError{Field: "meal", Message: fmt.Sprintf("unknown meal type %q", meal)}
	}
	return nil
}
