package storage

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"financetracker/internal/core"
)

// mapConstraintError converts SQLite constraint failures into validation
// errors. Uniqueness failures additionally wrap core.ErrDuplicate.
func mapConstraintError(kind core.Kind, err error) error {
	var serr *sqlite.Error
	if !errors.As(err, &serr) || serr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%s write: %w", kind, err)
	}

	msg := serr.Error()
	switch {
	case serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE,
		serr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		strings.Contains(msg, "UNIQUE constraint failed"):
		return &core.ValidationError{
			Kind:   kind,
			Field:  constraintField(msg),
			Reason: "already exists",
			Err:    core.ErrDuplicate,
		}
	case serr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
		strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return core.NewValidationError(kind, "", "still referenced by other records")
	default:
		return core.NewValidationError(kind, "", msg)
	}
}

// constraintField extracts the column from messages such as
// "UNIQUE constraint failed: period.code".
func constraintField(msg string) string {
	_, cols, ok := strings.Cut(msg, "constraint failed: ")
	if !ok {
		return ""
	}
	first, _, _ := strings.Cut(cols, ",")
	first = strings.TrimSpace(first)
	if i := strings.LastIndex(first, "."); i >= 0 {
		first = first[i+1:]
	}
	if i := strings.IndexAny(first, " )"); i >= 0 {
		first = first[:i]
	}
	return first
}
