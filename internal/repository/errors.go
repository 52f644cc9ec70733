// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values let handlers distinguish failure
// scenarios without inspecting driver errors.  ErrNotFound maps to 404,
// ErrConflict and the sentinels wrapping it map to 409, ErrForbidden to 403.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write collides with existing state.
	ErrConflict = errors.New("conflict")
	// ErrForbidden is returned when the caller may not touch the row.
	ErrForbidden = errors.New("forbidden")

	ErrChurchNotFound   = fmt.Errorf("church %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrEmailExists      = fmt.Errorf("email already exists: %w", ErrConflict)
	ErrAlreadyFavorited = fmt.Errorf("church already in favorites: %w", ErrConflict)
	ErrAlreadyCheckedIn = fmt.Errorf("already checked in on this date: %w", ErrConflict)
	ErrClaimPending     = fmt.Errorf("claim already pending: %w", ErrConflict)
	ErrSourceRefExists  = fmt.Errorf("source_ref already used: %w", ErrConflict)
	ErrInvalidRefresh   = errors.New("invalid refresh token")
)

// MySQL server error numbers the repositories translate.
const (
	errDupEntry        = 1062 // ER_DUP_ENTRY
	errNoReferencedRow = 1452 // ER_NO_REFERENCED_ROW_2
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports whether err is a unique key violation.
func isDuplicate(err error) bool { return mysqlErrNumber(err) == errDupEntry }

// missingParent translates a foreign key violation on insert into the
// sentinel for the referenced table, read from the server message
// ("... FOREIGN KEY (`user_id`) REFERENCES `users` (`id`))").  It returns
// nil when err is not such a violation or names another table.
func missingParent(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != errNoReferencedRow {
		return nil
	}
	switch {
	case strings.Contains(me.Message, "REFERENCES `churches`"):
		return ErrChurchNotFound
	case strings.Contains(me.Message, "REFERENCES `users`"):
		return ErrUserNotFound
	}
	return nil
}
