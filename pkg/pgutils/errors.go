package pgutils

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"
)

// CodeUniqueViolation is the PostgreSQL SQLSTATE for a unique constraint violation.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const CodeUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation (23505).
func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

// hasCode checks the typed driver errors first and falls back to the
// "SQLSTATE <code>" suffix, since database/sql wrappers do not always
// preserve the concrete type.
func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	var drvErr pgdriver.Error
	if errors.As(err, &drvErr) {
		return drvErr.Field('C') == code
	}
	return strings.Contains(err.Error(), "SQLSTATE "+code)
}
