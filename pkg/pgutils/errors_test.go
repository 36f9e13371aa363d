package pgutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pgconn unique", &pgconn.PgError{Code: CodeUniqueViolation}, true},
		{"wrapped pgconn unique", fmt.Errorf("insert run: %w", &pgconn.PgError{Code: CodeUniqueViolation}), true},
		{"pgconn other code", &pgconn.PgError{Code: "23503"}, false},
		{"message with sqlstate", errors.New(`duplicate key value violates unique constraint "runs_hash_key" (SQLSTATE 23505)`), true},
		{"bare code in message", errors.New("run 23505 not found"), false},
		{"other sqlstate", errors.New("insert or update violates foreign key constraint (SQLSTATE 23503)"), false},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}
