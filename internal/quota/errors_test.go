package quota

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapTxErrorClassifiesConflicts(t *testing.T) {
	cases := []struct {
		name      string
		input     error
		wantCode  string
		retryable bool
	}{
		{
			name:      "postgres serialization failure",
			input:     &pgconn.PgError{Code: "40001", Message: "could not serialize access"},
			wantCode:  CodeTransactionConflict,
			retryable: true,
		},
		{
			name:      "postgres deadlock",
			input:     &pgconn.PgError{Code: "40P01", Message: "deadlock detected"},
			wantCode:  CodeTransactionConflict,
			retryable: true,
		},
		{
			name:      "wrapped postgres serialization failure",
			input:     fmt.Errorf("create member: %w", &pgconn.PgError{Code: "40001"}),
			wantCode:  CodeTransactionConflict,
			retryable: true,
		},
		{
			name:      "sqlite busy",
			input:     errors.New("database is locked (5) (SQLITE_BUSY)"),
			wantCode:  CodeTransactionConflict,
			retryable: true,
		},
		{
			name:      "sqlite table locked",
			input:     errors.New("database table is locked (6) (SQLITE_LOCKED)"),
			wantCode:  CodeTransactionConflict,
			retryable: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := MapTxError(tc.input)
			if ErrCode(mapped) != tc.wantCode {
				t.Fatalf("expected code %s, got %v", tc.wantCode, mapped)
			}
			if IsRetryable(mapped) != tc.retryable {
				t.Fatalf("expected retryable=%v, got %v", tc.retryable, mapped)
			}
		})
	}
}

func TestMapTxErrorPassesCodedErrorsThrough(t *testing.T) {
	coded := newError(CodeInsufficientOrgQuota, "org quota too low")
	if mapped := MapTxError(coded); mapped != coded {
		t.Fatalf("expected coded error returned as-is, got %v", mapped)
	}
}

func TestMapTxErrorLeavesOtherErrorsUnchanged(t *testing.T) {
	if mapped := MapTxError(nil); mapped != nil {
		t.Fatalf("expected nil passthrough, got %v", mapped)
	}

	plain := errors.New("connection refused")
	if mapped := MapTxError(plain); mapped != plain {
		t.Fatalf("expected plain error unchanged, got %v", mapped)
	}

	pgOther := &pgconn.PgError{Code: "23505", Message: "unique violation"}
	mapped := MapTxError(pgOther)
	if ErrCode(mapped) != "" {
		t.Fatalf("expected non-conflict postgres error uncoded, got %v", mapped)
	}
}
