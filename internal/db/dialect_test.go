package db

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openSQLiteConn(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dialect_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	return conn
}

func TestDialectDetection(t *testing.T) {
	conn := openSQLiteConn(t)
	if got := DialectName(conn); got != DialectSQLite {
		t.Fatalf("expected dialect %q, got %q", DialectSQLite, got)
	}
	if !IsSQLite(conn) {
		t.Fatal("expected IsSQLite to report true")
	}
	if got := DialectName(nil); got != "" {
		t.Fatalf("expected empty dialect for nil conn, got %q", got)
	}
}

func TestSerializableTxOptionsPerDialect(t *testing.T) {
	conn := openSQLiteConn(t)
	if got := SerializableTxOptions(conn); got != nil {
		t.Fatalf("expected nil tx options on sqlite, got %+v", got)
	}
	if got := SerializableTxOptions(nil); got == nil || got.Isolation != sql.LevelSerializable {
		t.Fatalf("expected serializable tx options, got %+v", got)
	}
}

func TestLockForUpdateOmittedOnSQLite(t *testing.T) {
	conn := openSQLiteConn(t)
	locked := LockForUpdate(conn)
	if locked != conn {
		t.Fatal("expected sqlite connection returned unchanged")
	}
}

func TestCaseInsensitiveLikePerDialect(t *testing.T) {
	conn := openSQLiteConn(t)
	if got := CaseInsensitiveLikeExpr(conn, "users.name"); got != "LOWER(users.name) LIKE ?" {
		t.Fatalf("unexpected sqlite expression: %q", got)
	}
	if got := NormalizeLikePattern(conn, "%Sari%"); got != "%sari%" {
		t.Fatalf("expected lowered pattern on sqlite, got %q", got)
	}
	if got := CaseInsensitiveLikeExpr(nil, "users.name"); got != "users.name ILIKE ?" {
		t.Fatalf("unexpected postgres expression: %q", got)
	}
	if got := NormalizeLikePattern(nil, "%Sari%"); got != "%Sari%" {
		t.Fatalf("expected pattern untouched on postgres, got %q", got)
	}
}
