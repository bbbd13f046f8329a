package dbutils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

type closer struct {
	closed int
	err    error
}

func (c *closer) Close() error {
	c.closed++
	return c.err
}

func TestRelease(t *testing.T) {
	first := &closer{err: errors.New("first failed")}
	second := &closer{}
	third := &closer{err: errors.New("third failed")}

	err := Release(first, nil, second, (*closer)(nil), third)
	if err == nil {
		t.Fatal("expected joined error")
	}
	for _, c := range []*closer{first, second, third} {
		if c.closed != 1 {
			t.Errorf("expected every closer to be closed once, got %d", c.closed)
		}
	}
	if !strings.Contains(err.Error(), "first failed") || !strings.Contains(err.Error(), "third failed") {
		t.Errorf("expected both failures in %q", err)
	}
}

func TestRelease_Nothing(t *testing.T) {
	if err := Release(); err != nil {
		t.Errorf("Release() should not error: %v", err)
	}
	var rc io.ReadCloser
	if err := Release(rc); err != nil {
		t.Errorf("Release(nil) should not error: %v", err)
	}
}

func TestCloseStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectPrepare("SELECT 1").WillBeClosed()

	stmt, err := db.Prepare("SELECT 1")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := CloseStatement(stmt); err != nil {
		t.Errorf("first close should not error: %v", err)
	}
	if err := CloseStatement(stmt); err != nil {
		t.Errorf("second close should not error: %v", err)
	}
	if err := CloseStatement(nil); err != nil {
		t.Errorf("closing nil should not error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCloseConnection_Nil(t *testing.T) {
	if err := CloseConnection(nil); err != nil {
		t.Errorf("closing nil should not error: %v", err)
	}
}

func TestReleaseLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ok := &closer{}
	release(context.Background(), logger, "QueryMaps", &closer{err: errors.New("boom")}, ok)

	if ok.closed != 1 {
		t.Error("a failing closer should not stop the others")
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "op=QueryMaps") || !strings.Contains(out, "boom") {
		t.Errorf("unexpected log output: %s", out)
	}
}
