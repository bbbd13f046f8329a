package dbutils

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var cmpSortStrings = cmpopts.SortSlices(func(a, b string) bool { return a < b })

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestQueryMaps_RoundTrip(t *testing.T) {
	conn := getTestConn(t)
	ctx := context.Background()

	n, err := Insert(ctx, conn, "INSERT INTO person (id, name) VALUES (?, ?)", 1, "a")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row affected, got %d", n)
	}

	rows, err := QueryMaps(ctx, conn, "SELECT id, name FROM person")
	if err != nil {
		t.Fatalf("QueryMaps failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if diff := cmp.Diff([]string{"id", "name"}, rows[0].Columns()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"id": int64(1), "name": "a"}, rows[0].Map()); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryMaps_Empty(t *testing.T) {
	conn := getTestConn(t)

	rows, err := QueryMaps(context.Background(), conn, "SELECT * FROM person")
	if err != nil {
		t.Fatalf("QueryMaps failed: %v", err)
	}
	if rows == nil {
		t.Fatal("an empty result should be an empty slice, not nil")
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestQueryMaps_ColumnOrder(t *testing.T) {
	db, mock := newMock(t)

	const q = "SELECT z, a, m, a FROM t WHERE id = ?"
	mock.ExpectPrepare(q).WillBeClosed().
		ExpectQuery().WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"z", "a", "m", "a"}).
			AddRow(int64(1), "first", nil, "second"))

	rows, err := QueryMaps(context.Background(), db, q, 5)
	if err != nil {
		t.Fatalf("QueryMaps failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if diff := cmp.Diff([]string{"z", "a", "m"}, row.Columns()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if !row.Value("a").Equal(Text("second")) {
		t.Errorf("a repeated label keeps the last value, got %v", row.Value("a"))
	}
	if !row.Value("m").IsNull() {
		t.Errorf("expected NULL, got %v", row.Value("m"))
	}

	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"z":1,"a":"second","m":null}` {
		t.Errorf("unexpected JSON: %s", data)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestQueryMaps_ExecutionErrorReleases(t *testing.T) {
	db, mock := newMock(t)

	const q = "SELECT * FROM t"
	mock.ExpectPrepare(q).WillBeClosed().
		ExpectQuery().WillReturnError(errors.New("relation does not exist"))

	rows, err := QueryMaps(context.Background(), db, q)
	if rows != nil {
		t.Errorf("expected nil result, got %v", rows)
	}
	if !IsExecution(err) {
		t.Errorf("expected execution error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestQueryMaps_PrepareError(t *testing.T) {
	conn := getTestConn(t)

	rows, err := QueryMaps(context.Background(), conn, "SELECT * FROM nosuch")
	if rows != nil {
		t.Errorf("expected nil result, got %v", rows)
	}
	if !IsPrepare(err) {
		t.Errorf("expected prepare error, got %v", err)
	}
}

func TestQueryMaps_NilConnection(t *testing.T) {
	var conn *Conn
	rows, err := QueryMaps(context.Background(), conn, "SELECT 1")
	if rows != nil || !IsConnection(err) {
		t.Errorf("expected nil and a connection error, got %v, %v", rows, err)
	}
}

func TestQueryMaps_RowsClosedOnScanError(t *testing.T) {
	db, mock := newMock(t)

	const q = "SELECT id FROM t"
	mock.ExpectPrepare(q).WillBeClosed().
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow(int64(1)).
			AddRow(int64(2)).
			RowError(1, errors.New("connection reset")))

	rows, err := QueryMaps(context.Background(), db, q)
	if rows != nil {
		t.Errorf("expected nil result, got %v", rows)
	}
	if !IsExecution(err) {
		t.Errorf("expected execution error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestQueryOne(t *testing.T) {
	conn := getTestConn(t)
	ctx := context.Background()

	if _, err := Insert(ctx, conn, "INSERT INTO person (id, name, age) VALUES (?, ?, ?)", 7, "Ann", 41); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	p, err := QueryOne[person](ctx, conn, "SELECT id, name, age, email FROM person WHERE id = ?", 7)
	if err != nil {
		t.Fatalf("QueryOne failed: %v", err)
	}
	if p == nil {
		t.Fatal("expected a record")
	}

	age := int64(41)
	want := person{ID: 7, Name: "Ann", Age: &age}
	if diff := cmp.Diff(want, *p, cmp.AllowUnexported(person{})); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryOne_Absent(t *testing.T) {
	conn := getTestConn(t)

	p, err := QueryOne[person](context.Background(), conn, "SELECT * FROM person WHERE id = ?", 999)
	if err != nil {
		t.Errorf("an absent row is not an error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil, got %+v", p)
	}
}

func TestQueryOne_ExactLabels(t *testing.T) {
	db, mock := newMock(t)

	type record struct {
		Name string
		ID   int64
	}

	const q = "SELECT name, ID FROM t"
	mock.ExpectPrepare(q).WillBeClosed().
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"name", "ID"}).AddRow("x", int64(3)))

	rec, err := QueryOne[record](context.Background(), db, q)
	if rec == nil {
		t.Fatalf("expected a partial record, got error %v", err)
	}
	if rec.ID != 3 {
		t.Errorf("exact label should map, got ID=%d", rec.ID)
	}
	if rec.Name != "" {
		t.Errorf("label name should not map field Name, got %q", rec.Name)
	}

	var dbErr *Error
	if !IsMapping(err) || !errors.As(err, &dbErr) {
		t.Fatalf("expected mapping error, got %v", err)
	}
	var columns []string
	for _, e := range dbErr.Cause.(interface{ Unwrap() []error }).Unwrap() {
		var ce *Error
		if errors.As(e, &ce) {
			columns = append(columns, ce.Column)
		}
	}
	if diff := cmp.Diff([]string{"name"}, columns); diff != "" {
		t.Errorf("unmapped columns mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestQueryAll(t *testing.T) {
	conn := getTestConn(t)
	ctx := context.Background()

	for i, name := range []string{"a", "b", "c"} {
		if _, err := Insert(ctx, conn, "INSERT INTO person (id, name) VALUES (?, ?)", i+1, name); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	people, err := QueryAll[person](ctx, conn, "SELECT id, name FROM person WHERE id > ? ORDER BY id", 1)
	if err != nil {
		t.Fatalf("QueryAll failed: %v", err)
	}
	var names []string
	for _, p := range people {
		names = append(names, p.Name)
	}
	if !slices.Equal(names, []string{"b", "c"}) {
		t.Errorf("expected [b c], got %v", names)
	}

	none, err := QueryAll[person](ctx, conn, "SELECT id, name FROM person WHERE id > ?", 10)
	if err != nil {
		t.Fatalf("QueryAll failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected an empty non-nil slice, got %#v", none)
	}
}

func TestQueryAllWith(t *testing.T) {
	db, mock := newMock(t)

	type item struct {
		id    int64
		label string
	}
	m := Mapping[item]{
		"id":    Field(func(it *item) *int64 { return &it.id }),
		"label": Field(func(it *item) *string { return &it.label }),
	}

	const q = "SELECT id, label, extra FROM items"
	mock.ExpectPrepare(q).WillBeClosed().
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "extra"}).
			AddRow(int64(1), "one", "x").
			AddRow(int64(2), int64(99), "y"))

	items, err := QueryAllWith(context.Background(), db, m, q)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d (%v)", len(items), err)
	}
	want := []item{{id: 1, label: "one"}, {id: 2}}
	if diff := cmp.Diff(want, items, cmp.AllowUnexported(item{})); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if !IsMapping(err) {
		t.Errorf("expected mapping error for label and extra, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestQueryAll_PartialLoggedOnce(t *testing.T) {
	tests := []struct {
		name    string
		withLog func(*slog.Logger) func(Config) Config
		message string
	}{
		{
			name: "logger hook",
			withLog: func(l *slog.Logger) func(Config) Config {
				return func(c Config) Config { return c.WithLogger(l) }
			},
			message: "database statement completed with errors",
		},
		{
			name: "operation boundary",
			withLog: func(l *slog.Logger) func(Config) Config {
				return func(c Config) Config {
					c.Logger = l
					return c
				}
			},
			message: "database operation completed with errors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
			conn := getTestConn(t, tt.withLog(logger))
			ctx := context.Background()

			if _, err := Insert(ctx, conn, "INSERT INTO person (id, name) VALUES (?, ?)", 1, "a"); err != nil {
				t.Fatalf("Insert failed: %v", err)
			}
			buf.Reset()

			people, err := QueryAll[person](ctx, conn, "SELECT id, name, 1 AS extra FROM person")
			if len(people) != 1 || !IsMapping(err) {
				t.Fatalf("expected one record and a mapping error, got %d, %v", len(people), err)
			}

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if len(lines) != 1 {
				t.Fatalf("expected a single log line, got %d:\n%s", len(lines), buf.String())
			}
			if !strings.Contains(lines[0], "level=WARN") || !strings.Contains(lines[0], tt.message) {
				t.Errorf("unexpected log line: %s", lines[0])
			}
		})
	}
}
