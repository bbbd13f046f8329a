// Package hooks provides observability hooks for dbutils.
//
// Every hook observes two kinds of traffic: statements prepared and executed by
// dbutils operations (through Hook), and queries sent through the underlying
// bun.DB or bun.Conn (through bun.QueryHook).
package hooks

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Event describes one statement run by a dbutils operation.
type Event struct {
	Operation string    // dbutils operation, e.g. "Insert" or "BatchInsert"
	System    string    // dialect name, e.g. "pg" or "sqlite"
	Query     string    // SQL text as prepared
	Args      int       // number of bound parameters
	StartTime time.Time // set by the caller before BeforeStatement
	Rows      int64     // rows returned or affected, -1 when unknown
	Flushes   int       // batch flushes issued, batch operations only
	Err       error
	// Partial is set when Err accompanies a usable result, such as a row
	// with unmapped columns.
	Partial bool
}

// Hook observes statements run by dbutils operations.
type Hook interface {
	BeforeStatement(ctx context.Context, event *Event) context.Context
	AfterStatement(ctx context.Context, event *Event)
}

// fromBun converts a bun query event into an Event.
func fromBun(event *bun.QueryEvent) *Event {
	e := &Event{
		Operation: OperationType(event.Query),
		Query:     event.Query,
		Args:      len(event.QueryArgs),
		StartTime: event.StartTime,
		Rows:      -1,
		Err:       event.Err,
	}
	if event.DB != nil {
		e.System = event.DB.Dialect().Name().String()
	}
	if event.Result != nil {
		if n, err := event.Result.RowsAffected(); err == nil {
			e.Rows = n
		}
	}
	return e
}

func truncate(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// OperationType extracts the operation type from a query
func OperationType(query string) string {
	query = strings.TrimSpace(strings.ToUpper(query))
	switch {
	case strings.HasPrefix(query, "SELECT"), strings.HasPrefix(query, "WITH"):
		return "select"
	case strings.HasPrefix(query, "INSERT"):
		return "insert"
	case strings.HasPrefix(query, "UPDATE"):
		return "update"
	case strings.HasPrefix(query, "DELETE"):
		return "delete"
	case strings.HasPrefix(query, "CREATE"):
		return "create"
	case strings.HasPrefix(query, "DROP"):
		return "drop"
	case strings.HasPrefix(query, "ALTER"):
		return "alter"
	default:
		return "other"
	}
}
