package dbutils

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Stage identifies where in an operation an error originated.
type Stage string

const (
	StageConnect Stage = "connect"
	StagePrepare Stage = "prepare"
	StageBind    Stage = "bind"
	StageExecute Stage = "execute"
	StageMap     Stage = "map"
)

// ErrorCode represents a database error classification
type ErrorCode string

const (
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeForeignKey       ErrorCode = "FOREIGN_KEY"
	CodeCheckViolation   ErrorCode = "CHECK_VIOLATION"
	CodeNotNullViolation ErrorCode = "NOT_NULL"
	CodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeSerialization    ErrorCode = "SERIALIZATION"
	CodeDeadlock         ErrorCode = "DEADLOCK"
	CodeUnknown          ErrorCode = "UNKNOWN"
)

// Sentinel errors for stage checks
var (
	ErrConnection = errors.New("dbutils: connection failed")
	ErrPrepare    = errors.New("dbutils: statement prepare failed")
	ErrBind       = errors.New("dbutils: parameter bind failed")
	ErrExecution  = errors.New("dbutils: statement execution failed")
	ErrMapping    = errors.New("dbutils: result mapping failed")
)

// Sentinel errors for driver classification
var (
	ErrDuplicate        = errors.New("dbutils: duplicate key violation")
	ErrForeignKey       = errors.New("dbutils: foreign key violation")
	ErrCheckViolation   = errors.New("dbutils: check constraint violation")
	ErrNotNullViolation = errors.New("dbutils: not null violation")
	ErrTimeout          = errors.New("dbutils: operation timeout")
	ErrSerialization    = errors.New("dbutils: serialization failure")
	ErrDeadlock         = errors.New("dbutils: deadlock detected")
)

// Error is a rich database error with context
type Error struct {
	Stage      Stage     // Where the error originated
	Code       ErrorCode // Driver classification, CodeUnknown when not classified
	Message    string    // Human-readable message
	Op         string    // Operation that failed (e.g., "Insert", "QueryMaps")
	Position   int       // 1-based parameter position for bind errors
	Table      string    // Table name if known
	Column     string    // Column name if known
	Constraint string    // Constraint name if applicable
	Detail     string    // Additional detail from the server
	Hint       string    // Hint from the server
	Query      string    // Query that failed
	Cause      error     // Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("dbutils: %s", e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("dbutils.%s: %s", e.Op, e.Message)
	}
	if e.Position > 0 {
		msg += fmt.Sprintf(" (position: %d)", e.Position)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" (column: %s)", e.Column)
	}
	if e.Table != "" {
		msg += fmt.Sprintf(" (table: %s)", e.Table)
	}
	if e.Constraint != "" {
		msg += fmt.Sprintf(" (constraint: %s)", e.Constraint)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for sentinel error matching.
// Both the stage sentinel and the classification sentinel match.
func (e *Error) Is(target error) bool {
	switch e.Stage {
	case StageConnect:
		if target == ErrConnection {
			return true
		}
	case StagePrepare:
		if target == ErrPrepare {
			return true
		}
	case StageBind:
		if target == ErrBind {
			return true
		}
	case StageExecute:
		if target == ErrExecution {
			return true
		}
	case StageMap:
		if target == ErrMapping {
			return true
		}
	}

	switch e.Code {
	case CodeDuplicate:
		return target == ErrDuplicate
	case CodeForeignKey:
		return target == ErrForeignKey
	case CodeCheckViolation:
		return target == ErrCheckViolation
	case CodeNotNullViolation:
		return target == ErrNotNullViolation
	case CodeConnectionFailed:
		return target == ErrConnection
	case CodeTimeout:
		return target == ErrTimeout
	case CodeSerialization:
		return target == ErrSerialization
	case CodeDeadlock:
		return target == ErrDeadlock
	}
	return false
}

// wrapError converts a raw error to a rich Error for the given stage.
func wrapError(err error, stage Stage, op string) error {
	if err == nil {
		return nil
	}

	// Already wrapped
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}

	e := &Error{
		Stage:   stage,
		Code:    CodeUnknown,
		Message: err.Error(),
		Op:      op,
		Cause:   err,
	}
	// database/sql rejects arguments the driver cannot convert before sending.
	if stage == StageExecute && strings.HasPrefix(err.Error(), "sql: converting argument") {
		e.Stage = StageBind
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		e.Code = CodeTimeout
		return e
	}
	if state, ok := sqlStateOf(err); ok {
		classify(e, state)
	}
	return e
}

// sqlState carries the server fields shared by the PostgreSQL drivers.
type sqlState struct {
	code       string
	message    string
	table      string
	column     string
	constraint string
	detail     string
	hint       string
}

// sqlStateOf extracts a SQLSTATE from any of the supported PostgreSQL drivers.
func sqlStateOf(err error) (sqlState, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlState{
			code:       pgErr.Code,
			message:    pgErr.Message,
			table:      pgErr.TableName,
			column:     pgErr.ColumnName,
			constraint: pgErr.ConstraintName,
			detail:     pgErr.Detail,
			hint:       pgErr.Hint,
		}, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return sqlState{
			code:       string(pqErr.Code),
			message:    pqErr.Message,
			table:      pqErr.Table,
			column:     pqErr.Column,
			constraint: pqErr.Constraint,
			detail:     pqErr.Detail,
			hint:       pqErr.Hint,
		}, true
	}

	var pgdErr pgdriver.Error
	if errors.As(err, &pgdErr) {
		return sqlState{
			code:       pgdErr.Field('C'),
			message:    pgdErr.Field('M'),
			table:      pgdErr.Field('t'),
			column:     pgdErr.Field('c'),
			constraint: pgdErr.Field('n'),
			detail:     pgdErr.Field('D'),
			hint:       pgdErr.Field('H'),
		}, true
	}

	return sqlState{}, false
}

// classify maps a SQLSTATE onto the error.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
func classify(e *Error, s sqlState) {
	e.Table = s.table
	e.Column = s.column
	e.Constraint = s.constraint
	e.Detail = s.detail
	e.Hint = s.hint

	switch s.code {
	case "23505": // unique_violation
		e.Code = CodeDuplicate
		e.Message = "duplicate key value violates unique constraint"
	case "23503": // foreign_key_violation
		e.Code = CodeForeignKey
		e.Message = "foreign key constraint violation"
	case "23502": // not_null_violation
		e.Code = CodeNotNullViolation
		e.Message = "null value in column violates not-null constraint"
	case "23514": // check_violation
		e.Code = CodeCheckViolation
		e.Message = "check constraint violation"
	case "40001": // serialization_failure
		e.Code = CodeSerialization
		e.Message = "serialization failure, retry transaction"
	case "40P01": // deadlock_detected
		e.Code = CodeDeadlock
		e.Message = "deadlock detected"
	case "57014": // query_canceled (timeout)
		e.Code = CodeTimeout
		e.Message = "query was cancelled due to timeout"
	case "08000", "08003", "08006": // connection errors
		e.Code = CodeConnectionFailed
		e.Message = "database connection failed"
	default:
		e.Code = CodeUnknown
		if s.message != "" {
			e.Message = s.message
		}
	}
}

// IsConnection checks if error is a connection error
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsPrepare checks if error happened while preparing a statement
func IsPrepare(err error) bool {
	return errors.Is(err, ErrPrepare)
}

// IsBind checks if error happened while binding parameters
func IsBind(err error) bool {
	return errors.Is(err, ErrBind)
}

// IsExecution checks if error happened while executing a statement
func IsExecution(err error) bool {
	return errors.Is(err, ErrExecution)
}

// IsMapping reports whether err includes column mapping failures. Results
// returned alongside such an error are usable, with unmapped fields left at zero.
func IsMapping(err error) bool {
	return errors.Is(err, ErrMapping)
}

// IsDuplicate checks if error is a duplicate key error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsForeignKey checks if error is a foreign key error
func IsForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// IsTimeout checks if error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// GetStage extracts the stage if it's a dbutils error
func GetStage(err error) (Stage, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Stage, true
	}
	return "", false
}

// GetErrorCode extracts the error code if it's a dbutils error
func GetErrorCode(err error) (ErrorCode, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Code, true
	}
	return "", false
}

// GetConstraint extracts the constraint name if available
func GetConstraint(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Constraint != "" {
		return dbErr.Constraint, true
	}
	return "", false
}
