package dbutils

import (
	"errors"
	"fmt"
)

// Bind converts params into positional values, one position at a time. A
// position that cannot be converted is reported and left unbound (SQL NULL);
// binding carries on with the next position. The returned slice always has
// len(params) entries and the error joins every failed position.
func Bind(params ...any) ([]Value, error) {
	return bind("Bind", params, -1, false)
}

// BindStrict is Bind that stops at the first position that cannot be converted.
func BindStrict(params ...any) ([]Value, error) {
	return bind("BindStrict", params, -1, true)
}

// bind converts params for a statement expecting placeholders positional
// parameters, or an unknown number when placeholders is negative. Parameters
// past the last placeholder fail binding and are not returned.
func bind(op string, params []any, placeholders int, strict bool) ([]Value, error) {
	n := len(params)
	if placeholders >= 0 && placeholders < n {
		n = placeholders
	}
	values := make([]Value, n)
	var errs []error

	for i, p := range params {
		if i >= n {
			err := bindError(op, i+1, fmt.Sprintf("no placeholder at position %d, statement expects %d", i+1, placeholders), nil)
			if strict {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		v, err := ValueOf(p)
		if err != nil {
			err := bindError(op, i+1, fmt.Sprintf("cannot bind %T", p), err)
			if strict {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		values[i] = v
	}
	return values, errors.Join(errs...)
}

func bindError(op string, position int, msg string, cause error) *Error {
	return &Error{
		Stage:    StageBind,
		Code:     CodeUnknown,
		Op:       op,
		Position: position,
		Message:  msg,
		Cause:    cause,
	}
}

// args turns bound values into driver arguments.
func args(values []Value) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v.Any()
	}
	return out
}
