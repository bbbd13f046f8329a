package dbutils

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindText
	KindBytes
	KindTime
	// KindDriver holds a value database/sql does not convert itself, such as
	// a pgx array. The driver decides whether it accepts it.
	KindDriver
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	case KindDriver:
		return "driver"
	default:
		return "unknown"
	}
}

// Value is a single parameter or column value, tagged with its kind.
// The zero Value is SQL NULL.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
	bs   []byte
	t    time.Time
	raw  any
}

var _ driver.Valuer = Value{}

// Constructors and accessors. The As* accessors report false when the kind differs.

func Null() Value            { return Value{} }
func Int(v int64) Value      { return Value{kind: KindInt, i: v} }
func Float(v float64) Value  { return Value{kind: KindFloat, f: v} }
func Bool(v bool) Value      { return Value{kind: KindBool, b: v} }
func Text(v string) Value    { return Value{kind: KindText, s: v} }
func Bytes(v []byte) Value   { return Value{kind: KindBytes, bs: v} }
func Time(v time.Time) Value { return Value{kind: KindTime, t: v} }
func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt
}

func (v Value) AsFloat() (float64, bool) {
	return v.f, v.kind == KindFloat
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsText() (string, bool) {
	return v.s, v.kind == KindText
}

func (v Value) AsBytes() ([]byte, bool) {
	return v.bs, v.kind == KindBytes
}

func (v Value) AsTime() (time.Time, bool) {
	return v.t, v.kind == KindTime
}

// Any returns the underlying driver value, nil for NULL.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindText:
		return v.s
	case KindBytes:
		return v.bs
	case KindTime:
		return v.t
	case KindDriver:
		return v.raw
	default:
		return nil
	}
}

// Value implements driver.Valuer.
func (v Value) Value() (driver.Value, error) {
	return v.Any(), nil
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindText:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.bs, o.bs)
	case KindTime:
		return v.t.Equal(o.t)
	case KindDriver:
		return reflect.DeepEqual(v.raw, o.raw)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindText:
		return v.s
	case KindBytes:
		return string(v.bs)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindDriver:
		return fmt.Sprint(v.raw)
	default:
		return "NULL"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// ValueOf converts x using the database/sql default parameter conversion:
// driver.Valuer, pointers and the integer, float, bool, string and []byte
// kinds. Other values are kept as KindDriver and handed to the driver
// unchanged. Only a failing driver.Valuer and values no driver can send
// (channels, functions, unsafe pointers) are rejected.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	}
	dv, err := driver.DefaultParameterConverter.ConvertValue(x)
	if err == nil {
		return valueFromDriver(dv)
	}
	if _, ok := x.(driver.Valuer); ok {
		return Null(), err
	}
	switch reflect.TypeOf(x).Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return Null(), err
	}
	return Value{kind: KindDriver, raw: x}, nil
}

// valueFromDriver tags a raw driver value as returned by Rows.Scan.
func valueFromDriver(dv any) (Value, error) {
	switch v := dv.(type) {
	case nil:
		return Null(), nil
	case int64:
		return Int(v), nil
	case float64:
		return Float(v), nil
	case bool:
		return Bool(v), nil
	case string:
		return Text(v), nil
	case []byte:
		return Bytes(v), nil
	case time.Time:
		return Time(v), nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", dv)
	}
}
