package dbutils

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Setter assigns one column value to a field of rec.
type Setter[T any] func(rec *T, v Value) error

// Mapping tells how result columns land in a record of type T: column label to
// the setter for that label. Columns without an entry are reported as mapping
// failures.
type Mapping[T any] map[string]Setter[T]

// Field returns a setter that assigns values of type F through get, which
// returns the field's address. NULL sets the zero value.
func Field[T, F any](get func(rec *T) *F) Setter[T] {
	return func(rec *T, v Value) error {
		dst := get(rec)
		raw := v.Any()
		if raw == nil {
			var zero F
			*dst = zero
			return nil
		}
		f, ok := raw.(F)
		if !ok {
			return fmt.Errorf("cannot assign %T to %T", raw, *dst)
		}
		*dst = f
		return nil
	}
}

var (
	mappingCache sync.Map // map[reflect.Type]any, holding Mapping[T]
	scannerType  = reflect.TypeFor[sql.Scanner]()
)

// MappingFor derives the Mapping of struct type T from its exported top-level
// fields. A field maps the column named by its `db` tag, or by the field name
// when untagged; names match exactly. `db:"-"` excludes a field. The mapping is
// built once per type.
//
// A field accepts a value assignable to its type, to its element type when the
// field is a pointer, or any value when it implements sql.Scanner through its
// address. NULL sets the zero value.
func MappingFor[T any]() (Mapping[T], error) {
	t := reflect.TypeFor[T]()
	if cached, ok := mappingCache.Load(t); ok {
		return cached.(Mapping[T]), nil
	}
	m, err := buildMapping[T](t)
	if err != nil {
		return nil, err
	}
	actual, _ := mappingCache.LoadOrStore(t, m)
	return actual.(Mapping[T]), nil
}

func buildMapping[T any](t reflect.Type) (Mapping[T], error) {
	if t.Kind() != reflect.Struct {
		return nil, &Error{
			Stage:   StageMap,
			Code:    CodeUnknown,
			Op:      "MappingFor",
			Message: fmt.Sprintf("given %v, expected struct", t),
		}
	}

	m := make(Mapping[T], t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("db"); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		if _, dup := m[name]; dup {
			return nil, &Error{
				Stage:   StageMap,
				Code:    CodeUnknown,
				Op:      "MappingFor",
				Column:  name,
				Message: fmt.Sprintf("%v maps the same column twice", t),
			}
		}
		m[name] = fieldSetter[T](i, sf.Type)
	}
	return m, nil
}

func fieldSetter[T any](index int, ft reflect.Type) Setter[T] {
	scanner := reflect.PointerTo(ft).Implements(scannerType)
	return func(rec *T, v Value) error {
		field := reflect.ValueOf(rec).Elem().Field(index)
		raw := v.Any()
		if scanner {
			return field.Addr().Interface().(sql.Scanner).Scan(raw)
		}
		if raw == nil {
			field.SetZero()
			return nil
		}

		src := reflect.ValueOf(raw)
		switch {
		case src.Type().AssignableTo(ft):
			field.Set(src)
		case ft.Kind() == reflect.Pointer && src.Type().AssignableTo(ft.Elem()):
			ptr := reflect.New(ft.Elem())
			ptr.Elem().Set(src)
			field.Set(ptr)
		default:
			return fmt.Errorf("cannot assign %s to field of type %s", src.Type(), ft)
		}
		return nil
	}
}
