package dbutils

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBind(t *testing.T) {
	values, err := Bind(1, "a", nil, 2.5)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	want := []Value{Int(1), Text("a"), Null(), Float(2.5)}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Errorf("Bind mismatch (-want +got):\n%s", diff)
	}
}

func TestBind_BestEffort(t *testing.T) {
	values, err := Bind(1, make(chan int), "c", func() {})
	if err == nil {
		t.Fatal("expected bind error")
	}
	if !IsBind(err) {
		t.Errorf("expected bind error, got %v", err)
	}

	want := []Value{Int(1), Null(), Text("c"), Null()}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Errorf("Bind mismatch (-want +got):\n%s", diff)
	}

	var positions []int
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var dbErr *Error
		if errors.As(e, &dbErr) {
			positions = append(positions, dbErr.Position)
		}
	}
	if diff := cmp.Diff([]int{2, 4}, positions); diff != "" {
		t.Errorf("failed positions mismatch (-want +got):\n%s", diff)
	}
}

func TestBind_DriverValue(t *testing.T) {
	values, err := BindStrict([]int64{1, 2}, "x")
	if err != nil {
		t.Fatalf("BindStrict failed: %v", err)
	}
	if values[0].Kind() != KindDriver || values[1].Kind() != KindText {
		t.Errorf("unexpected kinds %s, %s", values[0].Kind(), values[1].Kind())
	}
	if diff := cmp.Diff([]any{[]int64{1, 2}, "x"}, args(values)); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestBindStrict(t *testing.T) {
	values, err := BindStrict(1, make(chan int), "c")
	if values != nil {
		t.Errorf("expected nil values, got %v", values)
	}

	var dbErr *Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if dbErr.Stage != StageBind || dbErr.Position != 2 {
		t.Errorf("expected bind error at position 2, got %s at %d", dbErr.Stage, dbErr.Position)
	}
}

func TestBind_PlaceholderCount(t *testing.T) {
	tests := []struct {
		name         string
		params       []any
		placeholders int
		strict       bool
		want         []Value
		wantErr      bool
	}{
		{"exact", []any{1, 2}, 2, false, []Value{Int(1), Int(2)}, false},
		{"unknown", []any{1, 2}, -1, false, []Value{Int(1), Int(2)}, false},
		{"fewer params", []any{1}, 2, false, []Value{Int(1)}, false},
		{"extra params", []any{1, 2, 3}, 2, false, []Value{Int(1), Int(2)}, true},
		{"extra params strict", []any{1, 2, 3}, 2, true, nil, true},
		{"empty", nil, 0, false, []Value{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bind("Test", tt.params, tt.placeholders, tt.strict)
			if (err != nil) != tt.wantErr {
				t.Fatalf("bind() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("bind() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestArgs(t *testing.T) {
	got := args([]Value{Int(1), Null(), Text("x")})
	want := []any{int64(1), nil, "x"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("args() mismatch (-want +got):\n%s", diff)
	}
}
