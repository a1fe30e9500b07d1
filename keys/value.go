package keys

import (
	"database/sql/driver"
	"fmt"
	"reflect"
)

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// formatValue renders a key value for display. Nil values render empty,
// pointers are followed and driver.Valuer types render their driver value.
func formatValue(v any) string {
	if isNil(v) {
		return ""
	}

	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil || dv == nil {
			return ""
		}
		if b, ok := dv.([]byte); ok {
			return string(b)
		}
		return fmt.Sprint(dv)
	}

	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr {
		return formatValue(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

// cast converts a key value to T. Values of a different type are converted
// when both types share a kind family, e.g. int32 to int64.
func cast[T any](t reflect.Type, property string, value any) (T, error) {
	var zero T
	if typed, ok := value.(T); ok {
		return typed, nil
	}

	want := reflect.TypeOf((*T)(nil)).Elem()
	if value == nil {
		switch want.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
			return zero, nil
		}
		return zero, &KeyTypeError{Type: t, Property: property, Want: want}
	}

	rv := reflect.ValueOf(value)
	if sameFamily(rv.Kind(), want.Kind()) && rv.Type().ConvertibleTo(want) {
		return rv.Convert(want).Interface().(T), nil
	}
	return zero, &KeyTypeError{Type: t, Property: property, Got: rv.Type(), Want: want}
}

func sameFamily(a, b reflect.Kind) bool {
	return family(a) != 0 && family(a) == family(b)
}

func family(k reflect.Kind) int {
	switch {
	case k >= reflect.Int && k <= reflect.Uintptr:
		return 1
	case k == reflect.Float32 || k == reflect.Float64:
		return 2
	case k == reflect.String:
		return 3
	case k == reflect.Array, k == reflect.Struct, k == reflect.Bool:
		return int(k) + 10
	}
	return 0
}
