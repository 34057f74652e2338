package cache

import "reflect"

// Empty reports whether v is a container with no elements. Slices, maps and
// arrays of length zero are empty; records and scalars never are.
func Empty(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

// absent reports a nil interface or nil pointer, i.e. nothing was returned.
func absent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
