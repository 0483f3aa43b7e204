package engine

import "reflect"

// Same reports whether two values are identical under the engine's
// change-detection rule: value equality for comparable values, backing
// identity for maps and slices.
//
// Structural sharing in reducers makes identity the cheap invalidation
// signal: an unchanged slice value is the same map/pointer across
// snapshots, so Same returns true without a deep walk.
//
// Funcs are never Same - two closures over the same function body share a
// code pointer, so identity comparison would report false positives.
func Same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta := reflect.TypeOf(a)
	tb := reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	switch ta.Kind() {
	case reflect.Map:
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		return va.UnsafePointer() == vb.UnsafePointer()

	case reflect.Slice:
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		// Same backing array AND same length: s[:2] and s[:3] share a
		// pointer but are distinct values.
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()

	case reflect.Func:
		return false
	}

	if !ta.Comparable() {
		return false
	}
	return a == b
}

// SameInputs reports whether two input vectors are element-wise Same.
// Used by the selector graph's memoization check.
func SameInputs(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Same(a[i], b[i]) {
			return false
		}
	}
	return true
}
