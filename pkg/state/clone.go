package state

import "reflect"

// sharesStorage reports whether a shallow copy of a value of type t can
// still alias mutable storage with the original: any reachable pointer,
// slice, map, chan, func, or interface makes in-place mutation visible
// through both copies.
func sharesStorage(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return sharesStorage(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if sharesStorage(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// cloneFunc builds the snapshot function for slots of type t. Types a
// shallow copy fully isolates skip the reflection walk entirely.
func cloneFunc(t reflect.Type) func(any) (any, bool) {
	if !sharesStorage(t) {
		return func(v any) (any, bool) { return v, true }
	}
	return func(v any) (any, bool) {
		if v == nil {
			return nil, true
		}
		out, ok := cloneValue(reflect.ValueOf(v), nil)
		if !ok {
			return nil, false
		}
		return out.Interface(), true
	}
}

// cloneValue deep-copies v. It reports false for values no copy can
// isolate: channels, funcs, unsafe pointers, unexported struct fields of
// reference type, and cyclic or shared pointer structure.
func cloneValue(v reflect.Value, seen map[uintptr]bool) (reflect.Value, bool) {
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return reflect.Value{}, false

	case reflect.Pointer:
		if v.IsNil() {
			return v, true
		}
		if seen[v.Pointer()] {
			return reflect.Value{}, false
		}
		if seen == nil {
			seen = make(map[uintptr]bool)
		}
		seen[v.Pointer()] = true
		out := reflect.New(v.Type().Elem())
		elem, ok := cloneValue(v.Elem(), seen)
		if !ok {
			return reflect.Value{}, false
		}
		out.Elem().Set(elem)
		return out, true

	case reflect.Interface:
		if v.IsNil() {
			return v, true
		}
		elem, ok := cloneValue(v.Elem(), seen)
		if !ok {
			return reflect.Value{}, false
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out, true

	case reflect.Slice:
		if v.IsNil() {
			return v, true
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, ok := cloneValue(v.Index(i), seen)
			if !ok {
				return reflect.Value{}, false
			}
			out.Index(i).Set(elem)
		}
		return out, true

	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			elem, ok := cloneValue(v.Index(i), seen)
			if !ok {
				return reflect.Value{}, false
			}
			out.Index(i).Set(elem)
		}
		return out, true

	case reflect.Map:
		if v.IsNil() {
			return v, true
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k, ok := cloneValue(iter.Key(), seen)
			if !ok {
				return reflect.Value{}, false
			}
			mv, ok := cloneValue(iter.Value(), seen)
			if !ok {
				return reflect.Value{}, false
			}
			out.SetMapIndex(k, mv)
		}
		return out, true

	case reflect.Struct:
		t := v.Type()
		out := reflect.New(t).Elem()
		// Copy the whole struct first so unexported value fields carry
		// over, then rewrite the fields that still alias.
		out.Set(v)
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !sharesStorage(f.Type) {
				continue
			}
			if !f.IsExported() {
				return reflect.Value{}, false
			}
			fv, ok := cloneValue(v.Field(i), seen)
			if !ok {
				return reflect.Value{}, false
			}
			out.Field(i).Set(fv)
		}
		return out, true

	default:
		return v, true
	}
}
