// Package support holds small value helpers shared by the reactive layers.
package support

import "reflect"

// DeepCopy returns a copy of v in which every map and slice is duplicated,
// so mutating the copy never reaches the original.
//
//	snap := support.DeepCopy(state).(map[string]any)
//
// Pointers, structs and other values are copied by assignment; the reactive
// state trees only nest maps and slices, which is what this covers.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return CopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = DeepCopy(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyValue(iter.Value(), rv.Type().Elem()))
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(copyValue(rv.Index(i), rv.Type().Elem()))
		}
		return out.Interface()
	}
	return v
}

// CopyMap deep-copies a string-keyed map. A nil map copies to an empty one.
func CopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = DeepCopy(v)
	}
	return out
}

// Equal reports whether two reactive values are the same for change detection.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func copyValue(v reflect.Value, elem reflect.Type) reflect.Value {
	if !v.IsValid() {
		return reflect.Zero(elem)
	}
	if elem.Kind() == reflect.Interface && v.IsNil() {
		return reflect.Zero(elem)
	}
	c := DeepCopy(v.Interface())
	if c == nil {
		return reflect.Zero(elem)
	}
	return reflect.ValueOf(c)
}
