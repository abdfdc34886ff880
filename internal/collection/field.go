package collection

import (
	"reflect"
	"strings"
	"sync"
)

// FieldFunc reads a named field from an item. Unknown fields yield nil.
type FieldFunc[T any] func(item T, field string) any

// MapField reads keys from map[string]any records. Dotted names descend
// into nested maps.
func MapField(item map[string]any, field string) any {
	return Lookup(item, field)
}

// StructField reads exported struct fields by json tag or by
// case-insensitive field name. Dotted names descend into nested values.
func StructField[T any](item T, field string) any {
	return Lookup(item, field)
}

// Lookup resolves a dotted field path on maps, structs and pointers to them.
func Lookup(v any, path string) any {
	cur := v
	for _, part := range strings.Split(path, ".") {
		if cur == nil {
			return nil
		}
		cur = lookupOne(cur, part)
	}
	return cur
}

func lookupOne(v any, name string) any {
	if m, ok := v.(map[string]any); ok {
		return m[name]
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		val := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil
		}
		return val.Interface()
	case reflect.Struct:
		idx, ok := fieldIndex(rv.Type(), name)
		if !ok {
			return nil
		}
		fv, err := rv.FieldByIndexErr(idx)
		if err != nil {
			// promoted through a nil embedded pointer
			return nil
		}
		return fv.Interface()
	}
	return nil
}

var fieldCache sync.Map // reflect.Type -> map[string][]int

func fieldIndex(t reflect.Type, name string) ([]int, bool) {
	var fields map[string][]int
	if cached, ok := fieldCache.Load(t); ok {
		fields = cached.(map[string][]int)
	} else {
		fields = make(map[string][]int)
		for _, f := range reflect.VisibleFields(t) {
			if !f.IsExported() || f.Anonymous {
				continue
			}
			key := strings.ToLower(f.Name)
			if _, taken := fields[key]; !taken {
				fields[key] = f.Index
			}
			if tag := strings.Split(f.Tag.Get("json"), ",")[0]; tag != "" && tag != "-" {
				fields[tag] = f.Index
			}
		}
		fieldCache.Store(t, fields)
	}
	if idx, ok := fields[name]; ok {
		return idx, true
	}
	idx, ok := fields[strings.ToLower(name)]
	return idx, ok
}
