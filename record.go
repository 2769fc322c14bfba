package idbstore

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// KeyField is the attribute under which records carry their primary key.
const KeyField = "id"

// Record is a schema-less document. Values are limited to nil, bool, string,
// []byte, time.Time, numbers, slices and maps with string keys; nested values
// follow the same rules.
//
// Records returned by a Manager are normalized: integers are int64 (or
// uint64 above math.MaxInt64), floats are float64, slices are []any and maps
// are map[string]any.
type Record map[string]any

// Key returns the primary key carried by a record returned from a Manager.
func (r Record) Key() (int64, bool) {
	v, ok := r[KeyField].(int64)
	return v, ok
}

func normalizeRecord(r Record) (Record, error) {
	out := make(Record, len(r))
	for k, v := range r {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// normalizeValue returns a deep copy of v in canonical form.
func normalizeValue(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), nil
		}
		return v, nil
	case float32:
		return float64(v), nil
	case []byte:
		return append([]byte{}, v...), nil
	case time.Time:
		return v, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", v)
		}
		return f, nil
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			nv, err := normalizeValue(el)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = nv
		}
		return out, nil
	case map[string]any:
		return normalizeMap(v)
	case Record:
		return normalizeMap(v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return normalizeValue(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			out := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(out), rv)
			return out, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			nv, err := normalizeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = nv
		}
		return out, nil
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			k, ok := it.Key().Interface().(string)
			if !ok {
				if it.Key().Kind() != reflect.String {
					return nil, fmt.Errorf("map key %v is %T, wanted string", it.Key().Interface(), it.Key().Interface())
				}
				k = it.Key().String()
			}
			nv, err := normalizeValue(it.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = nv
		}
		return out, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeValue(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func normalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, el := range m {
		nv, err := normalizeValue(el)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// lookupPath resolves a dotted key path like "address.city" through nested maps.
func lookupPath(rec map[string]any, path string) (any, bool) {
	for {
		head, rest, nested := splitByte(path, '.')
		v, ok := rec[head]
		if !ok {
			return nil, false
		}
		if !nested {
			return v, true
		}
		rec, ok = v.(map[string]any)
		if !ok {
			return nil, false
		}
		path = rest
	}
}

// mergeRecords overlays patch onto base, one top-level attribute at a time.
// Attributes present in patch replace those in base, including nested maps,
// which are not merged recursively. Neither argument is modified.
func mergeRecords(base, patch Record) Record {
	out := make(Record, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
