package idbstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding selects how record bodies are serialized. Each stored value
// remembers its encoding, so the setting can change between opens.
type Encoding int

const (
	MsgPack Encoding = iota
	JSON

	defaultValueEncoding = MsgPack
)

func (enc Encoding) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("Encoding(%d)", int(enc))
	}
}

func (enc Encoding) EncodeValue(buf []byte, objVal reflect.Value) []byte {
	switch enc {
	case MsgPack:
		bb := bytesBuilder{buf}
		enc := msgpack.GetEncoder()
		enc.Reset(&bb)
		enc.SetSortMapKeys(true)
		err := enc.EncodeValue(objVal)
		msgpack.PutEncoder(enc)
		if err != nil {
			panic(fmt.Errorf("failed to encode %T using MsgPack: %w", objVal.Interface(), err))
		}
		return bb.Buf
	case JSON:
		raw, err := json.Marshal(objVal.Interface())
		if err != nil {
			panic(fmt.Errorf("failed to encode %T to JSON: %w", objVal.Interface(), err))
		}
		return append(buf, raw...)
	default:
		panic("unsupported encoding")
	}
}

func (enc Encoding) DecodeValue(buf []byte, objPtrVal reflect.Value) error {
	switch enc {
	case MsgPack:
		var r bytes.Reader
		r.Reset(buf)
		dec := msgpack.GetDecoder()
		dec.Reset(&r)
		dec.UseLooseInterfaceDecoding(true)
		err := dec.DecodeValue(objPtrVal)
		msgpack.PutDecoder(dec)
		if err != nil {
			return dataErrf(buf, 0, err, "failed to decode msgpack into %T", objPtrVal.Interface())
		}
		return nil
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(buf))
		dec.UseNumber()
		err := dec.Decode(objPtrVal.Interface())
		if err != nil {
			return dataErrf(buf, 0, err, "failed to decode JSON into %T", objPtrVal.Interface())
		}
		return nil
	default:
		panic("unsupported encoding")
	}
}

func (enc Encoding) encodeRecord(buf []byte, rec Record) []byte {
	m := map[string]any(rec)
	return enc.EncodeValue(buf, reflect.ValueOf(m))
}

func (enc Encoding) decodeRecord(buf []byte) (Record, error) {
	var m map[string]any
	err := enc.DecodeValue(buf, reflect.ValueOf(&m))
	if err != nil {
		return nil, err
	}
	rec, err := normalizeRecord(m)
	if err != nil {
		return nil, dataErrf(buf, 0, err, "failed to normalize decoded record")
	}
	return rec, nil
}

// checkJSONSafe rejects records holding values that JSON would read back as
// something else. Binary data and dates come back as strings, and integers
// above MaxInt64 come back as floats.
func checkJSONSafe(rec Record) error {
	for _, k := range slices.Sorted(maps.Keys(rec)) {
		if err := checkJSONSafeValue(k, rec[k]); err != nil {
			return err
		}
	}
	return nil
}

func checkJSONSafeValue(path string, v any) error {
	switch v := v.(type) {
	case []byte:
		return fmt.Errorf("%w: %s is binary", ErrNotJSONSafe, path)
	case time.Time:
		return fmt.Errorf("%w: %s is a date", ErrNotJSONSafe, path)
	case uint64:
		return fmt.Errorf("%w: %s = %d does not fit into int64", ErrNotJSONSafe, path, v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s = %v", ErrNotJSONSafe, path, v)
		}
	case []any:
		for i, el := range v {
			if err := checkJSONSafeValue(fmt.Sprintf("%s[%d]", path, i), el); err != nil {
				return err
			}
		}
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(v)) {
			if err := checkJSONSafeValue(path+"."+k, v[k]); err != nil {
				return err
			}
		}
	}
	return nil
}
