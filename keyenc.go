package idbstore

import (
	"encoding/binary"
	"math"
	"time"
)

// Index keys are encoded so that byte order matches key order, and so that no
// encoded key is a prefix of another. The latter lets non-unique index
// entries append the primary key and still be found by a prefix scan.
//
// Types sort as number < date < string < binary < array.
const (
	keyTagNumber = 0x10
	keyTagDate   = 0x20
	keyTagString = 0x30
	keyTagBinary = 0x40
	keyTagArray  = 0x50

	keyEscape   = 0x00
	keyEscaped  = 0xFF
	keyStrEnd   = 0x01
	keyArrayEnd = 0x00
)

// appendIndexKey appends the encoding of a normalized value. It returns false
// if the value cannot be used as an index key (nil, bool, maps, NaN).
func appendIndexKey(buf []byte, v any) ([]byte, bool) {
	switch v := v.(type) {
	case int64:
		return appendNumberKey(buf, float64(v)), true
	case uint64:
		return appendNumberKey(buf, float64(v)), true
	case float64:
		if math.IsNaN(v) {
			return buf, false
		}
		return appendNumberKey(buf, v), true
	case time.Time:
		buf = append(buf, keyTagDate)
		return appendSortableUint64(buf, uint64(v.UnixNano())^(1<<63)), true
	case string:
		buf = append(buf, keyTagString)
		return appendEscaped(buf, []byte(v)), true
	case []byte:
		buf = append(buf, keyTagBinary)
		return appendEscaped(buf, v), true
	case []any:
		buf = append(buf, keyTagArray)
		for _, el := range v {
			var ok bool
			buf, ok = appendIndexKey(buf, el)
			if !ok {
				return buf, false
			}
		}
		return append(buf, keyArrayEnd), true
	default:
		return buf, false
	}
}

func appendNumberKey(buf []byte, f float64) []byte {
	if f == 0 {
		f = 0 // -0 == 0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	buf = append(buf, keyTagNumber)
	return appendSortableUint64(buf, bits)
}

func appendSortableUint64(buf []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, v)
}

func appendEscaped(buf []byte, data []byte) []byte {
	for _, b := range data {
		if b == keyEscape {
			buf = append(buf, keyEscape, keyEscaped)
		} else {
			buf = append(buf, b)
		}
	}
	return append(buf, keyEscape, keyStrEnd)
}

// encodeIndexKey normalizes and encodes a caller-supplied lookup value.
func encodeIndexKey(v any) ([]byte, bool) {
	nv, err := normalizeValue(v)
	if err != nil {
		return nil, false
	}
	return appendIndexKey(nil, nv)
}

// Primary keys are positive integers stored as fixed 8-byte big-endian values,
// so data bucket order is primary key order.
const pkSize = 8

func encodePK(pk uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, pkSize), pk)
}

func decodePK(raw []byte) (uint64, error) {
	if len(raw) != pkSize {
		return 0, dataErrf(raw, 0, nil, "invalid primary key")
	}
	return binary.BigEndian.Uint64(raw), nil
}
