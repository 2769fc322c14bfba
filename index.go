package idbstore

import (
	"bytes"
	"sort"
)

type indexRow struct {
	IndexOrd uint64
	Index    *indexState
	KeyRaw   []byte
	ValueRaw []byte
}

// indexRowsFor computes the index entries a record contributes. A record whose
// field is missing or is not a valid key contributes nothing to that index.
//
// Unique indexes map the encoded value to the primary key. Non-unique indexes
// append the primary key to the encoded value and store an empty value, so
// entries for equal values are ordered by primary key.
func indexRowsFor(cs *collectionState, pkRaw []byte, rec Record) indexRows {
	var rows indexRows
	for _, is := range cs.indexStates {
		v, ok := lookupPath(rec, is.name)
		if !ok {
			continue
		}
		keyRaw, ok := appendIndexKey(nil, v)
		if !ok {
			continue
		}
		row := indexRow{IndexOrd: is.Ordinal, Index: is}
		if is.Unique {
			row.KeyRaw = keyRaw
			row.ValueRaw = pkRaw
		} else {
			row.KeyRaw = append(keyRaw, pkRaw...)
			row.ValueRaw = emptyIndexValue
		}
		rows = append(rows, row)
	}
	sort.Sort(rows)
	return rows
}

var emptyIndexValue = []byte{}

type indexRows []indexRow

func (a indexRows) Len() int      { return len(a) }
func (a indexRows) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a indexRows) Less(i, j int) bool {
	lo, ro := a[i].IndexOrd, a[j].IndexOrd
	if lo != ro {
		return lo < ro
	}
	return bytes.Compare(a[i].KeyRaw, a[j].KeyRaw) < 0
}

func makeIndexBucketName(name string) string {
	return "i_" + name
}
