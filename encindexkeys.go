package idbstore

import (
	"bytes"
	"cmp"
	"encoding/binary"
)

func appendIndexKeys(buf []byte, rows indexRows) []byte {
	var total = binary.MaxVarintLen32 + len(rows)*(binary.MaxVarintLen64+binary.MaxVarintLen32)
	for _, row := range rows {
		total += len(row.KeyRaw)
	}

	w := newVarWriter(buf, total)
	w.Len(len(rows))
	for _, row := range rows {
		w.Uvarint(row.IndexOrd)
		w.VarBytes(row.KeyRaw)
	}
	return w.Bytes()
}

func decodeIndexKeys(data []byte, f func(ord uint64, key []byte)) {
	if len(data) == 0 {
		return
	}
	r := newByteReader(data)
	n := must(r.Len())
	for i := 0; i < n; i++ {
		ord := must(r.Uvarint())
		key := must(r.VarBytes())
		f(ord, key)
	}
}

type indexDiffer struct {
	newRows indexRows
}

func (d *indexDiffer) checkOldKey(oldOrd uint64, oldKey []byte) bool {
	// Look for a new row that's >= old row.
	for len(d.newRows) > 0 {
		newOrd := d.newRows[0].IndexOrd
		if oldOrd < newOrd {
			return false
		} else if oldOrd == newOrd {
			c := bytes.Compare(oldKey, d.newRows[0].KeyRaw)
			if c < 0 {
				return false
			} else if c == 0 {
				return true // found exact match
			}
		}
		d.newRows = d.newRows[1:] // shift to next new row and compare again
	}
	return false // no more new rows, so remaining old rows have been deleted
}

// findRemovedIndexKeys reports old index keys missing from newRows. Both
// sides must be sorted by (ordinal, key).
func findRemovedIndexKeys(oldData []byte, newRows indexRows, removed func(ord uint64, key []byte)) {
	d := indexDiffer{newRows}
	decodeIndexKeys(oldData, func(ord uint64, key []byte) {
		if !d.checkOldKey(ord, key) {
			removed(ord, key)
		}
	})
}

// findAddedIndexRows returns the rows of newRows that oldData does not hold.
// Both sides must be sorted by (ordinal, key).
func findAddedIndexRows(oldData []byte, newRows indexRows) indexRows {
	var added indexRows
	rest := newRows
	decodeIndexKeys(oldData, func(ord uint64, key []byte) {
		for len(rest) > 0 {
			c := cmp.Compare(rest[0].IndexOrd, ord)
			if c == 0 {
				c = bytes.Compare(rest[0].KeyRaw, key)
			}
			if c > 0 {
				return
			}
			if c < 0 {
				added = append(added, rest[0])
			}
			rest = rest[1:]
			if c == 0 {
				return
			}
		}
	})
	return append(added, rest...)
}

func prepareToDeleteIndexEntries(tx *txn, cs *collectionState) func(ord uint64, key []byte) {
	var idxOrd uint64
	var idxBuck storageBucket

	return func(ord uint64, key []byte) {
		if idxOrd != ord {
			idxOrd = ord
			if is := cs.indexByOrdinal(ord); is != nil {
				idxBuck = tx.indexBucket(cs, is)
			} else {
				idxBuck = nil
			}
		}
		if idxBuck != nil {
			ensure(idxBuck.Delete(key))
		}
	}
}
