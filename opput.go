package idbstore

import (
	"bytes"
	"fmt"
	"math"
)

// AddItem stores a new record under a freshly generated primary key and
// returns that key. The record must not carry an id attribute; use UpdateItem
// to modify existing records.
func (m *Manager) AddItem(rec Record) (int64, error) {
	var key int64
	err := m.do("add", WriteFailure, true, 0, func(tx *txn) error {
		body, err := normalizeRecord(rec)
		if err != nil {
			return err
		}
		if _, found := body[KeyField]; found {
			return ErrKeyProvided
		}

		cs, err := loadCollectionState(tx, m.collName)
		if err != nil {
			return err
		}
		pk, err := cs.nextKey()
		if err != nil {
			return err
		}
		err = tx.putRecord(cs, pk, body)
		if err != nil {
			return err
		}
		cs.save(tx)
		key = int64(pk)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return key, nil
}

// UpdateItem reads the record stored under key, overlays the attributes of
// patch onto it and writes the result back, in a single transaction.
//
// The overlay is shallow: every top-level attribute of patch replaces the
// stored one as a whole. An id attribute in patch must equal key.
func (m *Manager) UpdateItem(key int64, patch Record) error {
	return m.do("update", WriteFailure, true, key, func(tx *txn) error {
		body, err := normalizeRecord(patch)
		if err != nil {
			return err
		}
		if v, found := body[KeyField]; found {
			if !isSameKey(v, key) {
				return ErrKeyImmutable
			}
			delete(body, KeyField)
		}

		cs, err := loadCollectionState(tx, m.collName)
		if err != nil {
			return err
		}
		var base Record
		if key > 0 {
			base, err = tx.getRecord(cs, uint64(key))
			if err != nil {
				return err
			}
		}
		if base == nil {
			return &Error{Kind: NotFoundFailure, Msg: "item not found for update"}
		}
		return tx.putRecord(cs, uint64(key), mergeRecords(base, body))
	})
}

// isSameKey reports whether a normalized id attribute equals key. Records
// decoded from JSON by callers carry their ids as floats.
func isSameKey(v any, key int64) bool {
	switch v := v.(type) {
	case int64:
		return v == key
	case float64:
		return v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 && int64(v) == key
	default:
		return false
	}
}

// putRecord writes a record body (without the primary key) and brings the
// indexes in line with it. Unique constraints are checked before anything is
// written, so a violation leaves the transaction untouched.
func (tx *txn) putRecord(cs *collectionState, pk uint64, rec Record) error {
	return tx.putRecordAs(cs, pk, rec, tx.m.opt.Encoding)
}

func (tx *txn) putRecordAs(cs *collectionState, pk uint64, rec Record, enc Encoding) error {
	if _, found := rec[KeyField]; found {
		rec = mergeRecords(rec, nil)
		delete(rec, KeyField)
	}
	if enc == JSON {
		if err := checkJSONSafe(rec); err != nil {
			return err
		}
	}
	dataBuck := tx.dataBucket(cs)
	pkRaw := encodePK(pk)
	rows := indexRowsFor(cs, pkRaw, rec)

	for _, ir := range rows {
		if !ir.Index.Unique {
			continue
		}
		cur := tx.indexBucket(cs, ir.Index).Get(ir.KeyRaw)
		if cur != nil && !bytes.Equal(cur, pkRaw) {
			other, _ := decodePK(cur)
			return fmt.Errorf("%w: %s.%s already holds this value for record %d", ErrConstraint, cs.name, ir.Index.name, other)
		}
	}

	var old value
	oldValueRaw := bytes.Clone(dataBuck.Get(pkRaw))
	if oldValueRaw != nil {
		err := old.decode(oldValueRaw)
		if err != nil {
			return fmt.Errorf("%s/%d: decoding old value: %w", cs.name, pk, err)
		}
	}

	flags := flagsForEncoding(enc)
	newModCount := old.ModCount

	valueRaw := reserveValueHeader(make([]byte, 0, 256))
	dataOff := len(valueRaw)
	valueRaw = enc.encodeRecord(valueRaw, rec)
	dataBytes := valueRaw[dataOff:]
	indexOff := len(valueRaw)
	valueRaw = appendIndexKeys(valueRaw, rows)
	indexBytes := valueRaw[indexOff:]

	isDataUnchanged := oldValueRaw != nil && old.Flags == flags && bytes.Equal(dataBytes, old.Data)
	isIndexKeySetUnchanged := oldValueRaw != nil && bytes.Equal(indexBytes, old.Index)

	if isDataUnchanged && isIndexKeySetUnchanged {
		if tx.m.verbose {
			tx.m.logf("db: PUT.NOOP %s/%d => m=%d %s", cs.name, pk, newModCount, tx.m.loggableRecord(rec))
		}
		return nil
	}
	if !isDataUnchanged {
		newModCount++
	}
	valueRaw = putValueHeader(valueRaw, flags, tx.ver, newModCount, indexOff)
	tx.markWritten()
	ensure(dataBuck.Put(pkRaw, valueRaw))

	if tx.m.verbose {
		tx.m.logf("db: PUT %s/%d => m=%d %s", cs.name, pk, newModCount, tx.m.loggableRecord(rec))
	}

	if oldValueRaw != nil {
		if isIndexKeySetUnchanged {
			return nil
		}
		del := prepareToDeleteIndexEntries(tx, cs)
		findRemovedIndexKeys(old.Index, rows, del)
		// entries the record already had stay as they are
		rows = findAddedIndexRows(old.Index, rows)
	}

	var idx *indexState
	var idxBuck storageBucket
	for _, ir := range rows {
		if ir.Index != idx {
			idx = ir.Index
			idxBuck = tx.indexBucket(cs, idx)
		}
		ensure(idxBuck.Put(ir.KeyRaw, ir.ValueRaw))
	}
	return nil
}
