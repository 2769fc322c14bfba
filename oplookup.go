package idbstore

import (
	"bytes"
	"fmt"
)

// GetItemsByIndex returns the records whose indexed field equals value, in
// primary key order. Lookups on a unique index return at most one record.
// No match yields an empty, non-nil slice.
//
// The named index must exist in the stored collection; value must be a valid
// key (a number, string, time.Time, []byte, or a slice of those).
func (m *Manager) GetItemsByIndex(indexName string, value any) ([]Record, error) {
	result := []Record{}
	err := m.do("getByIndex", ReadFailure, false, 0, func(tx *txn) error {
		cs, err := loadCollectionState(tx, m.collName)
		if err != nil {
			return err
		}
		is := cs.index(indexName)
		if is == nil {
			return &Error{Kind: ReadFailure, Index: indexName, Err: ErrUnknownIndex}
		}
		keyRaw, ok := encodeIndexKey(value)
		if !ok {
			return &Error{Kind: ReadFailure, Index: indexName, Err: fmt.Errorf("%w: %T", ErrInvalidKey, value)}
		}

		var pks []uint64
		idxBuck := tx.indexBucket(cs, is)
		if is.Unique {
			if pkRaw := idxBuck.Get(keyRaw); pkRaw != nil {
				pk, err := decodePK(pkRaw)
				if err != nil {
					return err
				}
				pks = append(pks, pk)
			}
		} else {
			c := idxBuck.Cursor()
			for k, _ := c.Seek(keyRaw); k != nil && bytes.HasPrefix(k, keyRaw); k, _ = c.Next() {
				pk, err := decodePK(k[len(keyRaw):])
				if err != nil {
					c.Close()
					return err
				}
				pks = append(pks, pk)
			}
			c.Close()
		}

		for _, pk := range pks {
			rec, err := tx.getRecord(cs, pk)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("%s.%s: index entry points to missing record %d", cs.name, is.name, pk)
			}
			result = append(result, withKey(rec, pk))
		}
		if m.verbose {
			m.logf("db: LOOKUP %s.%s/%s => %d items", cs.name, is.name, m.loggableValue(value), len(result))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
