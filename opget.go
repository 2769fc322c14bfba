package idbstore

import (
	"bytes"
	"fmt"
)

// GetAllItems returns every record of the collection in primary key order.
// Each record carries its key under KeyField. An empty collection yields an
// empty, non-nil slice.
func (m *Manager) GetAllItems() ([]Record, error) {
	result := []Record{}
	err := m.do("getAll", ReadFailure, false, 0, func(tx *txn) error {
		cs, err := loadCollectionState(tx, m.collName)
		if err != nil {
			return err
		}
		c := tx.dataBucket(cs).Cursor()
		defer c.Close()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			pk, err := decodePK(k)
			if err != nil {
				return err
			}
			rec, err := decodeStoredRecord(v)
			if err != nil {
				return fmt.Errorf("%s/%d: %w", cs.name, pk, err)
			}
			result = append(result, withKey(rec, pk))
		}
		if m.verbose {
			m.logf("db: SCAN %s => %d items", cs.name, len(result))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetItem returns the record stored under key, or a NotFoundFailure error.
func (m *Manager) GetItem(key int64) (Record, error) {
	var result Record
	err := m.do("get", ReadFailure, false, key, func(tx *txn) error {
		cs, err := loadCollectionState(tx, m.collName)
		if err != nil {
			return err
		}
		if key > 0 {
			result, err = tx.getRecord(cs, uint64(key))
			if err != nil {
				return err
			}
		}
		if result == nil {
			return &Error{Kind: NotFoundFailure}
		}
		result = withKey(result, uint64(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// getRecord returns the stored body of a record (without its key), or nil.
func (tx *txn) getRecord(cs *collectionState, pk uint64) (Record, error) {
	raw := tx.dataBucket(cs).Get(encodePK(pk))
	if raw == nil {
		if tx.m.verbose {
			tx.m.logf("db: GET.NOTFOUND %s/%d", cs.name, pk)
		}
		return nil, nil
	}
	rec, err := decodeStoredRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("%s/%d: %w", cs.name, pk, err)
	}
	if tx.m.verbose {
		tx.m.logf("db: GET %s/%d => %s", cs.name, pk, tx.m.loggableRecord(rec))
	}
	return rec, nil
}

func decodeStoredRecord(raw []byte) (Record, error) {
	var vle value
	err := vle.decode(bytes.Clone(raw))
	if err != nil {
		return nil, err
	}
	return vle.Flags.encoding().decodeRecord(vle.Data)
}

func withKey(rec Record, pk uint64) Record {
	if rec == nil {
		rec = make(Record, 1)
	}
	rec[KeyField] = int64(pk)
	return rec
}
