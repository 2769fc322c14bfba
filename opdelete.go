package idbstore

import (
	"bytes"
	"fmt"
)

// DeleteItem removes the record stored under key along with its index
// entries. Deleting a missing key succeeds and changes nothing.
func (m *Manager) DeleteItem(key int64) error {
	return m.do("delete", WriteFailure, true, key, func(tx *txn) error {
		cs, err := loadCollectionState(tx, m.collName)
		if err != nil {
			return err
		}
		var ok bool
		if key > 0 {
			ok, err = tx.deleteRecord(cs, uint64(key))
			if err != nil {
				return err
			}
		}
		if m.verbose {
			if ok {
				m.logf("db: DELETE %s/%d", cs.name, key)
			} else {
				m.logf("db: DELETE.NOOP %s/%d", cs.name, key)
			}
		}
		return nil
	})
}

func (tx *txn) deleteRecord(cs *collectionState, pk uint64) (bool, error) {
	dataBuck := tx.dataBucket(cs)
	pkRaw := encodePK(pk)
	raw := dataBuck.Get(pkRaw)
	if raw == nil {
		return false, nil
	}

	var old value
	err := old.decode(bytes.Clone(raw))
	if err != nil {
		return false, fmt.Errorf("%s/%d: cannot decode old value: %w", cs.name, pk, err)
	}

	tx.markWritten()
	decodeIndexKeys(old.Index, prepareToDeleteIndexEntries(tx, cs))
	ensure(dataBuck.Delete(pkRaw))
	return true, nil
}
