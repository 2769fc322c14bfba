package idbstore

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

const backfillProgressInterval = 100000

// indexesToCreate returns the declared fields that have no index yet, in
// declaration order. Existing indexes are never altered or removed.
func indexesToCreate(existing map[string]bool, declared []Field) []Field {
	var missing []Field
	for _, f := range declared {
		if !existing[f.Name] {
			missing = append(missing, f)
		}
	}
	return missing
}

func (m *Manager) upgradeIfNeeded(tx *txn, newVer uint64) error {
	oldVer := readStoredVersion(tx)
	if newVer < oldVer {
		return fmt.Errorf("%w: requested %d, stored %d", ErrVersion, newVer, oldVer)
	}
	if newVer == oldVer {
		return nil
	}
	m.logf("db: upgrading %s from version %d to %d", m.dbName, oldVer, newVer)

	now := time.Now()
	if tx.stx.Bucket(m.collName, "") == nil {
		m.createCollection(tx, now)
	} else {
		cs, err := loadCollectionState(tx, m.collName)
		if err != nil {
			return err
		}
		cs.Upgraded = now
		err = m.reconcileIndexes(tx, cs)
		if err != nil {
			return err
		}
	}

	if m.opt.OnUpgrade != nil {
		m.opt.OnUpgrade(oldVer, newVer)
	}
	writeStoredVersion(tx, newVer)
	return nil
}

func (m *Manager) createCollection(tx *txn, now time.Time) *collectionState {
	cs := newCollectionState(m.collName, now)
	must(tx.stx.CreateBucket(cs.name, dataBucket))
	for _, f := range m.fields {
		is := cs.addIndex(f)
		must(tx.stx.CreateBucket(cs.name, makeIndexBucketName(is.name)))
	}
	cs.save(tx)
	m.logf("db: created collection %s with %d indexes", cs.name, len(m.fields))
	return cs
}

// reconcileIndexes adds indexes for declared fields that the collection lacks
// and fills them from existing records.
func (m *Manager) reconcileIndexes(tx *txn, cs *collectionState) error {
	for _, f := range m.fields {
		if is := cs.index(f.Name); is != nil && is.Unique != f.Unique {
			m.logf("db: WARNING: index %s.%s has unique=%v but is declared with unique=%v; existing indexes are not changed", cs.name, f.Name, is.Unique, f.Unique)
		}
	}

	missing := indexesToCreate(cs.indexNameSet(), m.fields)
	added := make([]*indexState, 0, len(missing))
	for _, f := range missing {
		is := cs.addIndex(f)
		must(tx.stx.CreateBucket(cs.name, makeIndexBucketName(is.name)))
		added = append(added, is)
	}
	if len(added) > 0 {
		err := m.backfill(tx, cs, added)
		if err != nil {
			return err
		}
	}
	cs.save(tx)
	return nil
}

type storedRow struct {
	pk  uint64
	raw []byte
}

// backfill rewrites every record so that newly added indexes pick up their
// entries. Records are read in full before any is rewritten, since some
// engines do not allow writes under an open cursor.
func (m *Manager) backfill(tx *txn, cs *collectionState, added []*indexState) error {
	start := time.Now()
	names := make([]string, len(added))
	for i, is := range added {
		names[i] = is.name
	}

	var rows []storedRow
	c := tx.dataBucket(cs).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		pk, err := decodePK(k)
		if err != nil {
			c.Close()
			return err
		}
		rows = append(rows, storedRow{pk, bytes.Clone(v)})
	}
	c.Close()
	if len(rows) == 0 {
		return nil
	}

	m.logf("db: indexing %d records of %s by %s...", len(rows), cs.name, strings.Join(names, ", "))
	for i, row := range rows {
		var stored value
		err := stored.decode(row.raw)
		if err != nil {
			return fmt.Errorf("%s/%d: %w", cs.name, row.pk, err)
		}
		// records keep the encoding they were written with
		enc := stored.Flags.encoding()
		rec, err := enc.decodeRecord(stored.Data)
		if err != nil {
			return fmt.Errorf("%s/%d: %w", cs.name, row.pk, err)
		}
		err = tx.putRecordAs(cs, row.pk, rec, enc)
		if err != nil {
			return err
		}
		if n := i + 1; n%backfillProgressInterval == 0 {
			m.logf("db: indexing %s: %d of %d records done", cs.name, n, len(rows))
		}
	}
	m.logf("db: indexing %d records of %s took %d ms", len(rows), cs.name, time.Since(start).Milliseconds())
	return nil
}
