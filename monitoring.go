package idbstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// IndexInfo describes an index as stored in the database, which may differ
// from the declared fields (see Open).
type IndexInfo struct {
	Name    string
	Unique  bool
	Entries int
	Created time.Time
}

type CollectionStats struct {
	Items      int
	IndexRows  int
	KeyGen     uint64
	Version    uint64
	ReadCount  uint64
	WriteCount uint64
	Created    time.Time
	Upgraded   time.Time
}

// Indexes returns the stored indexes of the collection, sorted by name.
func (m *Manager) Indexes() ([]IndexInfo, error) {
	var result []IndexInfo
	err := m.do("indexes", ReadFailure, false, 0, func(tx *txn) error {
		cs, err := loadCollectionState(tx, m.collName)
		if err != nil {
			return err
		}
		result = make([]IndexInfo, 0, len(cs.indexStates))
		for _, is := range cs.indexStates {
			result = append(result, IndexInfo{
				Name:    is.name,
				Unique:  is.Unique,
				Entries: tx.indexBucket(cs, is).KeyCount(),
				Created: is.Created,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (m *Manager) Stats() (CollectionStats, error) {
	var result CollectionStats
	err := m.do("stats", ReadFailure, false, 0, func(tx *txn) error {
		cs, err := loadCollectionState(tx, m.collName)
		if err != nil {
			return err
		}
		result.Items = tx.dataBucket(cs).KeyCount()
		for _, is := range cs.indexStates {
			result.IndexRows += tx.indexBucket(cs, is).KeyCount()
		}
		result.KeyGen = cs.KeyGen
		result.Version = tx.ver
		result.Created = cs.Created
		result.Upgraded = cs.Upgraded
		return nil
	})
	if err != nil {
		return CollectionStats{}, err
	}
	result.ReadCount = m.ReadCount.Load()
	result.WriteCount = m.WriteCount.Load()
	return result, nil
}

func (m *Manager) loggableRecord(rec Record) string {
	if rec == nil {
		return "<none>"
	}
	if m.opt.SuppressContentWhenLogging {
		return "<suppressed>"
	}
	return loggableVal(rec)
}

func (m *Manager) loggableValue(v any) string {
	if m.opt.SuppressContentWhenLogging {
		return "<suppressed>"
	}
	return loggableVal(v)
}

func loggableVal(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
