package idbstore

import (
	"encoding/binary"
	"reflect"
	"sort"
	"time"
)

const (
	metaBucket = "_idb"
	dataBucket = "data"
)

var (
	versionKey         = []byte("version")
	collectionStateKey = []byte("_state")
)

const collectionStateEncoding = MsgPack

// maxGeneratedKey matches the largest integer a JavaScript number holds exactly.
const maxGeneratedKey = 1 << 53

// collectionState is the persisted metadata of a collection. It is the source
// of truth for which indexes exist; declared fields are only reconciled
// against it during an upgrade.
type collectionState struct {
	KeyGen           uint64                 `msgpack:"k"`
	LastIndexOrdinal uint64                 `msgpack:"li"`
	Indices          map[string]*indexState `msgpack:"i"`
	Created          time.Time              `msgpack:"c"`
	Upgraded         time.Time              `msgpack:"u"`

	name             string
	indexStates      []*indexState
	indexStatesByOrd map[uint64]*indexState
}

type indexState struct {
	Ordinal uint64    `msgpack:"o"`
	Unique  bool      `msgpack:"u"`
	Created time.Time `msgpack:"t"`

	name string
}

func newCollectionState(name string, now time.Time) *collectionState {
	cs := &collectionState{
		name:     name,
		Indices:  make(map[string]*indexState),
		Created:  now,
		Upgraded: now,
	}
	cs.init()
	return cs
}

func (cs *collectionState) init() {
	if cs.Indices == nil {
		cs.Indices = make(map[string]*indexState)
	}
	cs.indexStates = make([]*indexState, 0, len(cs.Indices))
	cs.indexStatesByOrd = make(map[uint64]*indexState, len(cs.Indices))
	for name, is := range cs.Indices {
		is.name = name
		cs.indexStates = append(cs.indexStates, is)
		cs.indexStatesByOrd[is.Ordinal] = is
	}
	sort.Slice(cs.indexStates, func(i, j int) bool {
		return cs.indexStates[i].Ordinal < cs.indexStates[j].Ordinal
	})
}

// addIndex records a new index. Ordinals are never reused.
func (cs *collectionState) addIndex(f Field) *indexState {
	cs.LastIndexOrdinal++
	is := &indexState{
		Ordinal: cs.LastIndexOrdinal,
		Unique:  f.Unique,
		Created: cs.Upgraded,
		name:    f.Name,
	}
	cs.Indices[f.Name] = is
	cs.indexStates = append(cs.indexStates, is)
	cs.indexStatesByOrd[is.Ordinal] = is
	return is
}

func (cs *collectionState) index(name string) *indexState {
	return cs.Indices[name]
}

func (cs *collectionState) indexByOrdinal(ord uint64) *indexState {
	return cs.indexStatesByOrd[ord]
}

func (cs *collectionState) indexNameSet() map[string]bool {
	names := make(map[string]bool, len(cs.Indices))
	for name := range cs.Indices {
		names[name] = true
	}
	return names
}

func (cs *collectionState) nextKey() (uint64, error) {
	if cs.KeyGen >= maxGeneratedKey {
		return 0, ErrKeyGeneratorExhausted
	}
	cs.KeyGen++
	return cs.KeyGen, nil
}

func loadCollectionState(tx *txn, name string) (*collectionState, error) {
	root := tx.stx.Bucket(name, "")
	if root == nil {
		return nil, ErrNoCollection
	}
	raw := root.Get(collectionStateKey)
	if raw == nil {
		return nil, dataErrf(nil, 0, nil, "collection %s has no state", name)
	}
	cs := new(collectionState)
	err := collectionStateEncoding.DecodeValue(raw, reflect.ValueOf(cs))
	if err != nil {
		return nil, err
	}
	cs.name = name
	cs.init()
	return cs, nil
}

func (cs *collectionState) save(tx *txn) {
	rawCS := collectionStateEncoding.EncodeValue(nil, reflect.ValueOf(cs))
	root := must(tx.stx.CreateBucket(cs.name, ""))
	ensure(root.Put(collectionStateKey, rawCS))
	tx.markWritten()
}

func readStoredVersion(tx *txn) uint64 {
	b := tx.stx.Bucket(metaBucket, "")
	if b == nil {
		return 0
	}
	raw := b.Get(versionKey)
	if len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func writeStoredVersion(tx *txn, ver uint64) {
	b := must(tx.stx.CreateBucket(metaBucket, ""))
	ensure(b.Put(versionKey, binary.BigEndian.AppendUint64(nil, ver)))
	tx.markWritten()
}
