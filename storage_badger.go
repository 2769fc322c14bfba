package idbstore

import (
	"bytes"
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Badger has no buckets, so they are simulated with key prefixes:
//
//	'b' name 0x00 sub 0x00 key  -> value
//	'm' name 0x00 sub           -> bucket marker
const (
	badgerDataPrefix   = 'b'
	badgerMarkerPrefix = 'm'
)

type badgerStorage struct {
	db *badger.DB

	// Badger transactions are optimistic; writers are serialized here so
	// that concurrent writes queue up instead of failing with ErrConflict.
	writeLock sync.Mutex
}

// Badger caps a transaction at 15% of the memtable size, and refuses to open
// when that cap is below the value threshold (1 MiB by default). 8 MiB is the
// smallest power of two that still opens.
const badgerTestingMemTableSize = 8 << 20

func openBadgerStorage(dir string, opt *Options) (storage, error) {
	bopt := badger.DefaultOptions(dir).WithLogger(nil)
	if opt.IsTesting {
		bopt = bopt.WithSyncWrites(false).WithNumVersionsToKeep(1).WithValueLogFileSize(1 << 24).WithMemTableSize(badgerTestingMemTableSize)
	}
	db, err := badger.Open(bopt)
	if err != nil {
		return nil, err
	}
	return &badgerStorage{db: db}, nil
}

func (s *badgerStorage) BeginTx(writable bool) (storageTx, error) {
	if writable {
		s.writeLock.Lock()
	}
	if s.db.IsClosed() {
		if writable {
			s.writeLock.Unlock()
		}
		return nil, badger.ErrDBClosed
	}
	return &badgerStorageTx{s: s, txn: s.db.NewTransaction(writable), writable: writable}, nil
}

func (s *badgerStorage) Close() error {
	return s.db.Close()
}

type badgerStorageTx struct {
	s        *badgerStorage
	txn      *badger.Txn
	writable bool
	done     bool
}

func (tx *badgerStorageTx) Writable() bool { return tx.writable }

func (tx *badgerStorageTx) Bucket(name, sub string) storageBucket {
	_, err := tx.txn.Get(badgerMarkerKey(name, sub))
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			panic(err)
		}
		return nil
	}
	return badgerBucket{tx: tx, prefix: badgerBucketPrefix(name, sub)}
}

func (tx *badgerStorageTx) CreateBucket(name, sub string) (storageBucket, error) {
	if sub != "" {
		if err := tx.txn.Set(badgerMarkerKey(name, ""), nil); err != nil {
			return nil, err
		}
	}
	if err := tx.txn.Set(badgerMarkerKey(name, sub), nil); err != nil {
		return nil, err
	}
	return badgerBucket{tx: tx, prefix: badgerBucketPrefix(name, sub)}, nil
}

func (tx *badgerStorageTx) Commit() error {
	if tx.done {
		return nil
	}
	defer tx.finish()
	return tx.txn.Commit()
}

func (tx *badgerStorageTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.finish()
	return nil
}

func (tx *badgerStorageTx) finish() {
	tx.done = true
	tx.txn.Discard()
	if tx.writable {
		tx.s.writeLock.Unlock()
	}
}

func badgerMarkerKey(name, sub string) []byte {
	key := make([]byte, 0, 2+len(name)+len(sub))
	key = append(key, badgerMarkerPrefix)
	key = append(key, name...)
	key = append(key, 0)
	return append(key, sub...)
}

func badgerBucketPrefix(name, sub string) []byte {
	key := make([]byte, 0, 3+len(name)+len(sub))
	key = append(key, badgerDataPrefix)
	key = append(key, name...)
	key = append(key, 0)
	key = append(key, sub...)
	return append(key, 0)
}

type badgerBucket struct {
	tx     *badgerStorageTx
	prefix []byte
}

func (b badgerBucket) key(k []byte) []byte {
	full := make([]byte, 0, len(b.prefix)+len(k))
	full = append(full, b.prefix...)
	return append(full, k...)
}

func (b badgerBucket) Get(key []byte) []byte {
	item, err := b.tx.txn.Get(b.key(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	ensure(err)
	return append([]byte{}, must(item.ValueCopy(nil))...)
}

func (b badgerBucket) Put(key, value []byte) error {
	return b.tx.txn.Set(b.key(key), bytes.Clone(value))
}

func (b badgerBucket) Delete(key []byte) error {
	return b.tx.txn.Delete(b.key(key))
}

func (b badgerBucket) Cursor() storageCursor {
	iopt := badger.DefaultIteratorOptions
	iopt.Prefix = b.prefix
	return &badgerCursor{it: b.tx.txn.NewIterator(iopt), prefix: b.prefix}
}

func (b badgerBucket) KeyCount() int {
	iopt := badger.DefaultIteratorOptions
	iopt.Prefix = b.prefix
	iopt.PrefetchValues = false
	it := b.tx.txn.NewIterator(iopt)
	defer it.Close()
	var n int
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n
}

type badgerCursor struct {
	it     *badger.Iterator
	prefix []byte
	closed bool
}

func (c *badgerCursor) current() ([]byte, []byte) {
	if !c.it.ValidForPrefix(c.prefix) {
		return nil, nil
	}
	item := c.it.Item()
	k := item.KeyCopy(nil)[len(c.prefix):]
	v := must(item.ValueCopy(nil))
	if v == nil {
		v = []byte{}
	}
	return k, v
}

func (c *badgerCursor) First() ([]byte, []byte) {
	c.it.Rewind()
	return c.current()
}

func (c *badgerCursor) Seek(seek []byte) ([]byte, []byte) {
	full := make([]byte, 0, len(c.prefix)+len(seek))
	full = append(full, c.prefix...)
	c.it.Seek(append(full, seek...))
	return c.current()
}

func (c *badgerCursor) Next() ([]byte, []byte) {
	if !c.it.Valid() {
		return nil, nil
	}
	c.it.Next()
	return c.current()
}

func (c *badgerCursor) Close() {
	if !c.closed {
		c.closed = true
		c.it.Close()
	}
}
