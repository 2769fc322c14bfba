package idbstore

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// txn is a single storage transaction scoped to one Manager operation.
type txn struct {
	m       *Manager
	stx     storageTx
	ver     uint64 // database version stamped onto written values
	written bool
}

func (tx *txn) markWritten() {
	tx.written = true
}

func (tx *txn) dataBucket(cs *collectionState) storageBucket {
	b := tx.stx.Bucket(cs.name, dataBucket)
	if b == nil {
		panic(ErrNoCollection)
	}
	return b
}

func (tx *txn) indexBucket(cs *collectionState, is *indexState) storageBucket {
	b := tx.stx.Bucket(cs.name, makeIndexBucketName(is.name))
	if b == nil {
		panic(fmt.Errorf("missing bucket for index %s.%s", cs.name, is.name))
	}
	return b
}

// run executes f inside a new transaction. Writable transactions are
// committed if f succeeds; everything else is rolled back. Panics raised
// inside f (including the must/ensure family) become errors.
func (m *Manager) run(store storage, writable bool, ver uint64, f func(tx *txn) error) error {
	stx, err := store.BeginTx(writable)
	if err != nil {
		return err
	}
	defer stx.Rollback()

	if writable {
		m.WriteCount.Add(1)
	} else {
		m.ReadCount.Add(1)
	}

	tx := &txn{m: m, stx: stx, ver: ver}
	err = safelyCall(f, tx)
	if err != nil {
		return err
	}
	if writable && tx.written {
		return stx.Commit()
	}
	return nil
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*txn) error, tx *txn) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok && !isRuntimeErr(e) {
				err = e
			} else {
				err = panicked{p, string(debug.Stack())}
			}
		}
	}()
	return fn(tx)
}

func isRuntimeErr(err error) bool {
	_, ok := err.(runtime.Error)
	return ok
}
