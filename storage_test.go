package idbstore

import (
	"path/filepath"
	"testing"
)

func forEachStorage(t *testing.T, f func(t *testing.T, store storage)) {
	t.Run("memory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mem")
		t.Cleanup(func() { dropMemStorage(path) })
		store := openMemStorage(path)
		defer store.Close()
		f(t, store)
	})
	t.Run("bolt", func(t *testing.T) {
		store := must(openBoltStorage(filepath.Join(t.TempDir(), "test.db"), &Options{IsTesting: true}))
		defer store.Close()
		f(t, store)
	})
	t.Run("badger", func(t *testing.T) {
		store := must(openBadgerStorage(filepath.Join(t.TempDir(), "test.badger"), &Options{IsTesting: true}))
		defer store.Close()
		f(t, store)
	})
}

func update(t *testing.T, store storage, f func(tx storageTx)) {
	t.Helper()
	tx := must(store.BeginTx(true))
	defer tx.Rollback()
	f(tx)
	must(0, tx.Commit())
}

func view(t *testing.T, store storage, f func(tx storageTx)) {
	t.Helper()
	tx := must(store.BeginTx(false))
	defer tx.Rollback()
	f(tx)
}

func scanKeys(b storageBucket, seek []byte) []string {
	c := b.Cursor()
	defer c.Close()
	var keys []string
	var k []byte
	if seek == nil {
		k, _ = c.First()
	} else {
		k, _ = c.Seek(seek)
	}
	for ; k != nil; k, _ = c.Next() {
		keys = append(keys, string(k))
	}
	return keys
}

func TestStorage_Buckets(t *testing.T) {
	forEachStorage(t, func(t *testing.T, store storage) {
		view(t, store, func(tx storageTx) {
			if tx.Bucket("coll", "") != nil || tx.Bucket("coll", "data") != nil {
				t.Fatalf("buckets exist in an empty store")
			}
		})
		update(t, store, func(tx storageTx) {
			data := must(tx.CreateBucket("coll", "data"))
			must(0, data.Put([]byte("b"), []byte("2")))
			must(0, data.Put([]byte("a"), []byte("1")))
			must(0, data.Put([]byte("c"), []byte{}))
			root := tx.Bucket("coll", "")
			if root == nil {
				t.Fatalf("root bucket not created with its sub-bucket")
			}
			must(0, root.Put([]byte("_state"), []byte("s")))
			must(tx.CreateBucket("coll2", ""))
		})
		view(t, store, func(tx storageTx) {
			data := tx.Bucket("coll", "data")
			deepEqual(t, string(data.Get([]byte("a"))), "1")
			if v := data.Get([]byte("c")); v == nil || len(v) != 0 {
				t.Errorf("** Get(c) = %#v, wanted empty", v)
			}
			if data.Get([]byte("zz")) != nil {
				t.Errorf("** Get(missing) != nil")
			}
			deepEqual(t, data.KeyCount(), 3)
			deepEqual(t, scanKeys(data, nil), []string{"a", "b", "c"})
			deepEqual(t, scanKeys(data, []byte("b")), []string{"b", "c"})
			deepEqual(t, scanKeys(data, []byte("bb")), []string{"c"})
			deepEqual(t, string(tx.Bucket("coll", "").Get([]byte("_state"))), "s")
			if tx.Bucket("coll2", "") == nil {
				t.Errorf("** coll2 missing")
			}
			// sub-buckets are separate from each other
			if tx.Bucket("coll2", "data") != nil {
				t.Errorf("** coll2/data exists")
			}
		})
	})
}

func TestStorage_RollbackAndDelete(t *testing.T) {
	forEachStorage(t, func(t *testing.T, store storage) {
		update(t, store, func(tx storageTx) {
			b := must(tx.CreateBucket("coll", "data"))
			must(0, b.Put([]byte("a"), []byte("1")))
			must(0, b.Put([]byte("b"), []byte("2")))
		})

		tx := must(store.BeginTx(true))
		b := tx.Bucket("coll", "data")
		must(0, b.Delete([]byte("a")))
		must(0, b.Put([]byte("x"), []byte("9")))
		deepEqual(t, scanKeys(b, nil), []string{"b", "x"})
		must(0, tx.Rollback())
		must(0, tx.Rollback())

		view(t, store, func(tx storageTx) {
			deepEqual(t, scanKeys(tx.Bucket("coll", "data"), nil), []string{"a", "b"})
		})

		update(t, store, func(tx storageTx) {
			b := tx.Bucket("coll", "data")
			must(0, b.Delete([]byte("a")))
			must(0, b.Delete([]byte("missing")))
		})
		view(t, store, func(tx storageTx) {
			deepEqual(t, scanKeys(tx.Bucket("coll", "data"), nil), []string{"b"})
		})
	})
}

func TestStorage_ReadersSeeSnapshot(t *testing.T) {
	forEachStorage(t, func(t *testing.T, store storage) {
		update(t, store, func(tx storageTx) {
			must(0, must(tx.CreateBucket("coll", "data")).Put([]byte("a"), []byte("1")))
		})

		rtx := must(store.BeginTx(false))
		defer rtx.Rollback()

		update(t, store, func(tx storageTx) {
			must(0, tx.Bucket("coll", "data").Put([]byte("a"), []byte("2")))
		})

		deepEqual(t, string(rtx.Bucket("coll", "data").Get([]byte("a"))), "1")
		view(t, store, func(tx storageTx) {
			deepEqual(t, string(tx.Bucket("coll", "data").Get([]byte("a"))), "2")
		})
	})
}
