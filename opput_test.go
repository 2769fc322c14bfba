package idbstore

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"testing"
)

func TestAddItem_RoundTrip(t *testing.T) {
	m := setup(t, userFields)

	key := must(m.AddItem(Record{"name": "a"}))
	if key <= 0 {
		t.Fatalf("AddItem key = %d, wanted positive", key)
	}
	deepEqual(t, must(m.GetAllItems()), []Record{{"id": key, "name": "a"}})

	must(0, m.DeleteItem(key))
	deepEqual(t, must(m.GetAllItems()), []Record{})
}

func TestAddItem_KeysIncrease(t *testing.T) {
	m := setup(t, nil)
	k1 := must(m.AddItem(Record{"n": 1}))
	k2 := must(m.AddItem(Record{"n": 2}))
	must(0, m.DeleteItem(k2))
	k3 := must(m.AddItem(Record{"n": 3}))
	deepEqual(t, []int64{k1, k2, k3}, []int64{1, 2, 3})

	stats := must(m.Stats())
	deepEqual(t, stats.Items, 2)
	deepEqual(t, stats.KeyGen, uint64(3))
	deepEqual(t, stats.Version, uint64(1))
}

func TestAddItem_RejectsKey(t *testing.T) {
	m := setup(t, userFields)
	_, err := m.AddItem(Record{"id": 5, "name": "a"})
	isKind(t, err, WriteFailure)
	if !errors.Is(err, ErrKeyProvided) {
		t.Errorf("** errors.Is(%v, ErrKeyProvided) = false", err)
	}
	isempty(t, must(m.GetAllItems()))
}

func TestAddItem_RejectsUnsupportedValues(t *testing.T) {
	m := setup(t, userFields)
	_, err := m.AddItem(Record{"ch": make(chan int)})
	isKind(t, err, WriteFailure)
	isempty(t, must(m.GetAllItems()))
}

func TestAddItem_UniqueViolation(t *testing.T) {
	m := setup(t, userFields)
	k1 := must(m.AddItem(Record{"email": "a@example.com", "tag": "x"}))

	_, err := m.AddItem(Record{"email": "a@example.com", "tag": "y"})
	isKind(t, err, WriteFailure)
	if !errors.Is(err, ErrConstraint) {
		t.Errorf("** errors.Is(%v, ErrConstraint) = false", err)
	}
	if !errors.Is(err, ErrWrite) {
		t.Errorf("** errors.Is(%v, ErrWrite) = false", err)
	}

	// nothing from the rejected record is visible
	deepEqual(t, must(m.GetAllItems()), []Record{{"id": k1, "email": "a@example.com", "tag": "x"}})
	isempty(t, must(m.GetItemsByIndex("tag", "y")))

	// the rejected add did not consume a key
	k2 := must(m.AddItem(Record{"email": "b@example.com"}))
	deepEqual(t, k2, k1+1)
}

func TestAddItem_MissingFieldsAreNotIndexed(t *testing.T) {
	m := setup(t, userFields)
	must(m.AddItem(Record{"name": "no email"}))
	must(m.AddItem(Record{"name": "no email either"}))
	must(m.AddItem(Record{"email": nil}))
	must(m.AddItem(Record{"email": true}))

	infos := must(m.Indexes())
	deepEqual(t, infos[0].Name, "email")
	deepEqual(t, infos[0].Entries, 0)
}

func TestUpdateItem_ShallowMerge(t *testing.T) {
	m := setup(t, userFields)
	key := must(m.AddItem(Record{"a": 1, "b": 2, "nested": map[string]any{"x": 1, "y": 2}}))

	must(0, m.UpdateItem(key, Record{"b": 3, "nested": map[string]any{"x": 9}}))
	deepEqual(t, must(m.GetAllItems()), []Record{{
		"id":     key,
		"a":      int64(1),
		"b":      int64(3),
		"nested": map[string]any{"x": int64(9)},
	}})
}

func TestUpdateItem_NotFound(t *testing.T) {
	m := setup(t, userFields)
	key := must(m.AddItem(Record{"a": 1}))
	before := must(m.GetAllItems())
	writes := m.WriteCount.Load()

	for _, k := range []int64{key + 1, 0, -1} {
		err := m.UpdateItem(k, Record{"a": 2})
		isKind(t, err, NotFoundFailure)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("** errors.Is(%v, ErrNotFound) = false", err)
		}
	}
	deepEqual(t, must(m.GetAllItems()), before)
	deepEqual(t, m.WriteCount.Load(), writes+3)
}

func TestUpdateItem_Key(t *testing.T) {
	m := setup(t, userFields)
	key := must(m.AddItem(Record{"a": 1}))

	must(0, m.UpdateItem(key, Record{"id": key, "a": 2}))
	deepEqual(t, must(m.GetAllItems()), []Record{{"id": key, "a": int64(2)}})

	// ids that went through JSON arrive as floats or numbers
	must(0, m.UpdateItem(key, Record{"id": float64(key), "a": 3}))
	must(0, m.UpdateItem(key, Record{"id": json.Number(strconv.FormatInt(key, 10)), "a": 4}))
	must(0, m.UpdateItem(key, Record{"id": int32(key), "a": 5}))
	deepEqual(t, must(m.GetAllItems()), []Record{{"id": key, "a": int64(5)}})

	for _, id := range []any{key + 1, float64(key) + 0.5, float64(key + 1), "1", nil} {
		err := m.UpdateItem(key, Record{"id": id, "a": 6})
		isKind(t, err, WriteFailure)
		if !errors.Is(err, ErrKeyImmutable) {
			t.Errorf("** errors.Is(%v, ErrKeyImmutable) = false", err)
		}
	}
	deepEqual(t, must(m.GetAllItems()), []Record{{"id": key, "a": int64(5)}})
}

func TestUpdateItem_MaintainsIndexes(t *testing.T) {
	m := setup(t, userFields)
	k1 := must(m.AddItem(Record{"email": "a@example.com", "tag": "x"}))
	k2 := must(m.AddItem(Record{"email": "b@example.com", "tag": "x"}))

	must(0, m.UpdateItem(k1, Record{"email": "c@example.com", "tag": "z"}))
	isempty(t, must(m.GetItemsByIndex("email", "a@example.com")))
	deepEqual(t, must(m.GetItemsByIndex("tag", "x")), []Record{{"id": k2, "email": "b@example.com", "tag": "x"}})
	deepEqual(t, must(m.GetItemsByIndex("email", "c@example.com")), []Record{{"id": k1, "email": "c@example.com", "tag": "z"}})

	// the freed unique value can be taken by another record
	must(0, m.UpdateItem(k2, Record{"email": "a@example.com"}))
	deepEqual(t, must(m.GetItemsByIndex("email", "a@example.com")), []Record{{"id": k2, "email": "a@example.com", "tag": "x"}})

	err := m.UpdateItem(k2, Record{"email": "c@example.com"})
	isKind(t, err, WriteFailure)
	if !errors.Is(err, ErrConstraint) {
		t.Errorf("** errors.Is(%v, ErrConstraint) = false", err)
	}
	deepEqual(t, must(m.GetItemsByIndex("email", "a@example.com")), []Record{{"id": k2, "email": "a@example.com", "tag": "x"}})

	// removing a field removes its index entry
	must(0, m.UpdateItem(k2, Record{"tag": nil}))
	isempty(t, must(m.GetItemsByIndex("tag", "x")))
	deepEqual(t, must(m.Stats()).IndexRows, 3)
}

func TestUpdateItem_NoopKeepsModCount(t *testing.T) {
	m := setup(t, userFields)
	key := must(m.AddItem(Record{"email": "a@example.com"}))
	must(0, m.UpdateItem(key, Record{"email": "a@example.com"}))
	must(0, m.UpdateItem(key, Record{"tag": "x"}))

	dump := must(m.Dump(DumpItems))
	deepEqual(t, dump, "items.1 = (m2 s1) {\"email\":\"a@example.com\",\"tag\":\"x\"}\n")
}

func TestDeleteItem(t *testing.T) {
	m := setup(t, userFields)
	k1 := must(m.AddItem(Record{"email": "a@example.com", "tag": "x"}))
	k2 := must(m.AddItem(Record{"email": "b@example.com", "tag": "x"}))

	must(0, m.DeleteItem(k1))
	deepEqual(t, must(m.GetAllItems()), []Record{{"id": k2, "email": "b@example.com", "tag": "x"}})
	isempty(t, must(m.GetItemsByIndex("email", "a@example.com")))
	deepEqual(t, len(must(m.GetItemsByIndex("tag", "x"))), 1)
	deepEqual(t, must(m.Stats()).IndexRows, 2)

	// missing keys are not an error
	must(0, m.DeleteItem(k1))
	must(0, m.DeleteItem(0))
	must(0, m.DeleteItem(-5))

	// a deleted unique value can be reused
	must(m.AddItem(Record{"email": "a@example.com"}))
}

func TestAddItem_JSONEncodingRejectsLossyValues(t *testing.T) {
	opt := testOptions(t, t.TempDir())
	opt.Encoding = JSON
	m := open(t, opt, []Field{{Name: "bin"}, {Name: "at"}}, 1)

	for _, rec := range []Record{
		{"bin": []byte("ab")},
		{"at": testTime},
		{"tag": "x", "nested": map[string]any{"list": []any{1, testTime}}},
		{"big": uint64(math.MaxUint64)},
		{"f": math.Inf(1)},
	} {
		_, err := m.AddItem(rec)
		isKind(t, err, WriteFailure)
		if !errors.Is(err, ErrNotJSONSafe) {
			t.Errorf("** errors.Is(%v, ErrNotJSONSafe) = false", err)
		}
	}
	isempty(t, must(m.GetAllItems()))

	k := must(m.AddItem(Record{"tag": "x", "n": 1.5}))
	err := m.UpdateItem(k, Record{"bin": []byte("ab")})
	isKind(t, err, WriteFailure)
	deepEqual(t, must(m.GetAllItems()), []Record{{"id": k, "tag": "x", "n": 1.5}})
	isempty(t, must(m.GetItemsByIndex("bin", []byte("ab"))))
}

func TestUpdateItem_BinaryAndDateSurviveEncodingSwitch(t *testing.T) {
	opt := testOptions(t, t.TempDir())
	fields := []Field{{Name: "bin"}, {Name: "at"}}
	m := open(t, opt, fields, 1)
	k := must(m.AddItem(Record{"bin": []byte("ab"), "at": testTime, "n": 1}))
	must(0, m.Close())

	opt.Encoding = JSON
	m2 := open(t, opt, fields, 1)
	err := m2.UpdateItem(k, Record{"n": 2})
	isKind(t, err, WriteFailure)
	if !errors.Is(err, ErrNotJSONSafe) {
		t.Errorf("** errors.Is(%v, ErrNotJSONSafe) = false", err)
	}
	deepEqual(t, len(must(m2.GetItemsByIndex("bin", []byte("ab")))), 1)
	deepEqual(t, len(must(m2.GetItemsByIndex("at", testTime))), 1)
	must(0, m2.Close())

	// a backfill rewrites records in the encoding they were stored with
	m3 := open(t, opt, append(fields, Field{Name: "n"}), 2)
	got := must(m3.GetItemsByIndex("n", 1))
	deepEqual(t, len(got), 1)
	deepEqual(t, got[0]["bin"], any([]byte("ab")))
	deepEqual(t, len(must(m3.GetItemsByIndex("at", testTime))), 1)
	deepEqual(t, len(must(m3.GetItemsByIndex("bin", []byte("ab")))), 1)
}
