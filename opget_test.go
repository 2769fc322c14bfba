package idbstore

import (
	"errors"
	"testing"
)

func TestGetItem(t *testing.T) {
	m := setup(t, userFields)
	key := must(m.AddItem(Record{"email": "a@example.com"}))

	deepEqual(t, must(m.GetItem(key)), Record{"id": key, "email": "a@example.com"})

	for _, k := range []int64{key + 1, 0} {
		_, err := m.GetItem(k)
		isKind(t, err, NotFoundFailure)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("** errors.Is(%v, ErrNotFound) = false", err)
		}
	}
}

func TestGetAllItems_Order(t *testing.T) {
	m := setup(t, nil)
	var want []Record
	for i := 0; i < 300; i++ {
		key := must(m.AddItem(Record{"i": i}))
		want = append(want, Record{"id": key, "i": int64(i)})
	}
	deepEqual(t, must(m.GetAllItems()), want)
}
