package idbstore

import "testing"

func TestIndexesToCreate(t *testing.T) {
	tests := []struct {
		existing []string
		declared []Field
		exp      []Field
	}{
		{nil, nil, nil},
		{nil, []Field{{Name: "a"}, {Name: "b", Unique: true}}, []Field{{Name: "a"}, {Name: "b", Unique: true}}},
		{[]string{"a"}, []Field{{Name: "a"}, {Name: "b"}}, []Field{{Name: "b"}}},
		{[]string{"a", "b"}, []Field{{Name: "b", Unique: true}, {Name: "a"}}, nil},
		{[]string{"z"}, []Field{{Name: "c"}, {Name: "a"}}, []Field{{Name: "c"}, {Name: "a"}}},
	}
	for _, tt := range tests {
		existing := make(map[string]bool)
		for _, name := range tt.existing {
			existing[name] = true
		}
		deepEqual(t, indexesToCreate(existing, tt.declared), tt.exp)
	}
}

func TestCollectionState_Ordinals(t *testing.T) {
	cs := newCollectionState("items", testTime)
	a := cs.addIndex(Field{Name: "a"})
	b := cs.addIndex(Field{Name: "b", Unique: true})
	deepEqual(t, []uint64{a.Ordinal, b.Ordinal}, []uint64{1, 2})
	if cs.indexByOrdinal(2) != b || cs.index("a") != a {
		t.Errorf("** index lookups do not match")
	}
	deepEqual(t, cs.indexNameSet(), map[string]bool{"a": true, "b": true})

	cs.KeyGen = maxGeneratedKey - 1
	deepEqual(t, must(cs.nextKey()), uint64(maxGeneratedKey))
	if _, err := cs.nextKey(); err != ErrKeyGeneratorExhausted {
		t.Errorf("** nextKey past the limit = %v, wanted ErrKeyGeneratorExhausted", err)
	}
}
