package idbstore

import (
	"strings"
	"testing"
)

func TestIndexesAndStats(t *testing.T) {
	m := setup(t, userFields)
	must(m.AddItem(Record{"email": "a@example.com", "tag": "x"}))
	must(m.AddItem(Record{"email": "b@example.com"}))

	infos := must(m.Indexes())
	deepEqual(t, len(infos), 2)
	deepEqual(t, []any{infos[0].Name, infos[0].Unique, infos[0].Entries}, []any{"email", true, 2})
	deepEqual(t, []any{infos[1].Name, infos[1].Unique, infos[1].Entries}, []any{"tag", false, 1})

	stats := must(m.Stats())
	deepEqual(t, stats.Items, 2)
	deepEqual(t, stats.IndexRows, 3)
	deepEqual(t, stats.KeyGen, uint64(2))
	if stats.WriteCount < 3 || stats.ReadCount < 2 {
		t.Errorf("** counters = %d writes, %d reads", stats.WriteCount, stats.ReadCount)
	}
	if stats.Created.IsZero() || stats.Upgraded.Before(stats.Created) {
		t.Errorf("** created = %v, upgraded = %v", stats.Created, stats.Upgraded)
	}
}

func TestDump(t *testing.T) {
	m := setup(t, userFields)
	must(m.AddItem(Record{"email": "a@example.com", "tag": "x"}))

	dump := must(m.Dump(DumpAll))
	for _, substr := range []string{
		"items (1 items, v1)",
		"items.stats: keygen = 1",
		`items.1 = (m1 s1) {"email":"a@example.com","tag":"x"}`,
		"items.i.email (0x1) UNIQUE",
		"items.i.tag (0x2)\n",
		"items.i.tag: 30780001 => 0000000000000001",
	} {
		if !strings.Contains(dump, substr) {
			t.Errorf("** dump does not contain %q:\n%s", substr, dump)
		}
	}
}

func TestLoggableVal(t *testing.T) {
	deepEqual(t, loggableVal(Record{"a": int64(1)}), `{"a":1}`)
	deepEqual(t, loggableVal(map[string]any{"c": make(chan int)})[:4], "map[")
}
