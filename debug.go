package idbstore

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpHeaders = DumpFlags(1 << iota)
	DumpItems
	DumpStats
	DumpIndices
	DumpIndexRows

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the raw contents of the collection for debugging.
func (m *Manager) Dump(f DumpFlags) (string, error) {
	var buf strings.Builder
	err := m.do("dump", ReadFailure, false, 0, func(tx *txn) error {
		cs, err := loadCollectionState(tx, m.collName)
		if err != nil {
			return err
		}
		tx.dumpCollection(&buf, f, cs)
		return nil
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (tx *txn) dumpCollection(w *strings.Builder, f DumpFlags, cs *collectionState) {
	prefix := cs.name
	dataBuck := tx.dataBucket(cs)

	if f.Contains(DumpHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d items, v%d)\n", prefix, dataBuck.KeyCount(), tx.ver)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: keygen = %d, last_index_ordinal = %d, created = %v, upgraded = %v\n", prefix, cs.KeyGen, cs.LastIndexOrdinal, cs.Created, cs.Upgraded)
	}

	if f.Contains(DumpItems) {
		if f.Contains(DumpStats) {
			fmt.Fprintln(w, dumpSep2)
		}
		c := dataBuck.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			tx.dumpItem(w, prefix, k, v)
		}
		c.Close()
	}

	if f.Contains(DumpIndices) {
		for _, is := range cs.indexStates {
			tx.dumpIndex(w, prefix, f, cs, is)
		}
	}
}

func (tx *txn) dumpItem(w *strings.Builder, prefix string, k, v []byte) {
	pk, err := decodePK(k)
	if err != nil {
		fmt.Fprintf(w, "%s.%s ** ERROR: %v\n", prefix, hexstr(k), err)
		return
	}
	var vle value
	err = vle.decode(v)
	if err != nil {
		fmt.Fprintf(w, "%s.%d ** ERROR: %v\n", prefix, pk, err)
		return
	}
	rec, err := vle.Flags.encoding().decodeRecord(vle.Data)
	if err != nil {
		fmt.Fprintf(w, "%s.%d = (m%d s%d) ** ERROR: %v\n", prefix, pk, vle.ModCount, vle.SchemaVer, err)
		return
	}
	fmt.Fprintf(w, "%s.%d = (m%d s%d) %s\n", prefix, pk, vle.ModCount, vle.SchemaVer, tx.m.loggableRecord(rec))
}

func (tx *txn) dumpIndex(w *strings.Builder, prefix string, f DumpFlags, cs *collectionState, is *indexState) {
	fmt.Fprintln(w, dumpSep2)
	prefix = prefix + ".i." + is.name
	fmt.Fprintf(w, "%s (0x%x)%s\n", prefix, is.Ordinal, map[bool]string{false: "", true: " UNIQUE"}[is.Unique])

	if f.Contains(DumpIndexRows) {
		c := tx.indexBucket(cs, is).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if is.Unique {
				fmt.Fprintf(w, "%s: %s => %s\n", prefix, hexstr(k), hexstr(v))
			} else if len(k) > pkSize {
				fmt.Fprintf(w, "%s: %s => %s\n", prefix, hexstr(k[:len(k)-pkSize]), hexstr(k[len(k)-pkSize:]))
			} else {
				fmt.Fprintf(w, "%s: %s ** INVALID\n", prefix, hexstr(k))
			}
		}
		c.Close()
	}
}
