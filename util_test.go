package idbstore

import (
	"errors"
	"testing"
)

func TestSplitByte(t *testing.T) {
	a, b, ok := splitByte("a.b", '.')
	if !ok || a != "a" || b != "b" {
		t.Fatalf("splitByte = (%q, %q, %v), wanted (\"a\", \"b\", true)", a, b, ok)
	}

	a, b, ok = splitByte("ab", '.')
	if ok || a != "ab" || b != "" {
		t.Fatalf("splitByte(no sep) = (%q, %q, %v), wanted (\"ab\", \"\", false)", a, b, ok)
	}
}

func TestHexHelpers(t *testing.T) {
	if got := hexstr(nil); got != "<nil>" {
		t.Fatalf("hexstr(nil) = %q, wanted <nil>", got)
	}
	if got := hexstr([]byte{}); got != "<empty>" {
		t.Fatalf("hexstr(empty) = %q, wanted <empty>", got)
	}
	if got := hexstr([]byte{0xAA, 0xBB}); got != "aabb" {
		t.Fatalf("hexstr = %q, wanted aabb", got)
	}
}

func TestMustAndEnsure(t *testing.T) {
	if got := must(42, nil); got != 42 {
		t.Fatalf("must = %d, wanted 42", got)
	}
	boom := errors.New("boom")
	defer func() {
		if p := recover(); p != boom {
			t.Fatalf("recover() = %v, wanted %v", p, boom)
		}
	}()
	ensure(boom)
}
