package memtable

import (
	"bytes"
	"testing"

	"github.com/vaultkv/vaultkv/internal/dbformat"
)

func TestMemTableAddGet(t *testing.T) {
	m := NewMemTable(dbformat.BytewiseCompare)
	m.Add(1, dbformat.TypeValue, []byte("k1"), []byte("v1"))
	m.Add(2, dbformat.TypeValue, []byte("k2"), []byte("v2"))

	val, found, deleted := m.Get([]byte("k1"), 10)
	if !found || deleted || !bytes.Equal(val, []byte("v1")) {
		t.Fatalf("Get(k1) = (%q, %v, %v)", val, found, deleted)
	}

	_, found, _ = m.Get([]byte("missing"), 10)
	if found {
		t.Fatalf("Get(missing) should not be found")
	}
}

func TestMemTableVisibilityAtSequence(t *testing.T) {
	m := NewMemTable(dbformat.BytewiseCompare)
	m.Add(5, dbformat.TypeValue, []byte("k"), []byte("old"))
	m.Add(10, dbformat.TypeValue, []byte("k"), []byte("new"))

	val, found, _ := m.Get([]byte("k"), 10)
	if !found || !bytes.Equal(val, []byte("new")) {
		t.Fatalf("Get at seq 10 = %q, want new", val)
	}

	val, found, _ = m.Get([]byte("k"), 5)
	if !found || !bytes.Equal(val, []byte("old")) {
		t.Fatalf("Get at seq 5 = %q, want old", val)
	}

	_, found, _ = m.Get([]byte("k"), 4)
	if found {
		t.Fatalf("Get at seq 4 should see nothing")
	}
}

func TestMemTableDeletionIsTombstone(t *testing.T) {
	m := NewMemTable(dbformat.BytewiseCompare)
	m.Add(1, dbformat.TypeValue, []byte("k"), []byte("v"))
	m.Add(2, dbformat.TypeDeletion, []byte("k"), nil)

	val, found, deleted := m.Get([]byte("k"), 10)
	if !found || !deleted || val != nil {
		t.Fatalf("Get after delete = (%q, %v, %v), want (nil, true, true)", val, found, deleted)
	}
}

func TestMemTableIteratorOrder(t *testing.T) {
	m := NewMemTable(dbformat.BytewiseCompare)
	m.Add(1, dbformat.TypeValue, []byte("b"), []byte("2"))
	m.Add(1, dbformat.TypeValue, []byte("a"), []byte("1"))
	m.Add(2, dbformat.TypeValue, []byte("a"), []byte("1-new"))

	it := m.NewIterator()
	it.SeekToFirst()
	if !it.Valid() {
		t.Fatalf("expected at least one entry")
	}
	first := dbformat.ExtractUserKey(it.InternalKey())
	if string(first) != "a" {
		t.Fatalf("first user key = %q, want a", first)
	}
	if !bytes.Equal(it.Value(), []byte("1-new")) {
		t.Fatalf("first value = %q, want newest write for a", it.Value())
	}
}
