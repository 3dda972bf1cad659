package batch

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vaultkv/vaultkv/internal/dbformat"
	"github.com/vaultkv/vaultkv/internal/memtable"
)

type recordingHandler struct {
	puts    [][2]string
	deletes []string
}

func (h *recordingHandler) Put(key, value []byte) error {
	h.puts = append(h.puts, [2]string{string(key), string(value)})
	return nil
}

func (h *recordingHandler) Delete(key []byte) error {
	h.deletes = append(h.deletes, string(key))
	return nil
}

func TestWriteBatchIterateOrder(t *testing.T) {
	wb := New()
	wb.Put([]byte("a"), []byte("1"))
	wb.Delete([]byte("b"))
	wb.Put([]byte("c"), []byte("3"))

	if wb.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", wb.Count())
	}

	h := &recordingHandler{}
	if err := wb.Iterate(h); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(h.puts) != 2 || len(h.deletes) != 1 {
		t.Fatalf("puts=%v deletes=%v", h.puts, h.deletes)
	}
	if h.puts[0] != [2]string{"a", "1"} || h.puts[1] != [2]string{"c", "3"} {
		t.Fatalf("unexpected put order: %v", h.puts)
	}
}

func TestWriteBatchAppendConcatenatesAndSumsCounts(t *testing.T) {
	a := New()
	a.SetSequence(7)
	a.Put([]byte("a"), []byte("1"))

	b := New()
	b.Put([]byte("b"), []byte("2"))
	b.Delete([]byte("c"))

	a.Append(b)
	if a.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", a.Count())
	}
	if a.Sequence() != 7 {
		t.Fatalf("Sequence() = %d, want 7 (destination header preserved)", a.Sequence())
	}

	h := &recordingHandler{}
	if err := a.Iterate(h); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(h.puts) != 2 || len(h.deletes) != 1 {
		t.Fatalf("puts=%v deletes=%v", h.puts, h.deletes)
	}
}

func TestWriteBatchIterateDetectsCountMismatch(t *testing.T) {
	wb := New()
	wb.Put([]byte("a"), []byte("1"))
	wb.setCount(2) // forge a count that doesn't match the actual record stream

	err := wb.Iterate(&recordingHandler{})
	if !errors.Is(err, ErrCorruptBatch) {
		t.Fatalf("Iterate = %v, want ErrCorruptBatch", err)
	}
}

func TestInsertIntoAssignsConsecutiveSequences(t *testing.T) {
	wb := New()
	wb.SetSequence(100)
	wb.Put([]byte("k1"), []byte("v1"))
	wb.Put([]byte("k2"), []byte("v2"))

	mem := memtable.NewMemTable(dbformat.BytewiseCompare)
	if err := InsertInto(wb, mem); err != nil {
		t.Fatalf("InsertInto: %v", err)
	}

	v, found, _ := mem.Get([]byte("k1"), 100)
	if !found || !bytes.Equal(v, []byte("v1")) {
		t.Fatalf("Get(k1, 100) = (%q, %v)", v, found)
	}
	v, found, _ = mem.Get([]byte("k2"), 101)
	if !found || !bytes.Equal(v, []byte("v2")) {
		t.Fatalf("Get(k2, 101) = (%q, %v)", v, found)
	}
}
