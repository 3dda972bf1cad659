package memtable

import (
	"bytes"
	"math/rand"
	"sort"
	"strconv"
	"testing"
)

func byteCompare(a, b []byte) int { return bytes.Compare(a, b) }

func TestSkipListInsertAndContains(t *testing.T) {
	l := NewSkipList(byteCompare)
	const n = 2000
	const spaceSize = 5000
	rng := rand.New(rand.NewSource(1))
	seen := map[int]bool{}
	var keys []int
	for i := 0; i < n; i++ {
		k := rng.Intn(spaceSize)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
		l.Insert([]byte(strconv.Itoa(k)))
	}

	for k := 0; k < spaceSize; k++ {
		want := seen[k]
		got := l.Contains([]byte(strconv.Itoa(k)))
		if got != want {
			t.Fatalf("Contains(%d) = %v, want %v", k, got, want)
		}
	}
}

func TestSkipListIterationOrder(t *testing.T) {
	l := NewSkipList(byteCompare)
	words := []string{"banana", "apple", "cherry", "date", "apple2"}
	for _, w := range words {
		l.Insert([]byte(w))
	}
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)

	it := l.NewIterator()
	it.SeekToFirst()
	var got []string
	for it.Valid() {
		got = append(got, string(it.Key()))
		it.Next()
	}
	if len(got) != len(sorted) {
		t.Fatalf("got %d entries, want %d", len(got), len(sorted))
	}
	for i := range sorted {
		if got[i] != sorted[i] {
			t.Fatalf("entry %d = %q, want %q", i, got[i], sorted[i])
		}
	}

	it.SeekToLast()
	var rev []string
	for it.Valid() {
		rev = append(rev, string(it.Key()))
		it.Prev()
	}
	for i := range rev {
		if rev[i] != sorted[len(sorted)-1-i] {
			t.Fatalf("backward entry %d = %q, want %q", i, rev[i], sorted[len(sorted)-1-i])
		}
	}
}

func TestSkipListSeek(t *testing.T) {
	l := NewSkipList(byteCompare)
	for _, w := range []string{"a", "c", "e", "g"} {
		l.Insert([]byte(w))
	}
	it := l.NewIterator()
	it.Seek([]byte("d"))
	if !it.Valid() || string(it.Key()) != "e" {
		t.Fatalf("Seek(d) landed on %q, want e", it.Key())
	}
	it.Seek([]byte("z"))
	if it.Valid() {
		t.Fatalf("Seek(z) should be invalid, past end")
	}
}
