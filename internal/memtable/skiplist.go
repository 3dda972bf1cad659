// Package memtable implements the in-memory write buffer: a concurrent
// skiplist keyed by encoded memtable entries, wrapped by MemTable to
// provide the Add/Get operations the DB write and read paths use.
package memtable

import (
	"math/rand"
	"sync/atomic"
)

// Comparator orders two keys as stored in the skiplist (memtable entry
// keys, not raw user keys).
type Comparator func(a, b []byte) int

const (
	maxHeight  = 12
	branching  = 4
	scaledInvB = 0xffffffff / branching
)

type skipNode struct {
	key  []byte
	next []atomic.Pointer[skipNode]
}

func newSkipNode(key []byte, height int) *skipNode {
	return &skipNode{key: key, next: make([]atomic.Pointer[skipNode], height)}
}

func (n *skipNode) getNext(level int) *skipNode {
	return n.next[level].Load()
}

func (n *skipNode) setNext(level int, next *skipNode) {
	n.next[level].Store(next)
}

// SkipList is a lock-free-read, single-writer concurrent skiplist. Reads
// (Contains, iteration) never block and never observe a partially linked
// node: new nodes are fully populated before being published via an
// atomic store of the predecessor's next pointer.
type SkipList struct {
	head       *skipNode
	maxHeight  atomic.Int32
	compare    Comparator
	rng        *rand.Rand
	count      atomic.Int64
	memoryUsed atomic.Int64
}

// NewSkipList creates an empty skiplist ordered by compare.
func NewSkipList(compare Comparator) *SkipList {
	return NewSkipListWithSeed(compare, 0xdeadbeef)
}

// NewSkipListWithSeed is NewSkipList with an explicit RNG seed, used by
// tests that need reproducible node heights.
func NewSkipListWithSeed(compare Comparator, seed int64) *SkipList {
	l := &SkipList{
		head:    newSkipNode(nil, maxHeight),
		compare: compare,
		rng:     rand.New(rand.NewSource(seed)),
	}
	l.maxHeight.Store(1)
	return l
}

// Insert adds key to the list. The caller must serialize calls to Insert
// (the memtable's single-writer discipline); concurrent readers are safe.
func (l *SkipList) Insert(key []byte) {
	var prev [maxHeight]*skipNode
	l.findGreaterOrEqual(key, prev[:])

	height := l.randomHeight()
	if height > int(l.maxHeight.Load()) {
		for i := int(l.maxHeight.Load()); i < height; i++ {
			prev[i] = l.head
		}
		l.maxHeight.Store(int32(height))
	}

	node := newSkipNode(key, height)
	for i := 0; i < height; i++ {
		node.setNext(i, prev[i].getNext(i))
		prev[i].setNext(i, node)
	}
	l.count.Add(1)
	l.memoryUsed.Add(int64(node.size()))
}

func (n *skipNode) size() int {
	return len(n.key) + 16*len(n.next)
}

// Contains reports whether key is present in the list.
func (l *SkipList) Contains(key []byte) bool {
	node := l.findGreaterOrEqual(key, nil)
	return node != nil && l.compare(node.key, key) == 0
}

// Count returns the number of entries inserted so far.
func (l *SkipList) Count() int64 { return l.count.Load() }

// ApproximateMemoryUsage estimates the bytes retained by the list's
// nodes: each node's key bytes plus 16 bytes per forward-pointer level.
func (l *SkipList) ApproximateMemoryUsage() int64 { return l.memoryUsed.Load() }

func (l *SkipList) randomHeight() int {
	height := 1
	for height < maxHeight && l.rng.Uint32() <= scaledInvB {
		height++
	}
	return height
}

// findGreaterOrEqual returns the first node with key >= the target, or
// nil if none exists. If prev is non-nil it is filled with, for each
// level, the last node strictly less than the target.
func (l *SkipList) findGreaterOrEqual(key []byte, prev []*skipNode) *skipNode {
	x := l.head
	level := int(l.maxHeight.Load()) - 1
	for {
		next := x.getNext(level)
		if next != nil && l.compare(next.key, key) < 0 {
			x = next
			continue
		}
		if prev != nil {
			prev[level] = x
		}
		if level == 0 {
			return next
		}
		level--
	}
}

func (l *SkipList) findLessThan(key []byte) *skipNode {
	x := l.head
	level := int(l.maxHeight.Load()) - 1
	for {
		next := x.getNext(level)
		if next != nil && l.compare(next.key, key) < 0 {
			x = next
			continue
		}
		if level == 0 {
			if x == l.head {
				return nil
			}
			return x
		}
		level--
	}
}

func (l *SkipList) findLast() *skipNode {
	x := l.head
	level := int(l.maxHeight.Load()) - 1
	for {
		next := x.getNext(level)
		if next != nil {
			x = next
			continue
		}
		if level == 0 {
			if x == l.head {
				return nil
			}
			return x
		}
		level--
	}
}

// Iterator walks a SkipList's entries in order. A zero Iterator is not
// valid; use SkipList.NewIterator.
type Iterator struct {
	list *SkipList
	node *skipNode
}

// NewIterator returns an Iterator over l, initially invalid.
func (l *SkipList) NewIterator() *Iterator {
	return &Iterator{list: l}
}

func (it *Iterator) Valid() bool  { return it.node != nil }
func (it *Iterator) Key() []byte  { return it.node.key }
func (it *Iterator) Next()        { it.node = it.node.getNext(0) }
func (it *Iterator) Prev()        { it.node = it.list.findLessThan(it.node.key) }
func (it *Iterator) SeekToFirst() { it.node = it.list.head.getNext(0) }
func (it *Iterator) SeekToLast()  { it.node = it.list.findLast() }
func (it *Iterator) Seek(target []byte) {
	it.node = it.list.findGreaterOrEqual(target, nil)
}
