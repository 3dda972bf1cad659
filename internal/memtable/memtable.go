package memtable

import (
	"sync"

	"github.com/vaultkv/vaultkv/internal/dbformat"
	"github.com/vaultkv/vaultkv/internal/encoding"
)

// entry on-disk (in-memory skiplist key) layout:
//
//	varint32(internal_key_len) || user_key || tag(8 bytes) || varint32(value_len) || value
//
// internal_key_len is len(user_key)+8. Deletions omit the value (value_len
// is always 0 for TypeDeletion).
func buildEntry(dst []byte, seq dbformat.SequenceNumber, typ dbformat.ValueType, key, value []byte) []byte {
	internalKeyLen := len(key) + dbformat.NumInternalBytes
	dst = encoding.EncodeVarint32(dst, uint32(internalKeyLen))
	dst = append(dst, key...)
	dst = encoding.EncodeFixed64(dst, dbformat.PackSequenceAndType(seq, typ))
	if typ == dbformat.TypeValue {
		dst = encoding.EncodeVarint32(dst, uint32(len(value)))
		dst = append(dst, value...)
	} else {
		dst = encoding.EncodeVarint32(dst, 0)
	}
	return dst
}

// parseEntry splits a full encoded entry into its internal key and
// value. It must only be called on entries actually stored in the
// skiplist (which always carry a trailing varint32(value_len)||value),
// never on a bare LookupKey.MemtableKey(), which has no value suffix.
func parseEntry(entry []byte) (internalKey, value []byte) {
	ikLen, n, err := encoding.DecodeVarint32(entry)
	if err != nil {
		panic("memtable: corrupt entry: " + err.Error())
	}
	entry = entry[n:]
	internalKey = entry[:ikLen]
	entry = entry[ikLen:]
	vLen, n, err := encoding.DecodeVarint32(entry)
	if err != nil {
		panic("memtable: corrupt entry: " + err.Error())
	}
	entry = entry[n:]
	value = entry[:vLen]
	return internalKey, value
}

// extractKey returns just the length-prefixed internal key at the front
// of entry, ignoring whatever follows. Both a full skiplist entry
// (internal_key||varint32(value_len)||value) and a bare
// LookupKey.MemtableKey() (internal_key, no value suffix at all) share
// this prefix, so the skiplist comparator uses this instead of
// parseEntry to avoid assuming a value suffix is present.
func extractKey(entry []byte) []byte {
	ikLen, n, err := encoding.DecodeVarint32(entry)
	if err != nil {
		panic("memtable: corrupt entry: " + err.Error())
	}
	entry = entry[n:]
	return entry[:ikLen]
}

// LookupKey is the three-cursor search key used to probe the memtable for
// a (user_key, sequence) pair: a memtable entry whose internal key sorts
// at or after LookupKey.MemtableKey() is the first candidate for UserKey()
// at a sequence number <= Sequence().
type LookupKey struct {
	start  int // start of the varint32(internal_key_len) prefix
	kstart int // start of user_key, i.e. end of the length prefix
	end    int // end of the tag, i.e. end of the whole lookup key
	buf    []byte
}

// NewLookupKey builds a LookupKey for userKey at seq, using
// dbformat.ValueTypeForSeek so the encoded tag sorts before any real
// entry for (userKey, seq).
func NewLookupKey(userKey []byte, seq dbformat.SequenceNumber) LookupKey {
	internalKeyLen := len(userKey) + dbformat.NumInternalBytes
	var buf []byte
	buf = encoding.EncodeVarint32(buf, uint32(internalKeyLen))
	kstart := len(buf)
	buf = append(buf, userKey...)
	buf = encoding.EncodeFixed64(buf, dbformat.PackSequenceAndType(seq, dbformat.ValueTypeForSeek))
	return LookupKey{start: 0, kstart: kstart, end: len(buf), buf: buf}
}

// MemtableKey returns the full varint32(len)||internal_key encoding, the
// form skiplist entries compare against.
func (k LookupKey) MemtableKey() []byte { return k.buf[k.start:k.end] }

// InternalKey returns the internal_key portion (user_key||tag).
func (k LookupKey) InternalKey() []byte { return k.buf[k.kstart:k.end] }

// UserKey returns just the user key portion.
func (k LookupKey) UserKey() []byte { return k.buf[k.kstart : k.end-dbformat.NumInternalBytes] }

// compareEntries builds the skiplist comparator from a user comparator.
// It is invoked on both full skiplist entries and bare lookup keys (any
// search target passed to SkipList.Insert/Contains/findGreaterOrEqual),
// so it must only assume the shared length-prefixed-internal-key prefix
// both forms have, via extractKey, never a trailing value.
func compareEntries(userCmp dbformat.UserKeyComparer) Comparator {
	ikCmp := dbformat.NewInternalKeyComparator(userCmp)
	return func(a, b []byte) int {
		return ikCmp.Compare(extractKey(a), extractKey(b))
	}
}

// MemTable is the mutable, in-memory write buffer backing the DB's
// active (and, while being flushed, immutable) generation. It is a thin
// wrapper over SkipList that knows the entry encoding and the internal
// key comparator.
type MemTable struct {
	mu         sync.Mutex
	skiplist   *SkipList
	userCmp    dbformat.UserKeyComparer
	nextLogNum uint64
}

// NewMemTable creates an empty memtable ordered by userCmp.
func NewMemTable(userCmp dbformat.UserKeyComparer) *MemTable {
	return &MemTable{
		skiplist: NewSkipList(compareEntries(userCmp)),
		userCmp:  userCmp,
	}
}

// Add inserts a single (sequence, type, key, value) record. Callers
// (batch.InsertInto) are responsible for assigning monotonically
// increasing sequence numbers across a batch.
func (m *MemTable) Add(seq dbformat.SequenceNumber, typ dbformat.ValueType, key, value []byte) {
	entry := buildEntry(nil, seq, typ, key, value)
	m.mu.Lock()
	m.skiplist.Insert(entry)
	m.mu.Unlock()
}

// Get looks up the most recent value for key visible as of seq (i.e. with
// an encoded sequence number <= seq). It returns (value, true, false) for a
// live value, (nil, true, true) for a tombstone (the caller should
// stop searching further memtables/files, since a more recent delete was
// found), and (nil, false, false) if no entry for key exists in this table
// at all (the caller should keep searching older sources).
func (m *MemTable) Get(key []byte, seq dbformat.SequenceNumber) (value []byte, found bool, deleted bool) {
	lk := NewLookupKey(key, seq)
	it := m.skiplist.NewIterator()
	it.Seek(lk.MemtableKey())
	if !it.Valid() {
		return nil, false, false
	}
	internalKey, val := parseEntry(it.Key())
	entryUserKey := dbformat.ExtractUserKey(internalKey)
	if m.userCmp(entryUserKey, key) != 0 {
		return nil, false, false
	}
	entrySeq := dbformat.ExtractSequenceNumber(internalKey)
	if entrySeq > seq {
		// Entries for this user key newer than seq sort before the lookup
		// key, so Seek does not land on one; an entry that does is still
		// rejected explicitly here.
		return nil, false, false
	}
	switch dbformat.ExtractValueType(internalKey) {
	case dbformat.TypeValue:
		return val, true, false
	default: // TypeDeletion
		return nil, true, true
	}
}

// Count returns the number of entries added.
func (m *MemTable) Count() int64 { return m.skiplist.Count() }

// ApproximateMemoryUsage estimates the table's retained memory, used to
// decide when a memtable should be rotated out for flushing.
func (m *MemTable) ApproximateMemoryUsage() int64 { return m.skiplist.ApproximateMemoryUsage() }

// NextLogNumber returns the WAL file number that should be used for the
// next memtable generation created after this one, as recorded when this
// table was made immutable.
func (m *MemTable) NextLogNumber() uint64 { return m.nextLogNum }

// SetNextLogNumber records the WAL file number to resume from once this
// table has been flushed.
func (m *MemTable) SetNextLogNumber(n uint64) { m.nextLogNum = n }

// NewIterator returns a fresh iterator over m, positioned invalid.
func (m *MemTable) NewIterator() *MemIterator {
	return &MemIterator{it: m.skiplist.NewIterator()}
}

// MemIterator iterates a MemTable's entries in internal-key order
// (ascending user key, descending sequence).
type MemIterator struct {
	it *Iterator
}

func (mi *MemIterator) Valid() bool   { return mi.it.Valid() }
func (mi *MemIterator) Next()         { mi.it.Next() }
func (mi *MemIterator) Prev()         { mi.it.Prev() }
func (mi *MemIterator) SeekToFirst()  { mi.it.SeekToFirst() }
func (mi *MemIterator) SeekToLast()   { mi.it.SeekToLast() }
func (mi *MemIterator) Seek(lk LookupKey) {
	mi.it.Seek(lk.MemtableKey())
}

// InternalKey returns the current entry's internal key.
func (mi *MemIterator) InternalKey() []byte {
	ik, _ := parseEntry(mi.it.Key())
	return ik
}

// Value returns the current entry's value (empty for a deletion).
func (mi *MemIterator) Value() []byte {
	_, v := parseEntry(mi.it.Key())
	return v
}
