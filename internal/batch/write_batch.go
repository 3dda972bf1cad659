// Package batch implements the write batch wire format: a 12-byte header
// (8-byte starting sequence number + 4-byte record count) followed by a
// run of tagged Put/Delete records, plus the InsertInto replay that
// threads a decoded batch into a memtable under freshly assigned
// sequence numbers.
package batch

import (
	"errors"
	"fmt"

	"github.com/vaultkv/vaultkv/internal/dbformat"
	"github.com/vaultkv/vaultkv/internal/encoding"
	"github.com/vaultkv/vaultkv/internal/memtable"
)

// HeaderSize is the width of the sequence+count header preceding a
// batch's records.
const HeaderSize = 12

// tag byte values for the two record kinds this format supports.
const (
	tagValue    = byte(dbformat.TypeValue)
	tagDeletion = byte(dbformat.TypeDeletion)
)

// ErrCorruptBatch is returned by Iterate when the encoded record stream
// cannot be parsed, or when the parsed record count disagrees with the
// header's count field.
var ErrCorruptBatch = errors.New("batch: corrupt write batch")

// WriteBatch accumulates Put/Delete operations for atomic application.
// The zero value is not usable; use New.
type WriteBatch struct {
	data []byte
}

// New returns an empty WriteBatch with a zeroed header.
func New() *WriteBatch {
	wb := &WriteBatch{data: make([]byte, HeaderSize)}
	return wb
}

// NewFromData wraps an already-encoded batch buffer (as read back from
// the WAL), taking ownership of data.
func NewFromData(data []byte) (*WriteBatch, error) {
	if len(data) < HeaderSize {
		return nil, ErrCorruptBatch
	}
	return &WriteBatch{data: data}, nil
}

// Data returns the encoded batch, including its header.
func (wb *WriteBatch) Data() []byte { return wb.data }

// Clear resets the batch to empty, preserving its current sequence
// number.
func (wb *WriteBatch) Clear() {
	seq := wb.Sequence()
	wb.data = wb.data[:HeaderSize]
	wb.SetSequence(seq)
	wb.setCount(0)
}

// Count returns the number of records in the batch.
func (wb *WriteBatch) Count() uint32 {
	return encoding.DecodeFixed32(wb.data[8:12])
}

func (wb *WriteBatch) setCount(n uint32) {
	copy(wb.data[8:12], encoding.EncodeFixed32(nil, n))
}

// Sequence returns the batch's starting sequence number: record i is
// assigned Sequence()+i by InsertInto.
func (wb *WriteBatch) Sequence() dbformat.SequenceNumber {
	return dbformat.SequenceNumber(encoding.DecodeFixed64(wb.data[0:8]))
}

// SetSequence overwrites the batch's starting sequence number.
func (wb *WriteBatch) SetSequence(seq dbformat.SequenceNumber) {
	copy(wb.data[0:8], encoding.EncodeFixed64(nil, uint64(seq)))
}

// Size returns the size in bytes of the encoded batch, including the
// header.
func (wb *WriteBatch) Size() int { return len(wb.data) }

// Put appends a Put record for (key, value).
func (wb *WriteBatch) Put(key, value []byte) {
	wb.setCount(wb.Count() + 1)
	wb.data = append(wb.data, tagValue)
	wb.data = encoding.AppendLengthPrefixedSlice(wb.data, key)
	wb.data = encoding.AppendLengthPrefixedSlice(wb.data, value)
}

// Delete appends a Delete record for key.
func (wb *WriteBatch) Delete(key []byte) {
	wb.setCount(wb.Count() + 1)
	wb.data = append(wb.data, tagDeletion)
	wb.data = encoding.AppendLengthPrefixedSlice(wb.data, key)
}

// Append concatenates src's records onto wb: the records are appended in
// order and the counts are summed, while wb's own header (in particular
// its starting sequence number) is preserved.
func (wb *WriteBatch) Append(src *WriteBatch) {
	wb.setCount(wb.Count() + src.Count())
	wb.data = append(wb.data, src.data[HeaderSize:]...)
}

// Handler receives the decoded operations of a batch during Iterate.
type Handler interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Iterate walks wb's records in order, calling handler.Put or
// handler.Delete for each. It verifies that the number of records parsed
// equals the header's count, returning ErrCorruptBatch otherwise (a
// batch whose trailing bytes were truncated, or whose count was forged,
// is indistinguishable from a well-formed shorter batch without this
// check).
func (wb *WriteBatch) Iterate(handler Handler) error {
	data := wb.data[HeaderSize:]
	var parsed uint32
	for len(data) > 0 {
		tag := data[0]
		data = data[1:]
		switch tag {
		case tagValue:
			key, n, err := encoding.DecodeLengthPrefixedSlice(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptBatch, err)
			}
			data = data[n:]
			value, n, err := encoding.DecodeLengthPrefixedSlice(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptBatch, err)
			}
			data = data[n:]
			if err := handler.Put(key, value); err != nil {
				return err
			}
		case tagDeletion:
			key, n, err := encoding.DecodeLengthPrefixedSlice(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptBatch, err)
			}
			data = data[n:]
			if err := handler.Delete(key); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown tag %d", ErrCorruptBatch, tag)
		}
		parsed++
	}
	if parsed != wb.Count() {
		return fmt.Errorf("%w: parsed %d records, header declares %d", ErrCorruptBatch, parsed, wb.Count())
	}
	return nil
}

// memtableInserter is the Handler that InsertInto uses to replay a batch
// into a memtable, assigning each record the next sequence number in
// order starting from the batch's Sequence().
type memtableInserter struct {
	mem *memtable.MemTable
	seq dbformat.SequenceNumber
}

func (h *memtableInserter) Put(key, value []byte) error {
	h.mem.Add(h.seq, dbformat.TypeValue, key, value)
	h.seq++
	return nil
}

func (h *memtableInserter) Delete(key []byte) error {
	h.mem.Add(h.seq, dbformat.TypeDeletion, key, nil)
	h.seq++
	return nil
}

// InsertInto is the canonical replay: it walks wb starting from
// wb.Sequence(), assigning consecutive sequence numbers, and calls
// mem.Add for each operation. It is used both by the live write path
// (immediately after a batch is durably logged) and by WAL recovery
// (replaying every logged batch in order).
func InsertInto(wb *WriteBatch, mem *memtable.MemTable) error {
	return wb.Iterate(&memtableInserter{mem: mem, seq: wb.Sequence()})
}
