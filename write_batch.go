// write_batch.go implements the public WriteBatch API for atomic writes.
package vaultkv

import (
	"github.com/vaultkv/vaultkv/internal/batch"
)

// WriteBatch holds a collection of writes to be applied atomically.
// Keys and values are copied, so you can modify them after calling
// Put/Delete.
//
// A WriteBatch can be reused by calling Clear() after Write().
//
//	wb := vaultkv.NewWriteBatch()
//	wb.Put([]byte("key1"), []byte("value1"))
//	wb.Delete([]byte("key2"))
//	err := db.Write(vaultkv.DefaultWriteOptions(), wb)
//	wb.Clear() // reuse the batch
type WriteBatch struct {
	internal *batch.WriteBatch
}

// NewWriteBatch creates a new empty WriteBatch.
func NewWriteBatch() *WriteBatch {
	return &WriteBatch{internal: batch.New()}
}

// Put adds a key-value pair to the batch.
func (wb *WriteBatch) Put(key, value []byte) {
	wb.internal.Put(key, value)
}

// Delete adds a deletion for the key to the batch.
func (wb *WriteBatch) Delete(key []byte) {
	wb.internal.Delete(key)
}

// Clear resets the batch to empty, allowing it to be reused.
func (wb *WriteBatch) Clear() {
	wb.internal.Clear()
}

// Count returns the number of operations in the batch.
func (wb *WriteBatch) Count() uint32 {
	return wb.internal.Count()
}

// Data returns the raw batch data (for advanced use only).
func (wb *WriteBatch) Data() []byte {
	return wb.internal.Data()
}
