/*
Package vaultkv provides a pure-Go, embedded, ordered key/value storage
engine: a write-ahead log, an in-memory memtable, and the MANIFEST/CURRENT
recovery prelude that lets a process resume exactly where it left off
after a crash.

There is no on-disk sorted-table format, no background compaction, and
no operation that drains the memtable: once the active memtable reaches
Options.WriteBufferSize, further writes fail with ErrWriteBufferFull.
This package covers only the write
path, crash recovery, and the durable log/manifest machinery underneath
it.

# Usage

	opts := vaultkv.DefaultOptions()
	opts.CreateIfMissing = true
	db, err := vaultkv.Open("/path/to/db", opts)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Put(vaultkv.DefaultWriteOptions(), []byte("key"), []byte("value")); err != nil {
		log.Fatal(err)
	}
	value, err := db.Get(vaultkv.DefaultReadOptions(), []byte("key"))

# Concurrency

A DB instance is safe for concurrent use by multiple goroutines. Writes
from different goroutines are coalesced into group commits internally;
callers never need to serialize their own calls to Write, Put, or
Delete.
*/
package vaultkv
