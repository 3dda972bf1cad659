package vaultkv

import "errors"

// The error taxonomy every operation's returned error wraps into, via
// errors.Is. Package-level sentinels deeper in the tree (wal.ErrCorruptedRecord,
// manifest.ErrUnknownRequiredTag, version.ErrNoCurrentManifest, batch.ErrCorruptBatch,
// ...) carry the detail; these sentinels classify what the caller should do about it.
var (
	// ErrNotFound is returned by Get when the key is absent or tombstoned.
	// It is a normal return channel, not a failure.
	ErrNotFound = errors.New("vaultkv: not found")

	// ErrCorruption covers CRC mismatches, overlong varints, WAL fragment
	// order violations, batch count mismatches, unknown MANIFEST tags,
	// missing required MANIFEST fields on recovery, and a malformed
	// CURRENT file.
	ErrCorruption = errors.New("vaultkv: corruption")

	// ErrInvalidArgument covers caller-supplied constraints violated,
	// such as a sequence number overflowing its 56-bit range.
	ErrInvalidArgument = errors.New("vaultkv: invalid argument")

	// ErrNotSupported is reserved for capabilities this implementation
	// elects to omit.
	ErrNotSupported = errors.New("vaultkv: not supported")

	// ErrIOError covers underlying filesystem failures.
	ErrIOError = errors.New("vaultkv: io error")

	// ErrWriteBufferFull is returned by a write once the active memtable
	// has reached Options.WriteBufferSize. Nothing in this package drains
	// the memtable.
	ErrWriteBufferFull = errors.New("vaultkv: write buffer full")

	// ErrDBClosed is returned by any operation called after Close.
	ErrDBClosed = errors.New("vaultkv: database closed")

	// ErrDBPoisoned is returned, wrapping the original failure, by every
	// Write, Put, or Delete after a prior write's WAL append or sync has
	// failed: the log and memtable may have diverged, so the DB refuses
	// further writes rather than risk silently losing data. Get is not
	// affected.
	ErrDBPoisoned = errors.New("vaultkv: database poisoned by a prior write failure")
)
