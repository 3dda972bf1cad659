package vaultkv

// options.go implements database configuration options.

import (
	"github.com/vaultkv/vaultkv/internal/checksum"
	"github.com/vaultkv/vaultkv/internal/dbformat"
	"github.com/vaultkv/vaultkv/internal/logging"
	"github.com/vaultkv/vaultkv/internal/vfs"
)

// Logger is an alias for the logging.Logger interface, letting callers
// plug in their own implementation.
type Logger = logging.Logger

// ChecksumType is an alias for the checksum type recorded alongside
// MANIFEST file entries.
type ChecksumType = checksum.Type

// Checksum type constants.
const (
	ChecksumTypeNoChecksum = checksum.TypeNoChecksum
	ChecksumTypeCRC32C     = checksum.TypeCRC32C
	ChecksumTypeXXH3       = checksum.TypeXXH3
)

// Options contains all configuration options for opening a database.
type Options struct {
	// CreateIfMissing causes Open to create the database if it does not
	// exist.
	CreateIfMissing bool

	// ErrorIfExists causes Open to return an error if the database
	// already exists.
	ErrorIfExists bool

	// ParanoidChecks enables additional checks for data integrity: a
	// logged batch that fails to decode aborts WAL recovery instead of
	// being skipped. Records the WAL reader itself drops for a checksum
	// or framing error are logged and skipped whether or not it is set.
	ParanoidChecks bool

	// FS is the filesystem implementation to use. If nil, the OS
	// filesystem is used.
	FS vfs.FS

	// Comparator defines the order of keys in the database. If nil, a
	// default bytewise comparator is used.
	Comparator Comparator

	// WriteBufferSize is the size, in bytes, a memtable is allowed to
	// grow to before a write is rejected with ErrWriteBufferFull.
	// Default: 4MB.
	WriteBufferSize int

	// ChecksumType names a checksum algorithm for MANIFEST file entries.
	// Default: CRC32C. Open and the write path do not read it: the
	// database adds no file entries to the MANIFEST.
	ChecksumType ChecksumType

	// Logger is the logger for database operations. If nil, log output
	// is discarded.
	Logger Logger
}

// DefaultOptions returns a new Options with default values.
func DefaultOptions() *Options {
	return &Options{
		CreateIfMissing: false,
		ErrorIfExists:   false,
		ParanoidChecks:  false,
		FS:              nil, // will use vfs.Default()
		Comparator:      nil, // will use BytewiseComparator
		WriteBufferSize: 4 * 1024 * 1024,
		ChecksumType:    ChecksumTypeCRC32C,
		Logger:          nil, // will use logging.Discard
	}
}

// ReadOptions contains options for read operations.
type ReadOptions struct {
	// Sequence pins the read to a snapshot of the database as of this
	// sequence number. Zero means "read the most recent state".
	Sequence dbformat.SequenceNumber

	// VerifyChecksums requests checksum verification when reading. Get
	// reads only the in-memory memtable, which carries no checksums, so
	// this field has no effect on it.
	VerifyChecksums bool
}

// DefaultReadOptions returns ReadOptions with default values.
func DefaultReadOptions() *ReadOptions {
	return &ReadOptions{VerifyChecksums: true}
}

// WriteOptions contains options for write operations.
type WriteOptions struct {
	// Sync causes the write to be fsynced to the WAL before returning.
	// This provides the strongest durability guarantee but reduces
	// throughput.
	Sync bool
}

// DefaultWriteOptions returns WriteOptions with default values.
func DefaultWriteOptions() *WriteOptions {
	return &WriteOptions{Sync: false}
}
