package manifest

import (
	"errors"
	"fmt"

	"github.com/vaultkv/vaultkv/internal/dbformat"
	"github.com/vaultkv/vaultkv/internal/encoding"
)

// ErrUnknownRequiredTag is returned by DecodeFrom when a record contains
// a tag this decoder does not recognize.
var ErrUnknownRequiredTag = errors.New("manifest: unknown tag in version edit")

// ErrTruncatedField is returned by DecodeFrom when a field's payload
// is shorter than its format requires.
var ErrTruncatedField = errors.New("manifest: truncated version edit field")

// CompactPointer records the smallest key a compaction of the given
// level should start from next time. The core database never produces
// these (there is no compactor) but DecodeFrom must still accept and
// round-trip them so that a MANIFEST shared with a fuller implementation
// stays readable.
type CompactPointer struct {
	Level int
	Key   []byte // internal key
}

// DeletedFile names a file removed from a level.
type DeletedFile struct {
	Level      int
	FileNumber uint64
}

// NewFile describes a file added to a level.
type NewFile struct {
	Level    int
	Number   uint64
	Size     uint64
	Smallest []byte // internal key
	Largest  []byte // internal key

	HasChecksum      bool
	ChecksumFuncName string
	Checksum         uint64
}

// VersionEdit is a single MANIFEST record: the fields present are
// exactly those that were Set before EncodeTo was called.
type VersionEdit struct {
	Comparator    string
	HasComparator bool

	LogNumber    uint64
	HasLogNumber bool

	PrevLogNumber    uint64
	HasPrevLogNumber bool

	NextFileNumber    uint64
	HasNextFileNumber bool

	LastSequence    dbformat.SequenceNumber
	HasLastSequence bool

	CompactPointers []CompactPointer
	DeletedFiles    []DeletedFile
	NewFiles        []NewFile
}

// Clear resets e to the empty edit.
func (e *VersionEdit) Clear() { *e = VersionEdit{} }

func (e *VersionEdit) SetComparatorName(name string) {
	e.Comparator, e.HasComparator = name, true
}

func (e *VersionEdit) SetLogNumber(n uint64) { e.LogNumber, e.HasLogNumber = n, true }

func (e *VersionEdit) SetPrevLogNumber(n uint64) {
	e.PrevLogNumber, e.HasPrevLogNumber = n, true
}

func (e *VersionEdit) SetNextFileNumber(n uint64) {
	e.NextFileNumber, e.HasNextFileNumber = n, true
}

func (e *VersionEdit) SetLastSequence(s dbformat.SequenceNumber) {
	e.LastSequence, e.HasLastSequence = s, true
}

func (e *VersionEdit) AddCompactPointer(level int, key []byte) {
	e.CompactPointers = append(e.CompactPointers, CompactPointer{Level: level, Key: key})
}

func (e *VersionEdit) DeleteFile(level int, fileNumber uint64) {
	e.DeletedFiles = append(e.DeletedFiles, DeletedFile{Level: level, FileNumber: fileNumber})
}

func (e *VersionEdit) AddFile(f NewFile) {
	e.NewFiles = append(e.NewFiles, f)
}

// EncodeTo appends e's encoded record to dst, iterating set fields in
// tag order: comparator, log_number, next_file_number, last_sequence,
// compact_pointer(s), deleted_file(s), new_file(s), prev_log_number.
func (e *VersionEdit) EncodeTo(dst []byte) []byte {
	if e.HasComparator {
		dst = encoding.EncodeVarint32(dst, uint32(TagComparator))
		dst = encoding.AppendLengthPrefixedSlice(dst, []byte(e.Comparator))
	}
	if e.HasLogNumber {
		dst = encoding.EncodeVarint32(dst, uint32(TagLogNumber))
		dst = encoding.EncodeVarint64(dst, e.LogNumber)
	}
	if e.HasNextFileNumber {
		dst = encoding.EncodeVarint32(dst, uint32(TagNextFileNumber))
		dst = encoding.EncodeVarint64(dst, e.NextFileNumber)
	}
	if e.HasLastSequence {
		dst = encoding.EncodeVarint32(dst, uint32(TagLastSequence))
		dst = encoding.EncodeVarint64(dst, uint64(e.LastSequence))
	}
	for _, cp := range e.CompactPointers {
		dst = encoding.EncodeVarint32(dst, uint32(TagCompactPointer))
		dst = encoding.EncodeVarint32(dst, uint32(cp.Level))
		dst = encoding.AppendLengthPrefixedSlice(dst, cp.Key)
	}
	for _, df := range e.DeletedFiles {
		dst = encoding.EncodeVarint32(dst, uint32(TagDeletedFile))
		dst = encoding.EncodeVarint32(dst, uint32(df.Level))
		dst = encoding.EncodeVarint64(dst, df.FileNumber)
	}
	for _, nf := range e.NewFiles {
		dst = encoding.EncodeVarint32(dst, uint32(TagNewFile))
		dst = encoding.EncodeVarint32(dst, uint32(nf.Level))
		dst = encoding.EncodeVarint64(dst, nf.Number)
		dst = encoding.EncodeVarint64(dst, nf.Size)
		dst = encoding.AppendLengthPrefixedSlice(dst, nf.Smallest)
		dst = encoding.AppendLengthPrefixedSlice(dst, nf.Largest)
		if nf.HasChecksum {
			dst = encoding.EncodeVarint32(dst, uint32(TagFileChecksum))
			dst = encoding.AppendLengthPrefixedSlice(dst, []byte(nf.ChecksumFuncName))
			dst = encoding.EncodeVarint64(dst, nf.Checksum)
		}
	}
	if e.HasPrevLogNumber {
		dst = encoding.EncodeVarint32(dst, uint32(TagPrevLogNumber))
		dst = encoding.EncodeVarint64(dst, e.PrevLogNumber)
	}
	return dst
}

// DecodeFrom parses a single MANIFEST record into e. e is cleared first.
func (e *VersionEdit) DecodeFrom(record []byte) error {
	e.Clear()
	var pendingNewFile *NewFile
	flushPending := func() {
		if pendingNewFile != nil {
			e.NewFiles = append(e.NewFiles, *pendingNewFile)
			pendingNewFile = nil
		}
	}
	for len(record) > 0 {
		tagVal, n, err := encoding.DecodeVarint32(record)
		if err != nil {
			flushPending()
			return fmt.Errorf("%w: %v", ErrTruncatedField, err)
		}
		record = record[n:]
		tag := Tag(tagVal)

		if tag != TagFileChecksum {
			flushPending()
		}

		switch tag {
		case TagComparator:
			name, n, err := encoding.DecodeLengthPrefixedSlice(record)
			if err != nil {
				return fmt.Errorf("%w: comparator: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			e.SetComparatorName(string(name))
		case TagLogNumber:
			v, n, err := encoding.DecodeVarint64(record)
			if err != nil {
				return fmt.Errorf("%w: log_number: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			e.SetLogNumber(v)
		case TagNextFileNumber:
			v, n, err := encoding.DecodeVarint64(record)
			if err != nil {
				return fmt.Errorf("%w: next_file_number: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			e.SetNextFileNumber(v)
		case TagLastSequence:
			v, n, err := encoding.DecodeVarint64(record)
			if err != nil {
				return fmt.Errorf("%w: last_sequence: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			e.SetLastSequence(dbformat.SequenceNumber(v))
		case TagPrevLogNumber:
			v, n, err := encoding.DecodeVarint64(record)
			if err != nil {
				return fmt.Errorf("%w: prev_log_number: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			e.SetPrevLogNumber(v)
		case TagCompactPointer:
			level, n, err := encoding.DecodeVarint32(record)
			if err != nil {
				return fmt.Errorf("%w: compact_pointer level: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			key, n, err := encoding.DecodeLengthPrefixedSlice(record)
			if err != nil {
				return fmt.Errorf("%w: compact_pointer key: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			e.AddCompactPointer(int(level), append([]byte(nil), key...))
		case TagDeletedFile:
			level, n, err := encoding.DecodeVarint32(record)
			if err != nil {
				return fmt.Errorf("%w: deleted_file level: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			num, n, err := encoding.DecodeVarint64(record)
			if err != nil {
				return fmt.Errorf("%w: deleted_file number: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			e.DeleteFile(int(level), num)
		case TagNewFile:
			level, n, err := encoding.DecodeVarint32(record)
			if err != nil {
				return fmt.Errorf("%w: new_file level: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			number, n, err := encoding.DecodeVarint64(record)
			if err != nil {
				return fmt.Errorf("%w: new_file number: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			size, n, err := encoding.DecodeVarint64(record)
			if err != nil {
				return fmt.Errorf("%w: new_file size: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			smallest, n, err := encoding.DecodeLengthPrefixedSlice(record)
			if err != nil {
				return fmt.Errorf("%w: new_file smallest: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			largest, n, err := encoding.DecodeLengthPrefixedSlice(record)
			if err != nil {
				return fmt.Errorf("%w: new_file largest: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			pendingNewFile = &NewFile{
				Level:    int(level),
				Number:   number,
				Size:     size,
				Smallest: append([]byte(nil), smallest...),
				Largest:  append([]byte(nil), largest...),
			}
		case TagFileChecksum:
			if pendingNewFile == nil {
				return fmt.Errorf("%w: file checksum tag without preceding new_file", ErrUnknownRequiredTag)
			}
			name, n, err := encoding.DecodeLengthPrefixedSlice(record)
			if err != nil {
				return fmt.Errorf("%w: file checksum name: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			digest, n, err := encoding.DecodeVarint64(record)
			if err != nil {
				return fmt.Errorf("%w: file checksum digest: %v", ErrTruncatedField, err)
			}
			record = record[n:]
			pendingNewFile.HasChecksum = true
			pendingNewFile.ChecksumFuncName = string(name)
			pendingNewFile.Checksum = digest
		default:
			return fmt.Errorf("%w: tag %d", ErrUnknownRequiredTag, tag)
		}
	}
	flushPending()
	return nil
}
