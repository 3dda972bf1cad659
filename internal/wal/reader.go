package wal

import (
	"errors"
	"io"

	"github.com/vaultkv/vaultkv/internal/checksum"
	"github.com/vaultkv/vaultkv/internal/encoding"
)

var (
	// ErrCorruptedRecord is reported when a record's checksum does not
	// match its payload.
	ErrCorruptedRecord = errors.New("wal: corrupted record")
	// ErrInvalidRecordType is reported when a physical record's type
	// byte is not one of the five known values.
	ErrInvalidRecordType = errors.New("wal: invalid record type")
	// ErrUnexpectedMiddleRecord is reported when a Middle record arrives
	// without a preceding First.
	ErrUnexpectedMiddleRecord = errors.New("wal: unexpected middle record")
	// ErrUnexpectedLastRecord is reported when a Last record arrives
	// without a preceding First.
	ErrUnexpectedLastRecord = errors.New("wal: unexpected last record")
	// ErrUnexpectedFirstRecord is reported when a First record arrives
	// while already inside a fragmented record.
	ErrUnexpectedFirstRecord = errors.New("wal: unexpected first record")
	// ErrShortRecord is reported when a block ends with a header
	// claiming more payload bytes than remain in the block.
	ErrShortRecord = errors.New("wal: short record at end of block")
)

// Reporter receives non-fatal corruption notices encountered while
// reading; Reader skips the damaged bytes and continues rather than
// failing the whole recovery.
type Reporter interface {
	Corruption(bytes int, err error)
}

// Reader reads logical records back from a WAL stream written by Writer.
type Reader struct {
	src      io.Reader
	reporter Reporter

	buffer       []byte // unconsumed bytes of the current block
	backingStore [BlockSize]byte
	eof          bool
	fragments    []byte
	inFragment   bool

	// initialOffset is the stream offset ReadRecord should resume from;
	// zero means "read from the start" and disables the skip/resync
	// logic below entirely.
	initialOffset int64
	// streamOffset is the absolute stream offset of buffer[0].
	streamOffset int64
	// resyncing is true from construction (when initialOffset > 0) until
	// the first First/Full record is seen, so a Middle/Last fragment
	// left over from a logical record that began before initialOffset is
	// dropped rather than reported as corruption.
	resyncing bool
}

// NewReader returns a Reader over src, ready to read logical records
// starting at initialOffset. reporter may be nil, in which case
// corruption is silently skipped (the MANIFEST reader in internal/version
// passes nil: it stops at the first error ReadRecord returns, and treats a
// record that fails to decode as a VersionEdit as fatal).
//
// initialOffset seeks to the 32KiB block containing it (by discarding
// leading bytes from src, since src is a plain io.Reader) and then
// discards physical records that end at or before initialOffset without
// emitting them, the way a recovery resuming mid-log does. Passing 0
// reads from the very start of src and never drops anything.
func NewReader(src io.Reader, reporter Reporter, initialOffset int64) *Reader {
	r := &Reader{src: src, reporter: reporter, initialOffset: initialOffset}
	if initialOffset > 0 {
		blockStart := initialOffset - initialOffset%BlockSize
		if blockStart > 0 {
			if _, err := io.CopyN(io.Discard, src, blockStart); err != nil {
				r.eof = true
			}
		}
		r.streamOffset = blockStart
		r.resyncing = true
	}
	return r
}

// ReadRecord returns the next logical record, reassembling fragments as
// necessary. It returns io.EOF once the stream is exhausted with no
// partial record pending.
func (r *Reader) ReadRecord() ([]byte, error) {
	for {
		payload, typ, skip, err := r.readPhysicalRecord()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if r.inFragment {
					r.report(len(r.fragments), errors.New("wal: partial record at end of stream"))
					r.fragments = nil
					r.inFragment = false
				}
				return nil, io.EOF
			}
			return nil, err
		}
		if skip {
			// Wholly before initialOffset: part of the historical log
			// this reader was told to resume past, not a corruption.
			continue
		}

		if r.resyncing {
			if typ == TypeMiddle || typ == TypeLast {
				continue
			}
			r.resyncing = false
		}

		switch typ {
		case TypeFull:
			if r.inFragment {
				r.report(len(r.fragments), ErrUnexpectedFirstRecord)
				r.fragments = nil
				r.inFragment = false
			}
			return payload, nil
		case TypeFirst:
			if r.inFragment {
				r.report(len(r.fragments), ErrUnexpectedFirstRecord)
			}
			r.fragments = append([]byte(nil), payload...)
			r.inFragment = true
		case TypeMiddle:
			if !r.inFragment {
				r.report(len(payload), ErrUnexpectedMiddleRecord)
				continue
			}
			r.fragments = append(r.fragments, payload...)
		case TypeLast:
			if !r.inFragment {
				r.report(len(payload), ErrUnexpectedLastRecord)
				continue
			}
			r.fragments = append(r.fragments, payload...)
			r.inFragment = false
			out := r.fragments
			r.fragments = nil
			return out, nil
		case TypeZero:
			// padding; ignore
		default:
			r.report(len(payload), ErrInvalidRecordType)
		}
	}
}

func (r *Reader) report(n int, err error) {
	if r.reporter != nil {
		r.reporter.Corruption(n, err)
	}
}

// readPhysicalRecord reads a single header+payload, refilling the block
// buffer from src when it runs low. The bool return is true when the
// record ended at or before initialOffset and must be dropped silently
// (it belongs entirely to the portion of the stream the caller asked to
// skip past).
func (r *Reader) readPhysicalRecord() ([]byte, RecordType, bool, error) {
	for {
		if len(r.buffer) < HeaderSize {
			if r.eof {
				if len(r.buffer) > 0 {
					r.report(len(r.buffer), ErrShortRecord)
				}
				return nil, 0, false, io.EOF
			}
			r.streamOffset += int64(len(r.buffer)) // drop trailing block padding
			n, err := io.ReadFull(r.src, r.backingStore[:])
			if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
				return nil, 0, false, err
			}
			if n < BlockSize {
				r.eof = true
			}
			r.buffer = r.backingStore[:n]
			if n == 0 {
				return nil, 0, false, io.EOF
			}
			continue
		}

		header := r.buffer[:HeaderSize]
		length := int(header[4]) | int(header[5])<<8
		typ := RecordType(header[6])

		if HeaderSize+length > len(r.buffer) {
			r.streamOffset += int64(len(r.buffer))
			r.report(len(r.buffer), ErrShortRecord)
			r.buffer = nil
			continue
		}

		payload := r.buffer[HeaderSize : HeaderSize+length]
		storedMasked := encoding.DecodeFixed32(header[:4])
		recordEnd := r.streamOffset + int64(HeaderSize+length)

		if typ != TypeZero {
			crc := checksum.Value([]byte{header[6]})
			crc = checksum.Extend(crc, payload)
			if checksum.Mask(crc) != storedMasked {
				r.buffer = r.buffer[HeaderSize+length:]
				r.streamOffset = recordEnd
				r.report(length, ErrCorruptedRecord)
				continue
			}
		}

		skip := recordEnd <= r.initialOffset
		out := append([]byte(nil), payload...)
		r.buffer = r.buffer[HeaderSize+length:]
		r.streamOffset = recordEnd
		return out, typ, skip, nil
	}
}
