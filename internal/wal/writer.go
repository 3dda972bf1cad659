package wal

import (
	"io"

	"github.com/vaultkv/vaultkv/internal/checksum"
	"github.com/vaultkv/vaultkv/internal/encoding"
)

// syncer is implemented by destinations that can fsync themselves; an
// io.Writer that doesn't implement it (e.g. a plain bytes.Buffer in
// tests) makes Sync a no-op.
type syncer interface {
	Sync() error
}

// Writer appends logical records to a WAL stream, transparently
// fragmenting a record across block boundaries and computing each
// physical record's masked CRC-32C.
type Writer struct {
	dest        io.Writer
	blockOffset int
}

// NewWriter returns a Writer appending to dest. The Writer starts counting
// at block offset 0, so dest should be positioned at a block boundary (a
// fresh file starts at offset 0); there is no way to resume inside a
// partially written block.
func NewWriter(dest io.Writer) *Writer {
	return &Writer{dest: dest}
}

// AddRecord writes data as one logical record, returning the number of
// bytes written to dest (headers included).
func (w *Writer) AddRecord(data []byte) (int, error) {
	total := 0
	begin := true
	for {
		leftover := BlockSize - w.blockOffset
		if leftover < HeaderSize {
			if leftover > 0 {
				n, err := w.dest.Write(make([]byte, leftover))
				total += n
				if err != nil {
					return total, err
				}
			}
			w.blockOffset = 0
			leftover = BlockSize
		}

		avail := leftover - HeaderSize
		fragmentLen := len(data)
		if fragmentLen > avail {
			fragmentLen = avail
		}

		end := fragmentLen == len(data)
		var typ RecordType
		switch {
		case begin && end:
			typ = TypeFull
		case begin:
			typ = TypeFirst
		case end:
			typ = TypeLast
		default:
			typ = TypeMiddle
		}

		n, err := w.emitPhysicalRecord(typ, data[:fragmentLen])
		total += n
		if err != nil {
			return total, err
		}

		data = data[fragmentLen:]
		begin = false
		if end {
			break
		}
	}
	return total, nil
}

func (w *Writer) emitPhysicalRecord(typ RecordType, payload []byte) (int, error) {
	var header [HeaderSize]byte
	header[4] = byte(len(payload))
	header[5] = byte(len(payload) >> 8)
	header[6] = byte(typ)

	crc := checksum.Value([]byte{header[6]})
	crc = checksum.Extend(crc, payload)
	masked := checksum.Mask(crc)
	encoding.EncodeFixed32(header[:0], masked)

	n1, err := w.dest.Write(header[:])
	if err != nil {
		return n1, err
	}
	n2, err := w.dest.Write(payload)
	w.blockOffset += len(header) + len(payload)
	return n1 + n2, err
}

// Sync flushes dest to stable storage, if it supports it.
func (w *Writer) Sync() error {
	if s, ok := w.dest.(syncer); ok {
		return s.Sync()
	}
	return nil
}
