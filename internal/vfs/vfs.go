// Package vfs provides the file-system abstraction the WAL, MANIFEST,
// and CURRENT machinery is written against, so the same code can run
// atop the real OS filesystem or an in-memory one for tests.
package vfs

import (
	"io"
	"os"
)

// FS is the filesystem interface the storage engine is built on.
type FS interface {
	// Create creates a new writable file, truncating it if it exists.
	Create(name string) (WritableFile, error)

	// Open opens an existing file for sequential reading.
	Open(name string) (SequentialFile, error)

	// OpenRandomAccess opens an existing file for random-access reading.
	OpenRandomAccess(name string) (RandomAccessFile, error)

	// Rename atomically renames a file.
	Rename(oldname, newname string) error

	// Remove deletes a file.
	Remove(name string) error

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info.
	Stat(name string) (os.FileInfo, error)

	// Exists returns true if the named file exists.
	Exists(name string) bool

	// ListDir lists the entries of a directory.
	ListDir(path string) ([]string, error)

	// Lock acquires an advisory exclusive lock on name, held for the
	// life of the returned io.Closer.
	Lock(name string) (io.Closer, error)

	// SyncDir fsyncs a directory, required after a rename so the
	// directory entry change itself is durable.
	SyncDir(path string) error
}

// bufferSize is the size of the internal write buffer a WritableFile
// batches small Append calls into before issuing a real write.
const bufferSize = 64 * 1024

// WritableFile is a file opened for sequential writing. Writes smaller
// than the internal buffer are batched; Sync flushes the buffer and
// fsyncs.
type WritableFile interface {
	// Append writes data to the file, buffering it internally.
	Append(data []byte) error

	// Flush pushes any buffered bytes to the underlying file without
	// fsyncing.
	Flush() error

	// Sync flushes buffered bytes and fsyncs the file to stable
	// storage.
	Sync() error

	// Truncate changes the size of the file.
	Truncate(size int64) error

	// Size returns the file's logical size, including buffered but
	// unflushed bytes.
	Size() (int64, error)

	io.Closer
}

// SequentialFile is a file opened for sequential reading.
type SequentialFile interface {
	io.Reader
	io.Closer
	// Skip advances the read position by n bytes.
	Skip(n int64) error
}

// RandomAccessFile is a file opened for random-access reading.
type RandomAccessFile interface {
	io.ReaderAt
	io.Closer
	// Size returns the file size.
	Size() int64
}

// osFS implements FS atop the real filesystem.
type osFS struct{}

// Default returns the OS-backed FS.
func Default() FS { return osFS{} }

func (osFS) Create(name string) (WritableFile, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	return newBufferedWritableFile(f), nil
}

func (osFS) Open(name string) (SequentialFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &osSequentialFile{f: f}, nil
}

func (osFS) OpenRandomAccess(name string) (RandomAccessFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &osRandomAccessFile{f: f, size: info.Size()}, nil
}

func (osFS) Rename(oldname, newname string) error { return os.Rename(oldname, newname) }
func (osFS) Remove(name string) error              { return os.Remove(name) }
func (osFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
func (osFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (osFS) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func (osFS) ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func (osFS) Lock(name string) (io.Closer, error) { return lockFile(name) }

func (osFS) SyncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	syncErr := dir.Sync()
	closeErr := dir.Close()
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// bufferedWritableFile wraps an *os.File with a 64KiB write buffer:
// Append accumulates into the buffer and only issues a real Write once
// the buffer would overflow, or when the caller Flushes/Syncs/Closes.
// An Append larger than the whole buffer bypasses it (after flushing
// whatever was pending) and is written directly, matching the strategy
// of never copying a large payload through an intermediate buffer twice.
type bufferedWritableFile struct {
	f   *os.File
	buf []byte
}

func newBufferedWritableFile(f *os.File) *bufferedWritableFile {
	return &bufferedWritableFile{f: f, buf: make([]byte, 0, bufferSize)}
}

func (w *bufferedWritableFile) Append(data []byte) error {
	if len(data) <= bufferSize-len(w.buf) {
		w.buf = append(w.buf, data...)
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(data) < bufferSize {
		w.buf = append(w.buf, data...)
		return nil
	}
	_, err := w.f.Write(data)
	return err
}

func (w *bufferedWritableFile) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	_, err := w.f.Write(w.buf)
	w.buf = w.buf[:0]
	return err
}

func (w *bufferedWritableFile) Sync() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.f.Sync()
}

func (w *bufferedWritableFile) Truncate(size int64) error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.f.Truncate(size)
}

func (w *bufferedWritableFile) Size() (int64, error) {
	info, err := w.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size() + int64(len(w.buf)), nil
}

func (w *bufferedWritableFile) Close() error {
	flushErr := w.Flush()
	closeErr := w.f.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

type osSequentialFile struct{ f *os.File }

func (s *osSequentialFile) Read(p []byte) (int, error) { return s.f.Read(p) }
func (s *osSequentialFile) Close() error                { return s.f.Close() }
func (s *osSequentialFile) Skip(n int64) error {
	_, err := s.f.Seek(n, io.SeekCurrent)
	return err
}

type osRandomAccessFile struct {
	f    *os.File
	size int64
}

func (r *osRandomAccessFile) ReadAt(p []byte, off int64) (int, error) { return r.f.ReadAt(p, off) }
func (r *osRandomAccessFile) Close() error                           { return r.f.Close() }
func (r *osRandomAccessFile) Size() int64                            { return r.size }
