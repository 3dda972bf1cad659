// Package version implements the recovery prelude: bootstrapping a
// database's log number, next file number, and last sequence number from
// the CURRENT file and its referenced MANIFEST, and keeping those values
// durable as the database runs.
//
// There is no Version/level-file/compaction machinery here: this system
// has no SSTable format to track, so "VersionSet" in this repository
// means only the small, durable piece of state every other component
// needs at startup.
package version

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/vaultkv/vaultkv/internal/checksum"
	"github.com/vaultkv/vaultkv/internal/dbformat"
	"github.com/vaultkv/vaultkv/internal/logging"
	"github.com/vaultkv/vaultkv/internal/manifest"
	"github.com/vaultkv/vaultkv/internal/vfs"
	"github.com/vaultkv/vaultkv/internal/wal"
)

// ErrNoCurrentManifest is returned by Recover when the CURRENT file is
// missing, so there is nothing to recover from (the caller should treat
// this as "no existing database here" and Create a fresh one instead).
var ErrNoCurrentManifest = errors.New("version: no CURRENT file")

// ErrComparatorMismatch is returned when the MANIFEST's recorded
// comparator name does not match the comparator the database was opened
// with.
var ErrComparatorMismatch = errors.New("version: comparator name mismatch")

// ErrCorruptManifest is returned when the MANIFEST is missing a field
// every database must have recorded at least once (log_number,
// next_file_number, or last_sequence).
var ErrCorruptManifest = errors.New("version: corrupt manifest: missing required field")

// Options configures a VersionSet.
type Options struct {
	DBName         string
	FS             vfs.FS
	ComparatorName string
	Logger         logging.Logger
}

// DefaultOptions returns Options with the bytewise comparator name and
// the OS filesystem.
func DefaultOptions(dbname string) Options {
	return Options{
		DBName:         dbname,
		FS:             vfs.Default(),
		ComparatorName: "vaultkv.BytewiseComparator",
		Logger:         logging.Discard,
	}
}

// VersionSet holds the small amount of durable state recovery needs:
// the WAL file number to resume logging into, the previous log number
// (kept during the no-op case where there is no in-flight flush to
// drain), the next file number to allocate, and the last sequence
// number assigned.
type VersionSet struct {
	mu sync.Mutex

	opts Options

	logNumber          uint64
	prevLogNumber      uint64
	nextFileNumber     uint64
	lastSequence       dbformat.SequenceNumber
	manifestFileNumber uint64

	manifestWriter   vfs.WritableFile
	manifestChecksum uint64
}

// New returns an unrecovered VersionSet; call Recover or Create before
// using it.
func New(opts Options) *VersionSet {
	return &VersionSet{opts: opts, nextFileNumber: 1}
}

func currentFilePath(dbname string) string { return dbname + "/CURRENT" }

func manifestFilePath(dbname string, number uint64) string {
	return fmt.Sprintf("%s/MANIFEST-%06d", dbname, number)
}

func logFilePath(dbname string, number uint64) string {
	return fmt.Sprintf("%s/%06d.log", dbname, number)
}

// LogFilePath returns the WAL path for the given file number within
// this VersionSet's database directory.
func (vs *VersionSet) LogFilePath(number uint64) string {
	return logFilePath(vs.opts.DBName, number)
}

// Recover reads CURRENT, opens the MANIFEST it names, and replays every
// VersionEdit in it to reconstruct the set's durable state. It then writes
// that state as the first record of a fresh MANIFEST, which LogAndApply
// appends to, and points CURRENT at it. It returns ErrNoCurrentManifest if
// no database exists yet at opts.DBName.
func (vs *VersionSet) Recover() error {
	fs := vs.opts.FS
	raw, err := readWholeFile(fs, currentFilePath(vs.opts.DBName))
	if err != nil {
		if errors.Is(err, errFileNotFound) {
			return ErrNoCurrentManifest
		}
		return err
	}

	// The spec prescribes stripping exactly one trailing newline, not a
	// general whitespace trim: CURRENT is written as "MANIFEST-NNNNNN\n"
	// and nothing else should ever follow it.
	if len(raw) == 0 || raw[len(raw)-1] != '\n' {
		return fmt.Errorf("%w: CURRENT missing trailing newline", ErrCorruptManifest)
	}
	manifestName := string(raw[:len(raw)-1])
	const prefix = "MANIFEST-"
	if len(manifestName) <= len(prefix) || manifestName[:len(prefix)] != prefix {
		return fmt.Errorf("%w: CURRENT does not name a MANIFEST file", ErrCorruptManifest)
	}
	var manifestNum uint64
	if _, err := fmt.Sscanf(manifestName, "MANIFEST-%d", &manifestNum); err != nil {
		return fmt.Errorf("%w: unparseable MANIFEST number: %v", ErrCorruptManifest, err)
	}

	data, err := readWholeFile(fs, vs.opts.DBName+"/"+manifestName)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrCorruptManifest, manifestName, err)
	}

	var (
		hasComparator, hasLogNumber, hasNextFileNumber, hasLastSequence bool
		logNumber, prevLogNumber, nextFileNumber                        uint64
		lastSequence                                                    dbformat.SequenceNumber
	)

	r := wal.NewReader(bytes.NewReader(data), nil, 0)
	for {
		record, err := r.ReadRecord()
		if err != nil {
			break // io.EOF (corrupt records are skipped by the reader, not returned)
		}
		var edit manifest.VersionEdit
		if err := edit.DecodeFrom(record); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptManifest, err)
		}
		if edit.HasComparator {
			if edit.Comparator != vs.opts.ComparatorName {
				return fmt.Errorf("%w: manifest has %q, opened with %q",
					ErrComparatorMismatch, edit.Comparator, vs.opts.ComparatorName)
			}
			hasComparator = true
		}
		if edit.HasLogNumber {
			logNumber = edit.LogNumber
			hasLogNumber = true
		}
		if edit.HasPrevLogNumber {
			prevLogNumber = edit.PrevLogNumber
		}
		if edit.HasNextFileNumber {
			nextFileNumber = edit.NextFileNumber
			hasNextFileNumber = true
		}
		if edit.HasLastSequence {
			lastSequence = edit.LastSequence
			hasLastSequence = true
		}
	}
	_ = hasComparator

	if !hasLogNumber {
		return fmt.Errorf("%w: no log_number record", ErrCorruptManifest)
	}
	if !hasNextFileNumber {
		return fmt.Errorf("%w: no next_file_number record", ErrCorruptManifest)
	}
	if !hasLastSequence {
		return fmt.Errorf("%w: no last_sequence record", ErrCorruptManifest)
	}

	// mark_file_number_used(log_number): next_file_number must never
	// alias a file number already claimed by the log, even if it was
	// recorded by an older next_file_number record than the most recent
	// log_number bump.
	if logNumber >= nextFileNumber {
		nextFileNumber = logNumber + 1
	}

	newManifestNum := nextFileNumber
	nextFileNumber++

	vs.mu.Lock()
	vs.logNumber = logNumber
	vs.prevLogNumber = prevLogNumber
	vs.nextFileNumber = nextFileNumber
	vs.lastSequence = lastSequence
	vs.manifestFileNumber = newManifestNum
	vs.mu.Unlock()

	var snapshot manifest.VersionEdit
	snapshot.SetComparatorName(vs.opts.ComparatorName)
	snapshot.SetLogNumber(logNumber)
	snapshot.SetPrevLogNumber(prevLogNumber)
	snapshot.SetNextFileNumber(nextFileNumber)
	snapshot.SetLastSequence(lastSequence)
	if err := vs.writeSnapshot(newManifestNum, &snapshot); err != nil {
		return err
	}
	return vs.setCurrentFile(newManifestNum)
}

// Create bootstraps a brand-new, empty database: it allocates the
// initial WAL and MANIFEST file numbers, writes a first VersionEdit
// recording them, and atomically publishes CURRENT to point at it.
func (vs *VersionSet) Create() error {
	fs := vs.opts.FS
	if err := fs.MkdirAll(vs.opts.DBName, 0755); err != nil {
		return err
	}

	vs.mu.Lock()
	manifestNum := vs.nextFileNumber
	vs.nextFileNumber++
	logNumber := vs.nextFileNumber
	vs.nextFileNumber++
	vs.logNumber = logNumber
	vs.manifestFileNumber = manifestNum
	vs.mu.Unlock()

	var edit manifest.VersionEdit
	edit.SetComparatorName(vs.opts.ComparatorName)
	edit.SetLogNumber(logNumber)
	edit.SetNextFileNumber(vs.PeekNextFileNumber())
	edit.SetLastSequence(0)

	if err := vs.writeSnapshot(manifestNum, &edit); err != nil {
		return err
	}
	return vs.setCurrentFile(manifestNum)
}

// writeSnapshot writes edit as the sole record of a fresh MANIFEST-NNNNNN
// file, opening it for further LogAndApply appends afterward.
func (vs *VersionSet) writeSnapshot(manifestNum uint64, edit *manifest.VersionEdit) error {
	fs := vs.opts.FS
	f, err := fs.Create(manifestFilePath(vs.opts.DBName, manifestNum))
	if err != nil {
		return err
	}
	w := wal.NewWriter(&writableFileAdapter{f})
	encoded := edit.EncodeTo(nil)
	if _, err := w.AddRecord(encoded); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}

	vs.mu.Lock()
	if vs.manifestWriter != nil {
		_ = vs.manifestWriter.Close()
	}
	vs.manifestWriter = f
	vs.manifestChecksum = checksum.XXH3Digest(encoded)
	vs.mu.Unlock()
	return nil
}

// LogAndApply appends edit to the current MANIFEST and applies its
// scalar fields to the in-memory set.
func (vs *VersionSet) LogAndApply(edit *manifest.VersionEdit) error {
	vs.mu.Lock()
	w := vs.manifestWriter
	vs.mu.Unlock()
	if w == nil {
		return errors.New("version: LogAndApply before Create/Recover established a manifest")
	}

	encoded := edit.EncodeTo(nil)
	mw := wal.NewWriter(&writableFileAdapter{w})
	if _, err := mw.AddRecord(encoded); err != nil {
		return err
	}
	if err := w.Sync(); err != nil {
		return err
	}

	vs.mu.Lock()
	if edit.HasLogNumber {
		vs.prevLogNumber = vs.logNumber
		vs.logNumber = edit.LogNumber
	}
	if edit.HasNextFileNumber {
		vs.nextFileNumber = edit.NextFileNumber
	}
	if edit.HasLastSequence {
		vs.lastSequence = edit.LastSequence
	}
	vs.manifestChecksum = checksum.XXH3Digest(encoded)
	vs.mu.Unlock()
	return nil
}

// setCurrentFile atomically updates CURRENT to name the given MANIFEST
// number: it writes to a temp file, fsyncs it, renames it over CURRENT,
// and fsyncs the directory. On any failure the temp file is removed so
// CURRENT is never left pointing at a half-written name.
func (vs *VersionSet) setCurrentFile(manifestNum uint64) error {
	fs := vs.opts.FS
	tmpName := fmt.Sprintf("%s/%06d.dbtmp", vs.opts.DBName, manifestNum)
	content := fmt.Sprintf("MANIFEST-%06d\n", manifestNum)

	f, err := fs.Create(tmpName)
	if err != nil {
		return err
	}
	if err := f.Append([]byte(content)); err != nil {
		_ = f.Close()
		_ = fs.Remove(tmpName)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = fs.Remove(tmpName)
		return err
	}
	if err := f.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return err
	}
	if err := fs.Rename(tmpName, currentFilePath(vs.opts.DBName)); err != nil {
		_ = fs.Remove(tmpName)
		return err
	}
	return fs.SyncDir(vs.opts.DBName)
}

// MarkFileNumberUsed ensures subsequent NextFileNumber calls skip past n.
func (vs *VersionSet) MarkFileNumberUsed(n uint64) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if n >= vs.nextFileNumber {
		vs.nextFileNumber = n + 1
	}
}

// NextFileNumber allocates and returns the next file number.
func (vs *VersionSet) NextFileNumber() uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	n := vs.nextFileNumber
	vs.nextFileNumber++
	return n
}

// PeekNextFileNumber returns the next file number that would be
// allocated, without consuming it. Used when recording the
// next_file_number field itself, which must describe what remains
// available rather than consume a number just to report one.
func (vs *VersionSet) PeekNextFileNumber() uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.nextFileNumber
}

// LogNumber returns the WAL file number currently being written.
func (vs *VersionSet) LogNumber() uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.logNumber
}

// PrevLogNumber returns the WAL file number that preceded the current
// one, as of the most recent log number change (zero before any).
func (vs *VersionSet) PrevLogNumber() uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.prevLogNumber
}

// ManifestFileNumber returns the file number of the active MANIFEST.
func (vs *VersionSet) ManifestFileNumber() uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.manifestFileNumber
}

// ManifestChecksum returns the XXH3 digest of the most recently written
// MANIFEST record, as a self-check value.
func (vs *VersionSet) ManifestChecksum() uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.manifestChecksum
}

// LastSequence returns the last sequence number assigned.
func (vs *VersionSet) LastSequence() dbformat.SequenceNumber {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.lastSequence
}

// SetLastSequence advances the last assigned sequence number. It panics
// if s is less than the current value: sequence numbers must never move
// backward, and a caller trying to do so has a bug worth failing loudly
// for rather than silently tolerating.
func (vs *VersionSet) SetLastSequence(s dbformat.SequenceNumber) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if s < vs.lastSequence {
		panic(fmt.Sprintf("version: last sequence must be non-decreasing: have %d, got %d", vs.lastSequence, s))
	}
	vs.lastSequence = s
}

// Close releases the open MANIFEST handle.
func (vs *VersionSet) Close() error {
	vs.mu.Lock()
	w := vs.manifestWriter
	vs.manifestWriter = nil
	vs.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

// writableFileAdapter adapts vfs.WritableFile to io.Writer, so wal.Writer
// (which only needs Write and an optional Sync) can be driven by it.
type writableFileAdapter struct {
	f vfs.WritableFile
}

func (a *writableFileAdapter) Write(p []byte) (int, error) {
	if err := a.f.Append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (a *writableFileAdapter) Sync() error { return a.f.Sync() }

var errFileNotFound = errors.New("version: file not found")

func readWholeFile(fs vfs.FS, name string) ([]byte, error) {
	if !fs.Exists(name) {
		return nil, errFileNotFound
	}
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var buf bytes.Buffer
	tmp := make([]byte, 4096)
	for {
		n, err := f.Read(tmp)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil {
			break
		}
	}
	return buf.Bytes(), nil
}
