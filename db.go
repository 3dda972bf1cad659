// db.go implements the public DB facade: Open/Close, Put/Delete/Get, and
// the group-commit Write path that serializes concurrent writers onto a
// single WAL append + memtable apply.
package vaultkv

import (
	"fmt"
	"io"
	"sync"

	"github.com/vaultkv/vaultkv/internal/batch"
	"github.com/vaultkv/vaultkv/internal/dbformat"
	"github.com/vaultkv/vaultkv/internal/logging"
	"github.com/vaultkv/vaultkv/internal/manifest"
	"github.com/vaultkv/vaultkv/internal/memtable"
	"github.com/vaultkv/vaultkv/internal/version"
	"github.com/vaultkv/vaultkv/internal/vfs"
	"github.com/vaultkv/vaultkv/internal/wal"
)

// groupCommitCap is the maximum size, in bytes, a coalesced group batch
// may grow to before no further followers are folded in.
const groupCommitCap = 1 << 20 // 1 MiB

// smallLeaderThreshold is the leader-batch size below which the cap is
// relaxed to leaderSize+smallLeaderSlack instead of groupCommitCap, so a
// small write isn't starved behind one giant follower.
const smallLeaderThreshold = 128 * 1024

const smallLeaderSlack = 128 * 1024

// DB is an open database. A DB is safe for concurrent use by multiple
// goroutines: writes are serialized internally via group commit, and
// reads run concurrently with the current writer.
type DB struct {
	dbname  string
	opts    *Options
	fs      vfs.FS
	cmp     Comparator
	userCmp dbformat.UserKeyComparer
	logger  logging.Logger

	lock io.Closer

	// writeMu guards everything below: the writer queue, the active
	// memtable, the WAL writer, and the poisoned/closed flags. It is
	// released by the leader before doing any file I/O, so readers and
	// newly arriving writers are never blocked on disk.
	writeMu sync.Mutex

	vs        *version.VersionSet
	logFile   vfs.WritableFile
	logWriter *wal.Writer
	mem       *memtable.MemTable

	writers  []*dbWriter
	closed   bool
	poisoned bool
	poisonErr error
}

// dbWriter is one queued call to Write: it waits on its own condition
// variable until it either becomes the queue's leader or a leader ahead
// of it marks it done.
type dbWriter struct {
	batch *batch.WriteBatch
	sync  bool
	done  bool
	err   error
	cond  *sync.Cond
}

// fileWriter adapts a vfs.WritableFile to the io.Writer (+ optional
// Sync) interface wal.Writer is built against.
type fileWriter struct{ f vfs.WritableFile }

func (w *fileWriter) Write(p []byte) (int, error) {
	if err := w.f.Append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *fileWriter) Sync() error { return w.f.Sync() }

// Open opens (or creates) the database at dbname.
func Open(dbname string, opts *Options) (*DB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	fs := opts.FS
	if fs == nil {
		fs = vfs.Default()
	}
	cmp := opts.Comparator
	if cmp == nil {
		cmp = DefaultComparator()
	}
	logger := logging.OrDefault(opts.Logger)

	if err := fs.MkdirAll(dbname, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating database directory: %v", ErrIOError, err)
	}
	lock, err := fs.Lock(dbname + "/LOCK")
	if err != nil {
		return nil, fmt.Errorf("%w: acquiring LOCK: %v", ErrIOError, err)
	}

	vs := version.New(version.Options{
		DBName:         dbname,
		FS:             fs,
		ComparatorName: cmp.Name(),
		Logger:         logger,
	})

	exists := fs.Exists(dbname + "/CURRENT")
	switch {
	case exists && opts.ErrorIfExists:
		_ = lock.Close()
		return nil, fmt.Errorf("%w: database already exists at %s", ErrInvalidArgument, dbname)
	case !exists && !opts.CreateIfMissing:
		_ = lock.Close()
		return nil, fmt.Errorf("%w: no database at %s (CreateIfMissing is false)", ErrInvalidArgument, dbname)
	case exists:
		if err := vs.Recover(); err != nil {
			_ = lock.Close()
			return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
		}
	default:
		if err := vs.Create(); err != nil {
			_ = lock.Close()
			return nil, fmt.Errorf("%w: %v", ErrIOError, err)
		}
	}

	userCmp := dbformat.UserKeyComparer(cmp.Compare)
	mem := memtable.NewMemTable(userCmp)

	var logFile vfs.WritableFile
	if exists {
		logFile, err = recoverLog(fs, vs, mem, logger, opts.ParanoidChecks)
	} else {
		logFile, err = fs.Create(vs.LogFilePath(vs.LogNumber()))
	}
	if err != nil {
		_ = vs.Close()
		_ = lock.Close()
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	db := &DB{
		dbname:    dbname,
		opts:      opts,
		fs:        fs,
		cmp:       cmp,
		userCmp:   userCmp,
		logger:    logger,
		lock:      lock,
		vs:        vs,
		logFile:   logFile,
		logWriter: wal.NewWriter(&fileWriter{logFile}),
		mem:       mem,
	}
	return db, nil
}

// recoveryReporter logs WAL corruption encountered while replaying the
// log during recovery; it never aborts recovery itself (the reader
// already skips the damaged fragment), so a past crash mid-write does
// not brick the database on reopen.
type recoveryReporter struct {
	logger logging.Logger
}

func (r *recoveryReporter) Corruption(n int, err error) {
	r.logger.Warnf("recovery: skipping %d corrupt WAL bytes: %v", n, err)
}

// recoverLog replays the WAL file named by vs's current log number into
// mem, then rolls over to a fresh log file: the old file's tail may be
// only partially written, so rather than risk appending after a torn
// record, recovery always starts the next generation on a clean file.
func recoverLog(fs vfs.FS, vs *version.VersionSet, mem *memtable.MemTable, logger logging.Logger, paranoid bool) (vfs.WritableFile, error) {
	oldLogNumber := vs.LogNumber()
	path := vs.LogFilePath(oldLogNumber)
	var maxSeq dbformat.SequenceNumber

	if fs.Exists(path) {
		f, err := fs.Open(path)
		if err != nil {
			return nil, err
		}
		r := wal.NewReader(f, &recoveryReporter{logger: logger}, 0)
		for {
			record, err := r.ReadRecord()
			if err != nil {
				break
			}
			wb, err := batch.NewFromData(append([]byte(nil), record...))
			if err == nil {
				err = batch.InsertInto(wb, mem)
			}
			if err != nil {
				if paranoid {
					_ = f.Close()
					return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
				}
				logger.Warnf("recovery: skipping corrupt batch: %v", err)
				continue
			}
			if wb.Count() > 0 {
				end := wb.Sequence() + dbformat.SequenceNumber(wb.Count()) - 1
				if end > maxSeq {
					maxSeq = end
				}
			}
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	}

	if maxSeq > vs.LastSequence() {
		vs.SetLastSequence(maxSeq)
	}

	newLogNumber := vs.NextFileNumber()
	newFile, err := fs.Create(vs.LogFilePath(newLogNumber))
	if err != nil {
		return nil, err
	}

	var edit manifest.VersionEdit
	edit.SetLogNumber(newLogNumber)
	edit.SetPrevLogNumber(oldLogNumber)
	edit.SetNextFileNumber(vs.PeekNextFileNumber())
	edit.SetLastSequence(vs.LastSequence())
	if err := vs.LogAndApply(&edit); err != nil {
		_ = newFile.Close()
		return nil, err
	}
	return newFile, nil
}

// Close releases the database's resources: the active WAL file, the
// MANIFEST handle, and the LOCK file.
func (db *DB) Close() error {
	db.writeMu.Lock()
	if db.closed {
		db.writeMu.Unlock()
		return nil
	}
	db.closed = true
	db.writeMu.Unlock()

	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if db.logFile != nil {
		record(db.logFile.Close())
	}
	record(db.vs.Close())
	if db.lock != nil {
		record(db.lock.Close())
	}
	return first
}

// Put writes a single key-value pair.
func (db *DB) Put(opts *WriteOptions, key, value []byte) error {
	wb := NewWriteBatch()
	wb.Put(key, value)
	return db.Write(opts, wb)
}

// Delete removes key.
func (db *DB) Delete(opts *WriteOptions, key []byte) error {
	wb := NewWriteBatch()
	wb.Delete(key)
	return db.Write(opts, wb)
}

// Get returns the value for key as of opts.Sequence (or the most recent
// state if opts.Sequence is zero). It returns ErrNotFound if key is
// absent or has been deleted.
func (db *DB) Get(opts *ReadOptions, key []byte) ([]byte, error) {
	db.writeMu.Lock()
	if db.closed {
		db.writeMu.Unlock()
		return nil, ErrDBClosed
	}
	seq := opts.Sequence
	if seq == 0 {
		seq = db.vs.LastSequence()
	}
	mem := db.mem
	db.writeMu.Unlock()

	value, found, deleted := mem.Get(key, seq)
	if !found || deleted {
		return nil, ErrNotFound
	}
	return value, nil
}

// Write applies wb atomically. Concurrent Write calls are coalesced: the
// first writer at the front of the internal queue becomes the leader for
// a round, folding in as many of the writers behind it as fit under the
// group-commit size cap, then performs one WAL append (+ optional fsync)
// and one memtable replay on their behalf.
func (db *DB) Write(opts *WriteOptions, wb *WriteBatch) error {
	if opts == nil {
		opts = DefaultWriteOptions()
	}
	if wb.internal.Count() == 0 {
		return nil
	}

	w := &dbWriter{batch: wb.internal, sync: opts.Sync}

	db.writeMu.Lock()
	w.cond = sync.NewCond(&db.writeMu)
	db.writers = append(db.writers, w)
	for db.writers[0] != w && !w.done {
		w.cond.Wait()
	}
	if w.done {
		err := w.err
		db.writeMu.Unlock()
		return err
	}
	if db.closed {
		db.popAndSignal([]*dbWriter{w}, ErrDBClosed)
		db.writeMu.Unlock()
		return ErrDBClosed
	}
	if db.poisoned {
		err := fmt.Errorf("%w: %w", ErrDBPoisoned, db.poisonErr)
		db.popAndSignal([]*dbWriter{w}, err)
		db.writeMu.Unlock()
		return err
	}
	if db.opts.WriteBufferSize > 0 && db.mem.ApproximateMemoryUsage() >= int64(db.opts.WriteBufferSize) {
		db.popAndSignal([]*dbWriter{w}, ErrWriteBufferFull)
		db.writeMu.Unlock()
		return ErrWriteBufferFull
	}

	group, included := db.buildGroup()
	lastSeq := db.vs.LastSequence()
	group.SetSequence(lastSeq + 1)
	newLast := lastSeq + dbformat.SequenceNumber(group.Count())

	needSync := opts.Sync
	for _, iw := range included {
		if iw.sync {
			needSync = true
		}
	}
	db.writeMu.Unlock()

	writeErr := db.appendGroup(group, needSync)
	if writeErr == nil {
		writeErr = batch.InsertInto(group, db.mem)
	}

	db.writeMu.Lock()
	if writeErr != nil {
		db.poisoned = true
		db.poisonErr = writeErr
		db.logger.Errorf("write path failed, poisoning database: %v", writeErr)
	} else {
		db.vs.SetLastSequence(newLast)
	}
	db.popAndSignal(included, writeErr)
	db.writeMu.Unlock()
	return writeErr
}

// buildGroup assembles the coalesced batch for this leader round. Must
// be called with writeMu held; db.writers[0] is the leader.
func (db *DB) buildGroup() (*batch.WriteBatch, []*dbWriter) {
	leader := db.writers[0]
	limit := groupCommitCap
	if leader.batch.Size() <= smallLeaderThreshold {
		limit = leader.batch.Size() + smallLeaderSlack
	}

	group := batch.New()
	group.Append(leader.batch)
	included := []*dbWriter{leader}
	size := group.Size()

	for i := 1; i < len(db.writers); i++ {
		follower := db.writers[i]
		if follower.sync && !leader.sync {
			break
		}
		projected := size + follower.batch.Size() - batch.HeaderSize
		if projected > limit {
			break
		}
		group.Append(follower.batch)
		size = projected
		included = append(included, follower)
	}
	return group, included
}

// appendGroup writes group as a single WAL record and, if sync is true,
// fsyncs the log. Called without writeMu held: file I/O never blocks the
// queue.
func (db *DB) appendGroup(group *batch.WriteBatch, sync bool) error {
	if _, err := db.logWriter.AddRecord(group.Data()); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if sync {
		if err := db.logWriter.Sync(); err != nil {
			return fmt.Errorf("%w: %v", ErrIOError, err)
		}
	}
	return nil
}

// popAndSignal removes included (a prefix of db.writers) from the queue,
// marks each done with err, and wakes the new front writer, if any. Must
// be called with writeMu held.
func (db *DB) popAndSignal(included []*dbWriter, err error) {
	db.writers = db.writers[len(included):]
	for _, iw := range included {
		iw.done = true
		iw.err = err
		iw.cond.Signal()
	}
	if len(db.writers) > 0 {
		db.writers[0].cond.Signal()
	}
}
