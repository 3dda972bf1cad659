package vaultkv

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vaultkv/vaultkv/internal/vfs"
)

func testDBOptions() *Options {
	opts := DefaultOptions()
	opts.CreateIfMissing = true
	opts.FS = vfs.NewMem()
	return opts
}

func TestOpenPutGetDelete(t *testing.T) {
	db, err := Open("/db", testDBOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.Put(DefaultWriteOptions(), []byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, err := db.Get(DefaultReadOptions(), []byte("a"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "1" {
		t.Fatalf("Get = %q, want %q", v, "1")
	}

	if err := db.Delete(DefaultWriteOptions(), []byte("a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get(DefaultReadOptions(), []byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	db, err := Open("/db", testDBOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.Get(DefaultReadOptions(), []byte("nope")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
}

func TestOpenWithoutCreateIfMissingFails(t *testing.T) {
	opts := DefaultOptions()
	opts.FS = vfs.NewMem()
	if _, err := Open("/db", opts); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Open = %v, want ErrInvalidArgument", err)
	}
}

func TestOpenErrorIfExists(t *testing.T) {
	fs := vfs.NewMem()
	opts := DefaultOptions()
	opts.CreateIfMissing = true
	opts.FS = fs
	db, err := Open("/db", opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	opts2 := DefaultOptions()
	opts2.CreateIfMissing = true
	opts2.ErrorIfExists = true
	opts2.FS = fs
	if _, err := Open("/db", opts2); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("reopen with ErrorIfExists = %v, want ErrInvalidArgument", err)
	}
}

func TestCloseThenWriteFails(t *testing.T) {
	db, err := Open("/db", testDBOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := db.Put(DefaultWriteOptions(), []byte("a"), []byte("1")); !errors.Is(err, ErrDBClosed) {
		t.Fatalf("Put after close = %v, want ErrDBClosed", err)
	}
}

func TestRecoverAfterCloseSeesPriorWrites(t *testing.T) {
	fs := vfs.NewMem()
	opts := testDBOptions()
	opts.FS = fs

	db, err := Open("/db", opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		if err := db.Put(DefaultWriteOptions(), key, key); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	opts2 := DefaultOptions()
	opts2.FS = fs
	db2, err := Open("/db", opts2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		v, err := db2.Get(DefaultReadOptions(), key)
		if err != nil {
			t.Fatalf("Get %s: %v", key, err)
		}
		if string(v) != string(key) {
			t.Fatalf("Get %s = %q, want %q", key, v, key)
		}
	}
}

func TestConcurrentWritesAllVisible(t *testing.T) {
	db, err := Open("/db", testDBOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []byte(fmt.Sprintf("k%03d", i))
			if err := db.Put(DefaultWriteOptions(), key, key); err != nil {
				t.Errorf("Put: %v", err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		v, err := db.Get(DefaultReadOptions(), key)
		if err != nil {
			t.Fatalf("Get %s: %v", key, err)
		}
		if string(v) != string(key) {
			t.Fatalf("Get %s = %q, want %q", key, v, key)
		}
	}
}

func TestWriteBatchAtomicAcrossKeys(t *testing.T) {
	db, err := Open("/db", testDBOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	wb := NewWriteBatch()
	wb.Put([]byte("x"), []byte("1"))
	wb.Put([]byte("y"), []byte("2"))
	wb.Delete([]byte("z"))
	if err := db.Write(DefaultWriteOptions(), wb); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, kv := range [][2]string{{"x", "1"}, {"y", "2"}} {
		v, err := db.Get(DefaultReadOptions(), []byte(kv[0]))
		if err != nil {
			t.Fatalf("Get %s: %v", kv[0], err)
		}
		if string(v) != kv[1] {
			t.Fatalf("Get %s = %q, want %q", kv[0], v, kv[1])
		}
	}
}
