package vfs

import (
	"bytes"
	"io"
	"testing"
)

func TestMemFSWriteReadRoundTrip(t *testing.T) {
	fs := NewMem()
	w, err := fs.Create("foo.log")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Append([]byte("hello ")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append([]byte("world")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := fs.Open("foo.log")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, []byte("hello world")) {
		t.Fatalf("read %q, want %q", got, "hello world")
	}
}

func TestMemFSRenameAndExists(t *testing.T) {
	fs := NewMem()
	w, _ := fs.Create("a.tmp")
	_ = w.Append([]byte("x"))
	_ = w.Close()

	if err := fs.Rename("a.tmp", "a.final"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if fs.Exists("a.tmp") {
		t.Fatalf("a.tmp should no longer exist")
	}
	if !fs.Exists("a.final") {
		t.Fatalf("a.final should exist")
	}
}

func TestBufferedWritableFileFlushesAcrossThreshold(t *testing.T) {
	// This exercises the size accounting path through the real OS file,
	// using a temp file so the test stays hermetic.
	dir := t.TempDir()
	fsys := Default()
	w, err := fsys.Create(dir + "/big.log")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	small := []byte("small")
	if err := w.Append(small); err != nil {
		t.Fatalf("Append small: %v", err)
	}
	big := bytes.Repeat([]byte("x"), bufferSize+1)
	if err := w.Append(big); err != nil {
		t.Fatalf("Append big: %v", err)
	}
	size, err := w.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != int64(len(small)+len(big)) {
		t.Fatalf("Size() = %d, want %d", size, len(small)+len(big))
	}
}
