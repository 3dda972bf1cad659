package version

import (
	"testing"

	"github.com/vaultkv/vaultkv/internal/dbformat"
	"github.com/vaultkv/vaultkv/internal/manifest"
	"github.com/vaultkv/vaultkv/internal/vfs"
)

func testOptions(dbname string) Options {
	opts := DefaultOptions(dbname)
	opts.FS = vfs.NewMem()
	return opts
}

func TestCreateThenRecoverRoundTrip(t *testing.T) {
	opts := testOptions("/db")
	vs := New(opts)
	if err := vs.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	logNum := vs.LogNumber()
	if logNum == 0 {
		t.Fatalf("LogNumber should be nonzero after Create")
	}
	vs.SetLastSequence(42)
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	vs2 := New(opts)
	if err := vs2.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if vs2.LogNumber() != logNum {
		t.Fatalf("LogNumber after recover = %d, want %d", vs2.LogNumber(), logNum)
	}
	// last_sequence is only durable once LogAndApply'd; Create's initial
	// snapshot records 0.
	if vs2.LastSequence() != 0 {
		t.Fatalf("LastSequence after recover = %d, want 0", vs2.LastSequence())
	}
}

func TestRecoverMissingCurrentReturnsErrNoCurrentManifest(t *testing.T) {
	opts := testOptions("/empty")
	vs := New(opts)
	if err := vs.Recover(); err != ErrNoCurrentManifest {
		t.Fatalf("Recover on empty dir = %v, want ErrNoCurrentManifest", err)
	}
}

func TestLogAndApplyPersistsLastSequence(t *testing.T) {
	opts := testOptions("/db")
	vs := New(opts)
	if err := vs.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var edit manifest.VersionEdit
	edit.SetLastSequence(dbformat.SequenceNumber(100))
	if err := vs.LogAndApply(&edit); err != nil {
		t.Fatalf("LogAndApply: %v", err)
	}
	if vs.LastSequence() != 100 {
		t.Fatalf("LastSequence = %d, want 100", vs.LastSequence())
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	vs2 := New(opts)
	if err := vs2.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if vs2.LastSequence() != 100 {
		t.Fatalf("recovered LastSequence = %d, want 100", vs2.LastSequence())
	}
}

func TestRecoverDetectsComparatorMismatch(t *testing.T) {
	opts := testOptions("/db")
	vs := New(opts)
	if err := vs.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	badOpts := opts
	badOpts.ComparatorName = "something.else"
	vs2 := New(badOpts)
	if err := vs2.Recover(); err == nil {
		t.Fatalf("expected comparator mismatch error")
	}
}

func TestSetLastSequencePanicsOnDecrease(t *testing.T) {
	opts := testOptions("/db")
	vs := New(opts)
	if err := vs.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	vs.SetLastSequence(10)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on decreasing sequence")
		}
	}()
	vs.SetLastSequence(5)
}

func TestMarkFileNumberUsedAdvancesNextFileNumber(t *testing.T) {
	opts := testOptions("/db")
	vs := New(opts)
	if err := vs.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	vs.MarkFileNumberUsed(1000)
	if got := vs.NextFileNumber(); got != 1001 {
		t.Fatalf("NextFileNumber = %d, want 1001", got)
	}
}
