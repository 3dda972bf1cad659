// Package manifest implements the VersionEdit format: a tagged-field
// record describing the first-boot state an empty database needs
// (comparator name, log numbers, next file number, last sequence) plus
// the SST-file-set deltas a compaction would apply. This repository
// only exercises the first group; the file-set tags exist so a MANIFEST
// written by a fuller implementation still decodes cleanly.
package manifest

// Tag identifies a VersionEdit field as serialized on disk. These values
// are the original LevelDB tag numbers; they are part of the on-disk
// format and must never change.
type Tag uint32

const (
	TagComparator     Tag = 1
	TagLogNumber      Tag = 2
	TagNextFileNumber Tag = 3
	TagLastSequence   Tag = 4
	TagCompactPointer Tag = 5
	TagDeletedFile    Tag = 6
	TagNewFile        Tag = 7
	// Tag 8 is a supplement to the original format: a whole-file XXH3
	// checksum attached to a NewFile record (see VersionEdit.EncodeTo).
	TagFileChecksum  Tag = 8
	TagPrevLogNumber Tag = 9
)
