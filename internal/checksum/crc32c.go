// Package checksum implements the CRC-32C (Castagnoli) checksum used to
// protect WAL and MANIFEST records, plus the XXH3 digest used for the
// MANIFEST self-check (see ManifestChecksum in internal/version).
package checksum

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// maskDelta is added after the bit-rotate in Mask/Unmask so that a CRC of
// zero does not map to a masked value of zero on disk.
const maskDelta = 0xa282ead8

// Value returns the CRC-32C of data.
func Value(data []byte) uint32 {
	return crc32.Checksum(data, table)
}

// Extend returns the CRC-32C of data as if it were appended to a stream
// whose CRC-32C so far is initCRC.
func Extend(initCRC uint32, data []byte) uint32 {
	return crc32.Update(initCRC, table, data)
}

// Mask returns a masked representation of crc. Masking is not a
// cryptographic transform; it exists so that a stored CRC of an
// all-zero record does not collide with an uninitialized buffer.
func Mask(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Unmask reverses Mask.
func Unmask(maskedCRC uint32) uint32 {
	rot := maskedCRC - maskDelta
	return (rot >> 17) | (rot << 15)
}
