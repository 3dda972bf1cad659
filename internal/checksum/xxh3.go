package checksum

import "github.com/zeebo/xxh3"

// XXH3Digest returns the 64-bit XXH3 digest of data, computed over each
// MANIFEST record the version set writes as a self-check value (see
// version.VersionSet.ManifestChecksum).
func XXH3Digest(data []byte) uint64 {
	return xxh3.Hash(data)
}
