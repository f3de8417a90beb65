package dataset

import (
	"encoding/binary"
	"hash/fnv"
)

// fingerprintOf hashes the load-time identity of a dataset (path, size,
// mtime, row count) into a stable uint64, the same FNV-1a construction
// the teacher package uses for its bloom-filter hashing
// (internal/store/cache.go's fnvHash), generalized to cover multiple
// fields instead of a fixed-width key.
func fingerprintOf(path string, size int64, modUnixNano int64, rows int) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(size))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(modUnixNano))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(rows))
	h.Write(buf[:])
	return h.Sum64()
}
