// Package hash computes record content hashes and version marker hashes.
package hash

import (
	"sync"

	"github.com/zeebo/blake3"
)

const (
	// Size is the length of every hash produced by this package (32 bytes).
	Size = 32

	markerContext = "histsync 2024-05-01 version marker"
)

var hashers = sync.Pool{
	New: func() any { return blake3.New() },
}

// Sum computes the content hash of the concatenated chunks.
func Sum(chunks ...[]byte) (rst [Size]byte) {
	hh := hashers.Get().(*blake3.Hasher)
	defer func() {
		hh.Reset()
		hashers.Put(hh)
	}()
	for _, chunk := range chunks {
		hh.Write(chunk)
	}
	hh.Sum(rst[:0])
	return rst
}

// MarkerSum hashes data in the version marker derive-key domain.
// Outputs of MarkerSum and Sum are independent, so a marker can't be
// produced by hashing any record payload.
func MarkerSum(data []byte) (rst [Size]byte) {
	blake3.DeriveKey(markerContext, data, rst[:])
	return rst
}
