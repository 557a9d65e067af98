package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"
)

const (
	// Hash32Length is 32, the expected length of the hash.
	Hash32Length = 32
)

// Hash32 represents the 32-byte blake3 hash of arbitrary data.
type Hash32 [Hash32Length]byte

// EmptyHash32 is a canonical empty Hash32.
var EmptyHash32 Hash32

// BytesToHash sets b to hash.
// If b is larger than len(h), b will be cropped from the left.
func BytesToHash(b []byte) Hash32 {
	var h Hash32
	h.SetBytes(b)
	return h
}

// HexToHash32 sets byte representation of s to hash.
// Malformed input yields an empty hash.
func HexToHash32(s string) Hash32 {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return EmptyHash32
	}
	return BytesToHash(b)
}

// Bytes gets the byte representation of the underlying hash.
func (h Hash32) Bytes() []byte { return h[:] }

// Hex converts a hash to a hex string.
func (h Hash32) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements the stringer interface and is used also by the logger when
// doing full logging into a file.
func (h Hash32) String() string {
	return h.Hex()
}

// ShortString returns the first 10 characters of the hash, for logging purposes.
func (h Hash32) ShortString() string {
	return hex.EncodeToString(h[:5])
}

// Compare returns an integer comparing two hashes lexicographically.
func (h Hash32) Compare(other Hash32) int {
	return bytes.Compare(h[:], other[:])
}

// SetBytes sets the hash to the value of b.
// If b is larger than len(h), b will be cropped from the left.
func (h *Hash32) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-Hash32Length:]
	}

	copy(h[Hash32Length-len(b):], b)
}

// UnmarshalText parses a hash in hex syntax.
func (h *Hash32) UnmarshalText(input []byte) error {
	raw := strings.TrimPrefix(string(input), "0x")
	if len(raw) != 2*Hash32Length {
		return fmt.Errorf("hash: invalid length %d", len(raw))
	}
	if _, err := hex.Decode(h[:], []byte(raw)); err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	return nil
}

// MarshalText returns the hex representation of h.
func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (h Hash32) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("hash", h.ShortString())
	return nil
}

// EncodeScale implements scale codec interface.
func (h *Hash32) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, h[:])
}

// DecodeScale implements scale codec interface.
func (h *Hash32) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, h[:])
}

// SortHashes sorts a slice of hashes in place.
func SortHashes(hashes []Hash32) {
	slices.SortFunc(hashes, Hash32.Compare)
}
