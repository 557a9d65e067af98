package codec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/spacemeshos/go-scale"
)

// Encodable is an interface that must be implemented by a struct to be encoded.
type Encodable = scale.Encodable

// Decodable is an interface that must be implemented by a struct to be decoded.
type Decodable = scale.Decodable

// EncodeTo encodes value to a writer stream.
func EncodeTo(w io.Writer, value Encodable) (int, error) {
	return value.EncodeScale(scale.NewEncoder(w))
}

// DecodeFrom decodes a value using data from a reader stream.
func DecodeFrom(r io.Reader, value Decodable) (int, error) {
	return value.DecodeScale(scale.NewDecoder(r))
}

var encoderPool = sync.Pool{
	New: func() any {
		b := new(bytes.Buffer)
		b.Grow(64)
		return b
	},
}

func getEncoderBuffer() *bytes.Buffer {
	return encoderPool.Get().(*bytes.Buffer)
}

func putEncoderBuffer(b *bytes.Buffer) {
	b.Reset()
	encoderPool.Put(b)
}

// Encode value to a byte buffer.
func Encode(value Encodable) ([]byte, error) {
	b := getEncoderBuffer()
	defer putEncoderBuffer(b)
	if _, err := EncodeTo(b, value); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return bytes.Clone(b.Bytes()), nil
}

// MustEncode encodes value and panics on error.
func MustEncode(value Encodable) []byte {
	buf, err := Encode(value)
	if err != nil {
		panic(err)
	}
	return buf
}

// Decode value from a byte buffer. Trailing bytes are an error.
func Decode(buf []byte, value Decodable) error {
	n, err := DecodeFrom(bytes.NewReader(buf), value)
	if err != nil {
		return fmt.Errorf("decode from buffer: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("decode from buffer: %d trailing bytes", len(buf)-n)
	}
	return nil
}

// EncodeSlice encodes a slice of structs with a length limit.
func EncodeSlice[V any, H scale.EncodablePtr[V]](value []V, limit uint32) ([]byte, error) {
	var b bytes.Buffer
	if _, err := scale.EncodeStructSliceWithLimit[V, H](scale.NewEncoder(&b), value, limit); err != nil {
		return nil, fmt.Errorf("encode struct slice: %w", err)
	}
	return b.Bytes(), nil
}

// DecodeSlice decodes a slice of structs with a length limit.
func DecodeSlice[V any, H scale.DecodablePtr[V]](buf []byte, limit uint32) ([]V, error) {
	v, _, err := scale.DecodeStructSliceWithLimit[V, H](scale.NewDecoder(bytes.NewReader(buf)), limit)
	if err != nil {
		return nil, fmt.Errorf("decode struct slice: %w", err)
	}
	return v, nil
}
