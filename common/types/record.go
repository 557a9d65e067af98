package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"

	"github.com/bisq-network/bisq-sub006/hash"
)

// MaxPayloadSize bounds a single record payload.
const MaxPayloadSize = 1 << 20

// ErrHashMismatch is returned when a record's hash does not match its payload.
var ErrHashMismatch = errors.New("record hash does not match payload")

// Record is an immutable, content-addressed unit of replicated data.
type Record struct {
	Hash    Hash32
	Payload []byte
}

// NewRecord creates a record with the hash computed from payload.
func NewRecord(payload []byte) Record {
	return Record{
		Hash:    CalcRecordHash(payload),
		Payload: bytes.Clone(payload),
	}
}

// CalcRecordHash returns the content hash of a payload.
func CalcRecordHash(payload []byte) Hash32 {
	return hash.Sum(payload)
}

// Verify checks that the hash is derived from the payload.
func (r *Record) Verify() error {
	if got := CalcRecordHash(r.Payload); got != r.Hash {
		return fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, r.Hash.ShortString(), got.ShortString())
	}
	return nil
}

// Size is the number of bytes the record occupies when encoded.
// Sync responses are budgeted against it.
func (r *Record) Size() int {
	return Hash32Length + compactLen(uint32(len(r.Payload))) + len(r.Payload)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (r *Record) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("hash", r.Hash.ShortString())
	enc.AddInt("size", len(r.Payload))
	return nil
}

// EncodeScale implements scale codec interface.
func (r *Record) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(enc, r.Hash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, r.Payload, MaxPayloadSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *Record) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(dec, r.Hash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, MaxPayloadSize)
		if err != nil {
			return total, err
		}
		total += n
		r.Payload = field
	}
	return total, nil
}

// compactLen is the size of the scale compact length prefix for n.
func compactLen(n uint32) int {
	switch {
	case n < 1<<6:
		return 1
	case n < 1<<14:
		return 2
	case n < 1<<30:
		return 4
	default:
		return 5
	}
}
