package hashsync

import (
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/bisq-network/bisq-sub006/common/types"
)

const (
	// MaxEntries bounds the number of exclusion entries in a request.
	MaxEntries = 1 << 20
	// MaxRecords bounds the number of records in a response.
	MaxRecords = 1 << 20
)

var ErrUnknownEntryType = errors.New("unknown exclusion entry type")

// EntryType tags an exclusion entry on the wire.
type EntryType byte

const (
	EntryTypeRecordHash    EntryType = 1
	EntryTypeVersionMarker EntryType = 2
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeRecordHash:
		return "hash"
	case EntryTypeVersionMarker:
		return "marker"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// ExclusionEntry is either the hash of a record the requester holds, or a
// version marker standing for every record of a snapshot up to that version.
type ExclusionEntry struct {
	Type    EntryType
	Hash    types.Hash32  // set for EntryTypeRecordHash
	Version types.Version // set for EntryTypeVersionMarker
}

func RecordHashEntry(h types.Hash32) ExclusionEntry {
	return ExclusionEntry{Type: EntryTypeRecordHash, Hash: h}
}

func MarkerEntry(v types.Version) ExclusionEntry {
	return ExclusionEntry{Type: EntryTypeVersionMarker, Version: v}
}

// Marker returns the marker of a version marker entry.
func (e *ExclusionEntry) Marker() (types.VersionMarker, bool) {
	if e.Type != EntryTypeVersionMarker {
		return types.VersionMarker{}, false
	}
	return e.Version.Marker(), true
}

// Key identifies the entry. Marker keys are derived in their own hash domain
// and never equal a record hash.
func (e *ExclusionEntry) Key() types.Hash32 {
	if m, ok := e.Marker(); ok {
		return m.Hash()
	}
	return e.Hash
}

func (e *ExclusionEntry) String() string {
	if m, ok := e.Marker(); ok {
		return m.String()
	}
	return e.Hash.ShortString()
}

// EncodeScale implements scale codec interface.
func (e *ExclusionEntry) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(enc, []byte{byte(e.Type)})
		if err != nil {
			return total, err
		}
		total += n
	}
	switch e.Type {
	case EntryTypeRecordHash:
		n, err := e.Hash.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	case EntryTypeVersionMarker:
		n, err := e.Version.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	default:
		return total, fmt.Errorf("%w: %s", ErrUnknownEntryType, e.Type)
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (e *ExclusionEntry) DecodeScale(dec *scale.Decoder) (total int, err error) {
	var tag [1]byte
	{
		n, err := scale.DecodeByteArray(dec, tag[:])
		if err != nil {
			return total, err
		}
		total += n
		e.Type = EntryType(tag[0])
	}
	switch e.Type {
	case EntryTypeRecordHash:
		n, err := e.Hash.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	case EntryTypeVersionMarker:
		n, err := e.Version.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	default:
		return total, fmt.Errorf("%w: %s", ErrUnknownEntryType, e.Type)
	}
	return total, nil
}

// Request summarizes what the requester already holds.
type Request struct {
	VersionHint uint32
	Entries     []ExclusionEntry
}

// EncodeScale implements scale codec interface.
func (r *Request) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeCompact32(enc, r.VersionHint)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, r.Entries, MaxEntries)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *Request) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		r.VersionHint = field
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[ExclusionEntry](dec, MaxEntries)
		if err != nil {
			return total, err
		}
		total += n
		r.Entries = field
	}
	return total, nil
}

// Response carries the records the requester is missing. Truncated is set
// when records were left out to fit the size budget.
type Response struct {
	Records   []types.Record
	Truncated bool
}

// EncodeScale implements scale codec interface.
func (r *Response) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, r.Records, MaxRecords)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeBool(enc, r.Truncated)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *Response) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeStructSliceWithLimit[types.Record](dec, MaxRecords)
		if err != nil {
			return total, err
		}
		total += n
		r.Records = field
	}
	{
		field, n, err := scale.DecodeBool(dec)
		if err != nil {
			return total, err
		}
		total += n
		r.Truncated = field
	}
	return total, nil
}
