package encoding

import (
	"errors"
	"fmt"
)

// MaxVarintLen32 is the longest encoding accepted for one value.
const MaxVarintLen32 = 5

var (
	ErrVarintTruncated = errors.New("truncated varint stream")
	ErrVarintTooLong   = errors.New("varint longer than 5 bytes")
)

// AppendVarint appends v as little-endian base-128 (7 bits per byte, high
// bit set on every byte but the last).
func AppendVarint(buf []byte, v uint32) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func EncodeVarints(vals []uint32) []byte {
	buf := make([]byte, 0, len(vals))
	for _, v := range vals {
		buf = AppendVarint(buf, v)
	}
	return buf
}

// DecodeVarints reads up to want values from stream. It stops early at the
// end of the stream, or on a malformed value; in the latter case the values
// decoded so far are returned together with an error naming the offset.
func DecodeVarints(stream []byte, want int) ([]uint32, error) {
	out := make([]uint32, 0, min(want, len(stream)))
	for i := 0; i < len(stream) && len(out) < want; {
		start := i
		var v uint32
		var shift uint
		for n := 0; ; n++ {
			if n == MaxVarintLen32 {
				return out, fmt.Errorf("%w at offset %d", ErrVarintTooLong, start)
			}
			if i >= len(stream) {
				return out, fmt.Errorf("%w at offset %d", ErrVarintTruncated, start)
			}
			b := stream[i]
			i++
			v |= uint32(b&0x7f) << shift
			shift += 7
			if b&0x80 == 0 {
				break
			}
		}
		out = append(out, v)
	}
	return out, nil
}
