package nbt

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Encode writes root as a named compound. Keys are emitted in sorted order so
// the output is deterministic.
func Encode(name string, root Compound) ([]byte, error) {
	buf := []byte{byte(TagCompound)}
	buf = appendString(buf, name)
	return appendCompound(buf, root)
}

func tagOf(v any) (TagType, error) {
	switch v.(type) {
	case int8:
		return TagByte, nil
	case int16:
		return TagShort, nil
	case int32:
		return TagInt, nil
	case int64:
		return TagLong, nil
	case float32:
		return TagFloat, nil
	case float64:
		return TagDouble, nil
	case []byte:
		return TagByteArray, nil
	case string:
		return TagString, nil
	case List:
		return TagList, nil
	case Compound:
		return TagCompound, nil
	case []int32:
		return TagIntArray, nil
	case []int64:
		return TagLongArray, nil
	}
	return TagEnd, fmt.Errorf("nbt: cannot encode %T", v)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func appendCompound(buf []byte, c Compound) ([]byte, error) {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t, err := tagOf(c[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		buf = append(buf, byte(t))
		buf = appendString(buf, k)
		if buf, err = appendPayload(buf, c[k]); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
	}
	return append(buf, byte(TagEnd)), nil
}

func appendPayload(buf []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case int8:
		return append(buf, byte(x)), nil
	case int16:
		return binary.BigEndian.AppendUint16(buf, uint16(x)), nil
	case int32:
		return binary.BigEndian.AppendUint32(buf, uint32(x)), nil
	case int64:
		return binary.BigEndian.AppendUint64(buf, uint64(x)), nil
	case float32:
		return binary.BigEndian.AppendUint32(buf, math.Float32bits(x)), nil
	case float64:
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(x)), nil
	case []byte:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x)))
		return append(buf, x...), nil
	case string:
		return appendString(buf, x), nil
	case List:
		buf = append(buf, byte(x.Elem))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x.Items)))
		for _, it := range x.Items {
			t, err := tagOf(it)
			if err != nil {
				return nil, err
			}
			if t != x.Elem {
				return nil, fmt.Errorf("nbt: list of %d holds %T", x.Elem, it)
			}
			if buf, err = appendPayload(buf, it); err != nil {
				return nil, err
			}
		}
		return buf, nil
	case Compound:
		return appendCompound(buf, x)
	case []int32:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x)))
		for _, n := range x {
			buf = binary.BigEndian.AppendUint32(buf, uint32(n))
		}
		return buf, nil
	case []int64:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x)))
		for _, n := range x {
			buf = binary.BigEndian.AppendUint64(buf, uint64(n))
		}
		return buf, nil
	}
	return nil, fmt.Errorf("nbt: cannot encode %T", v)
}
