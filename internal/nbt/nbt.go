// Package nbt reads and writes big-endian named binary tag trees.
package nbt

import (
	"errors"
	"strings"
)

type TagType byte

const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var (
	// ErrTruncated means the input ended inside a value.
	ErrTruncated = errors.New("nbt: truncated")
	// ErrCorrupt covers every other structural problem.
	ErrCorrupt = errors.New("nbt: corrupt")
)

// Compound holds decoded children. Values are int8, int16, int32, int64,
// float32, float64, []byte, string, List, Compound, []int32 or []int64.
type Compound map[string]any

type List struct {
	Elem  TagType
	Items []any
}

// Lower returns a shallow copy with lower-cased keys. On collisions the
// lexically greatest original key wins so the result is deterministic.
func (c Compound) Lower() Compound {
	out := make(Compound, len(c))
	winner := make(map[string]string, len(c))
	for k, v := range c {
		lk := strings.ToLower(k)
		if prev, ok := winner[lk]; ok && prev > k {
			continue
		}
		winner[lk] = k
		out[lk] = v
	}
	return out
}

// Int widens any integer tag.
func Int(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func Bytes(v any) ([]byte, bool) {
	b, ok := v.([]byte)
	return b, ok
}

func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func AsCompound(v any) (Compound, bool) {
	c, ok := v.(Compound)
	return c, ok
}
