package voxel

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

var encodingMagic = [4]byte{'V', 'V', '0', '1'}

const littleEndianMarker = 0x01

type Digest struct {
	SHA256 string
	Bytes  []byte
}

type metaEntry struct {
	key   string
	value string
}

func (m Metadata) entries() []metaEntry {
	var out []metaEntry
	add := func(key string, v any) {
		var b bytes.Buffer
		enc := json.NewEncoder(&b)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return
		}
		out = append(out, metaEntry{key: key, value: strings.TrimSuffix(b.String(), "\n")})
	}
	if m.Author != nil {
		add("author", *m.Author)
	}
	if m.Description != nil {
		add("description", *m.Description)
	}
	if m.OriginalOffset != nil {
		add("originalOffset", m.OriginalOffset)
	}
	if m.SourcePath != "" {
		add("sourcePath", m.SourcePath)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// EncodeCanonical renders obj into the byte layout the content hash is taken
// over: magic, endianness marker, sorted metadata, then sorted voxels.
func EncodeCanonical(obj CanonicalObject) []byte {
	voxels := make([]Voxel, len(obj.Voxels))
	copy(voxels, obj.Voxels)
	SortCanonical(voxels)

	meta := obj.Metadata.entries()
	buf := make([]byte, 0, 16+len(voxels)*24)
	buf = append(buf, encodingMagic[:]...)
	buf = append(buf, littleEndianMarker)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(meta)))
	for _, e := range meta {
		buf = appendString(buf, e.key)
		buf = appendString(buf, e.value)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(voxels)))
	for _, v := range voxels {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(v.X)))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(v.Y)))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(v.Z)))
		buf = appendString(buf, v.BlockKey)
	}
	return buf
}

func Hash(obj CanonicalObject) Digest {
	b := EncodeCanonical(obj)
	sum := sha256.Sum256(b)
	return Digest{SHA256: hex.EncodeToString(sum[:]), Bytes: b}
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}
