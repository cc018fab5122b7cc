package voxel

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func text(s string) *string { return &s }

func TestEncodeCanonical_Layout(t *testing.T) {
	obj := CanonicalObject{
		Voxels:   []Voxel{{X: -1, Y: 0, Z: 2, BlockKey: "ab"}},
		Metadata: Metadata{Author: text("x")},
	}
	b := EncodeCanonical(obj)

	want := []byte{'V', 'V', '0', '1', 0x01}
	want = binary.LittleEndian.AppendUint32(want, 1)
	want = binary.LittleEndian.AppendUint32(want, 6)
	want = append(want, "author"...)
	want = binary.LittleEndian.AppendUint32(want, 3)
	want = append(want, `"x"`...)
	want = binary.LittleEndian.AppendUint32(want, 1)
	want = append(want, 0xff, 0xff, 0xff, 0xff)
	want = binary.LittleEndian.AppendUint32(want, 0)
	want = binary.LittleEndian.AppendUint32(want, 2)
	want = binary.LittleEndian.AppendUint32(want, 2)
	want = append(want, "ab"...)

	if !bytes.Equal(b, want) {
		t.Fatalf("encoding mismatch:\n got %x\nwant %x", b, want)
	}
}

func TestEncodeCanonical_MetadataSortedAndOmitted(t *testing.T) {
	obj := CanonicalObject{Metadata: Metadata{
		SourcePath:     "/a/<b>.bo2",
		Author:         text("z"),
		OriginalOffset: &Offset{X: 1, Y: 2, Z: 3},
	}}
	b := EncodeCanonical(obj)
	if n := binary.LittleEndian.Uint32(b[5:9]); n != 3 {
		t.Fatalf("metadata count = %d, want 3 (description omitted)", n)
	}
	if !bytes.Contains(b, []byte(`{"x":1,"y":2,"z":3}`)) {
		t.Fatalf("offset not encoded as JSON object")
	}
	if !bytes.Contains(b, []byte(`"/a/<b>.bo2"`)) {
		t.Fatalf("source path should not be HTML-escaped")
	}
	ia := bytes.Index(b, []byte("author"))
	io := bytes.Index(b, []byte("originalOffset"))
	is := bytes.Index(b, []byte("sourcePath"))
	if !(ia < io && io < is) {
		t.Fatalf("metadata keys not sorted: %d %d %d", ia, io, is)
	}
}

func TestHash_Deterministic(t *testing.T) {
	a, _ := Canonicalize(sample(), Metadata{Description: text("d")}, LastWriteWins)
	b, _ := Canonicalize(sample(), Metadata{Description: text("d")}, LastWriteWins)
	ha, hb := Hash(a), Hash(b)
	if ha.SHA256 != hb.SHA256 || len(ha.SHA256) != 64 {
		t.Fatalf("hash not deterministic: %s vs %s", ha.SHA256, hb.SHA256)
	}
	c, _ := Canonicalize(sample(), Metadata{Description: text("e")}, LastWriteWins)
	if Hash(c).SHA256 == ha.SHA256 {
		t.Fatalf("metadata change should change the hash")
	}
}

func TestHash_EmptyMetadataIsPresent(t *testing.T) {
	absent := Hash(CanonicalObject{Voxels: sample()})
	empty := EncodeCanonical(CanonicalObject{Voxels: sample(), Metadata: Metadata{Author: text("")}})
	if n := binary.LittleEndian.Uint32(empty[5:9]); n != 1 {
		t.Fatalf("metadata count = %d, want 1", n)
	}
	if !bytes.Contains(empty, []byte(`author`)) || !bytes.Contains(empty, []byte(`""`)) {
		t.Fatalf("empty author not encoded: %x", empty)
	}
	if Hash(CanonicalObject{Voxels: sample(), Metadata: Metadata{Author: text("")}}).SHA256 == absent.SHA256 {
		t.Fatalf("empty author hashes like a missing one")
	}
}

func TestHash_ResortsDefensively(t *testing.T) {
	obj, _ := Canonicalize(sample(), Metadata{}, LastWriteWins)
	want := Hash(obj).SHA256
	rev := obj
	rev.Voxels = make([]Voxel, len(obj.Voxels))
	for i, v := range obj.Voxels {
		rev.Voxels[len(obj.Voxels)-1-i] = v
	}
	if got := Hash(rev).SHA256; got != want {
		t.Fatalf("unsorted voxels changed hash")
	}
}
