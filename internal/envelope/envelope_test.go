package envelope

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var payload = bytes.Repeat([]byte{0x0a, 0x00, 0x00, 0x01, 0x02, 0x03}, 100)

func wrap(t *testing.T, kind Kind) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch kind {
	case Gzip:
		w := gzip.NewWriter(&buf)
		_, _ = w.Write(payload)
		_ = w.Close()
	case Zlib:
		w := zlib.NewWriter(&buf)
		_, _ = w.Write(payload)
		_ = w.Close()
	case Zstd:
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd: %v", err)
		}
		_, _ = w.Write(payload)
		_ = w.Close()
	case LZ4:
		w := lz4.NewWriter(&buf)
		_, _ = w.Write(payload)
		_ = w.Close()
	}
	return buf.Bytes()
}

func TestUnwrap_AllKinds(t *testing.T) {
	for _, kind := range []Kind{Gzip, Zlib, Zstd, LZ4} {
		b := wrap(t, kind)
		if got := Detect(b); got != kind {
			t.Fatalf("Detect = %s, want %s", got, kind)
		}
		out, k, err := Unwrap(b)
		if err != nil {
			t.Fatalf("%s: Unwrap: %v", kind, err)
		}
		if k != kind || !bytes.Equal(out, payload) {
			t.Fatalf("%s: payload mismatch (%d bytes)", kind, len(out))
		}
	}
}

func TestUnwrap_Raw(t *testing.T) {
	out, k, err := Unwrap(payload)
	if err != nil || k != None || !bytes.Equal(out, payload) {
		t.Fatalf("raw passthrough: kind=%s err=%v", k, err)
	}
}

func TestUnwrap_CorruptGzip(t *testing.T) {
	b := wrap(t, Gzip)
	b = b[:len(b)/2]
	_, k, err := Unwrap(b)
	if k != Gzip || err == nil {
		t.Fatalf("expected gzip error, kind=%s err=%v", k, err)
	}
}
