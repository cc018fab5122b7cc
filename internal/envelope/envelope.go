// Package envelope detects and strips compression wrappers around binary
// payloads.
package envelope

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type Kind string

const (
	None Kind = "none"
	Gzip Kind = "gzip"
	Zlib Kind = "zlib"
	Zstd Kind = "zstd"
	LZ4  Kind = "lz4"
)

// MaxDecoded caps how much a single envelope may expand to.
const MaxDecoded = 256 << 20

var ErrTooLarge = errors.New("envelope: decoded payload exceeds limit")

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Detect inspects the leading bytes only.
func Detect(b []byte) Kind {
	switch {
	case bytes.HasPrefix(b, gzipMagic):
		return Gzip
	case bytes.HasPrefix(b, zstdMagic):
		return Zstd
	case bytes.HasPrefix(b, lz4Magic):
		return LZ4
	case isZlibHeader(b):
		return Zlib
	}
	return None
}

// zlib: CM=8, CINFO<=7, header checksum divisible by 31, no preset dict.
func isZlibHeader(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	cmf, flg := b[0], b[1]
	if cmf&0x0f != 8 || cmf>>4 > 7 || flg&0x20 != 0 {
		return false
	}
	return (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// Unwrap strips a detected envelope. On a corrupt stream it returns whatever
// was decoded before the failure together with the error.
func Unwrap(b []byte) ([]byte, Kind, error) {
	kind := Detect(b)
	if kind == None {
		return b, None, nil
	}
	r, closeFn, err := open(kind, b)
	if err != nil {
		return nil, kind, fmt.Errorf("%s envelope: %w", kind, err)
	}
	defer closeFn()

	var out bytes.Buffer
	n, err := io.Copy(&out, io.LimitReader(r, MaxDecoded+1))
	if n > MaxDecoded {
		return out.Bytes()[:MaxDecoded], kind, ErrTooLarge
	}
	if err != nil {
		return out.Bytes(), kind, fmt.Errorf("%s envelope: %w", kind, err)
	}
	return out.Bytes(), kind, nil
}

func open(kind Kind, b []byte) (io.Reader, func(), error) {
	src := bytes.NewReader(b)
	switch kind {
	case Gzip:
		zr, err := gzip.NewReader(src)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	case Zlib:
		zr, err := zlib.NewReader(src)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	case Zstd:
		zr, err := zstd.NewReader(src, zstd.WithDecoderMaxMemory(MaxDecoded))
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case LZ4:
		return lz4.NewReader(src), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported envelope %q", kind)
}
