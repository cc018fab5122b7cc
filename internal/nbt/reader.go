package nbt

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const maxDepth = 512

type decoder struct {
	buf   []byte
	off   int
	depth int
}

func (d *decoder) need(n int) error {
	if n < 0 || d.off+n > len(d.buf) || d.off+n < d.off {
		return fmt.Errorf("%w at offset %d (need %d bytes)", ErrTruncated, d.off, n)
	}
	return nil
}

func (d *decoder) u8() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *decoder) u16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.buf[d.off:])
	d.off += 2
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) length(what string) (int, error) {
	v, err := d.u32()
	if err != nil {
		return 0, err
	}
	n := int32(v)
	if n < 0 {
		return 0, fmt.Errorf("%w: negative %s length %d at offset %d", ErrCorrupt, what, n, d.off-4)
	}
	return int(n), nil
}

func (d *decoder) remaining() int { return len(d.buf) - d.off }

func (d *decoder) str() (string, error) {
	n, err := d.u16()
	if err != nil {
		return "", err
	}
	if err := d.need(int(n)); err != nil {
		return "", err
	}
	s := strings.ToValidUTF8(string(d.buf[d.off:d.off+int(n)]), "�")
	d.off += int(n)
	return s, nil
}

// payload decodes one value of type t. On error the partially decoded value
// is returned when there is one.
func (d *decoder) payload(t TagType) (any, error) {
	switch t {
	case TagByte:
		b, err := d.u8()
		if err != nil {
			return nil, err
		}
		return int8(b), nil
	case TagShort:
		v, err := d.u16()
		if err != nil {
			return nil, err
		}
		return int16(v), nil
	case TagInt:
		v, err := d.u32()
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	case TagLong:
		v, err := d.u64()
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case TagFloat:
		v, err := d.u32()
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(v), nil
	case TagDouble:
		v, err := d.u64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(v), nil
	case TagByteArray:
		n, err := d.length("byte array")
		if err != nil {
			return nil, err
		}
		if err := d.need(n); err != nil {
			part := append([]byte(nil), d.buf[d.off:]...)
			d.off = len(d.buf)
			return part, err
		}
		out := append([]byte(nil), d.buf[d.off:d.off+n]...)
		d.off += n
		return out, nil
	case TagString:
		s, err := d.str()
		if err != nil {
			return nil, err
		}
		return s, nil
	case TagList:
		return d.list()
	case TagCompound:
		return d.compound()
	case TagIntArray:
		n, err := d.length("int array")
		if err != nil {
			return nil, err
		}
		out := make([]int32, 0, min(n, d.remaining()/4))
		for i := 0; i < n; i++ {
			v, err := d.u32()
			if err != nil {
				return out, err
			}
			out = append(out, int32(v))
		}
		return out, nil
	case TagLongArray:
		n, err := d.length("long array")
		if err != nil {
			return nil, err
		}
		out := make([]int64, 0, min(n, d.remaining()/8))
		for i := 0; i < n; i++ {
			v, err := d.u64()
			if err != nil {
				return out, err
			}
			out = append(out, int64(v))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unsupported tag %d at offset %d", ErrCorrupt, t, d.off)
}

func (d *decoder) enter() error {
	d.depth++
	if d.depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrCorrupt, maxDepth)
	}
	return nil
}

func (d *decoder) list() (any, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()
	et, err := d.u8()
	if err != nil {
		return nil, err
	}
	n, err := d.length("list")
	if err != nil {
		return nil, err
	}
	l := List{Elem: TagType(et)}
	if n > 0 && l.Elem == TagEnd {
		return l, fmt.Errorf("%w: non-empty list of end tags", ErrCorrupt)
	}
	l.Items = make([]any, 0, min(n, d.remaining()))
	for i := 0; i < n; i++ {
		v, err := d.payload(l.Elem)
		if err != nil {
			if v != nil {
				l.Items = append(l.Items, v)
			}
			return l, err
		}
		l.Items = append(l.Items, v)
	}
	return l, nil
}

func (d *decoder) compound() (any, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()
	out := Compound{}
	for {
		tb, err := d.u8()
		if err != nil {
			return out, err
		}
		t := TagType(tb)
		if t == TagEnd {
			return out, nil
		}
		name, err := d.str()
		if err != nil {
			return out, err
		}
		v, err := d.payload(t)
		if v != nil {
			out[name] = v
		}
		if err != nil {
			return out, err
		}
	}
}

// Decode reads a root compound. When decoding fails part way, the children
// read so far are returned alongside the error so callers can salvage them.
func Decode(b []byte) (string, Compound, error) {
	d := &decoder{buf: b}
	t, err := d.u8()
	if err != nil {
		return "", nil, err
	}
	if TagType(t) != TagCompound {
		return "", nil, fmt.Errorf("%w: root tag is %d, want compound", ErrCorrupt, t)
	}
	name, err := d.str()
	if err != nil {
		return "", nil, err
	}
	v, err := d.compound()
	root, _ := v.(Compound)
	return name, root, err
}
