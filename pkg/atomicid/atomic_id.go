package atomicid

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// ID is a packed identifier of a fixed width. The zero value is not a valid
// ID; IDs are produced by a Generator or Session.
type ID struct {
	width Width
	buf   [maxBytes]byte
}

// FromBytes builds an ID of width w from its big-endian representation.
func FromBytes(w Width, b []byte) (ID, error) {
	if !w.Valid() {
		return ID{}, fmt.Errorf("%d: %w", int(w), ErrUnsupportedWidth)
	}
	if len(b) != w.Bytes() {
		return ID{}, fmt.Errorf("%d bytes for %s: %w", len(b), w, ErrUnsupportedWidth)
	}
	id := ID{width: w}
	copy(id.buf[:], b)
	return id, nil
}

// FromUint64 builds an ID of width w (at most 64) from v. Bits above the
// width are dropped.
func FromUint64(w Width, v uint64) ID {
	id := ID{width: w}
	n := w.Bytes()
	if n > 8 {
		panic("atomicid: FromUint64 on " + w.String())
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	copy(id.buf[:n], tmp[8-n:])
	return id
}

func (id ID) Width() Width { return id.width }

// Bytes returns a copy of the big-endian value.
func (id ID) Bytes() []byte {
	out := make([]byte, id.width.Bytes())
	copy(out, id.buf[:])
	return out
}

// Uint64 returns the value for widths up to 64 bits. Wider IDs return their
// most significant 64 bits.
func (id ID) Uint64() uint64 {
	n := id.width.Bytes()
	if n >= 8 {
		return binary.BigEndian.Uint64(id.buf[:8])
	}
	var tmp [8]byte
	copy(tmp[8-n:], id.buf[:n])
	return binary.BigEndian.Uint64(tmp[:])
}

// Compare orders IDs by width, then numerically.
func (id ID) Compare(other ID) int {
	switch {
	case id.width < other.width:
		return -1
	case id.width > other.width:
		return 1
	}
	return bytes.Compare(id.buf[:id.width.Bytes()], other.buf[:other.width.Bytes()])
}

// Encode renders the ID in the given encoding.
func (id ID) Encode(e Encoding) string {
	return Encode(id, e)
}

// String is the hex rendering.
func (id ID) String() string {
	return hex.EncodeToString(id.buf[:id.width.Bytes()])
}

// Fields are the decoded topology and ordering fields of an ID. Fields the
// layout does not carry are zero.
type Fields struct {
	Timestamp uint64 `json:"timestamp"`
	Node      uint16 `json:"node"`
	Shard     uint8  `json:"shard"`
	Thread    uint8  `json:"thread"`
	Sequence  uint64 `json:"sequence"`
}

// Fields splits the ID according to its width's layout.
func (id ID) Fields() Fields {
	l := id.width.Layout()
	r := bitReader{buf: id.buf[:id.width.Bytes()]}
	return Fields{
		Timestamp: r.get(l.TimestampBits),
		Node:      uint16(r.get(l.NodeBits)),
		Shard:     uint8(r.get(l.ShardBits)),
		Thread:    uint8(r.get(l.ThreadBits)),
		Sequence:  r.get(l.SequenceBits),
	}
}

// Time maps the timestamp field back onto wall clock time for the given
// epoch. The timestamp field is truncated to its layout width, so the result
// is only meaningful within one wrap period of the field.
func (id ID) Time(epochMS int64) time.Time {
	return time.UnixMilli(epochMS + int64(id.Fields().Timestamp)).UTC()
}

// bitWriter appends fields most significant bit first.
type bitWriter struct {
	buf []byte
	pos int
}

// put writes the low n bits of v, n <= 64.
func (w *bitWriter) put(v uint64, n int) {
	if n == 0 {
		return
	}
	if n < 64 {
		v &= (uint64(1) << n) - 1
	}
	for n > 0 {
		free := 8 - w.pos&7
		take := min(free, n)
		chunk := byte(v>>(n-take)) & (0xff >> (8 - take))
		w.buf[w.pos>>3] |= chunk << (free - take)
		w.pos += take
		n -= take
	}
}

type bitReader struct {
	buf []byte
	pos int
}

// get reads the next n bits, n <= 64.
func (r *bitReader) get(n int) uint64 {
	var v uint64
	for n > 0 {
		avail := 8 - r.pos&7
		take := min(avail, n)
		b := r.buf[r.pos>>3] >> (avail - take) & (0xff >> (8 - take))
		v = v<<take | uint64(b)
		r.pos += take
		n -= take
	}
	return v
}
