package atomicid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Width is the bit width of a packed ID.
type Width int

const (
	W24  Width = 24
	W32  Width = 32
	W64  Width = 64
	W128 Width = 128
	W256 Width = 256
)

// Widths lists every supported width in ascending order.
var Widths = []Width{W24, W32, W64, W128, W256}

const (
	// NodeBits is the full node id field; 24/32-bit IDs keep only its low bits.
	NodeBits = 12
	// ShardBits is the shard id field.
	ShardBits = 8
	// ThreadBits is the thread slot field.
	ThreadBits = 8

	MaxNodeID  = (1 << NodeBits) - 1  // 4095
	MaxShardID = (1 << ShardBits) - 1 // 255

	slotCapacity = 1 << ThreadBits // 256
)

var (
	ErrUnsupportedWidth    = errors.New("unsupported id width")
	ErrUnsupportedEncoding = errors.New("unsupported id encoding")
)

// Layout is the field allocation of one width, most significant field first:
//
//	timestamp | node | shard | thread | sequence | entropy
//
// Fields with zero bits are absent from the packed value.
type Layout struct {
	Width         Width `json:"width"`
	TimestampBits int   `json:"timestamp_bits"`
	NodeBits      int   `json:"node_bits"`
	ShardBits     int   `json:"shard_bits"`
	ThreadBits    int   `json:"thread_bits"`
	SequenceBits  int   `json:"sequence_bits"`
	EntropyBits   int   `json:"entropy_bits"`
}

// Total returns the sum of all field widths.
func (l Layout) Total() int {
	return l.TimestampBits + l.NodeBits + l.ShardBits + l.ThreadBits + l.SequenceBits + l.EntropyBits
}

// SequenceCapacity is the number of IDs one state can issue per millisecond.
func (l Layout) SequenceCapacity() uint64 {
	return uint64(1) << l.SequenceBits
}

// maxSequence is the largest sequence value of the layout.
func (l Layout) maxSequence() uint64 {
	return l.SequenceCapacity() - 1
}

// HasThread reports whether the layout carries a thread slot. Layouts
// without one share a single sequence state per generator.
func (l Layout) HasThread() bool {
	return l.ThreadBits > 0
}

var layouts = [...]Layout{
	{Width: W24, TimestampBits: 12, NodeBits: 4, SequenceBits: 8},
	{Width: W32, TimestampBits: 16, NodeBits: 4, SequenceBits: 12},
	{Width: W64, TimestampBits: 20, NodeBits: 12, ShardBits: 8, ThreadBits: 8, SequenceBits: 16},
	{Width: W128, TimestampBits: 44, NodeBits: 12, ShardBits: 8, ThreadBits: 8, SequenceBits: 24, EntropyBits: 32},
	{Width: W256, TimestampBits: 48, NodeBits: 12, ShardBits: 8, ThreadBits: 8, SequenceBits: 32, EntropyBits: 148},
}

// index returns the position of w in Widths, or -1.
func (w Width) index() int {
	switch w {
	case W24:
		return 0
	case W32:
		return 1
	case W64:
		return 2
	case W128:
		return 3
	case W256:
		return 4
	default:
		return -1
	}
}

// Valid reports whether w is a supported width.
func (w Width) Valid() bool {
	return w.index() >= 0
}

// Bytes is the size of the packed value in bytes.
func (w Width) Bytes() int {
	return int(w) / 8
}

// Layout returns the bit layout for w. It panics on an unsupported width.
func (w Width) Layout() Layout {
	return layouts[w.mustIndex()]
}

func (w Width) mustIndex() int {
	i := w.index()
	if i < 0 {
		panic(fmt.Sprintf("atomicid: %d: %v", int(w), ErrUnsupportedWidth))
	}
	return i
}

func (w Width) String() string {
	return "x" + strconv.Itoa(int(w))
}

// ParseWidth accepts "64" or "x64" style names.
func ParseWidth(s string) (Width, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "x")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrUnsupportedWidth)
	}
	w := Width(n)
	if !w.Valid() {
		return 0, fmt.Errorf("%d: %w", n, ErrUnsupportedWidth)
	}
	return w, nil
}
