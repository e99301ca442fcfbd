package atomicid

import (
	"encoding/hex"
	"fmt"
)

// maxBytes is the buffer size of the widest ID.
const maxBytes = 32

// Encode renders id in the given encoding at its fixed length.
func Encode(id ID, e Encoding) string {
	return EncodeBytes(id.buf[:id.width.Bytes()], id.width, e)
}

// EncodeBytes renders the big-endian value src as a fixed-length string for
// width w. src must hold exactly w/8 bytes.
//
// The value is copied into a scratch buffer which is divided by the base in
// place, one symbol per pass, until it reaches zero. Symbols are written from
// the right so no reversal pass is needed; the remainder of the string is
// filled with the zero symbol.
func EncodeBytes(src []byte, w Width, e Encoding) string {
	size := FixedLength(w, e)
	if len(src) != w.Bytes() {
		panic(fmt.Sprintf("atomicid: %d bytes for %s", len(src), w))
	}
	if e == Hex {
		return hex.EncodeToString(src)
	}

	alphabet := e.Alphabet()
	base := uint32(len(alphabet))

	var scratch [maxBytes]byte
	num := scratch[:copy(scratch[:], src)]

	out := make([]byte, size)
	pos := size
	start := skipZeros(num, 0)
	for start < len(num) && pos > 0 {
		rem := divmod(num[start:], base)
		pos--
		out[pos] = alphabet[rem]
		start = skipZeros(num, start)
	}
	for pos > 0 {
		pos--
		out[pos] = alphabet[0]
	}
	return string(out)
}

// divmod divides the big-endian number in place by base and returns the
// remainder.
func divmod(num []byte, base uint32) uint32 {
	var rem uint32
	for i, b := range num {
		acc := rem<<8 | uint32(b)
		num[i] = byte(acc / base)
		rem = acc % base
	}
	return rem
}

func skipZeros(num []byte, start int) int {
	for start < len(num) && num[start] == 0 {
		start++
	}
	return start
}

// digitCount returns how many symbols of the given base src needs, with a
// minimum of one.
func digitCount(src []byte, base int) int {
	var scratch [maxBytes]byte
	num := scratch[:copy(scratch[:], src)]

	n := 0
	start := skipZeros(num, 0)
	for start < len(num) {
		divmod(num[start:], uint32(base))
		n++
		start = skipZeros(num, start)
	}
	if n == 0 {
		return 1
	}
	return n
}
