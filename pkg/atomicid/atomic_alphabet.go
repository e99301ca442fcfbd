package atomicid

import (
	"fmt"
	"strings"
)

// Encoding selects the textual rendering of an ID.
type Encoding int

const (
	Base36 Encoding = iota
	Base58
	Base91
	Hex
)

// Encodings lists every supported encoding.
var Encodings = []Encoding{Base36, Base58, Base91, Hex}

// All alphabets are in ascending ASCII order so that byte-wise comparison of
// two fixed-length strings matches numeric comparison of the values.
const (
	alphabetHex    = "0123456789abcdef"
	alphabetBase36 = "0123456789abcdefghijklmnopqrstuvwxyz"
	// Bitcoin alphabet: no 0, O, I or l.
	alphabetBase58 = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
)

// base91Excluded are the printable characters left out of the base91 alphabet.
const base91Excluded = "\"-\\"

var (
	alphabetBase91 = buildBase91()

	// fixedLengths[width][encoding]
	fixedLengths [len(layouts)][4]int
)

// buildBase91 returns printable ASCII '!'..'~' minus base91Excluded.
func buildBase91() string {
	var b strings.Builder
	for c := byte('!'); c <= '~'; c++ {
		if strings.IndexByte(base91Excluded, c) >= 0 {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func init() {
	var ones [32]byte
	for i := range ones {
		ones[i] = 0xff
	}
	for wi, l := range layouts {
		for _, enc := range Encodings {
			fixedLengths[wi][enc] = digitCount(ones[:l.Width.Bytes()], enc.Base())
		}
	}
}

// Alphabet returns the symbols of the encoding, zero symbol first.
func (e Encoding) Alphabet() string {
	switch e {
	case Base36:
		return alphabetBase36
	case Base58:
		return alphabetBase58
	case Base91:
		return alphabetBase91
	case Hex:
		return alphabetHex
	default:
		panic(fmt.Sprintf("atomicid: %d: %v", int(e), ErrUnsupportedEncoding))
	}
}

// Base is the radix of the encoding.
func (e Encoding) Base() int {
	return len(e.Alphabet())
}

// Valid reports whether e is a supported encoding.
func (e Encoding) Valid() bool {
	return e >= Base36 && e <= Hex
}

func (e Encoding) String() string {
	switch e {
	case Base36:
		return "base36"
	case Base58:
		return "base58"
	case Base91:
		return "base91"
	case Hex:
		return "hex"
	default:
		return "unknown"
	}
}

// ParseEncoding accepts the encoding name, its radix, or a "b" prefixed radix.
// An empty string is rejected; callers apply their own default.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "base36", "b36", "36":
		return Base36, nil
	case "base58", "b58", "58":
		return Base58, nil
	case "base91", "b91", "91":
		return Base91, nil
	case "hex", "base16", "b16", "16":
		return Hex, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnsupportedEncoding)
	}
}

// FixedLength is the length of every string produced for (w, e). It equals
// ceil(w * log(2) / log(base)).
func FixedLength(w Width, e Encoding) int {
	if !e.Valid() {
		panic(fmt.Sprintf("atomicid: %d: %v", int(e), ErrUnsupportedEncoding))
	}
	return fixedLengths[w.mustIndex()][e]
}
