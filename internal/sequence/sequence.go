package sequence

import (
	"strings"
	"unicode"
)

// Sequence is an ordered strand of symbols.
type Sequence []Symbol

// Normalize drops whitespace, quotes and card separators and uppercases the rest.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) || r == '\'' || r == '"' || r == '-' || r == ',' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Parse validates raw tracker input. An empty input yields an empty sequence.
func Parse(raw string) (Sequence, error) {
	normalized := Normalize(raw)
	seq := make(Sequence, 0, len(normalized))
	pos := 0
	for _, r := range normalized {
		pos++
		sym, ok := ParseSymbol(r)
		if !ok {
			return nil, &SymbolError{Value: r, Position: pos}
		}
		seq = append(seq, sym)
	}
	return seq, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw string) Sequence {
	seq, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return seq
}

// Validate checks every symbol of an already-built sequence.
func (s Sequence) Validate() error {
	for i, sym := range s {
		if !sym.Valid() {
			return &SymbolError{Value: rune(sym), Position: i + 1}
		}
	}
	return nil
}

func (s Sequence) String() string {
	return string(s.bytes())
}

func (s Sequence) bytes() []byte {
	out := make([]byte, len(s))
	for i, sym := range s {
		out[i] = byte(sym)
	}
	return out
}

// Len returns the number of symbols.
func (s Sequence) Len() int { return len(s) }

// Clone returns an independent copy.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// Equal reports whether both sequences hold the same symbols.
func (s Sequence) Equal(other Sequence) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a leading run of s.
func (s Sequence) HasPrefix(prefix Sequence) bool {
	return len(prefix) <= len(s) && s[:len(prefix)].Equal(prefix)
}

// CommonPrefixLen returns the length of the longest shared leading run.
func CommonPrefixLen(a, b Sequence) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
