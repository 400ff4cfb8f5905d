package sequence

// Symbol is one nucleotide.
type Symbol byte

const (
	Adenine  Symbol = 'A'
	Cytosine Symbol = 'C'
	Guanine  Symbol = 'G'
	Thymine  Symbol = 'T'
	Uracil   Symbol = 'U'
)

// Alphabet lists every accepted symbol in display order.
var Alphabet = []Symbol{Adenine, Cytosine, Guanine, Thymine, Uracil}

// Valid reports whether s belongs to the alphabet.
func (s Symbol) Valid() bool {
	switch s {
	case Adenine, Cytosine, Guanine, Thymine, Uracil:
		return true
	default:
		return false
	}
}

func (s Symbol) String() string {
	return string(rune(s))
}

// ParseSymbol converts a single character into a Symbol.
func ParseSymbol(r rune) (Symbol, bool) {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	if r > 0x7f {
		return 0, false
	}
	s := Symbol(r)
	return s, s.Valid()
}
