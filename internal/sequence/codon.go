package sequence

import "fmt"

// CodonSize is the number of symbols in one codon.
const CodonSize = 3

// Codon is a three-symbol window of a sequence starting at Index.
type Codon struct {
	Index   int
	Symbols [CodonSize]Symbol
}

// Ordinal is the zero-based codon position within its sequence.
func (c Codon) Ordinal() int {
	return c.Index / CodonSize
}

func (c Codon) String() string {
	return string([]byte{byte(c.Symbols[0]), byte(c.Symbols[1]), byte(c.Symbols[2])})
}

// NewCodon builds a codon from a three-character string.
func NewCodon(index int, raw string) (Codon, error) {
	seq, err := Parse(raw)
	if err != nil {
		return Codon{}, err
	}
	if len(seq) != CodonSize {
		return Codon{}, fmt.Errorf("%w: codon %q has %d symbols", ErrInvalidLength, raw, len(seq))
	}
	return Codon{Index: index, Symbols: [CodonSize]Symbol{seq[0], seq[1], seq[2]}}, nil
}

// Codons groups seq into codons. The length must be a multiple of three.
func Codons(seq Sequence) ([]Codon, error) {
	if len(seq)%CodonSize != 0 {
		return nil, fmt.Errorf("%w: %d symbols is not a multiple of %d", ErrInvalidLength, len(seq), CodonSize)
	}
	out := make([]Codon, 0, len(seq)/CodonSize)
	for i := 0; i < len(seq); i += CodonSize {
		out = append(out, Codon{Index: i, Symbols: [CodonSize]Symbol{seq[i], seq[i+1], seq[i+2]}})
	}
	return out, nil
}
