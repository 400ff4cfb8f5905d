package sequence

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSymbol reports a character outside the nucleotide alphabet.
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrInvalidLength reports a strand that cannot be grouped into codons.
	ErrInvalidLength = errors.New("invalid length")
	// ErrUnknownAminoAcid reports a pick that is not a three-letter amino acid code.
	ErrUnknownAminoAcid = errors.New("unknown amino acid")
)

// SymbolError carries the offending character and its 1-based position.
type SymbolError struct {
	Value    rune
	Position int
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%v: %q at %d; allowed: A C G T U", ErrInvalidSymbol, e.Value, e.Position)
}

func (e *SymbolError) Unwrap() error { return ErrInvalidSymbol }
