package sequence

var dnaComplement = map[Symbol]Symbol{
	Adenine:  Thymine,
	Thymine:  Adenine,
	Uracil:   Adenine,
	Cytosine: Guanine,
	Guanine:  Cytosine,
}

var rnaComplement = map[Symbol]Symbol{
	Adenine:  Uracil,
	Thymine:  Adenine,
	Uracil:   Adenine,
	Cytosine: Guanine,
	Guanine:  Cytosine,
}

// Complement pairs every base. With rna set, adenine pairs with uracil.
func Complement(seq Sequence, rna bool) Sequence {
	table := dnaComplement
	if rna {
		table = rnaComplement
	}
	out := make(Sequence, len(seq))
	for i, sym := range seq {
		if c, ok := table[sym]; ok {
			out[i] = c
			continue
		}
		out[i] = sym
	}
	return out
}

// Transcribe derives the mRNA strand built against a DNA template strand.
func Transcribe(template Sequence) Sequence {
	return Complement(template, true)
}

// ToRNA rewrites thymine as uracil, leaving every other base untouched.
func ToRNA(seq Sequence) Sequence {
	out := seq.Clone()
	for i, sym := range out {
		if sym == Thymine {
			out[i] = Uracil
		}
	}
	return out
}

// Anticodon returns the tRNA anticodon that pairs with an mRNA codon.
func Anticodon(c Codon) Codon {
	out := Codon{Index: c.Index}
	for i, sym := range c.Symbols {
		out.Symbols[i] = rnaComplement[sym]
	}
	return out
}
