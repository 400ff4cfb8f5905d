package sequence

import "strings"

// AminoAcid is a three-letter amino acid abbreviation.
type AminoAcid string

const (
	// Stop terminates translation.
	Stop AminoAcid = "Stop"
	// Unknown marks a codon missing from the table.
	Unknown AminoAcid = "???"
)

var geneticCode = map[string]AminoAcid{
	"UUU": "Phe", "UUC": "Phe",
	"UUA": "Leu", "UUG": "Leu", "CUU": "Leu", "CUC": "Leu", "CUA": "Leu", "CUG": "Leu",
	"AUU": "Ile", "AUC": "Ile", "AUA": "Ile",
	"AUG": "Met",
	"GUU": "Val", "GUC": "Val", "GUA": "Val", "GUG": "Val",
	"UCU": "Ser", "UCC": "Ser", "UCA": "Ser", "UCG": "Ser", "AGU": "Ser", "AGC": "Ser",
	"CCU": "Pro", "CCC": "Pro", "CCA": "Pro", "CCG": "Pro",
	"ACU": "Thr", "ACC": "Thr", "ACA": "Thr", "ACG": "Thr",
	"GCU": "Ala", "GCC": "Ala", "GCA": "Ala", "GCG": "Ala",
	"UAU": "Tyr", "UAC": "Tyr",
	"CAU": "His", "CAC": "His",
	"CAA": "Gln", "CAG": "Gln",
	"AAU": "Asn", "AAC": "Asn",
	"AAA": "Lys", "AAG": "Lys",
	"GAU": "Asp", "GAC": "Asp",
	"GAA": "Glu", "GAG": "Glu",
	"UGU": "Cys", "UGC": "Cys",
	"UGG": "Trp",
	"CGU": "Arg", "CGC": "Arg", "CGA": "Arg", "CGG": "Arg", "AGA": "Arg", "AGG": "Arg",
	"GGU": "Gly", "GGC": "Gly", "GGA": "Gly", "GGG": "Gly",
	"UAA": Stop, "UAG": Stop, "UGA": Stop,
}

var aminoAcidColors = map[AminoAcid]string{
	"Phe": "#f29999", "Leu": "#e6804d", "Ile": "#cccc4d", "Met": "#4de64d",
	"Val": "#b3cc66", "Ser": "#4dccff", "Pro": "#cc66b3", "Thr": "#ff6666",
	"Ala": "#66e6b3", "Tyr": "#e680e6", "His": "#b34d99", "Gln": "#8066e6",
	"Asn": "#80b3ff", "Lys": "#b380ff", "Asp": "#ff804d", "Glu": "#ff4d4d",
	"Cys": "#ffe64d", "Trp": "#4d33cc", "Arg": "#6633ff", "Gly": "#4d99ff",
	Stop: "#000000",
}

// Translate decodes one mRNA codon. DNA codons are read as their RNA form.
func Translate(c Codon) AminoAcid {
	key := make([]byte, CodonSize)
	for i, sym := range c.Symbols {
		if sym == Thymine {
			sym = Uracil
		}
		key[i] = byte(sym)
	}
	if aa, ok := geneticCode[string(key)]; ok {
		return aa
	}
	return Unknown
}

// ParseAminoAcid resolves a three-letter code in any case ("MET", "met") to
// its amino acid. Stop and unknown codes are rejected.
func ParseAminoAcid(raw string) (AminoAcid, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 3 {
		return "", false
	}
	aa := AminoAcid(strings.ToUpper(raw[:1]) + strings.ToLower(raw[1:]))
	if aa == Stop {
		return "", false
	}
	if _, ok := aminoAcidColors[aa]; !ok {
		return "", false
	}
	return aa, true
}

// IsStop reports whether the amino acid terminates translation.
func (a AminoAcid) IsStop() bool { return a == Stop }

// Color returns the display color for the amino acid as a hex string.
func (a AminoAcid) Color() string {
	if c, ok := aminoAcidColors[a]; ok {
		return c
	}
	return "#ffffff"
}

// Chain decodes codons in order and halts before the first stop codon.
func Chain(codons []Codon) []AminoAcid {
	out := make([]AminoAcid, 0, len(codons))
	for _, c := range codons {
		aa := Translate(c)
		if aa.IsStop() {
			break
		}
		out = append(out, aa)
	}
	return out
}

// TranslatableCodons returns the codons up to, not including, the first stop.
func TranslatableCodons(codons []Codon) []Codon {
	for i, c := range codons {
		if Translate(c).IsStop() {
			return codons[:i]
		}
	}
	return codons
}
