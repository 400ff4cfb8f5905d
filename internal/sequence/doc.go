// Package sequence models the nucleotide strands students assemble in the lab.
//
// It owns the symbol alphabet, parsing and validation of tracked card input,
// codon grouping, template-to-mRNA transcription, and the standard genetic
// code used to decode codons into amino acids. Everything here is pure and
// safe for concurrent use.
package sequence
