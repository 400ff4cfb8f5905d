package sequence_test

import (
	"errors"
	"testing"

	"ribosim/internal/sequence"
)

func TestParseNormalizesCardInput(t *testing.T) {
	seq, err := sequence.Parse(" aug-GGC 'uaa'\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := seq.String(); got != "AUGGGCUAA" {
		t.Fatalf("unexpected sequence: %q", got)
	}
}

func TestParseRejectsForeignSymbol(t *testing.T) {
	_, err := sequence.Parse("AUGX")
	if !errors.Is(err, sequence.ErrInvalidSymbol) {
		t.Fatalf("expected ErrInvalidSymbol, got %v", err)
	}
	var symErr *sequence.SymbolError
	if !errors.As(err, &symErr) {
		t.Fatalf("expected SymbolError, got %T", err)
	}
	if symErr.Position != 4 || symErr.Value != 'X' {
		t.Fatalf("unexpected error detail: %+v", symErr)
	}
}

func TestParseEmptyInput(t *testing.T) {
	seq, err := sequence.Parse("   ")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if seq.Len() != 0 {
		t.Fatalf("expected empty sequence, got %q", seq)
	}
}

func TestCodonsRequiresMultipleOfThree(t *testing.T) {
	if _, err := sequence.Codons(sequence.MustParse("AUGG")); !errors.Is(err, sequence.ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	codons, err := sequence.Codons(sequence.MustParse("AUGGGCUAA"))
	if err != nil {
		t.Fatalf("Codons returned error: %v", err)
	}
	if len(codons) != 3 {
		t.Fatalf("expected 3 codons, got %d", len(codons))
	}
	if codons[1].Index != 3 || codons[1].String() != "GGC" || codons[1].Ordinal() != 1 {
		t.Fatalf("unexpected second codon: %+v", codons[1])
	}
}

func TestTranscribeTemplate(t *testing.T) {
	cases := []struct {
		template string
		want     string
	}{
		{template: "TACCCGGTGACCGAC", want: "AUGGGCCACUGGCUG"},
		{template: "TACCACGTGGACTGA", want: "AUGGUGCACCUGACU"},
		{template: "", want: ""},
	}
	for _, tc := range cases {
		got := sequence.Transcribe(sequence.MustParse(tc.template)).String()
		if got != tc.want {
			t.Fatalf("Transcribe(%q) = %q, want %q", tc.template, got, tc.want)
		}
	}
}

func TestAnticodon(t *testing.T) {
	codon, err := sequence.NewCodon(0, "AUG")
	if err != nil {
		t.Fatalf("NewCodon returned error: %v", err)
	}
	if got := sequence.Anticodon(codon).String(); got != "UAC" {
		t.Fatalf("expected UAC, got %q", got)
	}
}

func TestTranslate(t *testing.T) {
	cases := map[string]sequence.AminoAcid{
		"AUG": "Met",
		"ATG": "Met",
		"GGC": "Gly",
		"UGA": sequence.Stop,
		"UUU": "Phe",
	}
	for raw, want := range cases {
		codon, err := sequence.NewCodon(0, raw)
		if err != nil {
			t.Fatalf("NewCodon(%q) returned error: %v", raw, err)
		}
		if got := sequence.Translate(codon); got != want {
			t.Fatalf("Translate(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestChainStopsAtFirstStop(t *testing.T) {
	codons, err := sequence.Codons(sequence.MustParse("AUGGGCUAAUUU"))
	if err != nil {
		t.Fatalf("Codons returned error: %v", err)
	}
	chain := sequence.Chain(codons)
	if len(chain) != 2 || chain[0] != "Met" || chain[1] != "Gly" {
		t.Fatalf("unexpected chain: %v", chain)
	}
	if got := sequence.TranslatableCodons(codons); len(got) != 2 {
		t.Fatalf("expected 2 translatable codons, got %d", len(got))
	}
}

func TestParseAminoAcid(t *testing.T) {
	tests := []struct {
		raw  string
		want sequence.AminoAcid
		ok   bool
	}{
		{raw: "MET", want: "Met", ok: true},
		{raw: " gly ", want: "Gly", ok: true},
		{raw: "Trp", want: "Trp", ok: true},
		{raw: "stop"},
		{raw: "???"},
		{raw: "Xyz"},
		{raw: "Methionine"},
		{raw: ""},
	}
	for _, tt := range tests {
		got, ok := sequence.ParseAminoAcid(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseAminoAcid(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCommonPrefixLen(t *testing.T) {
	a := sequence.MustParse("TACG")
	b := sequence.MustParse("TAAG")
	if got := sequence.CommonPrefixLen(a, b); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if !b.HasPrefix(sequence.MustParse("TA")) {
		t.Fatal("expected TA prefix")
	}
	if a.Equal(b) {
		t.Fatal("expected sequences to differ")
	}
}
