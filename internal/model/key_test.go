package model

import (
	"strings"
	"testing"
)

func TestDeriveKey_DOI(t *testing.T) {
	r := Record{Title: "Some Paper", DOI: "10.1000/XYZ123"}
	got := DeriveKey(r)
	if got != "doi:10.1000/xyz123" {
		t.Errorf("DeriveKey = %q, want doi:10.1000/xyz123", got)
	}
}

func TestDeriveKey_Arxiv(t *testing.T) {
	r := Record{Title: "Some Preprint", ArxivID: "2301.00001"}
	got := DeriveKey(r)
	if got != "arxiv:2301.00001" {
		t.Errorf("DeriveKey = %q, want arxiv:2301.00001", got)
	}
}

func TestDeriveKey_DOIWinsOverArxiv(t *testing.T) {
	r := Record{DOI: "10.1/a", ArxivID: "2301.00001"}
	if got := DeriveKey(r); !strings.HasPrefix(got, KeyPrefixDOI) {
		t.Errorf("DOI should take precedence, got %q", got)
	}
}

func TestDeriveKey_HashFallback(t *testing.T) {
	r := Record{Title: "Attention Is All You Need", Authors: []string{"Vaswani"}, Year: 2017}
	got := DeriveKey(r)
	if !strings.HasPrefix(got, KeyPrefixHash) {
		t.Fatalf("expected hash key, got %q", got)
	}
	if len(got) != len(KeyPrefixHash)+12 {
		t.Errorf("hash key should carry 12 hex digits, got %q", got)
	}

	// Same logical record on the other replica yields the same key.
	other := Record{Title: "Attention is all you NEED", Authors: []string{"Vaswani"}, Year: 2017}
	if DeriveKey(other) != got {
		t.Errorf("key derivation is not case-stable: %q vs %q", DeriveKey(other), got)
	}
}

func TestDeriveKey_DiacriticsFolded(t *testing.T) {
	a := Record{Title: "Schrödinger's Cat", Authors: []string{"Schrödinger"}, Year: 1935}
	b := Record{Title: "Schrodinger's Cat", Authors: []string{"Schrodinger"}, Year: 1935}
	if DeriveKey(a) != DeriveKey(b) {
		t.Errorf("diacritics should fold to the same key: %q vs %q", DeriveKey(a), DeriveKey(b))
	}
}

func TestDeriveKey_DifferentRecordsDiffer(t *testing.T) {
	a := Record{Title: "Paper A", Authors: []string{"Smith"}, Year: 2020}
	b := Record{Title: "Paper B", Authors: []string{"Smith"}, Year: 2020}
	if DeriveKey(a) == DeriveKey(b) {
		t.Error("distinct records should not collide")
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Hello   World  ", "hello world"},
		{"Éclair", "eclair"},
		{"CAFÉ", "cafe"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisambiguate_Deterministic(t *testing.T) {
	a := Disambiguate("doi:10.1/x", "fingerprint", nil)
	b := Disambiguate("doi:10.1/x", "fingerprint", nil)
	if a != b {
		t.Errorf("disambiguation must be deterministic: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "doi:10.1/x-") {
		t.Errorf("expected suffixed key, got %q", a)
	}
	if len(a) != len("doi:10.1/x-")+8 {
		t.Errorf("expected 8-hex suffix, got %q", a)
	}
}

func TestDisambiguate_Collision(t *testing.T) {
	short := Disambiguate("k", "fp", nil)
	got := Disambiguate("k", "fp", func(candidate string) bool {
		return candidate == short
	})
	if got == short {
		t.Error("collision was not avoided")
	}
	if !strings.HasPrefix(got, "k-") {
		t.Errorf("widened key lost its prefix: %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"doi:10.1000/xyz", "doi_10.1000_xyz"},
		{"arxiv:2301.00001", "arxiv_2301.00001"},
		{"rec:abc123def456", "rec_abc123def456"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecordClone(t *testing.T) {
	r := Record{Title: "T", Authors: []string{"A"}, Tags: []string{"x"}, Collections: []string{"c"}}
	c := r.Clone()
	c.Authors[0] = "B"
	c.Tags[0] = "y"
	if r.Authors[0] != "A" || r.Tags[0] != "x" {
		t.Error("Clone should not share backing arrays")
	}
}
