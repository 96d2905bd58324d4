package search

import (
	"math"
	"reflect"
	"testing"

	"github.com/skillswaphq/skillswap-search/engine/domain"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Piano lessons", []string{"piano", "lessons"}},
		{"piano, piano & PIANO!", []string{"piano"}},
		{"C++ and Go101", []string{"c", "and", "go101"}},
		{"Mathématiques avancées", []string{"mathématiques", "avancées"}},
		{"", nil},
		{"  \t ... ", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLexicalScore(t *testing.T) {
	q := Tokenize("guitar lessons online")
	doc := Tokenize("Online guitar tuition for beginners")
	// "guitar" and "online" hit, "lessons" misses.
	if got := lexicalScore(q, doc); math.Abs(got-2.0/3.0) > 1e-9 {
		t.Fatalf("got %f, want 2/3", got)
	}
	if got := lexicalScore(nil, doc); got != 0 {
		t.Fatalf("empty query tokens should score 0, got %f", got)
	}
	if got := lexicalScore(q, nil); got != 0 {
		t.Fatalf("empty doc should score 0, got %f", got)
	}
}

func TestRescore_BlendAndOrder(t *testing.T) {
	scorer := NewHybridScorer(0.6)
	pool := []domain.ScoredResult{
		{Record: domain.Listing{ID: "a", Title: "Watercolor painting"}, SemanticScore: 0.9},
		{Record: domain.Listing{ID: "b", Title: "Guitar lessons"}, SemanticScore: 0.7},
	}

	out := scorer.Rescore("guitar lessons", pool)
	if len(out) != 2 {
		t.Fatalf("expected 2, got %d", len(out))
	}
	// b: 0.6*0.7 + 0.4*1.0 = 0.82 beats a: 0.6*0.9 + 0.4*0 = 0.54.
	if out[0].Record.ID != "b" {
		t.Fatalf("lexical hit should win, got %s first", out[0].Record.ID)
	}
	if math.Abs(out[0].CombinedScore-0.82) > 1e-9 {
		t.Errorf("combined = %f, want 0.82", out[0].CombinedScore)
	}
	if out[0].LexicalScore != 1.0 {
		t.Errorf("lexical = %f, want 1", out[0].LexicalScore)
	}
	if out[1].LexicalScore != 0 {
		t.Errorf("lexical = %f, want 0", out[1].LexicalScore)
	}
}

func TestRescore_AlphaOneIsPureSemantic(t *testing.T) {
	scorer := NewHybridScorer(1.0)
	pool := []domain.ScoredResult{
		{Record: domain.Listing{ID: "a", Title: "Guitar"}, SemanticScore: 0.5},
		{Record: domain.Listing{ID: "b", Title: "Unrelated"}, SemanticScore: 0.8},
	}
	out := scorer.Rescore("guitar", pool)
	if out[0].Record.ID != "b" || out[1].Record.ID != "a" {
		t.Fatal("alpha=1 must rank by semantic score alone")
	}
	if out[0].CombinedScore != out[0].SemanticScore {
		t.Fatalf("combined %f should equal semantic %f", out[0].CombinedScore, out[0].SemanticScore)
	}
}

func TestRescore_TieBreaksByID(t *testing.T) {
	scorer := NewHybridScorer(0.6)
	pool := []domain.ScoredResult{
		{Record: domain.Listing{ID: "z", Title: "same"}, SemanticScore: 0.5},
		{Record: domain.Listing{ID: "a", Title: "same"}, SemanticScore: 0.5},
	}
	out := scorer.Rescore("same", pool)
	if out[0].Record.ID != "a" {
		t.Fatalf("tie must break by ascending id, got %s first", out[0].Record.ID)
	}
}

func TestRescore_Deterministic(t *testing.T) {
	scorer := NewHybridScorer(0.6)
	pool := []domain.ScoredResult{
		{Record: domain.Listing{ID: "a", Title: "Chess strategy"}, SemanticScore: 0.61},
		{Record: domain.Listing{ID: "b", Title: "Chess tactics"}, SemanticScore: 0.62},
		{Record: domain.Listing{ID: "c", Title: "Checkers"}, SemanticScore: 0.60},
	}
	first := scorer.Rescore("chess strategy", pool)
	for n := 0; n < 5; n++ {
		again := scorer.Rescore("chess strategy", pool)
		if !reflect.DeepEqual(first, again) {
			t.Fatal("rescoring the same pool must be deterministic")
		}
	}
}
