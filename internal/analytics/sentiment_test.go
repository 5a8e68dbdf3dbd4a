package analytics

import (
	"math"
	"testing"
)

func TestSentiment(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		score       int
		comparative float64
	}{
		{"All positive", "great great awesome", 3, 1.0},
		{"Neutral", "ok", 0, 0},
		{"Negative", "worthless hate", -2, -1.0},
		{"Mixed", "great but terrible", 0, 0},
		{"Empty", "", 0, 0},
		{"Punctuation only", "?!...", 0, 0},
		{"Case insensitive", "GREAT stuff", 1, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, comparative := Sentiment(tt.text)
			if score != tt.score {
				t.Errorf("score = %d, want %d", score, tt.score)
			}
			if math.Abs(comparative-tt.comparative) > 1e-9 {
				t.Errorf("comparative = %f, want %f", comparative, tt.comparative)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Hello, World! It's 2-for-1.")
	want := []string{"hello", "world", "it", "s", "2", "for", "1"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestKeywordCounts(t *testing.T) {
	texts := []string{
		"deployment broke the staging cluster",
		"staging cluster looks fine now",
		"is it a cluster problem or a deployment problem",
	}

	kws := KeywordCounts(texts, 10)
	if len(kws) == 0 {
		t.Fatal("expected keywords")
	}
	if kws[0].Word != "cluster" || kws[0].Count != 3 {
		t.Fatalf("top keyword = %+v, want cluster/3", kws[0])
	}

	for _, kw := range kws {
		if len(kw.Word) <= 2 {
			t.Errorf("short token %q should have been dropped", kw.Word)
		}
		if stopWords[kw.Word] {
			t.Errorf("stop word %q should have been dropped", kw.Word)
		}
	}
}

func TestKeywordCounts_Truncates(t *testing.T) {
	kws := KeywordCounts([]string{"alpha beta gamma delta epsilon"}, 2)
	if len(kws) != 2 {
		t.Fatalf("expected 2 keywords, got %d", len(kws))
	}
}
