package text

import (
	"math"
	"reflect"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "   ", nil},
		{"single", "Go is a language", []string{"Go is a language"}},
		{
			"multiple",
			"Go is fast. Is it simple? Yes!",
			[]string{"Go is fast.", "Is it simple?", "Yes!"},
		},
		{
			"abbreviation",
			"Ask Dr. Smith about it. Then leave.",
			[]string{"Ask Dr. Smith about it.", "Then leave."},
		},
		{"decimal", "Version 1.5 shipped.", []string{"Version 1.5 shipped."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitSentences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokens(t *testing.T) {
	got := Tokens(`"Hello," said Alice -- to Bob.`)
	want := []string{"Hello", "said", "Alice", "to", "Bob"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens() = %q, want %q", got, want)
	}
}

func TestWords(t *testing.T) {
	withStop := Words("What is the Go runtime?", true)
	if len(withStop) != 5 {
		t.Errorf("expected 5 words with stop words, got %d (%q)", len(withStop), withStop)
	}

	without := Words("What is the Go runtime?", false)
	want := []string{"go", "runtime"}
	if !reflect.DeepEqual(without, want) {
		t.Errorf("Words() = %q, want %q", without, want)
	}
}

func TestJaccard(t *testing.T) {
	if got := Jaccard(nil, nil); got != 0 {
		t.Errorf("expected 0 for empty sets, got %v", got)
	}
	if got := Jaccard([]string{"a", "b"}, []string{"a", "b"}); got != 1 {
		t.Errorf("expected 1 for equal sets, got %v", got)
	}
	got := Jaccard([]string{"a", "b", "b"}, []string{"b", "c"})
	if math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("expected 1/3, got %v", got)
	}
}

func TestSimilarity(t *testing.T) {
	got := Similarity("garbage collection", "Garbage collection in Go")
	if math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("expected 2/3, got %v", got)
	}
	if got := Similarity("the a an", "of the"); got != 0 {
		t.Errorf("expected 0 for stop-word-only text, got %v", got)
	}
}
