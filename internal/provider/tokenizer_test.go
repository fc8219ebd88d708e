package provider

import (
	"strings"
	"testing"
)

func TestTokenizerHeuristicTail(t *testing.T) {
	tok := &Tokenizer{fallback: true, encodingName: "cl100k_base"}
	text := strings.Repeat("x", 100) + "la fin"
	got := tok.TailTokens(text, 5)
	if got != "xxxxxxxxxxxxxxla fin" {
		t.Fatalf("tail=%q", got)
	}
	if tok.TailTokens("court", 5) != "court" {
		t.Fatalf("short text must be unchanged")
	}
	if tok.CountText("abcdefgh") != 2 {
		t.Fatalf("count=%d, want 2", tok.CountText("abcdefgh"))
	}
}

func TestTokenizerEmpty(t *testing.T) {
	tok := &Tokenizer{fallback: true}
	if tok.CountText("") != 0 {
		t.Fatalf("empty text should count 0")
	}
	if tok.TailTokens("", 10) != "" {
		t.Fatalf("empty text should stay empty")
	}
}
