package provider

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// heuristicCharsPerToken approximates latin-script text.
const heuristicCharsPerToken = 4

// Tokenizer 精确 token 计数与截断，tiktoken 不可用时回退启发式
// Tokenizer counts and trims tokens with tiktoken, falling back to a heuristic offline
type Tokenizer struct {
	encoder      *tiktoken.Tiktoken
	encodingName string
	fallback     bool
	mu           sync.Mutex
}

// NewTokenizer 创建 tokenizer；离线环境可能没有 BPE 缓存
// NewTokenizer creates a tokenizer; offline environments may lack the BPE cache
func NewTokenizer(encodingName string) *Tokenizer {
	t := &Tokenizer{encodingName: encodingName}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		t.fallback = true
		return t
	}
	t.encoder = enc
	return t
}

// IsPrecise reports whether tiktoken is in use.
func (t *Tokenizer) IsPrecise() bool { return !t.fallback }

func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.fallback {
		n := len([]rune(text)) / heuristicCharsPerToken
		if n < 1 {
			n = 1
		}
		return n
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoder.Encode(text, nil, nil))
}

// TailTokens keeps the last max tokens of text, where the latest part of a call lives.
func (t *Tokenizer) TailTokens(text string, max int) string {
	if max <= 0 || text == "" {
		return text
	}
	if t.fallback {
		runes := []rune(text)
		limit := max * heuristicCharsPerToken
		if len(runes) <= limit {
			return text
		}
		return string(runes[len(runes)-limit:])
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tokens := t.encoder.Encode(text, nil, nil)
	if len(tokens) <= max {
		return text
	}
	return t.encoder.Decode(tokens[len(tokens)-max:])
}
