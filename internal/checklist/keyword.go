package checklist

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeywordAnalyzer 基于关键词的离线检测；有音频无文本时先转写
// KeywordAnalyzer matches topic keywords, transcribing audio first when no text is given
type KeywordAnalyzer struct {
	STT SpeechToText
	// MinChars 低于该长度的文本不做分析
	// MinChars skips text shorter than this many characters
	MinChars int
}

func (k KeywordAnalyzer) Analyze(ctx context.Context, in Input) ([]string, error) {
	text, err := resolveTranscript(ctx, k.STT, in)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < k.MinChars {
		return nil, nil
	}
	return MatchKeywords(text), nil
}

// MatchKeywords returns the ids whose keywords appear in text. Keywords of
// three letters or fewer ("IS", "TVA") must match a whole word.
func MatchKeywords(text string) []string {
	lower := strings.ToLower(text)
	words := wordSet(lower)
	var out []string
	for _, d := range definitions {
		for _, kw := range d.Keywords {
			kw = strings.ToLower(kw)
			var hit bool
			if utf8.RuneCountInString(kw) <= 3 {
				_, hit = words[kw]
			} else {
				hit = strings.Contains(lower, kw)
			}
			if hit {
				out = append(out, d.ID)
				break
			}
		}
	}
	return out
}

func wordSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
