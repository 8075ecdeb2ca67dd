package util

import (
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	log "github.com/sirupsen/logrus"
)

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

func sentenceTokenizer() *sentences.DefaultSentenceTokenizer {
	tokenizerOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			log.Warnf("Failed to load English sentence tokenizer, falling back to punctuation splitting: %v", err)
			return
		}
		tokenizer = t
	})
	return tokenizer
}

// SplitSentences splits text into trimmed, non-empty sentences.
func SplitSentences(text string) []string {
	var raw []string
	if t := sentenceTokenizer(); t != nil {
		for _, s := range t.Tokenize(text) {
			raw = append(raw, s.Text)
		}
	} else {
		raw = splitOnPunctuation(text)
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CapSentences returns at most max sentences of text. max <= 0 disables
// the cap.
func CapSentences(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 {
		return text
	}
	sents := SplitSentences(text)
	if len(sents) <= max {
		return text
	}
	return strings.Join(sents[:max], " ")
}

func splitOnPunctuation(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
