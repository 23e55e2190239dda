package ingest

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	sentenceEndRe = regexp.MustCompile(`[.!?]+['")\]]*\s+`)
)

// splitSentences normalizes whitespace and splits text at sentence-ending
// punctuation. Each sentence keeps its terminator; the separating
// whitespace is dropped.
func splitSentences(text string) []string {
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for _, m := range sentenceEndRe.FindAllStringIndex(text, -1) {
		end := m[1]
		for end > m[0] && text[end-1] == ' ' {
			end--
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = m[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// chunkText packs sentences into chunks of at most size characters, never
// splitting a sentence. Consecutive chunks share trailing sentences worth
// at most overlap characters. A single sentence longer than size becomes
// its own chunk.
func chunkText(text string, size, overlap int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		length := 0
		j := i
		for j < len(sentences) {
			add := len(sentences[j])
			if length > 0 {
				add++
			}
			if length+add > size && length > 0 {
				break
			}
			length += add
			j++
		}
		chunks = append(chunks, strings.Join(sentences[i:j], " "))
		if j >= len(sentences) {
			break
		}

		// back up whole sentences totalling at most overlap characters,
		// always advancing past at least one sentence
		next := j
		back := 0
		for next > i+1 {
			n := len(sentences[next-1])
			if back+n > overlap {
				break
			}
			back += n + 1
			next--
		}
		i = next
	}
	return chunks
}
