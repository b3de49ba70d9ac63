package eval

import (
	"regexp"
	"strconv"
	"strings"

	"policy-rag/internal/rag"
)

var (
	citationPattern   = regexp.MustCompile(`\[(\d+)\]`)
	sourceLinePattern = regexp.MustCompile(`^\[\d+\]\s`)
	sectionHeaders    = map[string]bool{"answer:": true, "sources:": true, "documents:": true}
)

// IsRefusal reports whether answer is empty, the configured refusal text, or a
// model refusal.
func IsRefusal(answer, refusalText string) bool {
	t := strings.TrimSpace(answer)
	if t == "" {
		return true
	}
	if refusalText != "" && t == strings.TrimSpace(refusalText) {
		return true
	}
	return strings.Contains(strings.ToLower(t), "cannot answer")
}

// CitedNumbers returns the distinct [n] markers in text.
func CitedNumbers(text string) map[int]bool {
	cited := map[int]bool{}
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			cited[n] = true
		}
	}
	return cited
}

// CitationsResolved reports whether the answer cites at least once and every
// cited number is a claimed source.
func CitationsResolved(answer string, sources map[int]string) bool {
	cited := CitedNumbers(answerLines(answer))
	if len(cited) == 0 {
		return false
	}
	for n := range cited {
		if _, ok := sources[n]; !ok {
			return false
		}
	}
	return true
}

// Grounded reports whether every answer sentence, with its citation markers
// removed, appears verbatim (case-insensitive) in some retrieved chunk.
func Grounded(answer string, docs []rag.Evidence) bool {
	if len(docs) == 0 {
		return false
	}
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, strings.ToLower(d.Text))
	}

	for _, line := range strings.Split(answerLines(answer), "\n") {
		sentence := strings.ToLower(strings.TrimSpace(citationPattern.ReplaceAllString(line, "")))
		sentence = strings.TrimRight(sentence, " .")
		if sentence == "" {
			continue
		}
		found := false
		for _, text := range texts {
			if strings.Contains(text, sentence) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// answerLines drops section headers and everything from the Sources section on.
func answerLines(answer string) string {
	var out []string
	for _, line := range strings.Split(answer, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if lower == "sources:" || lower == "documents:" {
			break
		}
		if sectionHeaders[lower] || sourceLinePattern.MatchString(trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
