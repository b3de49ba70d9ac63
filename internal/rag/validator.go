package rag

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	citationPattern   = regexp.MustCompile(`\[(\d+)\]`)
	sourceLinePattern = regexp.MustCompile(`(?m)^\[(\d+)\][ \t]+(.+?)[ \t\r]*$`)
	answerHeader      = regexp.MustCompile(`(?mi)^[ \t]*answer:`)
	sourcesHeader     = regexp.MustCompile(`(?mi)^[ \t]*sources:`)
)

// Names of the validator checks, in the order they run.
const (
	CheckTruncate          = "truncate"
	CheckRefusal           = "refusal_passthrough"
	CheckCitationsPresent  = "citations_present"
	CheckSourcesPresent    = "sources_present"
	CheckCitationsResolved = "citations_resolved"
	CheckSourcesCanonical  = "sources_canonical"
)

type verdict int

const (
	verdictContinue verdict = iota
	verdictAccept
	verdictRefuse
)

// Validation is the decision on one model answer.
type Validation struct {
	// Accepted is true only when every check passed.
	Accepted bool
	// Passthrough is true when the model refused on its own.
	Passthrough bool
	// Text is the possibly truncated answer.
	Text string
	// Sources holds the model's [n] reference lines on acceptance.
	Sources map[int]string
	// FailedCheck names the check that refused the answer.
	FailedCheck string
}

// validation is the state threaded through the checks.
type validation struct {
	text      string
	canonical map[int]string
	maxChars  int
	cited     []int
	sources   map[int]string
	lines     []sourceLine
}

type sourceLine struct {
	n   int
	ref string
}

type check struct {
	name string
	run  func(v *validation) verdict
}

var checks = []check{
	{CheckTruncate, truncateAnswer},
	{CheckRefusal, passRefusal},
	{CheckCitationsPresent, requireCitations},
	{CheckSourcesPresent, requireSourceLines},
	{CheckCitationsResolved, requireCitedSources},
	{CheckSourcesCanonical, requireCanonicalSources},
}

// Validate runs the checks in order against the raw model text. canonical is
// the numbered context's reference map. maxChars of zero disables truncation.
func Validate(raw string, canonical map[int]string, maxChars int) Validation {
	v := &validation{text: raw, canonical: canonical, maxChars: maxChars}

	for _, c := range checks {
		switch c.run(v) {
		case verdictAccept:
			if c.name == CheckRefusal {
				return Validation{Passthrough: true, Text: v.text, Sources: map[int]string{}}
			}
			return Validation{Accepted: true, Text: v.text, Sources: v.sources}
		case verdictRefuse:
			return Validation{Text: v.text, Sources: map[int]string{}, FailedCheck: c.name}
		}
	}
	return Validation{Accepted: true, Text: v.text, Sources: v.sources}
}

// truncateAnswer cuts the text to maxChars runes and marks the cut with an ellipsis.
func truncateAnswer(v *validation) verdict {
	if v.maxChars <= 0 || utf8.RuneCountInString(v.text) <= v.maxChars {
		return verdictContinue
	}
	runes := []rune(v.text)
	v.text = strings.TrimRightFunc(string(runes[:v.maxChars]), unicode.IsSpace) + "…"
	return verdictContinue
}

func passRefusal(v *validation) verdict {
	if strings.Contains(strings.ToLower(v.text), "cannot answer") {
		return verdictAccept
	}
	return verdictContinue
}

func requireCitations(v *validation) verdict {
	for _, m := range citationPattern.FindAllStringSubmatch(answerSection(v.text), -1) {
		v.cited = append(v.cited, atoi(m[1]))
	}
	if len(v.cited) == 0 {
		return verdictRefuse
	}
	return verdictContinue
}

func requireSourceLines(v *validation) verdict {
	for _, m := range sourceLinePattern.FindAllStringSubmatch(v.text, -1) {
		v.lines = append(v.lines, sourceLine{n: atoi(m[1]), ref: strings.TrimSpace(m[2])})
	}
	if len(v.lines) == 0 {
		return verdictRefuse
	}

	v.sources = make(map[int]string, len(v.lines))
	for _, line := range v.lines {
		v.sources[line.n] = line.ref
	}
	return verdictContinue
}

func requireCitedSources(v *validation) verdict {
	for _, n := range v.cited {
		if _, ok := v.sources[n]; !ok {
			return verdictRefuse
		}
	}
	return verdictContinue
}

// requireCanonicalSources checks every source line, so a number listed twice
// must match the context both times.
func requireCanonicalSources(v *validation) verdict {
	for _, line := range v.lines {
		want, ok := v.canonical[line.n]
		if !ok || line.ref != want {
			return verdictRefuse
		}
	}
	return verdictAccept
}

// answerSection returns the text between the Answer: and Sources: headers, or
// the whole text when there is no Answer: header.
func answerSection(text string) string {
	loc := answerHeader.FindStringIndex(text)
	if loc == nil {
		return text
	}
	section := text[loc[1]:]
	if end := sourcesHeader.FindStringIndex(section); end != nil {
		section = section[:end[0]]
	}
	return section
}

// atoi maps numbers too large for an int to -1, which no context uses.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
