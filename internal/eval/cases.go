package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Case is one evaluation question.
type Case struct {
	Question       string `json:"question"`
	ExpectedAnswer string `json:"expected_answer"`
}

// LoadCases reads one JSON object per line. Blank lines are skipped.
func LoadCases(r io.Reader) ([]Case, error) {
	var cases []Case
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var c Case
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", lineNo, err)
		}
		c.Question = strings.TrimSpace(c.Question)
		c.ExpectedAnswer = strings.TrimSpace(c.ExpectedAnswer)
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cases: %w", err)
	}
	return cases, nil
}

// LoadCasesFile opens path and calls LoadCases.
func LoadCasesFile(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open eval file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadCases(f)
}
