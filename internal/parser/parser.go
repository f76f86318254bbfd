// Package parser turns human-authored question examples into executable
// test cases.
//
// It is a best-effort convenience parser, not an expression grammar: input
// text is split on top-level commas, each "name = value" segment keeps only
// its value, and the values are joined back into an argument list. Commas
// inside brackets, braces, parentheses and quoted strings do not split.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/terra-clan/practice-engine/internal/models"
)

var (
	numericPattern = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)
	labelPattern   = regexp.MustCompile(`(?i)^\s*(input|output)\s*:\s*`)
)

// Parse converts every parseable example of q into a test case.
// Examples with a missing or unparseable input or output are dropped.
func Parse(q *models.Question) []models.TestCase {
	if q == nil {
		return nil
	}

	cases := make([]models.TestCase, 0, len(q.Examples))
	for _, ex := range q.Examples {
		tc, ok := ParseExample(ex)
		if !ok {
			continue
		}
		cases = append(cases, tc)
	}
	return cases
}

// ParseExample converts a single example
func ParseExample(ex models.Example) (models.TestCase, bool) {
	args, ok := ParseInput(ex.Input)
	if !ok {
		return models.TestCase{}, false
	}

	expected, ok := NormalizeExpected(ex.Output)
	if !ok {
		return models.TestCase{}, false
	}

	return models.TestCase{
		Args:     args,
		Input:    strings.Join(args, ", "),
		Expected: expected,
	}, true
}

// ParseInput extracts argument literals from text such as
// "nums = [2,7,11,15], target = 9".
func ParseInput(text string) ([]string, bool) {
	text = stripLabel(text)
	if text == "" {
		return nil, false
	}

	var args []string
	for _, segment := range SplitTopLevel(text, ',') {
		value := strings.TrimSpace(segment)
		if name, rhs, ok := splitAssignment(segment); ok && isIdentifier(strings.TrimSpace(name)) {
			value = strings.TrimSpace(rhs)
		}
		if value == "" {
			continue
		}
		args = append(args, value)
	}

	if len(args) == 0 {
		return nil, false
	}
	return args, true
}

// NormalizeExpected turns expected-output text into a literal that can be
// evaluated. Text that already reads as a literal is kept verbatim;
// otherwise boolean-, number- and bracket-looking text passes through
// unquoted and anything else becomes a string literal.
func NormalizeExpected(text string) (string, bool) {
	text = stripLabel(text)
	if text == "" {
		return "", false
	}

	if isLiteral(text) {
		return text, true
	}

	switch lower := strings.ToLower(text); {
	case lower == "true" || lower == "false":
		return lower, true
	case numericPattern.MatchString(text):
		return text, true
	case strings.HasPrefix(text, "[") || strings.HasPrefix(text, "{"):
		return text, true
	}

	quoted, err := json.Marshal(text)
	if err != nil {
		return "", false
	}
	return string(quoted), true
}

// isLiteral reports whether text is already a complete literal value
func isLiteral(text string) bool {
	if json.Valid([]byte(text)) {
		return true
	}

	switch text {
	case "undefined", "NaN", "Infinity", "-Infinity":
		return true
	}

	return isQuoted(text, '\'') || isQuoted(text, '`')
}

// isQuoted reports whether text is exactly one string literal delimited by q
func isQuoted(text string, q rune) bool {
	if len(text) < 2 || rune(text[0]) != q || rune(text[len(text)-1]) != q {
		return false
	}
	var sc scanner
	for i, r := range text {
		sc.step(r)
		if sc.quote == 0 && i != len(text)-1 {
			return false
		}
	}
	return sc.quote == 0
}

func stripLabel(text string) string {
	return strings.TrimSpace(labelPattern.ReplaceAllString(text, ""))
}
