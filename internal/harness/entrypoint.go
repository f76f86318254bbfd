package harness

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/terra-clan/practice-engine/internal/models"
)

// DefaultEntryPoint is used when nothing better can be derived
const DefaultEntryPoint = "solution"

const identPattern = `([A-Za-z_$][\w$]*)`

// Declaration patterns, tried unindented first so that nested helpers
// lose to the top-level function.
var declarationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^(?:export\s+)?(?:async\s+)?function\s*\*?\s*` + identPattern + `\s*\(`),
	regexp.MustCompile(`(?m)^(?:export\s+)?(?:const|let|var)\s+` + identPattern + `\s*=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*=>|[A-Za-z_$][\w$]*\s*=>)`),
}

var indentedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s+(?:async\s+)?function\s*\*?\s*` + identPattern + `\s*\(`),
	regexp.MustCompile(`(?m)^\s+(?:const|let|var)\s+` + identPattern + `\s*=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*=>|[A-Za-z_$][\w$]*\s*=>)`),
}

var validIdent = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)

// EntryPoint resolves the callable name for a submission: a declaration in
// the user's source, then one in the reference solution, then the question
// title in camelCase, then DefaultEntryPoint.
func EntryPoint(userSource string, q *models.Question) string {
	if name := FindDeclaration(userSource); name != "" {
		return name
	}
	if q == nil {
		return DefaultEntryPoint
	}
	if name := FindDeclaration(q.Solution); name != "" {
		return name
	}
	if name := CamelCase(q.Title); name != "" {
		return name
	}
	return DefaultEntryPoint
}

// FindDeclaration returns the earliest top-level function or function-valued
// variable declared in source, or "" if there is none.
func FindDeclaration(source string) string {
	if name := earliestMatch(source, declarationPatterns); name != "" {
		return name
	}
	return earliestMatch(source, indentedPatterns)
}

func earliestMatch(source string, patterns []*regexp.Regexp) string {
	best, bestPos := "", -1
	for _, re := range patterns {
		m := re.FindStringSubmatchIndex(source)
		if m == nil {
			continue
		}
		if bestPos == -1 || m[0] < bestPos {
			bestPos = m[0]
			best = source[m[2]:m[3]]
		}
	}
	return best
}

// CamelCase derives an identifier from a title: "Two Sum" -> "twoSum".
// Non-alphanumerics separate words and leading digits are dropped.
func CamelCase(title string) string {
	words := strings.FieldsFunc(title, func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})

	var b strings.Builder
	for _, w := range words {
		if b.Len() == 0 {
			w = strings.TrimLeftFunc(w, unicode.IsDigit)
			if w == "" {
				continue
			}
			b.WriteString(strings.ToLower(w))
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(strings.ToLower(w[1:]))
	}

	name := b.String()
	if !validIdent.MatchString(name) {
		return ""
	}
	return name
}
