package harness

import (
	"errors"
	"strings"
	"testing"

	"github.com/terra-clan/practice-engine/internal/models"
)

func TestFindDeclaration(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"function declaration", "function twoSum(nums, target) {\n  return [];\n}", "twoSum"},
		{"var function expression", "/**\n * @param {number[]} nums\n */\nvar twoSum = function(nums, target) {};", "twoSum"},
		{"const arrow", "const isValid = (s) => s.length % 2 === 0;", "isValid"},
		{"single param arrow", "let double = x => x * 2;", "double"},
		{"async function", "async function fetchAll(urls) {}", "fetchAll"},
		{"exported", "export function maxDepth(root) {}", "maxDepth"},
		{"top-level wins over nested", "function outer(a) {\n  function inner() {}\n  return inner();\n}", "outer"},
		{"helper before main", "function helper(x) { return x; }\nfunction main(x) { return helper(x); }", "helper"},
		{"indented only", "  function padded(n) { return n; }", "padded"},
		{"plain variable ignored", "const LIMIT = 10;\nfunction solve(n) {}", "solve"},
		{"nothing", "// TODO", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindDeclaration(tt.source); got != tt.want {
				t.Errorf("FindDeclaration() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEntryPointFallbacks(t *testing.T) {
	q := &models.Question{Title: "Two Sum", Solution: "var twoSumRef = function(a, b) {};"}

	if got := EntryPoint("function mine() {}", q); got != "mine" {
		t.Errorf("user declaration: got %q", got)
	}
	if got := EntryPoint("// empty", q); got != "twoSumRef" {
		t.Errorf("reference solution: got %q", got)
	}

	q.Solution = ""
	if got := EntryPoint("", q); got != "twoSum" {
		t.Errorf("title: got %q", got)
	}

	q.Title = "!!!"
	if got := EntryPoint("", q); got != DefaultEntryPoint {
		t.Errorf("default: got %q", got)
	}
	if got := EntryPoint("", nil); got != DefaultEntryPoint {
		t.Errorf("nil question: got %q", got)
	}
}

func TestCamelCase(t *testing.T) {
	tests := map[string]string{
		"Two Sum":                "twoSum",
		"LRU Cache":              "lruCache",
		"Merge k Sorted Lists":   "mergeKSortedLists",
		"3Sum":                   "sum",
		"Best Time to Buy/Sell!": "bestTimeToBuySell",
		"   ":                    "",
	}
	for title, want := range tests {
		if got := CamelCase(title); got != want {
			t.Errorf("CamelCase(%q) = %q, want %q", title, got, want)
		}
	}
}

func TestBuild(t *testing.T) {
	source := "function twoSum(nums, target) { return [0, 1]; }"
	cases := []models.TestCase{
		{Args: []string{"[2,7,11,15]", "9"}, Input: "[2,7,11,15], 9", Expected: "[0,1]"},
		{Args: []string{"[3,3]", "6"}, Input: "[3,3], 6", Expected: "[0,1]"},
	}

	p := Build(source, "twoSum", cases)

	if !strings.HasPrefix(p.Source, source) {
		t.Error("program should start with the user source verbatim")
	}
	if p.TestCount != 2 {
		t.Errorf("TestCount = %d, want 2", p.TestCount)
	}
	if p.Language != Language {
		t.Errorf("Language = %q", p.Language)
	}
	if strings.Count(p.Source, "__phCase(") != 3 { // definition + two calls
		t.Errorf("expected one guarded call per test case:\n%s", p.Source)
	}
	if !strings.Contains(p.Source, "twoSum([2,7,11,15], 9") {
		t.Error("expected call with substituted arguments")
	}
	if !strings.Contains(p.Source, ResultMarker) {
		t.Error("expected result marker in program")
	}
}

func TestBuildRejectsInvalidEntryPoint(t *testing.T) {
	p := Build("", "not valid()", nil)
	if p.EntryPoint != DefaultEntryPoint {
		t.Errorf("EntryPoint = %q, want %q", p.EntryPoint, DefaultEntryPoint)
	}
	if p.TestCount != 0 {
		t.Errorf("TestCount = %d, want 0", p.TestCount)
	}
}

func TestParseOutput(t *testing.T) {
	stdout := "debug line\n" +
		ResultMarker + `[{"index":0,"input":"1","expected":"1","actual":"1","passed":true,"error":null},` +
		`{"index":1,"input":"2","expected":"4","actual":null,"passed":false,"error":"TypeError: boom"}]` + "\n" +
		"trailing\n"

	results, console, err := ParseOutput(stdout)
	if err != nil {
		t.Fatalf("ParseOutput failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Outcome() != models.OutcomePassed {
		t.Errorf("result 0 outcome = %s", results[0].Outcome())
	}
	if results[1].Outcome() != models.OutcomeErrored || results[1].Error != "TypeError: boom" {
		t.Errorf("result 1 = %+v", results[1])
	}
	if console != "debug line\ntrailing" {
		t.Errorf("console = %q", console)
	}
}

func TestParseOutputWithoutMarker(t *testing.T) {
	_, console, err := ParseOutput("SyntaxError: Unexpected token\n")
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
	if !strings.Contains(console, "SyntaxError") {
		t.Errorf("raw output should be preserved, got %q", console)
	}

	_, _, err = ParseOutput(ResultMarker + "{not json")
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("expected ErrNoResults for malformed payload, got %v", err)
	}
}
