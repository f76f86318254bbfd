package parser

import (
	"reflect"
	"testing"

	"github.com/terra-clan/practice-engine/internal/models"
)

func TestParseInputTwoSum(t *testing.T) {
	args, ok := ParseInput("nums = [2,7,11,15], target = 9")
	if !ok {
		t.Fatal("expected input to parse")
	}

	want := []string{"[2,7,11,15]", "9"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %q, want %q", args, want)
	}

	tc, ok := ParseExample(models.Example{Input: "nums = [2,7,11,15], target = 9", Output: "[0,1]"})
	if !ok {
		t.Fatal("expected example to parse")
	}
	if tc.Input != "[2,7,11,15], 9" {
		t.Errorf("Input = %q, want %q", tc.Input, "[2,7,11,15], 9")
	}
	if tc.Expected != "[0,1]" {
		t.Errorf("Expected = %q, want %q", tc.Expected, "[0,1]")
	}
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
		ok    bool
	}{
		{"single value", "5", []string{"5"}, true},
		{"verbatim segments", "[1,2], 3", []string{"[1,2]", "3"}, true},
		{"nested arrays", "grid = [[1,2],[3,4]], k = 2", []string{"[[1,2],[3,4]]", "2"}, true},
		{"object literal", `cfg = {"a": 1, "b": [2, 3]}`, []string{`{"a": 1, "b": [2, 3]}`}, true},
		{"comma in string", `s = "a, b", n = 1`, []string{`"a, b"`, "1"}, true},
		{"equals in string", `s = "x=y"`, []string{`"x=y"`}, true},
		{"label stripped", "Input: n = 3", []string{"3"}, true},
		{"comparison kept verbatim", "a == b", []string{"a == b"}, true},
		{"arrow function kept", "f = x => x + 1, n = 2", []string{"x => x + 1", "2"}, true},
		{"empty segments dropped", "a = 1, , b = 2", []string{"1", "2"}, true},
		{"empty", "   ", nil, false},
		{"only separators", ", ,", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInput(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseInput(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseInput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeExpected(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"[0,1]", "[0,1]", true},
		{"9", "9", true},
		{"-2.5e3", "-2.5e3", true},
		{"true", "true", true},
		{"False", "false", true},
		{`"abc"`, `"abc"`, true},
		{"'abc'", "'abc'", true},
		{"null", "null", true},
		{"undefined", "undefined", true},
		{"[1, 2, 'x']", "[1, 2, 'x']", true},
		{"{a: 1}", "{a: 1}", true},
		{"hello world", `"hello world"`, true},
		{`say "hi"`, `"say \"hi\""`, true},
		{"'a' + 'b'", `"'a' + 'b'"`, true},
		{"Output: 42", "42", true},
		{"", "", false},
		{"  ", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeExpected(tt.input)
		if ok != tt.ok {
			t.Errorf("NormalizeExpected(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeExpected(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseSkipsUnparseableExamples(t *testing.T) {
	q := &models.Question{
		ID: "q1",
		Examples: []models.Example{
			{Input: "n = 1", Output: "1"},
			{Input: "", Output: "2"},
			{Input: "n = 3", Output: ""},
			{Input: "n = 4", Output: "24"},
		},
	}

	cases := Parse(q)
	if len(cases) != 2 {
		t.Fatalf("expected 2 test cases, got %d", len(cases))
	}
	if cases[0].Input != "1" || cases[1].Expected != "24" {
		t.Errorf("unexpected cases: %+v", cases)
	}
}

func TestParseNoExamples(t *testing.T) {
	cases := Parse(&models.Question{ID: "q"})
	if len(cases) != 0 {
		t.Errorf("expected no test cases, got %d", len(cases))
	}
	if Parse(nil) != nil {
		t.Error("expected nil for nil question")
	}
}

func TestSplitTopLevel(t *testing.T) {
	got := SplitTopLevel(`[1,[2,3]], {"k": "a,b"}, (4, 5), 'x,y'`, ',')
	want := []string{`[1,[2,3]]`, ` {"k": "a,b"}`, ` (4, 5)`, ` 'x,y'`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitTopLevel = %q, want %q", got, want)
	}

	// Escaped quote does not end the string
	got = SplitTopLevel(`"a\",b", c`, ',')
	if len(got) != 2 {
		t.Errorf("expected 2 parts, got %q", got)
	}
}
