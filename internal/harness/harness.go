// Package harness generates self-contained JavaScript programs that call a
// submitted function once per test case and report structured verdicts.
package harness

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/terra-clan/practice-engine/internal/models"
)

// Language is the runtime identifier programs are written for
const Language = "javascript"

// ResultMarker prefixes the single stdout line carrying the JSON verdicts
const ResultMarker = "__PRACTICE_RESULTS__"

// Program is a generated harness ready for any execution strategy
type Program struct {
	Source     string
	Language   string
	EntryPoint string
	TestCount  int
}

// prelude defines the helpers shared by every generated harness. Names are
// prefixed to stay clear of identifiers in submitted code.
const prelude = `
  var __phResults = [];
  function __phCanon(v, seen) {
    if (v === undefined) return "undefined";
    if (typeof v === "number") {
      if (v !== v) return "NaN";
      if (v === Infinity) return "Infinity";
      if (v === -Infinity) return "-Infinity";
      return JSON.stringify(v);
    }
    if (typeof v === "bigint") return String(v) + "n";
    if (typeof v === "function") return "[Function]";
    if (v === null || typeof v !== "object") return JSON.stringify(v);
    if (seen.indexOf(v) !== -1) return "[Circular]";
    seen.push(v);
    var out;
    if (Array.isArray(v)) {
      out = "[" + v.map(function (x) { return __phCanon(x, seen); }).join(",") + "]";
    } else if (typeof Set !== "undefined" && v instanceof Set) {
      out = "Set" + __phCanon(Array.from(v).map(function (x) { return __phCanon(x, seen); }).sort(), seen);
    } else if (typeof Map !== "undefined" && v instanceof Map) {
      var entries = Array.from(v.entries()).map(function (e) {
        return __phCanon(e[0], seen) + "=>" + __phCanon(e[1], seen);
      }).sort();
      out = "Map[" + entries.join(",") + "]";
    } else {
      out = "{" + Object.keys(v).sort().map(function (k) {
        return JSON.stringify(k) + ":" + __phCanon(v[k], seen);
      }).join(",") + "}";
    }
    seen.pop();
    return out;
  }
  function __phMessage(e) {
    if (e && typeof e === "object" && e.message !== undefined) {
      return (e.name ? e.name + ": " : "") + e.message;
    }
    return String(e);
  }
  function __phCase(index, input, rawExpected, expectedFn, actualFn) {
    var entry = { index: index, input: input, expected: rawExpected, actual: null, passed: false, error: null };
    try {
      entry.expected = __phCanon(expectedFn(), []);
    } catch (e) {
      entry.error = "invalid expected value: " + __phMessage(e);
      __phResults.push(entry);
      return;
    }
    try {
      entry.actual = __phCanon(actualFn(), []);
      entry.passed = entry.actual === entry.expected;
    } catch (e) {
      entry.error = __phMessage(e);
    }
    __phResults.push(entry);
  }
`

// Build produces the harness for userSource. The submitted source is
// included verbatim, followed by one guarded invocation per test case.
// A failing or throwing case never prevents later cases from running.
// Expected literals are evaluated at run time so that a malformed one
// errors its own case instead of the whole program.
func Build(userSource, functionName string, cases []models.TestCase) Program {
	if !validIdent.MatchString(functionName) {
		functionName = DefaultEntryPoint
	}

	var b strings.Builder
	b.WriteString(userSource)
	b.WriteString("\n;(function () {")
	b.WriteString(prelude)

	for i, tc := range cases {
		fmt.Fprintf(&b, "  __phCase(%d, %s, %s,\n", i, jsString(tc.Input), jsString(tc.Expected))
		fmt.Fprintf(&b, "    function () { return (0, eval)(%s); },\n", jsString("("+tc.Expected+"\n)"))
		fmt.Fprintf(&b, "    function () { return %s(%s\n); });\n", functionName, tc.Input)
	}

	fmt.Fprintf(&b, "  console.log(%s + JSON.stringify(__phResults));\n", jsString(ResultMarker))
	b.WriteString("})();\n")

	return Program{
		Source:     b.String(),
		Language:   Language,
		EntryPoint: functionName,
		TestCount:  len(cases),
	}
}

// jsString renders s as a JavaScript string literal
func jsString(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(data)
}
