package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// resultParser extracts the raw JSON array of per-ticker results from free
// LLM text. Parsers are independent and total: they never panic and report
// failure with ok=false.
type resultParser struct {
	name string
	fn   func(text string) (raw string, ok bool)
}

// resultParsers is the cascade, tried in order; the first success wins.
var resultParsers = []resultParser{
	{"brace-match", braceMatchResults},
	{"regex", regexResults},
	{"strip-regex", stripThenRegex},
	{"incremental", incrementalResults},
	{"array-only", arrayOnlyResults},
}

var (
	resultsObjectRe = regexp.MustCompile(`(?s)\{\s*"results"\s*:\s*\[.*\]\s*\}`)
	codeFenceRe     = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)
	tickerTokenRe   = regexp.MustCompile(`\b[A-Z]{4}[0-9]{1,2}F?\b`)
)

// parseResults runs the cascade and decodes the winning array. It returns
// the name of the parser that succeeded.
func parseResults(text string) ([]AIResult, string, error) {
	for _, p := range resultParsers {
		raw, ok := p.fn(text)
		if !ok {
			continue
		}
		var results []AIResult
		if err := json.Unmarshal([]byte(raw), &results); err != nil {
			continue
		}
		return results, p.name, nil
	}
	return nil, "", fmt.Errorf("%w: no parser recovered a results array", ErrParse)
}

// ── Parsers ──

// braceMatchResults finds the first "results" key and walks back to the
// enclosing object, then matches braces forward.
func braceMatchResults(text string) (string, bool) {
	idx := strings.Index(text, `"results"`)
	if idx < 0 {
		return "", false
	}
	start := strings.LastIndex(text[:idx], "{")
	if start < 0 {
		return "", false
	}
	obj, ok := balanced(text, start)
	if !ok {
		return "", false
	}
	return resultsArray(obj)
}

func regexResults(text string) (string, bool) {
	m := resultsObjectRe.FindString(text)
	if m == "" {
		return "", false
	}
	return resultsArray(m)
}

// stripThenRegex removes markdown fences, smart quotes and trailing commas
// before retrying the regex.
func stripThenRegex(text string) (string, bool) {
	cleaned := codeFenceRe.ReplaceAllString(text, "")
	cleaned = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'").Replace(cleaned)
	cleaned = trailingCommaRe.ReplaceAllString(cleaned, "$1")
	return regexResults(cleaned)
}

// incrementalResults scans every top-level object with string-aware brace
// counting and returns the first one carrying a results array.
func incrementalResults(text string) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		obj, ok := balanced(text, i)
		if !ok {
			continue
		}
		if raw, ok := resultsArray(obj); ok {
			return raw, true
		}
		i += len(obj) - 1
	}
	return "", false
}

// arrayOnlyResults accepts a bare array of objects that carry a ticker.
func arrayOnlyResults(text string) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		arr, ok := balanced(text, i)
		if !ok {
			continue
		}
		if gjson.Valid(arr) {
			first := gjson.Get(arr, "0.ticker")
			if first.Exists() {
				return arr, true
			}
		}
	}
	return "", false
}

// ── Helpers ──

// resultsArray returns the raw "results" array of a JSON object.
func resultsArray(obj string) (string, bool) {
	if !gjson.Valid(obj) {
		return "", false
	}
	res := gjson.Get(obj, "results")
	if !res.IsArray() {
		return "", false
	}
	return res.Raw, true
}

// balanced returns the bracketed span starting at text[start], honoring
// string literals and escapes.
func balanced(text string, start int) (string, bool) {
	opener := text[start]
	var closer byte
	switch opener {
	case '{':
		closer = '}'
	case '[':
		closer = ']'
	default:
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// parseTickerList reads the selection answer: a JSON array of strings, an
// object with a "tickers" (or "selected") array, or as a last resort every
// ticker-shaped token in the text.
func parseTickerList(text string) ([]string, error) {
	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		span, ok := balanced(text, i)
		if !ok || !gjson.Valid(span) {
			continue
		}
		doc := gjson.Parse(span)
		if doc.IsObject() {
			for _, key := range []string{"tickers", "selected", "selection"} {
				if arr := doc.Get(key); arr.IsArray() {
					doc = arr
					break
				}
			}
		}
		if !doc.IsArray() {
			continue
		}
		var out []string
		for _, item := range doc.Array() {
			switch {
			case item.Type == gjson.String:
				out = append(out, item.String())
			case item.IsObject() && item.Get("ticker").Exists():
				out = append(out, item.Get("ticker").String())
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	if tokens := tickerTokenRe.FindAllString(text, -1); len(tokens) > 0 {
		return tokens, nil
	}
	return nil, fmt.Errorf("%w: no ticker list found", ErrParse)
}
