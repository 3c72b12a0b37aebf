// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Backticks are written as \x60 because raw strings cannot hold them.
var (
	fencedObject = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	fencedArray  = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
)

// ParseJSONResponse decodes a model reply into T. Small models often wrap the
// JSON in a markdown fence or surround it with prose, so the outermost object
// (or, failing that, array) is extracted before decoding.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := extractJSON(strings.TrimSpace(response))

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, &ParseError{Payload: payload, Err: err}
	}
	return &result, nil
}

// errorQuoteLimit bounds each quoted fragment in a ParseError message. Both the
// decoder error and the payload can echo arbitrary amounts of model output.
const errorQuoteLimit = 200

// ParseError reports a model reply that did not decode. Payload is the text
// that was handed to the decoder after fence and prose stripping.
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to unmarshal LLM JSON response: %s. Extracted JSON (truncated): %s",
		Truncate(e.Err.Error(), errorQuoteLimit), Truncate(e.Payload, errorQuoteLimit))
}

func (e *ParseError) Unwrap() error { return e.Err }

func extractJSON(response string) string {
	if strings.HasPrefix(response, "```") {
		for _, re := range []*regexp.Regexp{fencedObject, fencedArray} {
			if m := re.FindStringSubmatch(response); len(m) > 1 {
				return m[1]
			}
		}
		return response
	}
	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}
	if inner, ok := between(response, "{", "}"); ok {
		return inner
	}
	if inner, ok := between(response, "[", "]"); ok {
		return inner
	}
	return response
}

// between returns s from the first opening delimiter to the last closing one, inclusive.
func between(s, opening, closing string) (string, bool) {
	first := strings.Index(s, opening)
	last := strings.LastIndex(s, closing)
	if first == -1 || last <= first {
		return "", false
	}
	return s[first : last+len(closing)], true
}

// Truncate keeps the first maxRunes characters of s and appends an ellipsis
// when anything was cut. Multi-byte characters are never split.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return TruncateRunes(s, maxRunes) + "..."
}

// TruncateRunes returns the first n characters of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
