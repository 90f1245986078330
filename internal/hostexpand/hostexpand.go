// Package hostexpand expands compact node-name patterns into concrete
// host names.
//
// Grammar:
//
//	list     ::= pattern ("," pattern)*
//	pattern  ::= fragment+
//	fragment ::= literal | range
//	literal  ::= longest nonempty run of characters other than "[" or ","
//	range    ::= "[" elt ("," elt)* "]"
//	elt      ::= number | number "-" number
//
// Numbers keep their printed width, so "csed-00[08-10]" expands to
// csed-0008, csed-0009, csed-0010.
package hostexpand

import (
	"fmt"
	"strconv"
	"strings"
)

// Expand expands a comma-separated list of patterns. Results keep the
// pattern order; duplicates are not removed, since a node listed twice
// is a request for two workers on it.
func Expand(s string) ([]string, error) {
	patterns, err := split(s)
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, p := range patterns {
		expanded, err := expandPattern(p)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, expanded...)
	}
	return hosts, nil
}

// ExpandAll expands every pattern in order and concatenates the results.
func ExpandAll(patterns []string) ([]string, error) {
	var hosts []string
	for _, p := range patterns {
		expanded, err := Expand(p)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, expanded...)
	}
	return hosts, nil
}

// split breaks a list on commas that sit outside brackets.
func split(s string) ([]string, error) {
	var patterns []string
	depth := 0
	start := 0
	for i, c := range s {
		switch c {
		case '[':
			if depth > 0 {
				return nil, fmt.Errorf("invalid pattern %q: nested brackets", s)
			}
			depth++
		case ']':
			if depth == 0 {
				return nil, fmt.Errorf("invalid pattern %q: unmatched end bracket", s)
			}
			depth--
		case ',':
			if depth == 0 {
				if i == start {
					return nil, fmt.Errorf("invalid pattern %q: empty host name", s)
				}
				patterns = append(patterns, s[start:i])
				start = i + 1
			}
		}
	}
	if depth > 0 {
		return nil, fmt.Errorf("invalid pattern %q: missing end bracket", s)
	}
	if start == len(s) {
		return nil, fmt.Errorf("invalid pattern %q: empty host name", s)
	}
	patterns = append(patterns, s[start:])
	return patterns, nil
}

// expandPattern walks the fragments left to right, crossing each range
// into the accumulated prefixes.
func expandPattern(s string) ([]string, error) {
	heads := []string{""}
	rest := s
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '[')
		if open < 0 {
			heads = appendLiteral(heads, rest)
			break
		}
		if open > 0 {
			heads = appendLiteral(heads, rest[:open])
		}
		end := strings.IndexByte(rest[open:], ']')
		if end < 0 {
			return nil, fmt.Errorf("invalid pattern %q: missing end bracket", s)
		}
		numbers, err := expandRange(rest[open+1 : open+end])
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", s, err)
		}
		crossed := make([]string, 0, len(heads)*len(numbers))
		for _, h := range heads {
			for _, n := range numbers {
				crossed = append(crossed, h+n)
			}
		}
		heads = crossed
		rest = rest[open+end+1:]
	}
	return heads, nil
}

func appendLiteral(heads []string, lit string) []string {
	out := make([]string, len(heads))
	for i, h := range heads {
		out[i] = h + lit
	}
	return out
}

// expandRange expands the bracket body "elt(,elt)*" into number strings.
func expandRange(body string) ([]string, error) {
	if body == "" {
		return nil, fmt.Errorf("empty range")
	}
	var numbers []string
	for _, elt := range strings.Split(body, ",") {
		lo, hi, isRange := strings.Cut(elt, "-")
		a, width, err := parseNumber(lo)
		if err != nil {
			return nil, err
		}
		if !isRange {
			numbers = append(numbers, pad(a, width))
			continue
		}
		b, hiWidth, err := parseNumber(hi)
		if err != nil {
			return nil, err
		}
		if a > b {
			return nil, fmt.Errorf("bad range %s", elt)
		}
		if hiWidth > width {
			width = hiWidth
		}
		for n := a; n <= b; n++ {
			numbers = append(numbers, pad(n, width))
		}
	}
	return numbers, nil
}

// parseNumber returns the value and, when written with a leading zero,
// the width the expansion must keep.
func parseNumber(s string) (int, int, error) {
	if s == "" {
		return 0, 0, fmt.Errorf("expected number")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, 0, fmt.Errorf("expected number, got %q", s)
	}
	width := 0
	if len(s) > 1 && s[0] == '0' {
		width = len(s)
	}
	return n, width, nil
}

func pad(n, width int) string {
	if width == 0 {
		return strconv.Itoa(n)
	}
	return fmt.Sprintf("%0*d", width, n)
}
