package workspace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// maxExpansion bounds the number of names a single pattern may produce.
const maxExpansion = 4096

// Expand turns a child-name pattern into the ordered list of names it denotes.
//
// Supported groups:
//   - numeric ranges: "Chapter{1..6}", "v{3..1}", "s{01..10}" (zero padding follows the lower bound)
//   - alternatives:   "{debug,release}"
//
// Several groups produce their cartesian product, left to right.
// A pattern without braces expands to itself.
func Expand(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", domain.ErrInvalidManifest)
	}
	out, err := expand(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", domain.ErrInvalidManifest, pattern, err)
	}
	return out, nil
}

func expand(pattern string) ([]string, error) {
	open := strings.IndexByte(pattern, '{')
	if open < 0 {
		if strings.IndexByte(pattern, '}') >= 0 {
			return nil, fmt.Errorf("unbalanced '}'")
		}
		return []string{pattern}, nil
	}
	prefix := pattern[:open]
	if strings.IndexByte(prefix, '}') >= 0 {
		return nil, fmt.Errorf("unbalanced '}'")
	}
	end := strings.IndexByte(pattern[open:], '}')
	if end < 0 {
		return nil, fmt.Errorf("unbalanced '{'")
	}
	end += open

	alts, err := expandGroup(pattern[open+1 : end])
	if err != nil {
		return nil, err
	}
	rest, err := expand(pattern[end+1:])
	if err != nil {
		return nil, err
	}
	if len(alts)*len(rest) > maxExpansion {
		return nil, fmt.Errorf("expands to more than %d names", maxExpansion)
	}

	out := make([]string, 0, len(alts)*len(rest))
	for _, a := range alts {
		for _, r := range rest {
			out = append(out, prefix+a+r)
		}
	}
	return out, nil
}

func expandGroup(body string) ([]string, error) {
	if body == "" {
		return nil, fmt.Errorf("empty group")
	}
	if strings.IndexByte(body, '{') >= 0 {
		return nil, fmt.Errorf("nested groups are not supported")
	}
	if lo, hi, ok := strings.Cut(body, ".."); ok {
		return expandRange(lo, hi)
	}
	parts := strings.Split(body, ",")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty alternative in {%s}", body)
		}
	}
	return parts, nil
}

func expandRange(loStr, hiStr string) ([]string, error) {
	lo, err := strconv.Atoi(loStr)
	if err != nil {
		return nil, fmt.Errorf("range start %q is not a number", loStr)
	}
	hi, err := strconv.Atoi(hiStr)
	if err != nil {
		return nil, fmt.Errorf("range end %q is not a number", hiStr)
	}

	width := 0
	if len(loStr) > 1 && loStr[0] == '0' {
		width = len(loStr)
	}

	// The unsigned difference cannot overflow, whatever the bounds.
	step := 1
	span := uint64(hi) - uint64(lo)
	if hi < lo {
		step = -1
		span = uint64(lo) - uint64(hi)
	}
	if span >= maxExpansion {
		return nil, fmt.Errorf("range {%s..%s} is too large", loStr, hiStr)
	}

	out := make([]string, 0, int(span)+1)
	for n := lo; ; n += step {
		out = append(out, fmt.Sprintf("%0*d", width, n))
		if n == hi {
			break
		}
	}
	return out, nil
}
