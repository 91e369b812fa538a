package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingFloatPattern = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	leadingIntPattern   = regexp.MustCompile(`^[+-]?\d+`)
)

// ParseLeadingFloat parses the longest decimal prefix of input after trimming
// whitespace. Trailing text is ignored ("12.50 USD" -> 12.5). Anything that
// does not start with a number yields 0.
func ParseLeadingFloat(input string) float64 {
	token := leadingFloatPattern.FindString(strings.TrimSpace(input))
	if token == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

// ParseLeadingInt parses the base-10 integer prefix of input ("3 pcs" -> 3,
// "2.5" -> 2). Failure and overflow yield 0.
func ParseLeadingInt(input string) int {
	token := leadingIntPattern.FindString(strings.TrimSpace(input))
	if token == "" {
		return 0
	}
	parsed, err := strconv.Atoi(token)
	if err != nil {
		return 0
	}
	return parsed
}

// StripThousands removes every "," group separator from a numeric token.
func StripThousands(token string) string {
	return strings.ReplaceAll(token, ",", "")
}
