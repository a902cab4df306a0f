package judge

import (
	"regexp"
	"strings"
)

var delimiterSpace = regexp.MustCompile(`[ \t]*([,\[\]\(\)\{\}])[ \t]*`)

// Normalize canonicalizes program output for comparison: unified line endings,
// no trailing blanks on any line, no blanks around list delimiters, and no
// leading or trailing whitespace overall.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")

	s = delimiterSpace.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// OutputsEqual compares actual against expected after normalization.
func OutputsEqual(actual, expected string) bool {
	return Normalize(actual) == Normalize(expected)
}
