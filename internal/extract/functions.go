// Package extract finds candidate function signatures in contract sources
// and ABI documents. It is a lexical scanner, not a Solidity parser:
// anything that looks like a named function declaration is yielded and the
// registry decides whether it is a valid signature.
package extract

import (
	"iter"
	"regexp"
	"strings"
)

var declPattern = regexp.MustCompile(`\bfunction\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)

// Functions returns the candidate raw signatures "name(params)" for every
// function declaration in source, in source order. The sequence is lazy and
// can be ranged over more than once.
func Functions(source string) iter.Seq[string] {
	return func(yield func(string) bool) {
		code := scrub(source)
		offset := 0
		for offset < len(code) {
			loc := declPattern.FindStringSubmatchIndex(code[offset:])
			if loc == nil {
				return
			}
			name := code[offset+loc[2] : offset+loc[3]]
			open := offset + loc[1] - 1
			end, ok := matchParen(code, open)
			if !ok {
				offset = open + 1
				continue
			}
			offset = end + 1
			if !yield(name + code[open:end+1]) {
				return
			}
		}
	}
}

// Collect drains a candidate sequence into a slice.
func Collect(seq iter.Seq[string]) []string {
	out := make([]string, 0)
	for candidate := range seq {
		out = append(out, candidate)
	}
	return out
}

// matchParen returns the index of the ')' that closes the '(' at open.
func matchParen(code string, open int) (int, bool) {
	depth := 0
	for i := open; i < len(code); i++ {
		switch code[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		case '{', '}', ';':
			// a body or statement boundary inside a parameter list means the
			// declaration is broken
			return 0, false
		}
	}
	return 0, false
}

// scrub blanks comments and the contents of string literals so that text
// inside them is never mistaken for a declaration. Line structure is kept.
func scrub(source string) string {
	var b strings.Builder
	b.Grow(len(source))

	for i := 0; i < len(source); i++ {
		ch := source[i]
		switch {
		case ch == '"' || ch == '\'':
			end := skipString(source, i)
			b.WriteByte(ch)
			b.WriteString(strings.Repeat(" ", end-i-1))
			i = end - 1
		case ch == '/' && i+1 < len(source) && source[i+1] == '/':
			for i < len(source) && source[i] != '\n' {
				b.WriteByte(' ')
				i++
			}
			if i < len(source) {
				b.WriteByte('\n')
			}
		case ch == '/' && i+1 < len(source) && source[i+1] == '*':
			end := strings.Index(source[i+2:], "*/")
			stop := len(source)
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			for ; i < stop; i++ {
				if source[i] == '\n' {
					b.WriteByte('\n')
				} else {
					b.WriteByte(' ')
				}
			}
			i--
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// skipString returns the index just past the string literal starting at start.
func skipString(source string, start int) int {
	quote := source[start]
	for i := start + 1; i < len(source); i++ {
		switch source[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		case '\n':
			return i
		}
	}
	return len(source)
}
