package abitype

import (
	"strconv"
	"strings"
)

// Aliases maps every accepted shorthand keyword to its canonical spelling.
var Aliases = map[string]string{
	"uint":     "uint256",
	"int":      "int256",
	"byte":     "bytes1",
	"fixed":    "fixed128x18",
	"ufixed":   "ufixed128x18",
	"function": "bytes24",
}

var plainElementary = map[string]bool{
	"address": true,
	"bool":    true,
	"string":  true,
	"bytes":   true,
}

// Modifiers are keywords that may follow a parameter type in source code.
// They carry no ABI meaning and are dropped during normalization.
var Modifiers = map[string]bool{
	"memory":   true,
	"storage":  true,
	"calldata": true,
	"indexed":  true,
	"payable":  true,
}

// ResolveElementary returns the canonical spelling for an elementary type
// keyword, resolving aliases. ok is false for unrecognized keywords.
func ResolveElementary(name string) (canonical string, ok bool) {
	if alias, found := Aliases[name]; found {
		return alias, true
	}
	if plainElementary[name] {
		return name, true
	}

	switch {
	case strings.HasPrefix(name, "bytes"):
		n, ok := parseWidth(strings.TrimPrefix(name, "bytes"))
		return name, ok && n >= 1 && n <= 32
	case strings.HasPrefix(name, "uint"):
		n, ok := parseWidth(strings.TrimPrefix(name, "uint"))
		return name, ok && validIntWidth(n)
	case strings.HasPrefix(name, "int"):
		n, ok := parseWidth(strings.TrimPrefix(name, "int"))
		return name, ok && validIntWidth(n)
	case strings.HasPrefix(name, "ufixed"):
		return name, validFixed(strings.TrimPrefix(name, "ufixed"))
	case strings.HasPrefix(name, "fixed"):
		return name, validFixed(strings.TrimPrefix(name, "fixed"))
	}
	return "", false
}

func validIntWidth(n int) bool {
	return n >= 8 && n <= 256 && n%8 == 0
}

// validFixed checks the MxN suffix of fixed/ufixed types.
func validFixed(suffix string) bool {
	m, n, found := strings.Cut(suffix, "x")
	if !found {
		return false
	}
	bits, ok := parseWidth(m)
	if !ok || !validIntWidth(bits) {
		return false
	}
	decimals, ok := parseWidth(n)
	return ok && decimals >= 0 && decimals <= 80
}

// parseWidth parses a decimal width with no sign and no leading zeros.
func parseWidth(digits string) (int, bool) {
	if digits == "" || len(digits) > 3 {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || strconv.Itoa(n) != digits {
		return 0, false
	}
	return n, true
}
