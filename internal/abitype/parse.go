package abitype

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// ErrMalformedSignature is returned when text cannot be parsed as
// identifier(type,type,...).
var ErrMalformedSignature = errors.New("malformed signature")

// maxArraySize bounds fixed array lengths to something an ABI encoder could address.
const maxArraySize = 1<<31 - 1

// Normalize parses raw signature text and returns its canonical form:
// whitespace removed, parameter names and location keywords dropped,
// aliases resolved recursively through arrays and tuples.
func Normalize(raw string) (string, error) {
	sig, err := ParseSignature(raw)
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

// IsCanonical reports whether text is already in canonical form, i.e.
// normalizing it again yields the same string.
func IsCanonical(text string) bool {
	normalized, err := Normalize(text)
	return err == nil && normalized == text
}

// ParseSignature parses raw signature text into its structured form.
func ParseSignature(raw string) (Signature, error) {
	p, err := newParser(raw)
	if err != nil {
		return Signature{}, err
	}

	name, ok := p.accept(tokIdent)
	if !ok {
		return Signature{}, p.errorf("expected function name")
	}
	if Modifiers[name.text] {
		return Signature{}, p.errorf("%q is not a valid function name", name.text)
	}
	inputs, err := p.parseList()
	if err != nil {
		return Signature{}, err
	}
	if !p.done() {
		return Signature{}, p.errorf("unexpected %q after parameter list", p.peek().text)
	}
	return Signature{Name: name.text, Inputs: inputs}, nil
}

// parseType parses a single parameter type such as "uint[2][]" or "(uint,address)".
func parseType(raw string) (Type, error) {
	p, err := newParser(raw)
	if err != nil {
		return Type{}, err
	}
	t, err := p.parseType()
	if err != nil {
		return Type{}, err
	}
	if !p.done() {
		return Type{}, p.errorf("unexpected %q after type", p.peek().text)
	}
	return t, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

type parser struct {
	raw    string
	tokens []token
	pos    int
}

func newParser(raw string) (*parser, error) {
	tokens, err := tokenize(raw)
	if err != nil {
		return nil, err
	}
	return &parser{raw: raw, tokens: tokens}, nil
}

func tokenize(raw string) ([]token, error) {
	tokens := make([]token, 0, len(raw)/2)
	for i := 0; i < len(raw); {
		r, width := utf8.DecodeRuneInString(raw[i:])
		switch {
		case unicode.IsSpace(r):
			i += width
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")"})
			i++
		case r == '[':
			tokens = append(tokens, token{kind: tokLBracket, text: "["})
			i++
		case r == ']':
			tokens = append(tokens, token{kind: tokRBracket, text: "]"})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ","})
			i++
		case isIdentStart(r):
			start := i
			for i < len(raw) && isIdentPart(rune(raw[i])) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: raw[start:i]})
		case r >= '0' && r <= '9':
			start := i
			for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: raw[start:i]})
		default:
			return nil, fmt.Errorf("%w: unexpected character %q in %q", ErrMalformedSignature, r, raw)
		}
	}
	return tokens, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func (p *parser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() token {
	if p.done() {
		return token{kind: -1, text: "end of input"}
	}
	return p.tokens[p.pos]
}

func (p *parser) accept(kind tokenKind) (token, bool) {
	if p.done() || p.tokens[p.pos].kind != kind {
		return token{}, false
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok, true
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s in %q", ErrMalformedSignature, fmt.Sprintf(format, args...), p.raw)
}

// parseList parses "(param,param,...)". Parameters may carry trailing
// modifiers and a name; both are discarded.
func (p *parser) parseList() ([]Type, error) {
	if _, ok := p.accept(tokLParen); !ok {
		return nil, p.errorf("expected '('")
	}
	types := make([]Type, 0)
	if _, ok := p.accept(tokRParen); ok {
		return types, nil
	}

	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.skipDecorations(); err != nil {
			return nil, err
		}
		types = append(types, t)

		if _, ok := p.accept(tokComma); ok {
			continue
		}
		if _, ok := p.accept(tokRParen); ok {
			return types, nil
		}
		return nil, p.errorf("expected ',' or ')' but found %q", p.peek().text)
	}
}

// skipDecorations consumes location keywords and at most one parameter name.
func (p *parser) skipDecorations() error {
	named := false
	for {
		tok, ok := p.accept(tokIdent)
		if !ok {
			return nil
		}
		if Modifiers[tok.text] {
			if named {
				return p.errorf("unexpected %q after parameter name", tok.text)
			}
			continue
		}
		if named {
			return p.errorf("unexpected identifier %q", tok.text)
		}
		named = true
	}
}

func (p *parser) parseType() (Type, error) {
	base, err := p.parseBase()
	if err != nil {
		return Type{}, err
	}
	for {
		if _, ok := p.accept(tokLBracket); !ok {
			return base, nil
		}
		size := DynamicSize
		if num, ok := p.accept(tokNumber); ok {
			n, err := strconv.ParseUint(num.text, 10, 64)
			if err != nil || n == 0 || n > maxArraySize {
				return Type{}, p.errorf("invalid array size %q", num.text)
			}
			size = int(n)
		}
		if _, ok := p.accept(tokRBracket); !ok {
			return Type{}, p.errorf("expected ']' but found %q", p.peek().text)
		}
		elem := base
		base = Type{Kind: KindArray, Elem: &elem, Size: size}
	}
}

func (p *parser) parseBase() (Type, error) {
	if p.peek().kind == tokLParen {
		components, err := p.parseList()
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindTuple, Components: components}, nil
	}

	tok, ok := p.accept(tokIdent)
	if !ok {
		return Type{}, p.errorf("expected type but found %q", p.peek().text)
	}
	if tok.text == "tuple" && p.peek().kind == tokLParen {
		return p.parseBase()
	}
	canonical, ok := ResolveElementary(tok.text)
	if !ok {
		return Type{}, p.errorf("unknown type %q", tok.text)
	}
	return Type{Kind: KindElementary, Name: canonical}, nil
}
