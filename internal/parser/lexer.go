package parser

import (
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokLParen
	tokRParen
	tokComparator
	tokAnd
	tokOr
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "attribute"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokLParen:
		return `"("`
	case tokRParen:
		return `")"`
	case tokComparator:
		return "comparator"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string // raw text; unescaped contents for strings
	pos  int    // byte offset of the first character
}

// describe renders a token for error messages.
func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return `"` + t.text + `"`
	}
	return t.text
}

// tokenize splits a rule into tokens. It fails on the first character that
// cannot start a token.
func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++

		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++

		case c == '<' || c == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				tokens = append(tokens, token{kind: tokComparator, text: src[i : i+2], pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokComparator, text: src[i : i+1], pos: i})
				i++
			}

		case c == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				tokens = append(tokens, token{kind: tokComparator, text: "==", pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokComparator, text: "=", pos: i})
				i++
			}

		case c == '!':
			if i+1 >= len(src) || src[i+1] != '=' {
				return nil, &SyntaxError{Pos: i + 1, Expected: `"=" after "!"`, Found: charAt(src, i+1)}
			}
			tokens = append(tokens, token{kind: tokComparator, text: "!=", pos: i})
			i += 2

		case c == '&' || c == '|':
			if i+1 >= len(src) || src[i+1] != c {
				return nil, &SyntaxError{Pos: i + 1, Expected: `"` + string(c) + `"`, Found: charAt(src, i+1)}
			}
			kind := tokAnd
			if c == '|' {
				kind = tokOr
			}
			tokens = append(tokens, token{kind: kind, text: src[i : i+2], pos: i})
			i += 2

		case isDigit(c) || (c == '-' && i+1 < len(src) && isDigit(src[i+1])):
			end := scanNumber(src, i)
			tokens = append(tokens, token{kind: tokNumber, text: src[i:end], pos: i})
			i = end

		case c == '\'' || c == '"':
			text, end, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: text, pos: i})
			i = end

		case isIdentStart(c):
			end := i + 1
			for end < len(src) && isIdentPart(src[end]) {
				end++
			}
			word := src[i:end]
			switch strings.ToUpper(word) {
			case "AND":
				tokens = append(tokens, token{kind: tokAnd, text: word, pos: i})
			case "OR":
				tokens = append(tokens, token{kind: tokOr, text: word, pos: i})
			default:
				tokens = append(tokens, token{kind: tokIdent, text: word, pos: i})
			}
			i = end

		default:
			return nil, &SyntaxError{Pos: i, Expected: "attribute, literal, comparator or parenthesis", Found: charAt(src, i)}
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

// scanNumber returns the end offset of the number starting at i:
// an optional minus sign, digits, and an optional fraction.
func scanNumber(src string, i int) int {
	end := i
	if src[end] == '-' {
		end++
	}
	for end < len(src) && isDigit(src[end]) {
		end++
	}
	if end+1 < len(src) && src[end] == '.' && isDigit(src[end+1]) {
		end++
		for end < len(src) && isDigit(src[end]) {
			end++
		}
	}
	return end
}

// scanString reads a quoted literal starting at the opening quote at i and
// returns the unescaped contents and the offset just past the closing quote.
func scanString(src string, i int) (string, int, error) {
	quote := src[i]
	var b strings.Builder
	j := i + 1
	for j < len(src) {
		c := src[j]
		switch c {
		case '\\':
			if j+1 >= len(src) {
				return "", 0, &SyntaxError{Pos: j + 1, Expected: "escaped character", Found: "end of input"}
			}
			b.WriteByte(src[j+1])
			j += 2
		case quote:
			return b.String(), j + 1, nil
		default:
			b.WriteByte(c)
			j++
		}
	}
	return "", 0, &SyntaxError{Pos: i, Expected: "closing " + string(quote), Found: "end of input"}
}

func charAt(src string, i int) string {
	if i >= len(src) {
		return "end of input"
	}
	r, _ := utf8.DecodeRuneInString(src[i:])
	return `"` + string(r) + `"`
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) || c == '.' }
