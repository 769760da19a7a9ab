package expr

import (
	"errors"
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int // 1-based column
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%q", t.text)
}

// tokenize splits an expression into tokens. Positions are byte columns starting at 1.
func tokenize(src string) ([]token, error) {
	tokens := make([]token, 0, len(src)/2+1)
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+':
			tokens = append(tokens, token{kind: tokPlus, text: "+", pos: i + 1})
			i++
		case c == '-':
			tokens = append(tokens, token{kind: tokMinus, text: "-", pos: i + 1})
			i++
		case c == '*':
			tokens = append(tokens, token{kind: tokStar, text: "*", pos: i + 1})
			i++
		case c == '/':
			tokens = append(tokens, token{kind: tokSlash, text: "/", pos: i + 1})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i + 1})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i + 1})
			i++
		case isDigit(c) || c == '.':
			tok, next, err := scanNumber(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], pos: start + 1})
		default:
			r := []rune(src[i:])[0]
			return nil, syntaxError(i+1, "unexpected character %q", r)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src) + 1})
	return tokens, nil
}

func scanNumber(src string, start int) (token, int, error) {
	i := start
	digits := 0
	for i < len(src) && isDigit(src[i]) {
		i++
		digits++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return token{}, 0, syntaxError(start+1, "malformed number %q", src[start:i])
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		expDigits := 0
		for j < len(src) && isDigit(src[j]) {
			j++
			expDigits++
		}
		if expDigits == 0 {
			return token{}, 0, syntaxError(start+1, "malformed number %q", src[start:j])
		}
		i = j
	}
	if i < len(src) && (isIdentStart(src[i]) || src[i] == '.') {
		return token{}, 0, syntaxError(start+1, "malformed number %q", src[start:i+1])
	}

	text := src[start:i]
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return token{}, 0, syntaxError(start+1, "number %q is out of range", text)
		}
		return token{}, 0, syntaxError(start+1, "malformed number %q", text)
	}
	return token{kind: tokNumber, text: text, num: value, pos: start + 1}, i, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

// IsIdentifier reports whether s can be used as a variable name inside an expression:
// letters, digits and underscores, not starting with a digit.
func IsIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}
