package nanoql

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenString
	TokenColon
	TokenLParen
	TokenRParen
	TokenAnd
	TokenOr
	TokenNot
	TokenNeq  // !=
	TokenStar // standalone *
)

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
}

// Lexer tokenizes query input. Words may contain any character except
// whitespace, quotes, parentheses, ':' and the "!=" operator.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, pos: 0}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF}
	}

	switch l.input[l.pos] {
	case ':':
		l.pos++
		return Token{Type: TokenColon, Value: ":"}
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "("}
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")"}
	case '"':
		return l.readString()
	}
	if l.atNeq() {
		l.pos += 2
		return Token{Type: TokenNeq, Value: "!="}
	}
	return l.readWord()
}

func (l *Lexer) atNeq() bool {
	return l.input[l.pos] == '!' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '='
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) readString() Token {
	l.pos++ // skip opening quote
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		if l.input[l.pos] == '\\' && l.pos+1 < len(l.input) {
			l.pos += 2
			continue
		}
		l.pos++
	}
	value := strings.ReplaceAll(l.input[start:l.pos], `\"`, `"`)
	if l.pos < len(l.input) {
		l.pos++ // skip closing quote
	}
	return Token{Type: TokenString, Value: value}
}

func (l *Lexer) readWord() Token {
	start := l.pos
	for l.pos < len(l.input) && !isDelimiter(l.input[l.pos]) {
		if l.pos > start && l.atNeq() {
			break
		}
		l.pos++
	}
	value := l.input[start:l.pos]

	if value == "*" {
		return Token{Type: TokenStar, Value: value}
	}
	upper := strings.ToUpper(value)
	switch upper {
	case "AND":
		return Token{Type: TokenAnd, Value: upper}
	case "OR":
		return Token{Type: TokenOr, Value: upper}
	case "NOT":
		return Token{Type: TokenNot, Value: upper}
	}
	return Token{Type: TokenIdent, Value: value}
}

func isDelimiter(ch byte) bool {
	switch ch {
	case ':', '(', ')', '"':
		return true
	}
	return isSpace(ch)
}

// isSpace only considers ASCII so multi-byte UTF-8 sequences stay inside words.
func isSpace(ch byte) bool {
	return ch < utf8.RuneSelf && unicode.IsSpace(rune(ch))
}
