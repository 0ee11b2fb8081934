// interp/lexer.go
package interp

import (
	"strconv"
	"strings"
)

// TokenKind tags a Token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokNumber
	TokIdent
	TokOperator
	TokOpenIndex
	TokCloseIndex
	TokOpenParen
	TokCloseParen
	TokString
	TokLBrace
	TokRBrace
	TokSemicolon
	TokComma
	TokDot
	TokAssign
)

var tokenNames = [...]string{
	TokEOF:        "end of input",
	TokNumber:     "number",
	TokIdent:      "identifier",
	TokOperator:   "operator",
	TokOpenIndex:  "'['",
	TokCloseIndex: "']'",
	TokOpenParen:  "'('",
	TokCloseParen: "')'",
	TokString:     "string",
	TokLBrace:     "'{'",
	TokRBrace:     "'}'",
	TokSemicolon:  "';'",
	TokComma:      "','",
	TokDot:        "'.'",
	TokAssign:     "'='",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return "token(" + strconv.Itoa(int(k)) + ")"
}

// Token is one lexeme. Num is set for numbers and character constants,
// Text holds the symbol, name, or decoded string contents.
type Token struct {
	Kind TokenKind
	Text string
	Num  int64
	Line int
}

// Two-character operators must be tried before the single-character ones.
var twoCharOps = []string{"||", "&&", "==", "!=", "<=", ">="}

const singleCharOps = "+-*/%<>!"

// Tokenize splits a single expression into tokens.
func Tokenize(text string) ([]Token, error) {
	s := &scanner{src: text, line: 1}
	var out []Token
	for {
		tok, err := s.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokEOF {
			return out, nil
		}
		out = append(out, tok)
	}
}

// scanner is shared by Tokenize and the program parser. It skips blanks,
// newlines and comments and records the line of every token.
type scanner struct {
	src  string
	pos  int
	line int
}

func (s *scanner) next() (Token, error) {
	if err := s.skipSpace(); err != nil {
		return Token{}, err
	}
	if s.pos >= len(s.src) {
		return Token{Kind: TokEOF, Line: s.line}, nil
	}
	rest := s.src[s.pos:]
	c := rest[0]
	switch {
	case isDigit(c):
		n := 1
		for n < len(rest) && isDigit(rest[n]) {
			n++
		}
		v, err := strconv.ParseInt(rest[:n], 10, 64)
		if err != nil {
			return Token{}, NewRuntimeError(ErrSyntax, "number out of range %q", rest[:n])
		}
		return s.emit(TokNumber, rest[:n], v), nil
	case isIdentStart(c):
		n := 1
		for n < len(rest) && isIdentChar(rest[n]) {
			n++
		}
		return s.emit(TokIdent, rest[:n], 0), nil
	case c == '[':
		return s.emit(TokOpenIndex, "[", 0), nil
	case c == '"':
		return s.scanString()
	case c == '\'':
		return s.scanChar()
	}
	for _, op := range twoCharOps {
		if strings.HasPrefix(rest, op) {
			return s.emit(TokOperator, op, 0), nil
		}
	}
	if strings.IndexByte(singleCharOps, c) >= 0 {
		return s.emit(TokOperator, rest[:1], 0), nil
	}
	switch c {
	case '(':
		return s.emit(TokOpenParen, "(", 0), nil
	case ')':
		return s.emit(TokCloseParen, ")", 0), nil
	case ']':
		return s.emit(TokCloseIndex, "]", 0), nil
	case '{':
		return s.emit(TokLBrace, "{", 0), nil
	case '}':
		return s.emit(TokRBrace, "}", 0), nil
	case ';':
		return s.emit(TokSemicolon, ";", 0), nil
	case ',':
		return s.emit(TokComma, ",", 0), nil
	case '.':
		return s.emit(TokDot, ".", 0), nil
	case '=':
		return s.emit(TokAssign, "=", 0), nil
	}
	return Token{}, &RuntimeError{Kind: ErrSyntax, Msg: "bad token at " + strconv.Quote(firstLine(rest))}
}

func (s *scanner) emit(kind TokenKind, text string, num int64) Token {
	s.pos += len(text)
	return Token{Kind: kind, Text: text, Num: num, Line: s.line}
}

func (s *scanner) skipSpace() error {
	for s.pos < len(s.src) {
		switch c := s.src[s.pos]; {
		case c == ' ' || c == '\t' || c == '\r':
			s.pos++
		case c == '\n':
			s.pos++
			s.line++
		case strings.HasPrefix(s.src[s.pos:], "//"):
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		case strings.HasPrefix(s.src[s.pos:], "/*"):
			end := strings.Index(s.src[s.pos+2:], "*/")
			if end < 0 {
				return NewRuntimeError(ErrSyntax, "unterminated comment starting on line %d", s.line)
			}
			body := s.src[s.pos : s.pos+2+end+2]
			s.line += strings.Count(body, "\n")
			s.pos += len(body)
		default:
			return nil
		}
	}
	return nil
}

func (s *scanner) scanString() (Token, error) {
	line := s.line
	var b strings.Builder
	i := s.pos + 1
	for i < len(s.src) {
		c := s.src[i]
		switch c {
		case '"':
			s.pos = i + 1
			return Token{Kind: TokString, Text: b.String(), Line: line}, nil
		case '\n':
			return Token{}, NewRuntimeError(ErrSyntax, "unterminated string literal")
		case '\\':
			if i+1 >= len(s.src) {
				return Token{}, NewRuntimeError(ErrSyntax, "unterminated string literal")
			}
			b.WriteByte(unescape(s.src[i+1]))
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return Token{}, NewRuntimeError(ErrSyntax, "unterminated string literal")
}

func (s *scanner) scanChar() (Token, error) {
	rest := s.src[s.pos:]
	var code byte
	n := 0
	switch {
	case len(rest) >= 4 && rest[1] == '\\' && rest[3] == '\'':
		code, n = unescape(rest[2]), 4
	case len(rest) >= 3 && rest[1] != '\\' && rest[2] == '\'':
		code, n = rest[1], 3
	default:
		return Token{}, NewRuntimeError(ErrSyntax, "bad character constant at %q", firstLine(rest))
	}
	return s.emit(TokNumber, rest[:n], int64(code)), nil
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	}
	return c
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentChar(c byte) bool  { return isIdentStart(c) || isDigit(c) }
