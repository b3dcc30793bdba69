// Package lexer tokenizes query source text ahead of pkg/parser's
// recursive-descent parser, per spec.md §4.4.
//
// The teacher keeps its own Cypher front end as a single regex-driven
// clause splitter (pkg/cypher/ast_builder.go) rather than a true
// tokenizer, so this package is grounded instead on the token-stream shape
// used by the pack's other query-language implementation,
// krotik-eliasdb's eql/parser (src/devt.de/eliasdb/eql/parser/lexer.go):
// a LexToken carrying an ID/Pos/Val/Line/Column, produced eagerly into a
// slice the parser indexes into, with a keyword table consulted after
// identifier scanning. We adapt that shape to our own token kinds and
// Cypher-like keyword set rather than reusing EliasDB's GET/LOOKUP/FROM
// grammar.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vertexql/vertexql/pkg/ast"
)

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenError

	TokenIdent
	TokenNumber
	TokenString
	TokenParam // $name

	// Punctuation
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenColon
	TokenComma
	TokenDot
	TokenDotDot
	TokenArrowRight // ->
	TokenArrowLeft  // <-
	TokenDash       // -
	TokenPipe       // |

	// Operators
	TokenEq
	TokenNeq
	TokenLt
	TokenLe
	TokenGt
	TokenGe
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenTilde // ~= fuzzy-match operator

	// Keywords
	firstKeyword
	TokenMATCH
	TokenOPTIONAL
	TokenWHERE
	TokenWITH
	TokenRETURN
	TokenORDER
	TokenBY
	TokenASC
	TokenDESC
	TokenSKIP
	TokenLIMIT
	TokenDISTINCT
	TokenAS
	TokenUNWIND
	TokenGROUP
	TokenHAVING
	TokenINSERT
	TokenSET
	TokenREMOVE
	TokenDELETE
	TokenDETACH
	TokenAND
	TokenOR
	TokenNOT
	TokenXOR
	TokenIN
	TokenTRUE
	TokenFALSE
	TokenNULL
	TokenCASE
	TokenWHEN
	TokenTHEN
	TokenELSE
	TokenEND
	TokenEXISTS
	TokenUNION
	TokenALL
	TokenINTERSECT
	TokenEXCEPT
	TokenBEGIN
	TokenCOMMIT
	TokenROLLBACK
	TokenTRANSACTION
	TokenUSE
	TokenCREATE
	TokenDROP
	TokenSHOW
	TokenTEXT
	TokenINDEX
	TokenON
	TokenOPTIONS
	TokenLET
	TokenMATCHES
	lastKeyword
)

var keywords = map[string]TokenKind{
	"match": TokenMATCH, "optional": TokenOPTIONAL, "where": TokenWHERE,
	"with": TokenWITH, "return": TokenRETURN, "order": TokenORDER,
	"by": TokenBY, "asc": TokenASC, "desc": TokenDESC, "skip": TokenSKIP,
	"limit": TokenLIMIT, "distinct": TokenDISTINCT, "as": TokenAS,
	"unwind": TokenUNWIND, "group": TokenGROUP, "having": TokenHAVING,
	"insert": TokenINSERT, "set": TokenSET, "remove": TokenREMOVE,
	"delete": TokenDELETE, "detach": TokenDETACH, "and": TokenAND,
	"or": TokenOR, "not": TokenNOT, "xor": TokenXOR, "in": TokenIN,
	"true": TokenTRUE, "false": TokenFALSE, "null": TokenNULL,
	"case": TokenCASE, "when": TokenWHEN, "then": TokenTHEN,
	"else": TokenELSE, "end": TokenEND, "exists": TokenEXISTS,
	"union": TokenUNION, "all": TokenALL, "intersect": TokenINTERSECT,
	"except": TokenEXCEPT, "begin": TokenBEGIN, "commit": TokenCOMMIT,
	"rollback": TokenROLLBACK, "transaction": TokenTRANSACTION,
	"use": TokenUSE, "create": TokenCREATE, "drop": TokenDROP,
	"show": TokenSHOW, "text": TokenTEXT, "index": TokenINDEX,
	"on": TokenON, "options": TokenOPTIONS, "let": TokenLET,
	"matches": TokenMATCHES,
}

// Token is one lexical unit plus its source Location, per spec.md §4.4.
type Token struct {
	Kind     TokenKind
	Text     string
	Location ast.Location
}

// Lexer scans source text into a Token slice eagerly; the parser indexes
// into the returned slice rather than pulling tokens lazily, which keeps
// backtracking in the precedence-climbing expression parser trivial.
type Lexer struct {
	src    string
	pos    int
	line   int
	col    int
}

func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// Tokenize returns every token in src, always ending with a TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) loc() ast.Location {
	return ast.Location{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *Lexer) peekRune() (rune, int) {
	if l.pos >= len(l.src) {
		return 0, 0
	}
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	return r, size
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		r, size := l.peekRune()
		if size == 0 {
			return
		}
		if unicode.IsSpace(r) {
			l.advance()
			continue
		}
		if r == '/' && strings.HasPrefix(l.src[l.pos:], "//") {
			for {
				r, size := l.peekRune()
				if size == 0 || r == '\n' {
					break
				}
				l.advance()
			}
			continue
		}
		return
	}
}

func (l *Lexer) next() (Token, error) {
	l.skipWhitespaceAndComments()
	start := l.loc()
	r, size := l.peekRune()
	if size == 0 {
		return Token{Kind: TokenEOF, Location: start}, nil
	}

	switch {
	case unicode.IsLetter(r) || r == '_':
		return l.scanIdentOrKeyword(start)
	case unicode.IsDigit(r):
		return l.scanNumber(start)
	case r == '"' || r == '\'':
		return l.scanString(start, r)
	case r == '$':
		l.advance()
		tok, err := l.scanIdentOrKeyword(l.loc())
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: TokenParam, Text: tok.Text, Location: start}, nil
	}

	return l.scanOperator(start)
}

func (l *Lexer) scanIdentOrKeyword(start ast.Location) (Token, error) {
	begin := l.pos
	for {
		r, size := l.peekRune()
		if size == 0 || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			break
		}
		l.advance()
	}
	text := l.src[begin:l.pos]
	if kind, ok := keywords[strings.ToLower(text)]; ok {
		return Token{Kind: kind, Text: text, Location: start}, nil
	}
	return Token{Kind: TokenIdent, Text: text, Location: start}, nil
}

func (l *Lexer) scanNumber(start ast.Location) (Token, error) {
	begin := l.pos
	sawDot := false
	for {
		r, size := l.peekRune()
		if size == 0 {
			break
		}
		if r == '.' && !sawDot {
			// Don't consume `..` (range operator) as a decimal point.
			if strings.HasPrefix(l.src[l.pos:], "..") {
				break
			}
			sawDot = true
			l.advance()
			continue
		}
		if !unicode.IsDigit(r) {
			break
		}
		l.advance()
	}
	return Token{Kind: TokenNumber, Text: l.src[begin:l.pos], Location: start}, nil
}

func (l *Lexer) scanString(start ast.Location, quote rune) (Token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		r, size := l.peekRune()
		if size == 0 {
			return Token{}, &ast.ParseError{Expected: "closing quote", Found: "EOF", Location: start}
		}
		if r == quote {
			l.advance()
			break
		}
		if r == '\\' {
			l.advance()
			esc, escSize := l.peekRune()
			if escSize == 0 {
				return Token{}, &ast.ParseError{Expected: "escape sequence", Found: "EOF", Location: start}
			}
			l.advance()
			sb.WriteRune(unescape(esc))
			continue
		}
		sb.WriteRune(r)
		l.advance()
	}
	return Token{Kind: TokenString, Text: sb.String(), Location: start}, nil
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return r
	}
}

func (l *Lexer) scanOperator(start ast.Location) (Token, error) {
	two := ""
	if l.pos+2 <= len(l.src) {
		two = l.src[l.pos : l.pos+2]
	}
	switch two {
	case "<>":
		l.advance()
		l.advance()
		return Token{Kind: TokenNeq, Text: two, Location: start}, nil
	case "<=":
		l.advance()
		l.advance()
		return Token{Kind: TokenLe, Text: two, Location: start}, nil
	case ">=":
		l.advance()
		l.advance()
		return Token{Kind: TokenGe, Text: two, Location: start}, nil
	case "->":
		l.advance()
		l.advance()
		return Token{Kind: TokenArrowRight, Text: two, Location: start}, nil
	case "<-":
		l.advance()
		l.advance()
		return Token{Kind: TokenArrowLeft, Text: two, Location: start}, nil
	case "..":
		l.advance()
		l.advance()
		return Token{Kind: TokenDotDot, Text: two, Location: start}, nil
	case "~=":
		l.advance()
		l.advance()
		return Token{Kind: TokenTilde, Text: two, Location: start}, nil
	}

	r := l.advance()
	switch r {
	case '(':
		return Token{Kind: TokenLParen, Text: "(", Location: start}, nil
	case ')':
		return Token{Kind: TokenRParen, Text: ")", Location: start}, nil
	case '[':
		return Token{Kind: TokenLBracket, Text: "[", Location: start}, nil
	case ']':
		return Token{Kind: TokenRBracket, Text: "]", Location: start}, nil
	case '{':
		return Token{Kind: TokenLBrace, Text: "{", Location: start}, nil
	case '}':
		return Token{Kind: TokenRBrace, Text: "}", Location: start}, nil
	case ':':
		return Token{Kind: TokenColon, Text: ":", Location: start}, nil
	case ',':
		return Token{Kind: TokenComma, Text: ",", Location: start}, nil
	case '.':
		return Token{Kind: TokenDot, Text: ".", Location: start}, nil
	case '-':
		return Token{Kind: TokenDash, Text: "-", Location: start}, nil
	case '|':
		return Token{Kind: TokenPipe, Text: "|", Location: start}, nil
	case '=':
		return Token{Kind: TokenEq, Text: "=", Location: start}, nil
	case '<':
		return Token{Kind: TokenLt, Text: "<", Location: start}, nil
	case '>':
		return Token{Kind: TokenGt, Text: ">", Location: start}, nil
	case '+':
		return Token{Kind: TokenPlus, Text: "+", Location: start}, nil
	case '*':
		return Token{Kind: TokenStar, Text: "*", Location: start}, nil
	case '/':
		return Token{Kind: TokenSlash, Text: "/", Location: start}, nil
	case '~':
		return Token{Kind: TokenTilde, Text: "~", Location: start}, nil
	}

	return Token{}, &ast.ParseError{Expected: "a valid token", Found: string(r), Location: start}
}
