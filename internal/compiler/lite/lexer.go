package lite

import (
	"fmt"
	"strings"
	"unicode"

	"birdeels/internal/compiler"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIdent
	tokInt
	tokFloat
	tokString
	tokMarker
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokDot
	tokColon
	tokAssign
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokEq
	tokLess
	tokGreater

	// keywords
	tokPackage
	tokImport
	tokDim
	tokVal
	tokFunction
	tokEnd
	tokClass
	tokPublic
	tokPrivate
	tokVirtual
	tokReturn
	tokNew
	tokAs
	tokFuncType
	tokThis
	tokTrue
	tokFalse
)

var keywords = map[string]tokenKind{
	"package":  tokPackage,
	"import":   tokImport,
	"dim":      tokDim,
	"val":      tokVal,
	"function": tokFunction,
	"end":      tokEnd,
	"class":    tokClass,
	"public":   tokPublic,
	"private":  tokPrivate,
	"virtual":  tokVirtual,
	"return":   tokReturn,
	"new":      tokNew,
	"as":       tokAs,
	"functype": tokFuncType,
	"this":     tokThis,
	"true":     tokTrue,
	"false":    tokFalse,
}

var punctuation = map[rune]tokenKind{
	'(': tokLParen,
	')': tokRParen,
	'[': tokLBracket,
	']': tokRBracket,
	',': tokComma,
	'.': tokDot,
	':': tokColon,
	'+': tokPlus,
	'-': tokMinus,
	'*': tokStar,
	'/': tokSlash,
	'<': tokLess,
	'>': tokGreater,
}

// token positions are 1-based; Col is the first and End the last column.
type token struct {
	kind tokenKind
	text string
	line int
	col  int
	end  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokNewline:
		return "end of line"
	}
	return fmt.Sprintf("%q", t.text)
}

// pos is the node position of a token: its line and its last column.
func (t token) pos() compiler.SourcePos {
	return compiler.SourcePos{SourceIdx: compiler.CurrentSource, Line: t.line, Pos: t.end}
}

// errorAt builds the compile error reported for a token. Error positions
// are zero based lines and one less than the zero based start column.
func errorAt(kind compiler.ErrorKind, line, col int, format string, args ...any) *compiler.Error {
	return &compiler.Error{
		Kind: kind,
		Line: line - 1,
		Pos:  col - 2,
		Msg:  fmt.Sprintf(format, args...),
	}
}

type lexer struct {
	src  []rune
	off  int
	line int
	col  int
}

func tokenize(source string) ([]token, error) {
	lx := &lexer{src: []rune(source), line: 1, col: 1}
	var tokens []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokEOF {
			return tokens, nil
		}
	}
}

func (lx *lexer) peek(ahead int) rune {
	if lx.off+ahead >= len(lx.src) {
		return 0
	}
	return lx.src[lx.off+ahead]
}

func (lx *lexer) advance() rune {
	r := lx.src[lx.off]
	lx.off++
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) next() (token, error) {
	for lx.off < len(lx.src) {
		r := lx.peek(0)
		if r == '#' {
			for lx.off < len(lx.src) && lx.peek(0) != '\n' {
				lx.advance()
			}
			continue
		}
		if r == '\n' || !unicode.IsSpace(r) {
			break
		}
		lx.advance()
	}
	line, col := lx.line, lx.col
	if lx.off >= len(lx.src) {
		return token{kind: tokEOF, line: line, col: col, end: col}, nil
	}

	r := lx.peek(0)
	switch {
	case r == '\n':
		lx.advance()
		return token{kind: tokNewline, text: "\n", line: line, col: col, end: col}, nil
	case unicode.IsLetter(r) || r == '_':
		var b strings.Builder
		for lx.off < len(lx.src) && (unicode.IsLetter(lx.peek(0)) || unicode.IsDigit(lx.peek(0)) || lx.peek(0) == '_') {
			b.WriteRune(lx.advance())
		}
		text := b.String()
		kind := tokIdent
		if kw, ok := keywords[text]; ok {
			kind = kw
		}
		return token{kind: kind, text: text, line: line, col: col, end: lx.col - 1}, nil
	case unicode.IsDigit(r):
		var b strings.Builder
		kind := tokInt
		for lx.off < len(lx.src) && unicode.IsDigit(lx.peek(0)) {
			b.WriteRune(lx.advance())
		}
		if lx.peek(0) == '.' && unicode.IsDigit(lx.peek(1)) {
			kind = tokFloat
			b.WriteRune(lx.advance())
			for lx.off < len(lx.src) && unicode.IsDigit(lx.peek(0)) {
				b.WriteRune(lx.advance())
			}
		}
		return token{kind: kind, text: b.String(), line: line, col: col, end: lx.col - 1}, nil
	case r == '"':
		return lx.str(line, col)
	case string(r) == compiler.ProbeMarker:
		lx.advance()
		return token{kind: tokMarker, text: compiler.ProbeMarker, line: line, col: col, end: col}, nil
	case r == '=':
		lx.advance()
		if lx.peek(0) == '=' {
			lx.advance()
			return token{kind: tokEq, text: "==", line: line, col: col, end: col + 1}, nil
		}
		return token{kind: tokAssign, text: "=", line: line, col: col, end: col}, nil
	}
	if kind, ok := punctuation[r]; ok {
		lx.advance()
		return token{kind: kind, text: string(r), line: line, col: col, end: col}, nil
	}
	return token{}, errorAt(compiler.TokenizerError, line, col, "unexpected character %q", r)
}

func (lx *lexer) str(line, col int) (token, error) {
	lx.advance()
	var b strings.Builder
	for {
		if lx.off >= len(lx.src) || lx.peek(0) == '\n' {
			return token{}, errorAt(compiler.TokenizerError, line, col, "unterminated string")
		}
		r := lx.advance()
		if r == '"' {
			break
		}
		if r == '\\' && lx.off < len(lx.src) {
			switch esc := lx.advance(); esc {
			case 'n':
				r = '\n'
			case 't':
				r = '\t'
			default:
				r = esc
			}
		}
		b.WriteRune(r)
	}
	return token{kind: tokString, text: b.String(), line: line, col: col, end: lx.col - 1}, nil
}
