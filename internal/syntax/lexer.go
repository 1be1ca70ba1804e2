package syntax

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/finos/morphir-scala/internal/diag"
)

type lexer struct {
	src   string
	off   int
	line  int
	col   int
	depth int
	toks  []Token
	diags diag.List
}

// Lex normalizes text to NFC and splits it into tokens. The returned slice
// always ends with an EOF token, even when diagnostics are reported.
func Lex(text string) ([]Token, diag.List) {
	lx := &lexer{src: norm.NFC.String(text), line: 1, col: 1}
	lx.run()
	return lx.toks, lx.diags
}

func (lx *lexer) pos() diag.Pos {
	return diag.Pos{Line: lx.line, Col: lx.col, Offset: lx.off}
}

func (lx *lexer) peek() rune {
	if lx.off >= len(lx.src) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(lx.src[lx.off:])
	return r
}

func (lx *lexer) peekAt(n int) rune {
	off := lx.off
	for i := 0; i < n; i++ {
		if off >= len(lx.src) {
			return -1
		}
		_, size := utf8.DecodeRuneInString(lx.src[off:])
		off += size
	}
	if off >= len(lx.src) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(lx.src[off:])
	return r
}

func (lx *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(lx.src[lx.off:])
	lx.off += size
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) errorf(pos diag.Pos, code, format string, args ...any) {
	lx.diags = append(lx.diags, diag.New(diag.KindParse, diag.PhaseLex, code, pos, format, args...))
}

func (lx *lexer) emit(kind TokenKind, start diag.Pos) *Token {
	depth := lx.depth
	switch kind {
	case LBrace:
		lx.depth++
	case RBrace:
		if lx.depth > 0 {
			lx.depth--
		}
		depth = lx.depth
	}
	lx.toks = append(lx.toks, Token{
		Kind:  kind,
		Text:  lx.src[start.Offset:lx.off],
		Pos:   start,
		Depth: depth,
	})
	return &lx.toks[len(lx.toks)-1]
}

func (lx *lexer) run() {
	for {
		lx.skipSpaceAndComments()
		start := lx.pos()
		r := lx.peek()
		switch {
		case r == -1:
			lx.toks = append(lx.toks, Token{Kind: EOF, Pos: start})
			return
		case r == utf8.RuneError:
			lx.advance()
			lx.errorf(start, diag.CodeUnexpectedChar, "invalid UTF-8 encoding")
		case r == '_' || unicode.IsLetter(r):
			lx.ident(start)
		case isDigit(r):
			lx.number(start)
		case r == '"':
			lx.str(start)
		default:
			lx.operator(start, r)
		}
	}
}

func (lx *lexer) skipSpaceAndComments() {
	for {
		r := lx.peek()
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			lx.advance()
		case r == '/' && lx.peekAt(1) == '/':
			for lx.peek() != '\n' && lx.peek() != -1 {
				lx.advance()
			}
		case r == '/' && lx.peekAt(1) == '*':
			start := lx.pos()
			lx.advance()
			lx.advance()
			for {
				if lx.peek() == -1 {
					lx.errorf(start, diag.CodeUnterminatedBlock, "block comment is not terminated")
					return
				}
				if lx.peek() == '*' && lx.peekAt(1) == '/' {
					lx.advance()
					lx.advance()
					break
				}
				lx.advance()
			}
		default:
			return
		}
	}
}

func (lx *lexer) ident(start diag.Pos) {
	for {
		r := lx.peek()
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			lx.advance()
			continue
		}
		break
	}
	text := lx.src[start.Offset:lx.off]
	if text == "_" {
		lx.emit(Underscore, start)
		return
	}
	if kw, ok := keywords[text]; ok {
		lx.emit(kw, start)
		return
	}
	lx.emit(Ident, start)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func (lx *lexer) digits() {
	for isDigit(lx.peek()) || lx.peek() == '_' {
		lx.advance()
	}
}

func (lx *lexer) number(start diag.Pos) {
	lx.digits()
	isFloat := false
	if lx.peek() == '.' && isDigit(lx.peekAt(1)) {
		isFloat = true
		lx.advance()
		lx.digits()
	}
	if r := lx.peek(); r == 'e' || r == 'E' {
		next := lx.peekAt(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(lx.peekAt(2))) {
			isFloat = true
			lx.advance()
			if next == '+' || next == '-' {
				lx.advance()
			}
			lx.digits()
		}
	}
	// An identifier glued to a number ("12abc") is malformed.
	for r := lx.peek(); r == '_' || unicode.IsLetter(r); r = lx.peek() {
		lx.advance()
	}

	raw := lx.src[start.Offset:lx.off]
	if strings.HasSuffix(raw, "_") || strings.Contains(raw, "__") || strings.Contains(raw, "_.") || strings.Contains(raw, "._") {
		lx.errorf(start, diag.CodeBadNumber, "malformed number %q", raw)
		lx.emit(IntLit, start)
		return
	}
	clean := strings.ReplaceAll(raw, "_", "")

	if isFloat {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil || math.IsInf(f, 0) {
			lx.errorf(start, diag.CodeBadNumber, "malformed number %q", raw)
		}
		tok := lx.emit(FloatLit, start)
		tok.Float = f
		return
	}
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			lx.errorf(start, diag.CodeBadNumber, "integer %s does not fit in 64 bits", raw)
		} else {
			lx.errorf(start, diag.CodeBadNumber, "malformed number %q", raw)
		}
	}
	tok := lx.emit(IntLit, start)
	tok.Int = n
}

func (lx *lexer) str(start diag.Pos) {
	lx.advance() // opening quote
	var b strings.Builder
	for {
		r := lx.peek()
		switch r {
		case -1, '\n':
			lx.errorf(start, diag.CodeUnterminatedString, "string literal is not terminated")
			tok := lx.emit(StringLit, start)
			tok.Str = b.String()
			return
		case '"':
			lx.advance()
			tok := lx.emit(StringLit, start)
			tok.Str = b.String()
			return
		case '\\':
			escPos := lx.pos()
			lx.advance()
			lx.escape(escPos, &b)
		default:
			b.WriteRune(lx.advance())
		}
	}
}

func (lx *lexer) escape(pos diag.Pos, b *strings.Builder) {
	r := lx.peek()
	switch r {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '"':
		b.WriteByte('"')
	case '\\':
		b.WriteByte('\\')
	case 'u':
		lx.advance()
		var hex strings.Builder
		for i := 0; i < 4; i++ {
			h := lx.peek()
			if !strings.ContainsRune("0123456789abcdefABCDEF", h) || h == -1 {
				lx.errorf(pos, diag.CodeBadEscape, "\\u escape needs four hex digits")
				return
			}
			hex.WriteRune(lx.advance())
		}
		v, _ := strconv.ParseUint(hex.String(), 16, 32)
		b.WriteRune(rune(v))
		return
	case -1, '\n':
		lx.errorf(pos, diag.CodeBadEscape, "incomplete escape sequence")
		return
	default:
		lx.errorf(pos, diag.CodeBadEscape, "unknown escape sequence \\%c", r)
	}
	lx.advance()
}

var twoCharOps = map[string]TokenKind{
	"=>": Arrow,
	"==": EqEq,
	"!=": NotEq,
	"<=": LtEq,
	">=": GtEq,
	"&&": AndAnd,
	"||": OrOr,
	"++": PlusPlus,
}

var oneCharOps = map[rune]TokenKind{
	'(': LParen,
	')': RParen,
	'[': LBrack,
	']': RBrack,
	'{': LBrace,
	'}': RBrace,
	',': Comma,
	':': Colon,
	';': Semi,
	'.': Dot,
	'=': Assign,
	'+': Plus,
	'-': Minus,
	'*': Star,
	'/': Slash,
	'%': Percent,
	'<': Lt,
	'>': Gt,
	'!': Bang,
	'|': Pipe,
}

func (lx *lexer) operator(start diag.Pos, r rune) {
	if next := lx.peekAt(1); next != -1 {
		if kind, ok := twoCharOps[string([]rune{r, next})]; ok {
			lx.advance()
			lx.advance()
			lx.emit(kind, start)
			return
		}
	}
	if kind, ok := oneCharOps[r]; ok {
		lx.advance()
		lx.emit(kind, start)
		return
	}
	lx.advance()
	lx.errorf(start, diag.CodeUnexpectedChar, "unexpected character %q", r)
}
