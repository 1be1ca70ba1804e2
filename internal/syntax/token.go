package syntax

import (
	"fmt"

	"github.com/finos/morphir-scala/internal/diag"
)

// TokenKind classifies a token.
type TokenKind int

const (
	EOF TokenKind = iota
	Ident
	IntLit
	FloatLit
	StringLit
	Underscore

	// Keywords
	KwPackage
	KwImport
	KwDef
	KwVal
	KwType
	KwEnum
	KwCase
	KwClass
	KwFinal
	KwMatch
	KwIf
	KwElse
	KwTrue
	KwFalse

	// Punctuation and operators
	LParen
	RParen
	LBrack
	RBrack
	LBrace
	RBrace
	Comma
	Colon
	Semi
	Dot
	Assign
	Arrow
	Plus
	Minus
	Star
	Slash
	Percent
	EqEq
	NotEq
	Lt
	LtEq
	Gt
	GtEq
	AndAnd
	OrOr
	Bang
	PlusPlus
	Pipe
)

var tokenNames = map[TokenKind]string{
	EOF:        "end of file",
	Ident:      "identifier",
	IntLit:     "integer literal",
	FloatLit:   "float literal",
	StringLit:  "string literal",
	Underscore: "'_'",
	KwPackage:  "'package'",
	KwImport:   "'import'",
	KwDef:      "'def'",
	KwVal:      "'val'",
	KwType:     "'type'",
	KwEnum:     "'enum'",
	KwCase:     "'case'",
	KwClass:    "'class'",
	KwFinal:    "'final'",
	KwMatch:    "'match'",
	KwIf:       "'if'",
	KwElse:     "'else'",
	KwTrue:     "'true'",
	KwFalse:    "'false'",
	LParen:     "'('",
	RParen:     "')'",
	LBrack:     "'['",
	RBrack:     "']'",
	LBrace:     "'{'",
	RBrace:     "'}'",
	Comma:      "','",
	Colon:      "':'",
	Semi:       "';'",
	Dot:        "'.'",
	Assign:     "'='",
	Arrow:      "'=>'",
	Plus:       "'+'",
	Minus:      "'-'",
	Star:       "'*'",
	Slash:      "'/'",
	Percent:    "'%'",
	EqEq:       "'=='",
	NotEq:      "'!='",
	Lt:         "'<'",
	LtEq:       "'<='",
	Gt:         "'>'",
	GtEq:       "'>='",
	AndAnd:     "'&&'",
	OrOr:       "'||'",
	Bang:       "'!'",
	PlusPlus:   "'++'",
	Pipe:       "'|'",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

var keywords = map[string]TokenKind{
	"package": KwPackage,
	"import":  KwImport,
	"def":     KwDef,
	"val":     KwVal,
	"type":    KwType,
	"enum":    KwEnum,
	"case":    KwCase,
	"class":   KwClass,
	"final":   KwFinal,
	"match":   KwMatch,
	"if":      KwIf,
	"else":    KwElse,
	"true":    KwTrue,
	"false":   KwFalse,
}

// Token is one lexical token. Depth is the brace nesting level the token
// appears at; the parser uses it to resynchronize after an error.
type Token struct {
	Kind  TokenKind
	Text  string
	Pos   diag.Pos
	Depth int

	Int   int64
	Float float64
	Str   string
}

func (t Token) String() string {
	switch t.Kind {
	case Ident, IntLit, FloatLit:
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	case StringLit:
		return "string literal"
	default:
		return t.Kind.String()
	}
}
