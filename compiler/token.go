package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for HolyC-style source
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenInvalid

	// Literals
	TokenNumber     // 42
	TokenString     // "hello"
	TokenIdentifier // foo, Bar

	// Type keywords
	TokenU0
	TokenU8
	TokenU16
	TokenU32
	TokenU64
	TokenI8
	TokenI16
	TokenI32
	TokenI64
	TokenF64
	TokenBoolType

	// Keywords
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenReturn
	TokenBreak
	TokenContinue
	TokenClass
	TokenPublic
	TokenPrivate
	TokenExport
	TokenTrue
	TokenFalse
	TokenPrintF

	// Operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenAssign  // =
	TokenEq      // ==
	TokenNe      // !=
	TokenLt      // <
	TokenLe      // <=
	TokenGt      // >
	TokenGe      // >=
	TokenAndAnd  // &&
	TokenOrOr    // ||
	TokenBang    // !

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenSemicolon // ;
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenInvalid:    "INVALID",
	TokenNumber:     "NUMBER",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenU0:         "U0",
	TokenU8:         "U8",
	TokenU16:        "U16",
	TokenU32:        "U32",
	TokenU64:        "U64",
	TokenI8:         "I8",
	TokenI16:        "I16",
	TokenI32:        "I32",
	TokenI64:        "I64",
	TokenF64:        "F64",
	TokenBoolType:   "Bool",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenFor:        "for",
	TokenReturn:     "return",
	TokenBreak:      "break",
	TokenContinue:   "continue",
	TokenClass:      "class",
	TokenPublic:     "public",
	TokenPrivate:    "private",
	TokenExport:     "export",
	TokenTrue:       "TRUE",
	TokenFalse:      "FALSE",
	TokenPrintF:     "PrintF",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenPercent:    "%",
	TokenAssign:     "=",
	TokenEq:         "==",
	TokenNe:         "!=",
	TokenLt:         "<",
	TokenLe:         "<=",
	TokenGt:         ">",
	TokenGe:         ">=",
	TokenAndAnd:     "&&",
	TokenOrOr:       "||",
	TokenBang:       "!",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenSemicolon:  ";",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsType reports whether the token names a HolyC primitive type.
func (t TokenType) IsType() bool {
	return t >= TokenU0 && t <= TokenBoolType
}

// Position is a location in the source text.
type Position struct {
	Offset int // byte offset, 0-based
	Line   int // 1-based
	Column int // 1-based
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenInvalid {
		return fmt.Sprintf("INVALID(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"U0":       TokenU0,
	"U8":       TokenU8,
	"U16":      TokenU16,
	"U32":      TokenU32,
	"U64":      TokenU64,
	"I8":       TokenI8,
	"I16":      TokenI16,
	"I32":      TokenI32,
	"I64":      TokenI64,
	"F64":      TokenF64,
	"Bool":     TokenBoolType,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"for":      TokenFor,
	"return":   TokenReturn,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"class":    TokenClass,
	"public":   TokenPublic,
	"private":  TokenPrivate,
	"export":   TokenExport,
	"TRUE":     TokenTrue,
	"FALSE":    TokenFalse,
	"PrintF":   TokenPrintF,
}
