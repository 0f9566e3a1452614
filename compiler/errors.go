package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Error taxonomy: each compilation phase fails with its own type so
// callers can tell a malformed token from a grammar violation from a
// lowering failure.
// ---------------------------------------------------------------------------

// LexError reports a malformed token. The lexer itself never fails;
// it emits Invalid tokens carrying the offending text, and the parser
// surfaces them as LexErrors when it reaches one.
type LexError struct {
	Pos Position
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %s: %s", e.Pos, e.Msg)
}

// ParseError reports a grammar violation: an unexpected token, with
// what the parser was looking for.
type ParseError struct {
	Pos      Position
	Expected string
	Found    Token
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: expected %s, found %s", e.Pos, e.Expected, e.Found)
}

// CodeGenError reports a lowering failure such as an undeclared
// variable or a construct with no bytecode equivalent.
type CodeGenError struct {
	Pos Position
	Msg string
}

func (e *CodeGenError) Error() string {
	return fmt.Sprintf("codegen error at %s: %s", e.Pos, e.Msg)
}
