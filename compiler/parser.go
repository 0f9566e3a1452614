package compiler

// ---------------------------------------------------------------------------
// Parser: recursive descent over the token stream
// ---------------------------------------------------------------------------
//
// One parse pass builds the whole arena tree. There is no error
// recovery: the first unexpected token aborts the parse, and an
// Invalid token from the lexer surfaces here as a LexError.

// Parser consumes a token stream and produces an AST.
type Parser struct {
	tokens []Token
	pos    int
	tree   *Tree
}

// NewParser creates a parser over a token stream. The stream must end
// with an EOF token, as produced by Lexer.Tokenize.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens, tree: NewTree()}
}

// Parse tokenizes and parses source in one step.
func Parse(source string) (*Tree, error) {
	return NewParser(NewLexer(source).Tokenize()).ParseProgram()
}

// ParseProgram parses a whole compilation unit: a sequence of
// declarations and statements, HolyC-style, until EOF.
func (p *Parser) ParseProgram() (*Tree, error) {
	program := p.tree.Add(NodeProgram, Token{})
	for !p.check(TokenEOF) {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		p.tree.AppendChild(program, stmt)
	}
	p.tree.SetRoot(program)
	return p.tree, nil
}

// ---------------------------------------------------------------------------
// Token stream helpers
// ---------------------------------------------------------------------------

func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) check(typ TokenType) bool {
	return p.cur().Type == typ
}

// match consumes the current token if it has the given type.
func (p *Parser) match(typ TokenType) bool {
	if p.check(typ) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(typ TokenType, what string) (Token, error) {
	if err := p.checkInvalid(); err != nil {
		return Token{}, err
	}
	if !p.check(typ) {
		return Token{}, p.errExpected(what)
	}
	return p.advance(), nil
}

// checkInvalid surfaces lexer-rejected input as a LexError the moment
// the parser reaches it.
func (p *Parser) checkInvalid() error {
	if tok := p.cur(); tok.Type == TokenInvalid {
		return &LexError{Pos: tok.Pos, Msg: "malformed token " + tok.Literal}
	}
	return nil
}

func (p *Parser) errExpected(what string) error {
	tok := p.cur()
	return &ParseError{Pos: tok.Pos, Expected: what, Found: tok}
}

// ---------------------------------------------------------------------------
// Statements and declarations
// ---------------------------------------------------------------------------

func (p *Parser) statement() (NodeID, error) {
	if err := p.checkInvalid(); err != nil {
		return NilNode, err
	}

	switch {
	case p.check(TokenExport):
		return p.exportedDeclaration()
	case p.cur().Type.IsType():
		return p.declaration(false)
	case p.check(TokenIf):
		return p.ifStatement()
	case p.check(TokenWhile):
		return p.whileStatement()
	case p.check(TokenFor):
		return p.forStatement()
	case p.check(TokenReturn):
		return p.returnStatement()
	case p.check(TokenLBrace):
		return p.block()
	default:
		return p.expressionStatement()
	}
}

// exportedDeclaration parses an export-prefixed function declaration.
// Export affects only IDL visibility; the generated code is the same.
func (p *Parser) exportedDeclaration() (NodeID, error) {
	p.advance() // export
	if !p.cur().Type.IsType() {
		return NilNode, p.errExpected("type after export")
	}
	decl, err := p.declaration(true)
	if err != nil {
		return NilNode, err
	}
	if p.tree.Node(decl).Kind != NodeFunctionDecl {
		return NilNode, &ParseError{Pos: p.tree.Node(decl).Tok.Pos, Expected: "function declaration after export", Found: p.tree.Node(decl).Tok}
	}
	return decl, nil
}

// declaration parses a function or variable declaration. Both start
// with a type keyword and a name; one token of lookahead at the '('
// separates them.
func (p *Parser) declaration(exported bool) (NodeID, error) {
	p.advance() // type keyword
	for p.match(TokenStar) {
		// pointer declarator, no codegen distinction
	}
	name, err := p.expect(TokenIdentifier, "declaration name")
	if err != nil {
		return NilNode, err
	}
	if p.check(TokenLParen) {
		return p.functionDecl(name, exported)
	}
	return p.varDecl(name)
}

func (p *Parser) functionDecl(name Token, exported bool) (NodeID, error) {
	p.advance() // (
	fn := p.tree.Add(NodeFunctionDecl, name)
	if exported {
		p.tree.Node(fn).Flags |= FlagExported
	}

	if !p.check(TokenRParen) {
		for {
			if !p.cur().Type.IsType() {
				return NilNode, p.errExpected("parameter type")
			}
			p.advance()
			for p.match(TokenStar) {
			}
			param, err := p.expect(TokenIdentifier, "parameter name")
			if err != nil {
				return NilNode, err
			}
			p.tree.AppendChild(fn, p.tree.Add(NodeIdentifier, param))
			if !p.match(TokenComma) {
				break
			}
		}
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return NilNode, err
	}

	body, err := p.block()
	if err != nil {
		return NilNode, err
	}
	p.tree.AppendChild(fn, body)
	return fn, nil
}

func (p *Parser) varDecl(name Token) (NodeID, error) {
	decl := p.tree.Add(NodeVarDecl, name)
	if p.match(TokenAssign) {
		init, err := p.expression()
		if err != nil {
			return NilNode, err
		}
		p.tree.AppendChild(decl, init)
	}
	if _, err := p.expect(TokenSemicolon, ";"); err != nil {
		return NilNode, err
	}
	return decl, nil
}

func (p *Parser) block() (NodeID, error) {
	open, err := p.expect(TokenLBrace, "{")
	if err != nil {
		return NilNode, err
	}
	blk := p.tree.Add(NodeBlock, open)
	for !p.check(TokenRBrace) {
		if p.check(TokenEOF) {
			return NilNode, p.errExpected("}")
		}
		stmt, err := p.statement()
		if err != nil {
			return NilNode, err
		}
		p.tree.AppendChild(blk, stmt)
	}
	p.advance() // }
	return blk, nil
}

func (p *Parser) ifStatement() (NodeID, error) {
	kw := p.advance()
	if _, err := p.expect(TokenLParen, "( after if"); err != nil {
		return NilNode, err
	}
	cond, err := p.expression()
	if err != nil {
		return NilNode, err
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return NilNode, err
	}
	then, err := p.block()
	if err != nil {
		return NilNode, err
	}
	stmt := p.tree.Add(NodeIfStmt, kw, cond, then)
	if p.match(TokenElse) {
		var alt NodeID
		if p.check(TokenIf) {
			alt, err = p.ifStatement()
		} else {
			alt, err = p.block()
		}
		if err != nil {
			return NilNode, err
		}
		p.tree.AppendChild(stmt, alt)
	}
	return stmt, nil
}

func (p *Parser) whileStatement() (NodeID, error) {
	kw := p.advance()
	if _, err := p.expect(TokenLParen, "( after while"); err != nil {
		return NilNode, err
	}
	cond, err := p.expression()
	if err != nil {
		return NilNode, err
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return NilNode, err
	}
	body, err := p.block()
	if err != nil {
		return NilNode, err
	}
	return p.tree.Add(NodeWhileStmt, kw, cond, body), nil
}

// forStatement desugars for (init; cond; incr) { body } into a
// four-child conditional loop node. Missing clauses become an empty
// block (init, incr) or a constant-true literal (cond).
func (p *Parser) forStatement() (NodeID, error) {
	kw := p.advance()
	if _, err := p.expect(TokenLParen, "( after for"); err != nil {
		return NilNode, err
	}

	var init NodeID
	var err error
	switch {
	case p.match(TokenSemicolon):
		init = p.tree.Add(NodeBlock, kw)
	case p.cur().Type.IsType():
		init, err = p.declaration(false)
	default:
		init, err = p.expressionStatement()
	}
	if err != nil {
		return NilNode, err
	}

	var cond NodeID
	if p.check(TokenSemicolon) {
		cond = p.tree.Add(NodeLiteral, Token{Type: TokenNumber, Literal: "1", Pos: kw.Pos})
	} else {
		cond, err = p.expression()
		if err != nil {
			return NilNode, err
		}
	}
	if _, err := p.expect(TokenSemicolon, "; after for condition"); err != nil {
		return NilNode, err
	}

	var incr NodeID
	if p.check(TokenRParen) {
		incr = p.tree.Add(NodeBlock, kw)
	} else {
		expr, err := p.expression()
		if err != nil {
			return NilNode, err
		}
		incr = p.tree.Add(NodeExprStmt, kw, expr)
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return NilNode, err
	}

	body, err := p.block()
	if err != nil {
		return NilNode, err
	}
	return p.tree.Add(NodeWhileStmt, kw, init, cond, incr, body), nil
}

func (p *Parser) returnStatement() (NodeID, error) {
	kw := p.advance()
	stmt := p.tree.Add(NodeReturnStmt, kw)
	if !p.check(TokenSemicolon) {
		val, err := p.expression()
		if err != nil {
			return NilNode, err
		}
		p.tree.AppendChild(stmt, val)
	}
	if _, err := p.expect(TokenSemicolon, ";"); err != nil {
		return NilNode, err
	}
	return stmt, nil
}

func (p *Parser) expressionStatement() (NodeID, error) {
	tok := p.cur()
	expr, err := p.expression()
	if err != nil {
		return NilNode, err
	}
	if _, err := p.expect(TokenSemicolon, ";"); err != nil {
		return NilNode, err
	}
	return p.tree.Add(NodeExprStmt, tok, expr), nil
}

// ---------------------------------------------------------------------------
// Expressions: precedence climbing
// ---------------------------------------------------------------------------

func (p *Parser) expression() (NodeID, error) {
	return p.assignment()
}

// assignment is right-associative and only valid with a plain
// identifier on the left.
func (p *Parser) assignment() (NodeID, error) {
	left, err := p.logicalOr()
	if err != nil {
		return NilNode, err
	}
	if p.check(TokenAssign) {
		op := p.advance()
		if p.tree.Node(left).Kind != NodeIdentifier {
			return NilNode, &ParseError{Pos: op.Pos, Expected: "identifier on left side of assignment", Found: op}
		}
		right, err := p.assignment()
		if err != nil {
			return NilNode, err
		}
		return p.tree.Add(NodeBinaryExpr, op, left, right), nil
	}
	return left, nil
}

// binaryLevel parses one left-associative precedence level.
func (p *Parser) binaryLevel(operand func() (NodeID, error), ops ...TokenType) (NodeID, error) {
	left, err := operand()
	if err != nil {
		return NilNode, err
	}
	for {
		matched := false
		for _, typ := range ops {
			if p.check(typ) {
				op := p.advance()
				right, err := operand()
				if err != nil {
					return NilNode, err
				}
				left = p.tree.Add(NodeBinaryExpr, op, left, right)
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
	}
}

func (p *Parser) logicalOr() (NodeID, error) {
	return p.binaryLevel(p.logicalAnd, TokenOrOr)
}

func (p *Parser) logicalAnd() (NodeID, error) {
	return p.binaryLevel(p.equality, TokenAndAnd)
}

func (p *Parser) equality() (NodeID, error) {
	return p.binaryLevel(p.relational, TokenEq, TokenNe)
}

func (p *Parser) relational() (NodeID, error) {
	return p.binaryLevel(p.additive, TokenLt, TokenLe, TokenGt, TokenGe)
}

func (p *Parser) additive() (NodeID, error) {
	return p.binaryLevel(p.multiplicative, TokenPlus, TokenMinus)
}

func (p *Parser) multiplicative() (NodeID, error) {
	return p.binaryLevel(p.unary, TokenStar, TokenSlash, TokenPercent)
}

func (p *Parser) unary() (NodeID, error) {
	if p.check(TokenMinus) || p.check(TokenBang) {
		op := p.advance()
		operand, err := p.unary()
		if err != nil {
			return NilNode, err
		}
		return p.tree.Add(NodeUnaryExpr, op, operand), nil
	}
	return p.call()
}

// call parses a primary expression followed by any number of call
// suffixes.
func (p *Parser) call() (NodeID, error) {
	expr, err := p.primary()
	if err != nil {
		return NilNode, err
	}
	for p.check(TokenLParen) {
		open := p.advance()
		callExpr := p.tree.Add(NodeCallExpr, open, expr)
		if !p.check(TokenRParen) {
			for {
				arg, err := p.expression()
				if err != nil {
					return NilNode, err
				}
				p.tree.AppendChild(callExpr, arg)
				if !p.match(TokenComma) {
					break
				}
			}
		}
		if _, err := p.expect(TokenRParen, ")"); err != nil {
			return NilNode, err
		}
		expr = callExpr
	}
	return expr, nil
}

func (p *Parser) primary() (NodeID, error) {
	if err := p.checkInvalid(); err != nil {
		return NilNode, err
	}

	switch p.cur().Type {
	case TokenNumber, TokenString, TokenTrue, TokenFalse:
		return p.tree.Add(NodeLiteral, p.advance()), nil
	case TokenIdentifier, TokenPrintF:
		return p.tree.Add(NodeIdentifier, p.advance()), nil
	case TokenLParen:
		p.advance()
		expr, err := p.expression()
		if err != nil {
			return NilNode, err
		}
		if _, err := p.expect(TokenRParen, ")"); err != nil {
			return NilNode, err
		}
		return expr, nil
	default:
		return NilNode, p.errExpected("expression")
	}
}
