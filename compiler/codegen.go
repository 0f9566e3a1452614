package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pible-lang/pible/pkg/bpf"
)

// ---------------------------------------------------------------------------
// Code generator: AST to flat BPF instructions
// ---------------------------------------------------------------------------
//
// Evaluation is accumulator-style: every expression leaves its result
// in r0, with r1 and r2 as scratch. Locals live in 8-byte frame slots
// below r10; subexpression results spill to anonymous slots below the
// deepest declared local.

// patchSentinel fills the offset field of forward jumps until the
// target is known. Generate fails if any emitted jump still carries
// it at the end of the pass.
const patchSentinel int16 = 0x7fff

// wordSize is the width of one frame slot.
const wordSize = 8

// Generator lowers one AST to bytecode.
type Generator struct {
	tree *Tree
	code []bpf.Instruction

	symbols     map[string]int16 // variable name to frame offset
	frameOffset int16            // offset of the deepest declared local
	tempDepth   int16            // live expression spill slots

	functions   []string // every declared function, in order
	entrypoints []string // exported subset

	pending map[int]bool // emitted jumps awaiting a patch
}

// NewGenerator creates a generator for the given tree.
func NewGenerator(tree *Tree) *Generator {
	return &Generator{
		tree:    tree,
		symbols: make(map[string]int16),
		pending: make(map[int]bool),
	}
}

// Generate lowers the whole program. The emitted instruction stream
// always ends with an exit, so a program that falls off the end of
// its source halts cleanly with whatever is in r0.
func (g *Generator) Generate() ([]bpf.Instruction, error) {
	root := g.tree.Root()
	if root == NilNode {
		g.emit(bpf.NewInstruction(bpf.OpExit, 0, 0, 0, 0))
		return g.code, nil
	}
	for _, child := range g.tree.Node(root).Children {
		if err := g.genStatement(child); err != nil {
			return nil, err
		}
	}
	g.emit(bpf.NewInstruction(bpf.OpExit, 0, 0, 0, 0))

	if len(g.pending) != 0 {
		return nil, &CodeGenError{Msg: fmt.Sprintf("%d forward jumps left unpatched", len(g.pending))}
	}
	return g.code, nil
}

// Functions returns every function declared in the program.
func (g *Generator) Functions() []string {
	return g.functions
}

// Entrypoints returns the names of exported functions.
func (g *Generator) Entrypoints() []string {
	return g.entrypoints
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (g *Generator) emit(ins bpf.Instruction) int {
	g.code = append(g.code, ins)
	return len(g.code) - 1
}

// emitJump emits a forward jump with a sentinel offset and returns
// its index for PatchJump.
func (g *Generator) emitJump(op bpf.Opcode, dst uint8, imm int32) int {
	idx := g.emit(bpf.NewInstruction(op, dst, 0, patchSentinel, imm))
	g.pending[idx] = true
	return idx
}

// patchJump points a previously emitted forward jump at the next
// instruction to be emitted.
func (g *Generator) patchJump(idx int) {
	g.code[idx].Offset = int16(len(g.code) - idx - 1)
	delete(g.pending, idx)
}

// declareVar assigns the next frame slot to name.
func (g *Generator) declareVar(name string, pos Position) (int16, error) {
	g.frameOffset -= wordSize
	if g.frameOffset < -bpf.StackSize {
		return 0, &CodeGenError{Pos: pos, Msg: fmt.Sprintf("frame for %q exceeds the %d byte stack", name, bpf.StackSize)}
	}
	g.symbols[name] = g.frameOffset
	return g.frameOffset, nil
}

// spill stores r0 into an anonymous slot below the declared locals
// and returns its offset. Callers must release it with unspill.
func (g *Generator) spill(pos Position) (int16, error) {
	g.tempDepth++
	off := g.frameOffset - wordSize*g.tempDepth
	if off < -bpf.StackSize {
		return 0, &CodeGenError{Pos: pos, Msg: "expression too deep for the stack frame"}
	}
	g.emit(bpf.NewInstruction(bpf.OpStxDW, bpf.R10, bpf.R0, off, 0))
	return off, nil
}

func (g *Generator) unspill() {
	g.tempDepth--
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) genStatement(id NodeID) error {
	n := g.tree.Node(id)
	switch n.Kind {
	case NodeFunctionDecl:
		return g.genFunction(id)

	case NodeVarDecl:
		if len(n.Children) == 1 {
			if err := g.genExpr(n.Children[0]); err != nil {
				return err
			}
		} else {
			g.emit(bpf.NewInstruction(bpf.OpMovImm, bpf.R0, 0, 0, 0))
		}
		off, err := g.declareVar(n.Tok.Literal, n.Tok.Pos)
		if err != nil {
			return err
		}
		g.emit(bpf.NewInstruction(bpf.OpStxDW, bpf.R10, bpf.R0, off, 0))
		return nil

	case NodeBlock:
		for _, child := range n.Children {
			if err := g.genStatement(child); err != nil {
				return err
			}
		}
		return nil

	case NodeExprStmt:
		return g.genExpr(n.Children[0])

	case NodeReturnStmt:
		if len(n.Children) == 1 {
			if err := g.genExpr(n.Children[0]); err != nil {
				return err
			}
		} else {
			g.emit(bpf.NewInstruction(bpf.OpMovImm, bpf.R0, 0, 0, 0))
		}
		g.emit(bpf.NewInstruction(bpf.OpExit, 0, 0, 0, 0))
		return nil

	case NodeIfStmt:
		return g.genIf(n)

	case NodeWhileStmt:
		return g.genLoop(n)

	default:
		return &CodeGenError{Pos: n.Tok.Pos, Msg: fmt.Sprintf("unexpected %s in statement position", n.Kind)}
	}
}

// genFunction lowers a function body in a fresh frame. There is no
// call convention: functions are labeled regions in a single linear
// program, and parameters occupy zero-initialized slots.
func (g *Generator) genFunction(id NodeID) error {
	n := g.tree.Node(id)
	g.symbols = make(map[string]int16)
	g.frameOffset = 0

	g.functions = append(g.functions, n.Tok.Literal)
	if n.Flags&FlagExported != 0 {
		g.entrypoints = append(g.entrypoints, n.Tok.Literal)
	}

	body := n.Children[len(n.Children)-1]
	for _, param := range n.Children[:len(n.Children)-1] {
		name := g.tree.Node(param).Tok
		if _, err := g.declareVar(name.Literal, name.Pos); err != nil {
			return err
		}
	}
	return g.genStatement(body)
}

func (g *Generator) genIf(n *Node) error {
	if err := g.genExpr(n.Children[0]); err != nil {
		return err
	}
	toElse := g.emitJump(bpf.OpJeqImm, bpf.R0, 0)
	if err := g.genStatement(n.Children[1]); err != nil {
		return err
	}
	if len(n.Children) == 3 {
		toEnd := g.emitJump(bpf.OpJa, 0, 0)
		g.patchJump(toElse)
		if err := g.genStatement(n.Children[2]); err != nil {
			return err
		}
		g.patchJump(toEnd)
	} else {
		g.patchJump(toElse)
	}
	return nil
}

// genLoop handles both plain while loops (condition, body) and
// desugared for loops (initializer, condition, increment, body).
func (g *Generator) genLoop(n *Node) error {
	cond, body := n.Children[0], n.Children[1]
	incr := NilNode
	if len(n.Children) == 4 {
		if err := g.genStatement(n.Children[0]); err != nil {
			return err
		}
		cond, incr, body = n.Children[1], n.Children[2], n.Children[3]
	}

	condIdx := len(g.code)
	if err := g.genExpr(cond); err != nil {
		return err
	}
	toEnd := g.emitJump(bpf.OpJeqImm, bpf.R0, 0)
	if err := g.genStatement(body); err != nil {
		return err
	}
	if incr != NilNode {
		if err := g.genStatement(incr); err != nil {
			return err
		}
	}
	g.emit(bpf.NewInstruction(bpf.OpJa, 0, 0, int16(condIdx-len(g.code)-1), 0))
	g.patchJump(toEnd)
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *Generator) genExpr(id NodeID) error {
	n := g.tree.Node(id)
	switch n.Kind {
	case NodeLiteral:
		return g.genLiteral(n)
	case NodeIdentifier:
		off, ok := g.symbols[n.Tok.Literal]
		if !ok {
			return &CodeGenError{Pos: n.Tok.Pos, Msg: fmt.Sprintf("undeclared variable %q", n.Tok.Literal)}
		}
		g.emit(bpf.NewInstruction(bpf.OpLdxDW, bpf.R0, bpf.R10, off, 0))
		return nil
	case NodeUnaryExpr:
		return g.genUnary(n)
	case NodeBinaryExpr:
		return g.genBinary(n)
	case NodeCallExpr:
		return g.genCall(n)
	default:
		return &CodeGenError{Pos: n.Tok.Pos, Msg: fmt.Sprintf("unexpected %s in expression position", n.Kind)}
	}
}

func (g *Generator) genLiteral(n *Node) error {
	switch n.Tok.Type {
	case TokenNumber:
		if strings.ContainsRune(n.Tok.Literal, '.') {
			return &CodeGenError{Pos: n.Tok.Pos, Msg: fmt.Sprintf("non-integral literal %q is not supported", n.Tok.Literal)}
		}
		val, err := strconv.ParseInt(n.Tok.Literal, 10, 64)
		if err != nil {
			return &CodeGenError{Pos: n.Tok.Pos, Msg: fmt.Sprintf("bad integer literal %q", n.Tok.Literal)}
		}
		if val > int64(maxImm) || val < int64(minImm) {
			return &CodeGenError{Pos: n.Tok.Pos, Msg: fmt.Sprintf("integer literal %d does not fit a 32-bit immediate", val)}
		}
		g.emit(bpf.NewInstruction(bpf.OpMovImm, bpf.R0, 0, 0, int32(val)))
	case TokenTrue:
		g.emit(bpf.NewInstruction(bpf.OpMovImm, bpf.R0, 0, 0, 1))
	case TokenFalse:
		g.emit(bpf.NewInstruction(bpf.OpMovImm, bpf.R0, 0, 0, 0))
	case TokenString:
		// Strings have no data segment to live in; they lower to a
		// null address.
		g.emit(bpf.NewInstruction(bpf.OpMovImm, bpf.R0, 0, 0, 0))
	default:
		return &CodeGenError{Pos: n.Tok.Pos, Msg: fmt.Sprintf("unexpected literal %s", n.Tok)}
	}
	return nil
}

const (
	maxImm = 1<<31 - 1
	minImm = -1 << 31
)

func (g *Generator) genUnary(n *Node) error {
	if err := g.genExpr(n.Children[0]); err != nil {
		return err
	}
	switch n.Tok.Type {
	case TokenMinus:
		// 0 - x
		g.emit(bpf.NewInstruction(bpf.OpMovReg, bpf.R1, bpf.R0, 0, 0))
		g.emit(bpf.NewInstruction(bpf.OpMovImm, bpf.R0, 0, 0, 0))
		g.emit(bpf.NewInstruction(bpf.OpSubReg, bpf.R0, bpf.R1, 0, 0))
	case TokenBang:
		g.genNormalize(bpf.OpJeqImm)
	default:
		return &CodeGenError{Pos: n.Tok.Pos, Msg: fmt.Sprintf("unsupported unary operator %q", n.Tok.Literal)}
	}
	return nil
}

// genNormalize collapses r0 into 0 or 1. With OpJneImm the result is
// (r0 != 0); with OpJeqImm it is (r0 == 0), which implements logical
// not.
func (g *Generator) genNormalize(cmp bpf.Opcode) {
	g.emit(bpf.NewInstruction(bpf.OpMovImm, bpf.R2, 0, 0, 1))
	g.emit(bpf.NewInstruction(cmp, bpf.R0, 0, 1, 0))
	g.emit(bpf.NewInstruction(bpf.OpMovImm, bpf.R2, 0, 0, 0))
	g.emit(bpf.NewInstruction(bpf.OpMovReg, bpf.R0, bpf.R2, 0, 0))
}

var arithmeticOps = map[TokenType]bpf.Opcode{
	TokenPlus:    bpf.OpAddReg,
	TokenMinus:   bpf.OpSubReg,
	TokenStar:    bpf.OpMulReg,
	TokenSlash:   bpf.OpDivReg,
	TokenPercent: bpf.OpModReg,
}

var comparisonOps = map[TokenType]bpf.Opcode{
	TokenEq: bpf.OpJeqReg,
	TokenNe: bpf.OpJneReg,
	TokenLt: bpf.OpJltReg,
	TokenLe: bpf.OpJleReg,
	TokenGt: bpf.OpJgtReg,
	TokenGe: bpf.OpJgeReg,
}

func (g *Generator) genBinary(n *Node) error {
	if n.Tok.Type == TokenAssign {
		return g.genAssign(n)
	}
	if n.Tok.Type == TokenAndAnd || n.Tok.Type == TokenOrOr {
		return g.genLogical(n)
	}

	// Left operand spills to the stack so evaluating the right side
	// cannot clobber it.
	if err := g.genExpr(n.Children[0]); err != nil {
		return err
	}
	off, err := g.spill(n.Tok.Pos)
	if err != nil {
		return err
	}
	if err := g.genExpr(n.Children[1]); err != nil {
		return err
	}
	g.emit(bpf.NewInstruction(bpf.OpLdxDW, bpf.R1, bpf.R10, off, 0))
	g.unspill()

	// Left in r1, right in r0.
	if op, ok := arithmeticOps[n.Tok.Type]; ok {
		g.emit(bpf.NewInstruction(op, bpf.R1, bpf.R0, 0, 0))
		g.emit(bpf.NewInstruction(bpf.OpMovReg, bpf.R0, bpf.R1, 0, 0))
		return nil
	}
	if op, ok := comparisonOps[n.Tok.Type]; ok {
		g.emit(bpf.NewInstruction(bpf.OpMovImm, bpf.R2, 0, 0, 1))
		g.emit(bpf.NewInstruction(op, bpf.R1, bpf.R0, 1, 0))
		g.emit(bpf.NewInstruction(bpf.OpMovImm, bpf.R2, 0, 0, 0))
		g.emit(bpf.NewInstruction(bpf.OpMovReg, bpf.R0, bpf.R2, 0, 0))
		return nil
	}
	return &CodeGenError{Pos: n.Tok.Pos, Msg: fmt.Sprintf("unsupported binary operator %q", n.Tok.Literal)}
}

func (g *Generator) genAssign(n *Node) error {
	if err := g.genExpr(n.Children[1]); err != nil {
		return err
	}
	name := g.tree.Node(n.Children[0]).Tok
	off, ok := g.symbols[name.Literal]
	if !ok {
		return &CodeGenError{Pos: name.Pos, Msg: fmt.Sprintf("assignment to undeclared variable %q", name.Literal)}
	}
	g.emit(bpf.NewInstruction(bpf.OpStxDW, bpf.R10, bpf.R0, off, 0))
	return nil
}

// genLogical lowers && and || without short-circuiting: both sides
// are normalized to 0/1 and combined arithmetically.
func (g *Generator) genLogical(n *Node) error {
	if err := g.genExpr(n.Children[0]); err != nil {
		return err
	}
	g.genNormalize(bpf.OpJneImm)
	off, err := g.spill(n.Tok.Pos)
	if err != nil {
		return err
	}
	if err := g.genExpr(n.Children[1]); err != nil {
		return err
	}
	g.genNormalize(bpf.OpJneImm)
	g.emit(bpf.NewInstruction(bpf.OpLdxDW, bpf.R1, bpf.R10, off, 0))
	g.unspill()

	if n.Tok.Type == TokenAndAnd {
		g.emit(bpf.NewInstruction(bpf.OpMulReg, bpf.R1, bpf.R0, 0, 0))
		g.emit(bpf.NewInstruction(bpf.OpMovReg, bpf.R0, bpf.R1, 0, 0))
	} else {
		g.emit(bpf.NewInstruction(bpf.OpAddReg, bpf.R1, bpf.R0, 0, 0))
		g.emit(bpf.NewInstruction(bpf.OpMovReg, bpf.R0, bpf.R1, 0, 0))
		g.genNormalize(bpf.OpJneImm)
	}
	return nil
}

// genCall lowers PrintF into the generic trace syscall: arguments are
// evaluated left to right, staged in spill slots, then loaded into
// r1-r5 for the call. Any other callee has no lowering in the single
// entrypoint model.
func (g *Generator) genCall(n *Node) error {
	callee := g.tree.Node(n.Children[0])
	if callee.Kind != NodeIdentifier || callee.Tok.Type != TokenPrintF {
		return &CodeGenError{Pos: callee.Tok.Pos, Msg: fmt.Sprintf("call to %q: user-defined function calls are not supported", callee.Tok.Literal)}
	}

	args := n.Children[1:]
	if len(args) > 5 {
		return &CodeGenError{Pos: n.Tok.Pos, Msg: fmt.Sprintf("PrintF takes at most 5 arguments, got %d", len(args))}
	}

	offsets := make([]int16, len(args))
	for i, arg := range args {
		if err := g.genExpr(arg); err != nil {
			return err
		}
		off, err := g.spill(n.Tok.Pos)
		if err != nil {
			return err
		}
		offsets[i] = off
	}
	for i, off := range offsets {
		g.emit(bpf.NewInstruction(bpf.OpLdxDW, uint8(bpf.R1+i), bpf.R10, off, 0))
	}
	for range offsets {
		g.unspill()
	}
	g.emit(bpf.NewInstruction(bpf.OpCall, 0, 0, 0, bpf.SysTracePrintk))
	return nil
}
