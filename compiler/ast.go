package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// AST: arena-allocated tree
// ---------------------------------------------------------------------------
//
// Nodes live in a single flat slice owned by the Tree; relationships
// are NodeID indices rather than pointers. Every node carries the
// token it was built from, so later phases report positions without
// a separate source map.

// NodeKind discriminates AST node types.
type NodeKind int

const (
	NodeProgram NodeKind = iota
	NodeFunctionDecl
	NodeVarDecl
	NodeBlock
	NodeExprStmt
	NodeReturnStmt
	NodeIfStmt
	NodeWhileStmt
	NodeBinaryExpr
	NodeUnaryExpr
	NodeCallExpr
	NodeLiteral
	NodeIdentifier
)

var nodeKindNames = map[NodeKind]string{
	NodeProgram:      "Program",
	NodeFunctionDecl: "FunctionDecl",
	NodeVarDecl:      "VarDecl",
	NodeBlock:        "Block",
	NodeExprStmt:     "ExprStmt",
	NodeReturnStmt:   "ReturnStmt",
	NodeIfStmt:       "IfStmt",
	NodeWhileStmt:    "WhileStmt",
	NodeBinaryExpr:   "BinaryExpr",
	NodeUnaryExpr:    "UnaryExpr",
	NodeCallExpr:     "CallExpr",
	NodeLiteral:      "Literal",
	NodeIdentifier:   "Identifier",
}

func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("NodeKind(%d)", k)
}

// NodeID indexes a node within its Tree.
type NodeID int32

// NilNode marks an absent node reference.
const NilNode NodeID = -1

// NodeFlags carry per-node attributes that do not warrant their own
// kinds.
type NodeFlags uint8

const (
	// FlagExported marks a function declared with the export keyword.
	FlagExported NodeFlags = 1 << iota
)

// Node is one AST node. Children are ordered; their meaning depends
// on the kind:
//
//	FunctionDecl  parameters..., body block last
//	VarDecl       optional initializer
//	IfStmt        condition, then block, optional else block
//	WhileStmt     condition, body (a desugared for loop instead has
//	              initializer, condition, increment, body)
//	BinaryExpr    left, right
//	UnaryExpr     operand
//	CallExpr      callee, arguments...
type Node struct {
	Kind     NodeKind
	Tok      Token // defining token: name for decls, operator for exprs
	Children []NodeID
	Flags    NodeFlags
}

// Tree is an arena of nodes with a designated root.
type Tree struct {
	nodes []Node
	root  NodeID
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{root: NilNode}
}

// Add appends a node and returns its id.
func (t *Tree) Add(kind NodeKind, tok Token, children ...NodeID) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{Kind: kind, Tok: tok, Children: children})
	return id
}

// Node returns the node for an id. The pointer stays valid until the
// next Add.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// AppendChild adds a child to an existing node.
func (t *Tree) AppendChild(parent, child NodeID) {
	n := &t.nodes[parent]
	n.Children = append(n.Children, child)
}

// SetRoot designates the root node.
func (t *Tree) SetRoot(id NodeID) {
	t.root = id
}

// Root returns the root node id, NilNode for an empty tree.
func (t *Tree) Root() NodeID {
	return t.root
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Dump renders the tree as an indented listing, one node per line.
// Intended for debugging and tests.
func (t *Tree) Dump() string {
	var sb strings.Builder
	if t.root != NilNode {
		t.dump(&sb, t.root, 0)
	}
	return sb.String()
}

func (t *Tree) dump(sb *strings.Builder, id NodeID, depth int) {
	n := t.Node(id)
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(n.Kind.String())
	if n.Tok.Literal != "" {
		fmt.Fprintf(sb, " %q", n.Tok.Literal)
	}
	if n.Flags&FlagExported != 0 {
		sb.WriteString(" export")
	}
	sb.WriteString("\n")
	for _, child := range n.Children {
		t.dump(sb, child, depth+1)
	}
}
