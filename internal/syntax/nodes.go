// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package syntax defines the closed grammar accepted by the compiler and
// narrows Go source down to it.
//
// The node set is sealed: every Node, Stmt and Expr implementation lives in
// this file. Consumers switch over the concrete types exhaustively.
package syntax

import "go/token"

// Node is any node of the closed grammar.
type Node interface {
	Pos() token.Position
	node()
}

// Stmt is a statement node: LocalDecl, AugAssign, RangeLoop or Return.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression node: BinaryExpr, Name or Literal.
type Expr interface {
	Node
	expr()
}

// Module is the parsed file reduced to the functions of interest.
type Module struct {
	Position token.Position
	Funcs    []*FuncDef
}

// Param is one declared parameter.
type Param struct {
	Name string
	Type string
}

// FuncDef is a function with ordered typed parameters and one typed result.
type FuncDef struct {
	Position token.Position
	Name     string
	Params   []Param
	Result   string
	Body     []Stmt
}

// LocalDecl declares a typed local with an initializer: var Name Type = Value.
type LocalDecl struct {
	Position token.Position
	Name     string
	Type     string
	Value    Expr
}

// AugAssign updates Target in place from another name: Target Op= Value.
type AugAssign struct {
	Position token.Position
	Target   string
	Op       Op
	Value    *Name
}

// RangeLoop iterates Var over [Lower, Upper) with step +1.
type RangeLoop struct {
	Position token.Position
	Var      string
	Lower    Expr // *Name or integer *Literal
	Upper    Expr // *Name or integer *Literal
	Body     []Stmt
}

// Return returns a single expression.
type Return struct {
	Position token.Position
	Value    Expr
}

// BinaryExpr applies Op to two operands.
type BinaryExpr struct {
	Position token.Position
	Op       Op
	X, Y     Expr
}

// Name references a parameter, local or loop variable.
type Name struct {
	Position token.Position
	Name     string
}

// LiteralKind distinguishes integer and floating-point constants.
type LiteralKind uint8

const (
	IntLit LiteralKind = iota + 1
	FloatLit
)

// Literal is a numeric constant. Exactly one of Int or Float is meaningful,
// selected by Kind.
type Literal struct {
	Position token.Position
	Kind     LiteralKind
	Int      int64
	Float    float64
}

// Op is an arithmetic operator of the grammar.
type Op uint8

const (
	Add Op = iota + 1
	Mul
	Div
)

func (op Op) String() string {
	switch op {
	case Add:
		return "+"
	case Mul:
		return "*"
	case Div:
		return "/"
	}
	return "?"
}

func (n *Module) Pos() token.Position     { return n.Position }
func (n *FuncDef) Pos() token.Position    { return n.Position }
func (n *LocalDecl) Pos() token.Position  { return n.Position }
func (n *AugAssign) Pos() token.Position  { return n.Position }
func (n *RangeLoop) Pos() token.Position  { return n.Position }
func (n *Return) Pos() token.Position     { return n.Position }
func (n *BinaryExpr) Pos() token.Position { return n.Position }
func (n *Name) Pos() token.Position       { return n.Position }
func (n *Literal) Pos() token.Position    { return n.Position }

func (*Module) node()     {}
func (*FuncDef) node()    {}
func (*LocalDecl) node()  {}
func (*AugAssign) node()  {}
func (*RangeLoop) node()  {}
func (*Return) node()     {}
func (*BinaryExpr) node() {}
func (*Name) node()       {}
func (*Literal) node()    {}

func (*LocalDecl) stmt() {}
func (*AugAssign) stmt() {}
func (*RangeLoop) stmt() {}
func (*Return) stmt()    {}

func (*BinaryExpr) expr() {}
func (*Name) expr()       {}
func (*Literal) expr()    {}
