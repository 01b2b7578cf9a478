// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ast defines the Tomb abstract syntax tree (spec §3, §4.3):
// modules (contracts, scripts, description scripts), struct declarations,
// method interfaces, statements, and expressions. Every Expression carries
// its ResultType, computed bottom-up during parsing — there is no separate
// type-inference pass.
package ast

import (
	"fmt"
	"strings"

	"github.com/sfichera/tomb/lang/library"
	"github.com/sfichera/tomb/lang/scope"
	"github.com/sfichera/tomb/lang/types"
)

// Node is the common interface of every AST node: it knows the source line
// it was parsed from.
type Node interface {
	Line() int
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Expression is any node with a computed ResultType (spec §3).
type Expression interface {
	Node
	ResultType() *types.VarType
}

// Literal is a Number, Bool, String, Bytes, Address, or Hash literal.
type Literal struct {
	LineNo int
	Type   *types.VarType
	Value  interface{} // int64 | bool | string | []byte
}

func (l *Literal) Line() int                 { return l.LineNo }
func (l *Literal) ResultType() *types.VarType { return l.Type }

// VarExpr reads a variable (local, global, or argument).
type VarExpr struct {
	LineNo int
	Decl   *scope.VarDecl
}

func (v *VarExpr) Line() int                 { return v.LineNo }
func (v *VarExpr) ResultType() *types.VarType { return v.Decl.Type }

// ConstExpr reads a named compile-time constant.
type ConstExpr struct {
	LineNo int
	Decl   *scope.ConstDecl
}

func (c *ConstExpr) Line() int                 { return c.LineNo }
func (c *ConstExpr) ResultType() *types.VarType { return c.Decl.Type }

// BinaryExpr is a two-operand operator expression. Per spec §4.2 both
// operands must share a VarType, except the String+any coercion rule;
// Type is the already-resolved result type (Bool for comparisons, the
// operand type otherwise).
type BinaryExpr struct {
	LineNo int
	Op     string
	Left   Expression
	Right  Expression
	Type   *types.VarType
}

func (b *BinaryExpr) Line() int                 { return b.LineNo }
func (b *BinaryExpr) ResultType() *types.VarType { return b.Type }

// NegationExpr is logical negation. `!=` lowers to Negation(Equal(L,R)) per
// spec §4.2 and DESIGN.md's Open Question decision.
type NegationExpr struct {
	LineNo int
	Inner  Expression
	Type   *types.VarType // always Bool
}

func (n *NegationExpr) Line() int                 { return n.LineNo }
func (n *NegationExpr) ResultType() *types.VarType { return n.Type }

// CastExpr converts Inner to To. Legal only between String and any
// primitive (spec §4.3); inserted implicitly for the `String + any` rule or
// written explicitly by the user.
type CastExpr struct {
	LineNo int
	To     *types.VarType
	Inner  Expression
}

func (c *CastExpr) Line() int                 { return c.LineNo }
func (c *CastExpr) ResultType() *types.VarType { return c.To }

// MethodExpr is a library method invocation used as a value (has a
// non-None return type). Receiver is set when the call was written as
// `x.m(...)` on a collection variable (spec §4.2 "implicit first
// argument"); Args does NOT include that implicit receiver-name literal —
// code generation re-derives it from Receiver.
type MethodExpr struct {
	LineNo   int
	Library  *library.LibraryDeclaration
	Method   *library.MethodInterface
	Receiver *scope.VarDecl // non-nil for collection-variable calls
	Args     []Expression
	Type     *types.VarType
}

func (m *MethodExpr) Line() int                 { return m.LineNo }
func (m *MethodExpr) ResultType() *types.VarType { return m.Type }

// MacroExpr is the expansion of a `$NAME` token (spec §4.2). Expanded is
// filled in by the resolver before the expression is used anywhere else —
// ExpectExpression never returns an un-expanded MacroExpr.
type MacroExpr struct {
	LineNo   int
	Name     string
	Expanded Expression
}

func (m *MacroExpr) Line() int                 { return m.LineNo }
func (m *MacroExpr) ResultType() *types.VarType { return m.Expanded.ResultType() }

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Statement is any node scoped to a lexical frame (spec §3).
type Statement interface {
	Node
	StmtScope() *scope.Scope
}

// Base is the common embedded state of every Statement: the source line and
// the lexical scope the statement was parsed in.
type Base struct {
	LineNo int
	Scope  *scope.Scope
}

func (s Base) Line() int            { return s.LineNo }
func (s Base) StmtScope() *scope.Scope { return s.Scope }

// LocalDeclStmt is `local x : T (:= expr)? ;`. It both declares the
// variable in Scope and, when Init is non-nil, performs the initial
// assignment.
type LocalDeclStmt struct {
	Base
	Decl *scope.VarDecl
	Init Expression
}

// AssignStmt is `target := expr;` (compound operators are expanded to this
// form by the parser per spec §4.2).
type AssignStmt struct {
	Base
	Target *scope.VarDecl
	Value  Expression
}

// IfStmt is `if (cond) { then } (else { else })?`.
type IfStmt struct {
	Base
	Cond Expression
	Then *StatementBlock
	Else *StatementBlock // nil if absent
}

// WhileStmt is `while (cond) { body }`.
type WhileStmt struct {
	Base
	Cond Expression
	Body *StatementBlock
}

// DoWhileStmt is `do { body } while (cond);`.
type DoWhileStmt struct {
	Base
	Body *StatementBlock
	Cond Expression
}

// ReturnStmt is `return expr? ;`. Method is a back-reference to the
// enclosing MethodInterface (spec §4.3) used to check Value's type against
// the declared return type.
type ReturnStmt struct {
	Base
	Value  Expression // nil iff Method.ReturnType is None
	Method *MethodInterface
}

// ThrowStmt is `throw "message";`.
type ThrowStmt struct {
	Base
	Message string
}

// EmitStmt is `emit Event(addr, value);`, valid only inside a contract.
type EmitStmt struct {
	Base
	Event *EventDeclaration
	Addr  Expression
	Value Expression
}

// AsmBlockStmt carries a verbatim `asm { ... }` body, one source line per
// entry, trimmed of leading whitespace (spec §4.4).
type AsmBlockStmt struct {
	Base
	Lines []string
}

// MethodCallStmt is a library call used as a bare statement (no value use),
// e.g. `balances.set(a, v);`.
type MethodCallStmt struct {
	Base
	Call *MethodExpr
}

// StatementBlock owns its child Scope; variables declared inside die at the
// closing brace (spec §4.3).
type StatementBlock struct {
	LineNo int
	Scope  *scope.Scope
	Stmts  []Statement
}

func (b *StatementBlock) Line() int { return b.LineNo }

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// StructDecl is a parsed `struct Name { ... }`; Decl is the interned type
// registry entry backing it.
type StructDecl struct {
	LineNo int
	Decl   *types.StructDeclaration
}

func (s *StructDecl) Line() int { return s.LineNo }

// MethodKind distinguishes the four callable shapes a module can declare
// (spec §3 MethodInterface.kind).
type MethodKind int

const (
	KindConstructor MethodKind = iota
	KindMethod
	KindTask
	KindTrigger
)

func (k MethodKind) String() string {
	switch k {
	case KindConstructor:
		return "constructor"
	case KindMethod:
		return "method"
	case KindTask:
		return "task"
	case KindTrigger:
		return "trigger"
	default:
		return "method(?)"
	}
}

// Param is one declared parameter of a MethodInterface.
type Param struct {
	Name string
	Type *types.VarType
}

// MethodInterface is a constructor/method/task/trigger declaration (spec
// §3). Body is nil for intrinsic library methods (lang/library) — it is
// only populated for user-written module methods.
type MethodInterface struct {
	LineNo     int
	Name       string
	IsPublic   bool
	Kind       MethodKind
	ReturnType *types.VarType // types.KindNone when the method returns nothing
	Parameters []Param
	Body       *StatementBlock
	Scope      *scope.Scope
}

func (m *MethodInterface) Line() int { return m.LineNo }

func (m *MethodInterface) String() string {
	parts := make([]string, len(m.Parameters))
	for i, p := range m.Parameters {
		parts[i] = fmt.Sprintf("%s: %s", p.Name, p.Type)
	}
	return fmt.Sprintf("%s %s(%s)", m.Kind, m.Name, strings.Join(parts, ", "))
}

// EventDeclaration is a contract's `event Name : T = ...;` (spec §3).
// NumericValue is Custom_base + declaration index within its contract.
type EventDeclaration struct {
	LineNo           int
	Name             string
	NumericValue     int64
	PayloadType      *types.VarType
	DescriptionBytes []byte
}

func (e *EventDeclaration) Line() int { return e.LineNo }

// ---------------------------------------------------------------------------
// Modules
// ---------------------------------------------------------------------------

// ModuleKind distinguishes a Contract from a Script (and, within Script,
// Hidden marks a description script — spec Glossary).
type ModuleKind int

const (
	ModuleContract ModuleKind = iota
	ModuleScript
)

// Module is satisfied by *Contract and *Script.
type Module interface {
	Node
	ModuleName() string
	ModuleKind() ModuleKind
}

// Contract is a persistent on-chain module (spec §3).
type Contract struct {
	LineNo      int
	Name        string
	Scope       *scope.Scope
	Libraries   map[string]*library.LibraryDeclaration // imported, by name
	Globals     []*scope.VarDecl
	Constants   []*scope.ConstDecl
	Constructor *MethodInterface
	Methods     []*MethodInterface // public and private
	Tasks       []*MethodInterface
	Triggers    []*MethodInterface
	Events      []*EventDeclaration
}

func (c *Contract) Line() int             { return c.LineNo }
func (c *Contract) ModuleName() string    { return c.Name }
func (c *Contract) ModuleKind() ModuleKind { return ModuleContract }

// Script is a transient executable module, or (when Hidden) a description
// script whose bytecode is embedded as an event's human-readable rendering
// (spec §3, Glossary).
type Script struct {
	LineNo        int
	Name          string
	Hidden        bool
	Scope         *scope.Scope
	Parameters    []Param
	ReturnType    *types.VarType
	MainBlock     *StatementBlock
	CompiledBytes []byte // filled in by the code generator after lowering
}

func (s *Script) Line() int             { return s.LineNo }
func (s *Script) ModuleName() string    { return s.Name }
func (s *Script) ModuleKind() ModuleKind { return ModuleScript }

// Program is the parse result of one source file: struct declarations
// (processed first per spec §4.5) followed by modules in source order.
type Program struct {
	Structs []*StructDecl
	Modules []Module
}
