// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package scope implements the Tomb compiler's lexical frame model: scope
// chains, variable/constant/library bindings, and identifier resolution
// order (spec §3, §4.2).
package scope

import "github.com/sfichera/tomb/lang/types"

// Storage classifies where a VarDecl's value lives at runtime.
type Storage int

const (
	Local Storage = iota
	Global
	Argument
)

func (s Storage) String() string {
	switch s {
	case Local:
		return "local"
	case Global:
		return "global"
	case Argument:
		return "argument"
	default:
		return "storage(?)"
	}
}

// Library is satisfied by lang/library.LibraryDeclaration. Defined here
// (rather than importing lang/library) so that a module's root scope can
// hold library bindings without scope depending on library.
type Library interface {
	LibraryName() string
}

// VarDecl is a variable binding (spec §3): { scope-ref, name, type, storage }.
// MapDecl/ListDecl/SetDecl below embed VarDecl to add their key/value types.
type VarDecl struct {
	Scope   *Scope
	Name    string
	Type    *types.VarType
	Storage Storage
}

// MapDecl is a VarDecl of kind Storage_Map, carrying its key and value
// types (spec §3 "MapDeclaration { key_type, value_type }").
type MapDecl struct {
	VarDecl
	KeyType   *types.VarType
	ValueType *types.VarType
}

// ListDecl is a VarDecl of kind Storage_List.
type ListDecl struct {
	VarDecl
	ValueType *types.VarType
}

// SetDecl is a VarDecl of kind Storage_Set.
type SetDecl struct {
	VarDecl
	ValueType *types.VarType
}

// ConstDecl is a named compile-time constant (spec §3). LiteralValue holds
// the already-parsed Go value of the literal (int64 for Number, string for
// String, []byte of the raw lexeme for Bytes/Address/Hash, bool for Bool) — constants carry no expression
// tree of their own, since spec's grammar requires `const x: T = literal;`.
type ConstDecl struct {
	Name         string
	Type         *types.VarType
	LiteralValue interface{}
}

// Scope is a lexical frame (spec §3): a reference to its parent (nil at
// module root), an owning method name, its parameter list, and insertion-
// ordered variable/constant tables. The root scope of a module additionally
// holds the library bindings.
type Scope struct {
	Parent     *Scope
	MethodName string
	Params     []string

	varNames []string // insertion order
	vars     map[string]*VarDecl

	constNames []string
	consts     map[string]*ConstDecl

	libraries map[string]Library // non-nil only on a root scope
}

// New creates a child scope of parent. Pass a nil parent to create a
// module's root scope.
func New(parent *Scope, methodName string) *Scope {
	s := &Scope{
		Parent:     parent,
		MethodName: methodName,
		vars:       make(map[string]*VarDecl),
		consts:     make(map[string]*ConstDecl),
	}
	if parent == nil {
		s.libraries = make(map[string]Library)
	}
	return s
}

// IsRoot reports whether this is a module's root scope.
func (s *Scope) IsRoot() bool { return s.Parent == nil }

// root walks up to the module root scope, where library bindings live.
func (s *Scope) root() *Scope {
	cur := s
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// Declare adds a variable to this scope. Declaring over an existing name in
// the very same scope is the caller's responsibility to reject (a ShapeError
// at the call site) — Declare itself does not check for redeclaration so
// that shadowing across nested scopes (spec: "A scope destruction implies
// all inner VarDecls are dead") is unaffected.
func (s *Scope) Declare(v *VarDecl) {
	v.Scope = s
	if _, exists := s.vars[v.Name]; !exists {
		s.varNames = append(s.varNames, v.Name)
	}
	s.vars[v.Name] = v
}

// DeclareConst adds a constant to this scope.
func (s *Scope) DeclareConst(c *ConstDecl) {
	if _, exists := s.consts[c.Name]; !exists {
		s.constNames = append(s.constNames, c.Name)
	}
	s.consts[c.Name] = c
}

// DeclareLibrary binds a library name at the module root. Called on a
// non-root scope, it walks up to the root and binds there; it never panics.
func (s *Scope) DeclareLibrary(name string, lib Library) {
	root := s.root()
	root.libraries[name] = lib
}

// FindVariable walks outward from s until a binding named name is found or
// the chain is exhausted (spec §3: "find_variable walks outward until root,
// or until told not to"). stopAtMethodBoundary, when true, refuses to cross
// from a method's scope into its enclosing module root — used by the
// resolver when a reference must be local to the current method.
func (s *Scope) FindVariable(name string, stopAtMethodBoundary bool) (*VarDecl, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
		if stopAtMethodBoundary && cur.Parent != nil && cur.Parent.IsRoot() {
			break
		}
	}
	return nil, false
}

// FindConst walks outward exactly like FindVariable, but over constants.
func (s *Scope) FindConst(name string) (*ConstDecl, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if c, ok := cur.consts[name]; ok {
			return c, true
		}
	}
	return nil, false
}

// FindLibrary looks up a library binding at the module root.
func (s *Scope) FindLibrary(name string) (Library, bool) {
	lib, ok := s.root().libraries[name]
	return lib, ok
}

// Variables returns the scope's own (non-inherited) variable bindings in
// declaration order.
func (s *Scope) Variables() []*VarDecl {
	out := make([]*VarDecl, len(s.varNames))
	for i, n := range s.varNames {
		out[i] = s.vars[n]
	}
	return out
}
