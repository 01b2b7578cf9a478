// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package types implements the Tomb type registry: an interner for VarType
// values (spec §3) and the struct declaration table.
package types

import (
	"fmt"
	"strings"
)

// VarKind is the primitive tag of a VarType (spec §3).
type VarKind int

const (
	KindNone VarKind = iota
	KindAny
	KindUnknown
	KindGeneric
	KindNumber
	KindBool
	KindString
	KindBytes
	KindAddress
	KindHash
	KindStruct
	KindStorageMap
	KindStorageList
	KindStorageSet
)

var kindNames = [...]string{
	KindNone: "none", KindAny: "any", KindUnknown: "unknown", KindGeneric: "generic",
	KindNumber: "number", KindBool: "bool", KindString: "string", KindBytes: "bytes",
	KindAddress: "address", KindHash: "hash", KindStruct: "struct",
	KindStorageMap: "storage_map", KindStorageList: "storage_list", KindStorageSet: "storage_set",
}

func (k VarKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// metaKinds never appear as VarType.Kind on a resolved expression; they are
// placeholders used during library patching (KindGeneric) or before
// resolution completes (KindUnknown, KindNone, KindAny).
func (k VarKind) IsMeta() bool {
	return k == KindNone || k == KindAny || k == KindUnknown || k == KindGeneric
}

// VarType is an interned value type: (kind, name?). Equality is by pointer
// identity of the interned value (spec §3) — callers must always obtain a
// VarType through the constructors below, never construct one directly.
type VarType struct {
	kind VarKind
	name string // declared struct name, only set when kind == KindStruct
	decl *StructDeclaration
}

func (t *VarType) Kind() VarKind { return t.kind }
func (t *VarType) Name() string  { return t.name }

// StructDecl returns the backing declaration for a Struct VarType, or nil
// for any other kind.
func (t *VarType) StructDecl() *StructDeclaration { return t.decl }

func (t *VarType) String() string {
	if t.kind == KindStruct {
		return t.name
	}
	return t.kind.String()
}

// Equal compares by identity, per spec §3 ("Equality is by identity of the
// interned value"). Two VarTypes obtained from the same Registry for the
// same (kind, name) pair are always the same pointer.
func (t *VarType) Equal(other *VarType) bool {
	return t == other
}

// StructField is one ordered (name, VarType) pair of a StructDeclaration.
type StructField struct {
	Name string
	Type *VarType
}

// StructDeclaration is a user-declared struct: a name and its ordered field
// list (spec §3).
type StructDeclaration struct {
	Name   string
	Fields []StructField
}

func (s *StructDeclaration) String() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Type)
	}
	return fmt.Sprintf("struct %s { %s }", s.Name, strings.Join(parts, ", "))
}

// Registry is the global interner for VarType values and the lookup table
// of declared structs by name. One Registry belongs to one CompilerContext
// (spec §5/§9: the historical process-wide singleton is replaced by an
// explicit context).
type Registry struct {
	primitives map[VarKind]*VarType
	structs    map[string]*VarType
}

// NewRegistry creates a Registry preloaded with the primitive singletons.
func NewRegistry() *Registry {
	r := &Registry{
		primitives: make(map[VarKind]*VarType),
		structs:    make(map[string]*VarType),
	}
	for _, k := range []VarKind{
		KindNone, KindAny, KindUnknown, KindGeneric, KindNumber, KindBool,
		KindString, KindBytes, KindAddress, KindHash,
		KindStorageMap, KindStorageList, KindStorageSet,
	} {
		r.primitives[k] = &VarType{kind: k}
	}
	return r
}

// Primitive returns the interned VarType for any non-struct kind, meta
// kinds included.
func (r *Registry) Primitive(k VarKind) *VarType {
	t, ok := r.primitives[k]
	if !ok {
		panic(fmt.Sprintf("types: Primitive called with struct kind %s", k))
	}
	return t
}

// DeclareStruct interns a new struct declaration and returns its VarType.
// Redeclaring a name returns the existing VarType (callers that need
// redeclaration-is-an-error semantics must check Lookup first).
func (r *Registry) DeclareStruct(decl *StructDeclaration) *VarType {
	if t, ok := r.structs[decl.Name]; ok {
		return t
	}
	t := &VarType{kind: KindStruct, name: decl.Name, decl: decl}
	r.structs[decl.Name] = t
	return t
}

// LookupStruct returns the interned VarType for a declared struct name.
func (r *Registry) LookupStruct(name string) (*VarType, bool) {
	t, ok := r.structs[name]
	return t, ok
}

// LookupByName resolves a lexer Type-token lexeme or a bare identifier to a
// VarType: built-in kind names take priority, then declared structs.
func (r *Registry) LookupByName(name string) (*VarType, bool) {
	lower := strings.ToLower(name)
	for k, t := range r.primitives {
		if k.String() == lower {
			return t, true
		}
	}
	if t, ok := r.structs[name]; ok {
		return t, true
	}
	return nil, false
}
