// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package library implements the Tomb compiler's intrinsic-library model
// (spec §3 LibraryDeclaration/MethodInterface, §4.2 "Generic-library
// patching"): a named collection of VM-level methods, and the mechanism
// that specializes a generic collection library (Map/List/Set) to a
// specific variable's key/value types.
package library

import "github.com/sfichera/tomb/lang/types"

// genericSlot identifies which half of a collection's (key, value) pair a
// Generic-typed parameter or return stands in for. The empty slot means
// "not generic" — Type is already concrete.
type genericSlot int

const (
	slotNone genericSlot = iota
	slotKey
	slotValue
)

// Param is one declared parameter of a MethodInterface.
type Param struct {
	Name   string
	Type   *types.VarType
	slot   genericSlot
}

// MethodInterface is one intrinsic method a LibraryDeclaration exposes
// (spec §3). Variadic is set only for the Call library, whose argument
// arity spec §4.2 leaves unconstrained; every other library enforces its
// declared parameter list exactly.
type MethodInterface struct {
	Name        string
	Parameters  []Param
	ReturnType  *types.VarType
	returnSlot  genericSlot
	Variadic    bool
}

// LibraryDeclaration aggregates a name and its method set (spec §3),
// preserving declaration order for deterministic iteration (ABI rendering,
// diagnostics).
type LibraryDeclaration struct {
	Name        string
	methodOrder []string
	methods     map[string]*MethodInterface
}

// New creates an empty library declaration. Intrinsics are built once per
// parser (lang/parser.New calls lang/library's Build, intrinsics.go); user code never
// constructs one directly.
func New(name string) *LibraryDeclaration {
	return &LibraryDeclaration{Name: name, methods: make(map[string]*MethodInterface)}
}

// LibraryName implements lang/scope.Library, letting a module root scope
// hold library bindings without scope importing this package.
func (l *LibraryDeclaration) LibraryName() string { return l.Name }

// Add registers a method. Panics on a duplicate name — a builder bug, not
// a compile-time condition (the intrinsic tables below are fixed at
// program startup).
func (l *LibraryDeclaration) Add(m *MethodInterface) {
	if _, exists := l.methods[m.Name]; exists {
		panic("library: duplicate method " + l.Name + "." + m.Name)
	}
	l.methodOrder = append(l.methodOrder, m.Name)
	l.methods[m.Name] = m
}

// Lookup resolves a method by name.
func (l *LibraryDeclaration) Lookup(name string) (*MethodInterface, bool) {
	m, ok := l.methods[name]
	return m, ok
}

// Methods returns the library's methods in declaration order.
func (l *LibraryDeclaration) Methods() []*MethodInterface {
	out := make([]*MethodInterface, len(l.methodOrder))
	for i, n := range l.methodOrder {
		out[i] = l.methods[n]
	}
	return out
}

// patch returns a library with every Generic-slotted parameter/return type
// resolved against (key, value), leaving the original base untouched
// (spec §3: "a derived LibraryDeclaration ... original library unchanged").
func patch(base *LibraryDeclaration, key, value *types.VarType) *LibraryDeclaration {
	resolve := func(slot genericSlot, t *types.VarType) *types.VarType {
		switch slot {
		case slotKey:
			return key
		case slotValue:
			return value
		default:
			return t
		}
	}
	out := New(base.Name)
	for _, name := range base.methodOrder {
		m := base.methods[name]
		params := make([]Param, len(m.Parameters))
		for i, p := range m.Parameters {
			params[i] = Param{Name: p.Name, Type: resolve(p.slot, p.Type)}
		}
		out.Add(&MethodInterface{
			Name:       m.Name,
			Parameters: params,
			ReturnType: resolve(m.returnSlot, m.ReturnType),
			Variadic:   m.Variadic,
		})
	}
	return out
}

// PatchMap specializes the Map intrinsic to a variable's declared key and
// value types (spec §4.2).
func PatchMap(base *LibraryDeclaration, key, value *types.VarType) *LibraryDeclaration {
	return patch(base, key, value)
}

// PatchList specializes the List intrinsic to a variable's declared value
// type.
func PatchList(base *LibraryDeclaration, value *types.VarType) *LibraryDeclaration {
	return patch(base, nil, value)
}

// PatchSet specializes the Set intrinsic to a variable's declared value
// type.
func PatchSet(base *LibraryDeclaration, value *types.VarType) *LibraryDeclaration {
	return patch(base, nil, value)
}
