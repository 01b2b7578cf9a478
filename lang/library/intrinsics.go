// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package library

import (
	"reflect"
	"unicode"

	"github.com/sfichera/tomb/lang/types"
	"github.com/sfichera/tomb/stdlib/chain"
)

// Build constructs the fixed table of intrinsic libraries a Tomb source
// file may `import` (spec §3 "a lookup of declared libraries by name").
// One Registry backs every VarType these libraries reference, matching the
// registry's primitive interning.
func Build(reg *types.Registry) map[string]*LibraryDeclaration {
	libs := map[string]*LibraryDeclaration{
		"Map":     buildMap(reg),
		"List":    buildList(reg),
		"Set":     buildSet(reg),
		"Call":    buildCall(reg),
		"Runtime": buildRuntime(reg),
		"Crypto":  buildCrypto(reg),
	}
	return libs
}

func buildMap(reg *types.Registry) *LibraryDeclaration {
	str := reg.Primitive(types.KindString)
	num := reg.Primitive(types.KindNumber)
	boolT := reg.Primitive(types.KindBool)
	none := reg.Primitive(types.KindNone)
	key := Param{Name: "key", slot: slotKey}
	val := Param{Name: "value", slot: slotValue}

	l := New("Map")
	l.Add(&MethodInterface{Name: "set", Parameters: []Param{{Name: "name", Type: str}, key, val}, ReturnType: none})
	l.Add(&MethodInterface{Name: "get", Parameters: []Param{{Name: "name", Type: str}, key}, returnSlot: slotValue})
	l.Add(&MethodInterface{Name: "has", Parameters: []Param{{Name: "name", Type: str}, key}, ReturnType: boolT})
	l.Add(&MethodInterface{Name: "delete", Parameters: []Param{{Name: "name", Type: str}, key}, ReturnType: none})
	l.Add(&MethodInterface{Name: "length", Parameters: []Param{{Name: "name", Type: str}}, ReturnType: num})
	return l
}

func buildList(reg *types.Registry) *LibraryDeclaration {
	str := reg.Primitive(types.KindString)
	num := reg.Primitive(types.KindNumber)
	boolT := reg.Primitive(types.KindBool)
	none := reg.Primitive(types.KindNone)
	val := Param{Name: "value", slot: slotValue}

	l := New("List")
	l.Add(&MethodInterface{Name: "push", Parameters: []Param{{Name: "name", Type: str}, val}, ReturnType: none})
	l.Add(&MethodInterface{Name: "pop", Parameters: []Param{{Name: "name", Type: str}}, returnSlot: slotValue})
	l.Add(&MethodInterface{Name: "get", Parameters: []Param{{Name: "name", Type: str}, {Name: "index", Type: num}}, returnSlot: slotValue})
	l.Add(&MethodInterface{Name: "set", Parameters: []Param{{Name: "name", Type: str}, {Name: "index", Type: num}, val}, ReturnType: none})
	l.Add(&MethodInterface{Name: "has", Parameters: []Param{{Name: "name", Type: str}, val}, ReturnType: boolT})
	l.Add(&MethodInterface{Name: "length", Parameters: []Param{{Name: "name", Type: str}}, ReturnType: num})
	return l
}

func buildSet(reg *types.Registry) *LibraryDeclaration {
	str := reg.Primitive(types.KindString)
	num := reg.Primitive(types.KindNumber)
	boolT := reg.Primitive(types.KindBool)
	none := reg.Primitive(types.KindNone)
	val := Param{Name: "value", slot: slotValue}

	l := New("Set")
	l.Add(&MethodInterface{Name: "add", Parameters: []Param{{Name: "name", Type: str}, val}, ReturnType: none})
	l.Add(&MethodInterface{Name: "remove", Parameters: []Param{{Name: "name", Type: str}, val}, ReturnType: none})
	l.Add(&MethodInterface{Name: "has", Parameters: []Param{{Name: "name", Type: str}, val}, ReturnType: boolT})
	l.Add(&MethodInterface{Name: "length", Parameters: []Param{{Name: "name", Type: str}}, ReturnType: num})
	return l
}

// buildCall is the one library with variable argument arity (spec §4.2):
// an external contract call forwards whatever arguments the callee expects.
func buildCall(reg *types.Registry) *LibraryDeclaration {
	addr := reg.Primitive(types.KindAddress)
	str := reg.Primitive(types.KindString)
	any := reg.Primitive(types.KindAny)

	l := New("Call")
	l.Add(&MethodInterface{
		Name:       "invoke",
		Parameters: []Param{{Name: "target", Type: addr}, {Name: "selector", Type: str}},
		ReturnType: any,
		Variadic:   true,
	})
	return l
}

// buildRuntime generates the Runtime library's block/transaction accessors
// by reflecting over stdlib/chain.Block and stdlib/chain.Transaction, so
// the set of Runtime.* methods a contract can call tracks the host
// context's actual fields rather than a hand-copied list.
func buildRuntime(reg *types.Registry) *LibraryDeclaration {
	l := New("Runtime")
	addMethodsFromStruct(l, reg, "block", chain.Block{})
	addMethodsFromStruct(l, reg, "tx", chain.Transaction{})

	addr := reg.Primitive(types.KindAddress)
	l.Add(&MethodInterface{Name: "thisAddress", ReturnType: addr})
	l.Add(&MethodInterface{Name: "sender", ReturnType: addr})
	return l
}

func addMethodsFromStruct(l *LibraryDeclaration, reg *types.Registry, prefix string, sample interface{}) {
	rt := reflect.TypeOf(sample)
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		vt, ok := varTypeForGoType(reg, f.Type)
		if !ok {
			continue
		}
		l.Add(&MethodInterface{Name: prefix + lowerFirst(f.Name), ReturnType: vt})
	}
}

func varTypeForGoType(reg *types.Registry, t reflect.Type) (*types.VarType, bool) {
	switch {
	case t.Kind() == reflect.Uint64:
		return reg.Primitive(types.KindNumber), true
	case t.Kind() == reflect.Array && t.Len() == 32 && t.Elem().Kind() == reflect.Uint8:
		return reg.Primitive(types.KindHash), true
	case t.Kind() == reflect.Array && t.Len() == 20 && t.Elem().Kind() == reflect.Uint8:
		return reg.Primitive(types.KindAddress), true
	default:
		return nil, false
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// buildCrypto wires the compiler's one real cryptographic primitive: a
// Hash-producing method whose literal-argument calls lang/codegen's
// constant folder resolves via stdlib/crypto.Hash instead of emitting a
// runtime CALL.
func buildCrypto(reg *types.Registry) *LibraryDeclaration {
	bytes := reg.Primitive(types.KindBytes)
	hash := reg.Primitive(types.KindHash)

	l := New("Crypto")
	l.Add(&MethodInterface{Name: "hash", Parameters: []Param{{Name: "data", Type: bytes}}, ReturnType: hash})
	return l
}
