// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package codegen

import (
	"github.com/sfichera/tomb/lang/ast"
	"github.com/sfichera/tomb/lang/vm"
)

// ABIParam is one parameter's (name, type) pair as rendered for external
// callers (spec §6 "a table of public method names, their call
// signatures").
type ABIParam struct {
	Name string
	Type string
}

// ABIMethod describes one publicly callable constructor/method/task.
// Private methods and triggers are omitted — triggers are invoked by the
// host runtime, never called directly (spec §4.3).
type ABIMethod struct {
	Name       string
	Kind       string
	Parameters []ABIParam
	ReturnType string
	// Offset is the method's entry point within the contract's combined
	// bytecode blob (spec §6 "offset"). GenerateContract leaves it zero —
	// each CompiledMethod's Program is independent until something
	// concatenates them; the compiler package fills this in once it knows
	// the final layout.
	Offset int
}

// ABIEvent describes one contract event's wire shape.
type ABIEvent struct {
	Name         string
	NumericValue int64
	PayloadType  string
}

// ABI is the full external interface of one compiled contract.
type ABI struct {
	Contract string
	Methods  []ABIMethod
	Events   []ABIEvent
}

// CompiledMethod pairs a lowered MethodInterface with its assembled
// program, for whatever drives lang/codegen (the compiler package, or
// cmd/tombc's -emit bytecode stage) to inspect or serialize.
type CompiledMethod struct {
	Method  *ast.MethodInterface
	Program *vm.Program
	Lines   []string
}

// GenerateContract lowers every constructor/method/task/trigger of c and
// builds its ABI. Triggers are lowered (the host runtime still needs their
// bytecode) but excluded from the public ABI.
func GenerateContract(c *ast.Contract) ([]CompiledMethod, *ABI, error) {
	var compiled []CompiledMethod
	abi := &ABI{Contract: c.Name}

	lower := func(m *ast.MethodInterface) error {
		prog, lines, err := LowerMethod(m)
		if err != nil {
			return err
		}
		compiled = append(compiled, CompiledMethod{Method: m, Program: prog, Lines: lines})
		return nil
	}

	if c.Constructor != nil {
		if err := lower(c.Constructor); err != nil {
			return nil, nil, err
		}
		abi.Methods = append(abi.Methods, methodABI(c.Constructor))
	}
	for _, m := range c.Methods {
		if err := lower(m); err != nil {
			return nil, nil, err
		}
		if m.IsPublic {
			abi.Methods = append(abi.Methods, methodABI(m))
		}
	}
	for _, t := range c.Tasks {
		if err := lower(t); err != nil {
			return nil, nil, err
		}
		abi.Methods = append(abi.Methods, methodABI(t))
	}
	for _, tr := range c.Triggers {
		if err := lower(tr); err != nil {
			return nil, nil, err
		}
	}
	for _, ev := range c.Events {
		abi.Events = append(abi.Events, ABIEvent{
			Name:         ev.Name,
			NumericValue: ev.NumericValue,
			PayloadType:  ev.PayloadType.String(),
		})
	}
	return compiled, abi, nil
}

func methodABI(m *ast.MethodInterface) ABIMethod {
	out := ABIMethod{Name: m.Name, Kind: m.Kind.String(), ReturnType: m.ReturnType.String()}
	for _, p := range m.Parameters {
		out.Parameters = append(out.Parameters, ABIParam{Name: p.Name, Type: p.Type.String()})
	}
	return out
}
