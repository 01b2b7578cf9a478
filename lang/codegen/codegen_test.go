// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// These tests drive codegen through lang/parser rather than hand-building
// ast.MethodInterface values: parser.ParseProgram already performs the
// scope/type resolution codegen depends on (VarDecl.Storage, resolved
// ResultTypes), and building that by hand here would just re-implement the
// parser. package codegen_test (not codegen) to avoid the import cycle —
// lang/parser imports lang/codegen.
package codegen_test

import (
	"strings"
	"testing"

	"github.com/sfichera/tomb/lang/ast"
	"github.com/sfichera/tomb/lang/codegen"
	"github.com/sfichera/tomb/lang/parser"
	"github.com/sfichera/tomb/lang/types"
	"github.com/sfichera/tomb/lang/vm"
)

func parseContract(t *testing.T, src string) *ast.Contract {
	t.Helper()
	reg := types.NewRegistry()
	p, err := parser.New("test.tomb", src, reg, 1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prog, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	for _, m := range prog.Modules {
		if c, ok := m.(*ast.Contract); ok {
			return c
		}
	}
	t.Fatal("no contract in program")
	return nil
}

func TestGenerateContractConstructorAndABI(t *testing.T) {
	c := parseContract(t, `contract Hello { constructor(owner: address) { return; } }`)
	compiled, abi, err := codegen.GenerateContract(c)
	if err != nil {
		t.Fatalf("GenerateContract: %v", err)
	}
	if len(compiled) != 1 {
		t.Fatalf("want 1 compiled method, got %d", len(compiled))
	}
	if abi.Contract != "Hello" {
		t.Errorf("abi.Contract: want Hello, got %q", abi.Contract)
	}
	if len(abi.Methods) != 1 || abi.Methods[0].Name != "Initialize" || abi.Methods[0].Kind != "constructor" {
		t.Fatalf("unexpected ABI methods: %+v", abi.Methods)
	}
	if len(abi.Methods[0].Parameters) != 1 || abi.Methods[0].Parameters[0].Type != "address" {
		t.Fatalf("unexpected constructor parameters: %+v", abi.Methods[0].Parameters)
	}
	if len(abi.Events) != 0 {
		t.Errorf("want no events, got %+v", abi.Events)
	}
}

func TestGenerateContractPrivateMethodExcludedFromABI(t *testing.T) {
	c := parseContract(t, `
contract C {
	constructor(owner: address) { return; }
	private helper() { return; }
	public visible() { return; }
}`)
	_, abi, err := codegen.GenerateContract(c)
	if err != nil {
		t.Fatalf("GenerateContract: %v", err)
	}
	var names []string
	for _, m := range abi.Methods {
		names = append(names, m.Name)
	}
	for _, want := range []string{"helper"} {
		for _, got := range names {
			if got == want {
				t.Errorf("private method %q should not appear in ABI, got %v", want, names)
			}
		}
	}
	var sawVisible bool
	for _, n := range names {
		if n == "visible" {
			sawVisible = true
		}
	}
	if !sawVisible {
		t.Errorf("public method visible should appear in ABI, got %v", names)
	}
}

func TestGenerateContractTriggerLoweredButNotInABI(t *testing.T) {
	c := parseContract(t, `
contract C {
	constructor(owner: address) { return; }
	trigger Transfer(from: address, to: address, amount: number) { return; }
}`)
	compiled, abi, err := codegen.GenerateContract(c)
	if err != nil {
		t.Fatalf("GenerateContract: %v", err)
	}
	if len(compiled) != 2 {
		t.Fatalf("want constructor + trigger both lowered, got %d", len(compiled))
	}
	for _, m := range abi.Methods {
		if m.Kind == "trigger" {
			t.Errorf("triggers must not appear in the public ABI, got %+v", m)
		}
	}
}

func TestGenerateContractEventInABI(t *testing.T) {
	c := parseContract(t, `
contract C {
	event Paid: number = "payment received";
	constructor(owner: address) { return; }
}`)
	_, abi, err := codegen.GenerateContract(c)
	if err != nil {
		t.Fatalf("GenerateContract: %v", err)
	}
	if len(abi.Events) != 1 || abi.Events[0].Name != "Paid" || abi.Events[0].NumericValue != 1000 {
		t.Fatalf("unexpected ABI events: %+v", abi.Events)
	}
}

func TestLowerMethodArithmeticAndReturn(t *testing.T) {
	c := parseContract(t, `
contract C {
	constructor(owner: address) { return; }
	public add(a: number, b: number): number {
		local sum: number := a + b;
		return sum;
	}
}`)
	add := c.Methods[0]
	prog, lines, err := codegen.LowerMethod(add)
	if err != nil {
		t.Fatalf("LowerMethod: %v", err)
	}
	if !strings.Contains(strings.Join(lines, "\n"), "ADD") {
		t.Errorf("expected an ADD instruction in emitted lines: %v", lines)
	}
	out := vm.Disassemble(prog)
	if !strings.Contains(out, "RET") {
		t.Errorf("expected a RET instruction in disassembly:\n%s", out)
	}
}

func TestLowerMethodFoldsConstantArithmetic(t *testing.T) {
	c := parseContract(t, `
contract C {
	constructor(owner: address) { return; }
	public f(): number {
		return 2 + 3;
	}
}`)
	_, lines, err := codegen.LowerMethod(c.Methods[0])
	if err != nil {
		t.Fatalf("LowerMethod: %v", err)
	}
	joined := strings.Join(lines, "\n")
	if strings.Contains(joined, "ADD") {
		t.Errorf("constant operands should fold at compile time, not emit ADD: %v", lines)
	}
	if !strings.Contains(joined, "$num:5") {
		t.Errorf("expected the folded literal 5, got: %v", lines)
	}
}

func TestLowerMethodIfElseEmitsBothBranches(t *testing.T) {
	c := parseContract(t, `
contract C {
	constructor(owner: address) { return; }
	public f(n: number): number {
		if (n == 0) {
			return 1;
		} else {
			return 2;
		}
	}
}`)
	_, lines, err := codegen.LowerMethod(c.Methods[0])
	if err != nil {
		t.Fatalf("LowerMethod: %v", err)
	}
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"JMPIFNOT", "JMP", "LABEL", "$num:1", "$num:2"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in emitted lines: %v", want, lines)
		}
	}
}

func TestLowerMethodGlobalLoadStore(t *testing.T) {
	c := parseContract(t, `
contract C {
	global counter: number;
	constructor(owner: address) { return; }
	public bump() {
		counter := counter + 1;
	}
}`)
	_, lines, err := codegen.LowerMethod(c.Methods[0])
	if err != nil {
		t.Fatalf("LowerMethod: %v", err)
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "LOAD_GLOBAL") || !strings.Contains(joined, "STORE_GLOBAL") {
		t.Errorf("expected LOAD_GLOBAL and STORE_GLOBAL, got: %v", lines)
	}
}

func TestLowerMethodThrow(t *testing.T) {
	c := parseContract(t, `
contract C {
	constructor(owner: address) { return; }
	public f() {
		throw "nope";
	}
}`)
	_, lines, err := codegen.LowerMethod(c.Methods[0])
	if err != nil {
		t.Fatalf("LowerMethod: %v", err)
	}
	if !strings.Contains(strings.Join(lines, "\n"), "THROW nope") {
		t.Errorf("expected a THROW instruction, got: %v", lines)
	}
}

func TestLowerMethodEmit(t *testing.T) {
	c := parseContract(t, `
contract C {
	event Paid: number = "payment received";
	constructor(owner: address) { return; }
	public pay(who: address) {
		emit Paid(who, 1);
	}
}`)
	pay := c.Methods[0]
	_, lines, err := codegen.LowerMethod(pay)
	if err != nil {
		t.Fatalf("LowerMethod: %v", err)
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "EMIT 1000") {
		t.Errorf("expected EMIT 1000 (Custom_base + 0), got: %v", lines)
	}
}

func TestLowerMethodCollectionCallPushesImplicitReceiverName(t *testing.T) {
	c := parseContract(t, `
contract C {
	global balances: storage_map<address, number>;
	constructor(owner: address) { return; }
	public credit(who: address, amt: number) {
		balances.set(who, amt);
	}
}`)
	credit := c.Methods[0]
	_, lines, err := codegen.LowerMethod(credit)
	if err != nil {
		t.Fatalf("LowerMethod: %v", err)
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "$str:balances") {
		t.Errorf("expected the implicit receiver name to be pushed as a string literal, got: %v", lines)
	}
	if !strings.Contains(joined, "CALL Map.set") {
		t.Errorf("expected CALL Map.set, got: %v", lines)
	}
}

func TestLowerMethodRegisterPoolDrainsCompletely(t *testing.T) {
	c := parseContract(t, `
contract C {
	constructor(owner: address) { return; }
	public f(n: number): number {
		local a: number := n + 1;
		local b: number := a * 2;
		while (b > 0) {
			b := b - 1;
		}
		return b;
	}
}`)
	// LowerMethod itself calls Pool.Verify before returning; a leaked
	// register surfaces as an error here rather than needing a second
	// assertion against internal Generator state.
	if _, _, err := codegen.LowerMethod(c.Methods[0]); err != nil {
		t.Fatalf("LowerMethod should fully drain its register pool: %v", err)
	}
}
