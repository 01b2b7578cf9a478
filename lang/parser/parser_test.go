// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package parser

import (
	"testing"

	"github.com/sfichera/tomb/diagnostics"
	"github.com/sfichera/tomb/lang/ast"
	"github.com/sfichera/tomb/lang/types"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	reg := types.NewRegistry()
	p, err := New("test.tomb", src, reg, 1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prog, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	return prog
}

func parseErr(t *testing.T, src string) *diagnostics.Error {
	t.Helper()
	reg := types.NewRegistry()
	p, err := New("test.tomb", src, reg, 1000)
	if err != nil {
		e, ok := err.(*diagnostics.Error)
		if !ok {
			t.Fatalf("New error is not *diagnostics.Error: %v", err)
		}
		return e
	}
	_, err = p.ParseProgram()
	if err == nil {
		t.Fatal("expected a parse error, got nil")
	}
	e, ok := err.(*diagnostics.Error)
	if !ok {
		t.Fatalf("error is not *diagnostics.Error: %v", err)
	}
	return e
}

func firstContract(t *testing.T, prog *ast.Program) *ast.Contract {
	t.Helper()
	for _, m := range prog.Modules {
		if c, ok := m.(*ast.Contract); ok {
			return c
		}
	}
	t.Fatal("no contract in program")
	return nil
}

func firstScript(t *testing.T, prog *ast.Program) *ast.Script {
	t.Helper()
	for _, m := range prog.Modules {
		if s, ok := m.(*ast.Script); ok {
			return s
		}
	}
	t.Fatal("no script in program")
	return nil
}

func TestParseMinimalContract(t *testing.T) {
	prog := mustParse(t, `contract Hello { constructor(owner: address) { return; } }`)
	c := firstContract(t, prog)
	if c.Name != "Hello" {
		t.Errorf("contract name: want Hello, got %q", c.Name)
	}
	if c.Constructor == nil {
		t.Fatal("expected a constructor")
	}
	if c.Constructor.Name != "Initialize" {
		t.Errorf("constructor name: want Initialize, got %q", c.Constructor.Name)
	}
	if c.Constructor.Kind != ast.KindConstructor {
		t.Errorf("constructor kind: want KindConstructor, got %v", c.Constructor.Kind)
	}
	if !c.Constructor.IsPublic {
		t.Error("constructor should be public")
	}
	if len(c.Constructor.Parameters) != 1 || c.Constructor.Parameters[0].Type.Kind() != types.KindAddress {
		t.Fatalf("constructor should declare exactly one address parameter, got %+v", c.Constructor.Parameters)
	}
}

func TestParseConstructorRejectsWrongArity(t *testing.T) {
	e := parseErr(t, `contract C { constructor() { return; } }`)
	if e.Category != diagnostics.ShapeError {
		t.Errorf("category: want ShapeError, got %v", e.Category)
	}
}

func TestParseConstructorRejectsWrongType(t *testing.T) {
	e := parseErr(t, `contract C { constructor(x: number) { return; } }`)
	if e.Category != diagnostics.ShapeError {
		t.Errorf("category: want ShapeError, got %v", e.Category)
	}
}

func TestParsePublicMethodWithReturn(t *testing.T) {
	prog := mustParse(t, `
contract C {
	constructor(owner: address) { return; }
	public add(a: number, b: number): number {
		local sum: number := a + b;
		return sum;
	}
}`)
	c := firstContract(t, prog)
	if len(c.Methods) != 1 {
		t.Fatalf("want 1 method, got %d", len(c.Methods))
	}
	m := c.Methods[0]
	if m.Name != "add" || !m.IsPublic || m.Kind != ast.KindMethod {
		t.Fatalf("unexpected method shape: %+v", m)
	}
	if m.ReturnType.Kind() != types.KindNumber {
		t.Errorf("return type: want Number, got %s", m.ReturnType)
	}
	if len(m.Body.Stmts) != 2 {
		t.Fatalf("want 2 statements, got %d", len(m.Body.Stmts))
	}
	ret, ok := m.Body.Stmts[1].(*ast.ReturnStmt)
	if !ok {
		t.Fatalf("second statement is %T, want *ast.ReturnStmt", m.Body.Stmts[1])
	}
	if ret.Value == nil {
		t.Fatal("expected a return value")
	}
}

func TestParsePrivateMethodNoReturn(t *testing.T) {
	prog := mustParse(t, `
contract C {
	constructor(owner: address) { return; }
	private noop() { return; }
}`)
	c := firstContract(t, prog)
	if len(c.Methods) != 1 || c.Methods[0].IsPublic {
		t.Fatalf("expected one private method, got %+v", c.Methods)
	}
}

func TestParseGlobalsAndAssignment(t *testing.T) {
	prog := mustParse(t, `
contract C {
	global counter: number;
	constructor(owner: address) { return; }
	public bump() {
		counter := counter + 1;
	}
}`)
	c := firstContract(t, prog)
	if len(c.Globals) != 1 || c.Globals[0].Name != "counter" {
		t.Fatalf("unexpected globals: %+v", c.Globals)
	}
	if c.Globals[0].Type.Kind() != types.KindNumber {
		t.Errorf("global type: want Number, got %s", c.Globals[0].Type)
	}
}

func TestParseCompoundAssignExpandsToBinary(t *testing.T) {
	prog := mustParse(t, `
contract C {
	global counter: number;
	constructor(owner: address) { return; }
	public bump() {
		counter += 1;
	}
}`)
	c := firstContract(t, prog)
	bump := c.Methods[0]
	assign, ok := bump.Body.Stmts[0].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("want *ast.AssignStmt, got %T", bump.Body.Stmts[0])
	}
	bin, ok := assign.Value.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("compound assign should expand to a BinaryExpr, got %T", assign.Value)
	}
	if bin.Op != "+" {
		t.Errorf("binary op: want +, got %q", bin.Op)
	}
}

func TestParseStorageMapGlobalAndMethodCall(t *testing.T) {
	prog := mustParse(t, `
contract C {
	global balances: storage_map<address, number>;
	constructor(owner: address) { return; }
	public credit(who: address, amt: number) {
		balances.set(who, amt);
	}
}`)
	c := firstContract(t, prog)
	if len(c.Globals) != 1 {
		t.Fatalf("want 1 global, got %d", len(c.Globals))
	}
	if c.Globals[0].Type.Kind() != types.KindStorageMap {
		t.Fatalf("global kind: want StorageMap, got %s", c.Globals[0].Type)
	}
	credit := c.Methods[0]
	stmt, ok := credit.Body.Stmts[0].(*ast.MethodCallStmt)
	if !ok {
		t.Fatalf("want *ast.MethodCallStmt, got %T", credit.Body.Stmts[0])
	}
	if stmt.Call.Library.Name != "Map" {
		t.Errorf("patched library name: want Map, got %q", stmt.Call.Library.Name)
	}
	if stmt.Call.Receiver == nil || stmt.Call.Receiver.Name != "balances" {
		t.Fatalf("expected receiver balances, got %+v", stmt.Call.Receiver)
	}
	// The implicit receiver-name argument is not part of Args.
	if len(stmt.Call.Args) != 2 {
		t.Fatalf("want 2 explicit args (who, amt), got %d", len(stmt.Call.Args))
	}
}

func TestParseStorageListGeneric(t *testing.T) {
	prog := mustParse(t, `
contract C {
	global queue: storage_list<number>;
	constructor(owner: address) { return; }
	public enqueue(v: number) {
		queue.push(v);
	}
}`)
	c := firstContract(t, prog)
	if c.Globals[0].Type.Kind() != types.KindStorageList {
		t.Fatalf("global kind: want StorageList, got %s", c.Globals[0].Type)
	}
	stmt := c.Methods[0].Body.Stmts[0].(*ast.MethodCallStmt)
	if stmt.Call.Library.Name != "List" {
		t.Errorf("patched library name: want List, got %q", stmt.Call.Library.Name)
	}
}

func TestParseNonGenericDotIsShapeError(t *testing.T) {
	e := parseErr(t, `
contract C {
	global x: number;
	constructor(owner: address) { return; }
	public f() {
		x.set(1);
	}
}`)
	if e.Category != diagnostics.ShapeError {
		t.Errorf("category: want ShapeError, got %v", e.Category)
	}
}

func TestParseIfConditionMustBeBool(t *testing.T) {
	e := parseErr(t, `
contract C {
	constructor(owner: address) { return; }
	public f() {
		if (1) { return; }
	}
}`)
	if e.Category != diagnostics.TypeError {
		t.Errorf("category: want TypeError, got %v", e.Category)
	}
}

func TestParseIfWhileDoWhile(t *testing.T) {
	prog := mustParse(t, `
contract C {
	constructor(owner: address) { return; }
	public f() {
		local n: number := 0;
		if (n == 0) {
			n := n + 1;
		} else {
			n := n - 1;
		}
		while (n < 10) {
			n := n + 1;
		}
		do {
			n := n - 1;
		} while (n > 0);
		return;
	}
}`)
	c := firstContract(t, prog)
	body := c.Methods[0].Body.Stmts
	if len(body) != 5 {
		t.Fatalf("want 5 statements, got %d", len(body))
	}
	if _, ok := body[1].(*ast.IfStmt); !ok {
		t.Errorf("stmt 1 is %T, want *ast.IfStmt", body[1])
	}
	if _, ok := body[2].(*ast.WhileStmt); !ok {
		t.Errorf("stmt 2 is %T, want *ast.WhileStmt", body[2])
	}
	if _, ok := body[3].(*ast.DoWhileStmt); !ok {
		t.Errorf("stmt 3 is %T, want *ast.DoWhileStmt", body[3])
	}
}

func TestParseNotEqualLowersToNegationOfEqual(t *testing.T) {
	prog := mustParse(t, `
contract C {
	constructor(owner: address) { return; }
	public f() {
		if (1 != 2) { return; }
	}
}`)
	c := firstContract(t, prog)
	ifs := c.Methods[0].Body.Stmts[0].(*ast.IfStmt)
	neg, ok := ifs.Cond.(*ast.NegationExpr)
	if !ok {
		t.Fatalf("!= should lower to NegationExpr, got %T", ifs.Cond)
	}
	bin, ok := neg.Inner.(*ast.BinaryExpr)
	if !ok || bin.Op != "==" {
		t.Fatalf("negation should wrap ==, got %#v", neg.Inner)
	}
}

func TestParseBinaryTypeMismatchIsTypeError(t *testing.T) {
	e := parseErr(t, `
contract C {
	constructor(owner: address) { return; }
	public f() {
		local n: number := 1 + true;
	}
}`)
	if e.Category != diagnostics.TypeError {
		t.Errorf("category: want TypeError, got %v", e.Category)
	}
}

func TestParseStringPlusAnyCoercion(t *testing.T) {
	prog := mustParse(t, `
contract C {
	constructor(owner: address) { return; }
	public f() {
		local s: string := "n=" + 1;
	}
}`)
	c := firstContract(t, prog)
	decl := c.Methods[0].Body.Stmts[0].(*ast.LocalDeclStmt)
	bin := decl.Init.(*ast.BinaryExpr)
	cast, ok := bin.Right.(*ast.CastExpr)
	if !ok {
		t.Fatalf("right side of String+Number should be a CastExpr, got %T", bin.Right)
	}
	if cast.To.Kind() != types.KindString {
		t.Errorf("cast target: want String, got %s", cast.To)
	}
}

func TestParseTaskAndTrigger(t *testing.T) {
	prog := mustParse(t, `
contract C {
	constructor(owner: address) { return; }
	task sweep() { return; }
	trigger Transfer(from: address, to: address, amount: number) { return; }
}`)
	c := firstContract(t, prog)
	if len(c.Tasks) != 1 || c.Tasks[0].Kind != ast.KindTask {
		t.Fatalf("unexpected tasks: %+v", c.Tasks)
	}
	if len(c.Triggers) != 1 || c.Triggers[0].Kind != ast.KindTrigger {
		t.Fatalf("unexpected triggers: %+v", c.Triggers)
	}
	if c.Triggers[0].Name != "onTransfer" {
		t.Errorf("trigger name should be normalized with on-prefix, got %q", c.Triggers[0].Name)
	}
}

func TestParseTriggerInvalidNameIsResolutionError(t *testing.T) {
	e := parseErr(t, `
contract C {
	constructor(owner: address) { return; }
	trigger NotARealTrigger() { return; }
}`)
	if e.Category != diagnostics.ResolutionError {
		t.Errorf("category: want ResolutionError, got %v", e.Category)
	}
}

func TestParseEventWithInlineStringDescription(t *testing.T) {
	prog := mustParse(t, `
contract C {
	event Paid: number = "payment received";
	constructor(owner: address) { return; }
	public pay(who: address) {
		emit Paid(who, 1);
	}
}`)
	c := firstContract(t, prog)
	if len(c.Events) != 1 {
		t.Fatalf("want 1 event, got %d", len(c.Events))
	}
	ev := c.Events[0]
	if ev.Name != "Paid" {
		t.Errorf("event name: want Paid, got %q", ev.Name)
	}
	if ev.NumericValue != 1000 {
		t.Errorf("numeric value: want Custom_base (1000), got %d", ev.NumericValue)
	}
	if ev.PayloadType.Kind() != types.KindNumber {
		t.Errorf("payload type: want Number, got %s", ev.PayloadType)
	}
	if len(ev.DescriptionBytes) == 0 {
		t.Error("expected compiled description bytecode")
	}

	emitStmt := c.Methods[0].Body.Stmts[0].(*ast.EmitStmt)
	if emitStmt.Event != ev {
		t.Error("emit statement should reference the contract's event declaration")
	}
}

func TestParseEventNumericValuesIncrementWithinContract(t *testing.T) {
	prog := mustParse(t, `
contract C {
	event First: number = "one";
	event Second: number = "two";
	constructor(owner: address) { return; }
}`)
	c := firstContract(t, prog)
	if c.Events[0].NumericValue != 1000 || c.Events[1].NumericValue != 1001 {
		t.Fatalf("want sequential numeric values from Custom_base, got %d, %d", c.Events[0].NumericValue, c.Events[1].NumericValue)
	}
}

func TestParseDescriptionScriptEmbedsBytecodeInEvent(t *testing.T) {
	prog := mustParse(t, `
description Welcome {
	code() : string {
		return "hello";
	}
}
contract C {
	event Joined: string = Welcome;
	constructor(owner: address) { return; }
}`)
	desc := firstScript(t, prog)
	if !desc.Hidden {
		t.Error("description module should be marked Hidden")
	}
	if len(desc.CompiledBytes) == 0 {
		t.Fatal("description script should be compiled eagerly")
	}
	c := firstContract(t, prog)
	if len(c.Events[0].DescriptionBytes) == 0 {
		t.Fatal("event should embed the description script's compiled bytes")
	}
	var a, b byte
	if len(c.Events[0].DescriptionBytes) > 0 {
		a = c.Events[0].DescriptionBytes[0]
	}
	if len(desc.CompiledBytes) > 0 {
		b = desc.CompiledBytes[0]
	}
	if len(c.Events[0].DescriptionBytes) != len(desc.CompiledBytes) || a != b {
		t.Error("event description bytes should equal the description script's compiled bytes")
	}
}

func TestParseEmitOutsideContractIsShapeError(t *testing.T) {
	e := parseErr(t, `
script S {
	code() {
		emit Nope(1, 2);
	}
}`)
	if e.Category != diagnostics.ShapeError {
		t.Errorf("category: want ShapeError, got %v", e.Category)
	}
}

func TestParseEmitUnknownEventIsResolutionError(t *testing.T) {
	e := parseErr(t, `
contract C {
	constructor(owner: address) { return; }
	public f(who: address) {
		emit Nope(who, 1);
	}
}`)
	if e.Category != diagnostics.ResolutionError {
		t.Errorf("category: want ResolutionError, got %v", e.Category)
	}
}

func TestParseEmitPayloadTypeMismatchIsTypeError(t *testing.T) {
	e := parseErr(t, `
contract C {
	event Paid: number = "payment received";
	constructor(owner: address) { return; }
	public pay(who: address) {
		emit Paid(who, "oops");
	}
}`)
	if e.Category != diagnostics.TypeError {
		t.Errorf("category: want TypeError, got %v", e.Category)
	}
}

func TestParseAsmBlock(t *testing.T) {
	prog := mustParse(t, `
contract C {
	constructor(owner: address) { return; }
	public raw() {
		asm {
			LOAD r1 $num:1
			RET
		}
	}
}`)
	c := firstContract(t, prog)
	asmStmt, ok := c.Methods[0].Body.Stmts[0].(*ast.AsmBlockStmt)
	if !ok {
		t.Fatalf("want *ast.AsmBlockStmt, got %T", c.Methods[0].Body.Stmts[0])
	}
	if len(asmStmt.Lines) != 2 {
		t.Fatalf("want 2 asm lines, got %d: %v", len(asmStmt.Lines), asmStmt.Lines)
	}
	if asmStmt.Lines[0] != "LOAD r1 $num:1" || asmStmt.Lines[1] != "RET" {
		t.Errorf("unexpected asm lines: %v", asmStmt.Lines)
	}
}

func TestParseThrow(t *testing.T) {
	prog := mustParse(t, `
contract C {
	constructor(owner: address) { return; }
	public f() {
		throw "nope";
	}
}`)
	c := firstContract(t, prog)
	th, ok := c.Methods[0].Body.Stmts[0].(*ast.ThrowStmt)
	if !ok {
		t.Fatalf("want *ast.ThrowStmt, got %T", c.Methods[0].Body.Stmts[0])
	}
	if th.Message != "nope" {
		t.Errorf("throw message: want nope, got %q", th.Message)
	}
}

func TestParseMacroExpandsToRuntimeCall(t *testing.T) {
	prog := mustParse(t, `
contract C {
	constructor(owner: address) { return; }
	public f() {
		local a: address := $SENDER;
	}
}`)
	c := firstContract(t, prog)
	decl := c.Methods[0].Body.Stmts[0].(*ast.LocalDeclStmt)
	macro, ok := decl.Init.(*ast.MacroExpr)
	if !ok {
		t.Fatalf("want *ast.MacroExpr, got %T", decl.Init)
	}
	method, ok := macro.Expanded.(*ast.MethodExpr)
	if !ok {
		t.Fatalf("expanded macro should be a MethodExpr, got %T", macro.Expanded)
	}
	if method.Library.Name != "Runtime" || method.Method.Name != "sender" {
		t.Errorf("want Runtime.sender, got %s.%s", method.Library.Name, method.Method.Name)
	}
}

func TestParseUnknownMacroIsResolutionError(t *testing.T) {
	e := parseErr(t, `
contract C {
	constructor(owner: address) { return; }
	public f() {
		local a: address := $NOT_A_MACRO;
	}
}`)
	if e.Category != diagnostics.ResolutionError {
		t.Errorf("category: want ResolutionError, got %v", e.Category)
	}
}

func TestParseConstAndLibraryImport(t *testing.T) {
	prog := mustParse(t, `
contract C {
	const Fee: number = 5;
	import Crypto;
	constructor(owner: address) { return; }
	public hashIt(data: bytes): hash {
		return Crypto.hash(data);
	}
}`)
	c := firstContract(t, prog)
	if len(c.Constants) != 1 || c.Constants[0].Name != "Fee" {
		t.Fatalf("unexpected constants: %+v", c.Constants)
	}
	ret := c.Methods[0].Body.Stmts[0].(*ast.ReturnStmt)
	call, ok := ret.Value.(*ast.MethodExpr)
	if !ok {
		t.Fatalf("want *ast.MethodExpr, got %T", ret.Value)
	}
	if call.Library.Name != "Crypto" || call.Method.Name != "hash" {
		t.Errorf("want Crypto.hash, got %s.%s", call.Library.Name, call.Method.Name)
	}
}

func TestParseScriptWithParametersAndReturn(t *testing.T) {
	prog := mustParse(t, `
script Sum {
	code(a: number, b: number) : number {
		return a + b;
	}
}`)
	s := firstScript(t, prog)
	if s.Hidden {
		t.Error("plain script should not be Hidden")
	}
	if len(s.Parameters) != 2 {
		t.Fatalf("want 2 parameters, got %d", len(s.Parameters))
	}
	if s.ReturnType.Kind() != types.KindNumber {
		t.Errorf("return type: want Number, got %s", s.ReturnType)
	}
}

func TestParseStructDeclaration(t *testing.T) {
	prog := mustParse(t, `
struct Point { x: number; y: number; }
contract C {
	constructor(owner: address) { return; }
}`)
	if len(prog.Structs) != 1 {
		t.Fatalf("want 1 struct, got %d", len(prog.Structs))
	}
	decl := prog.Structs[0].Decl
	if decl.Name != "Point" || len(decl.Fields) != 2 {
		t.Fatalf("unexpected struct decl: %+v", decl)
	}
}

func TestParseReturnMissingValueIsTypeError(t *testing.T) {
	e := parseErr(t, `
contract C {
	constructor(owner: address) { return; }
	public f(): number {
		return;
	}
}`)
	if e.Category != diagnostics.TypeError {
		t.Errorf("category: want TypeError, got %v", e.Category)
	}
}

func TestParseUnknownIdentifierIsResolutionError(t *testing.T) {
	e := parseErr(t, `
contract C {
	constructor(owner: address) { return; }
	public f() {
		local a: number := nope;
	}
}`)
	if e.Category != diagnostics.ResolutionError {
		t.Errorf("category: want ResolutionError, got %v", e.Category)
	}
}

func TestParseUnexpectedTopLevelTokenIsSyntaxError(t *testing.T) {
	e := parseErr(t, `not_a_keyword Foo { }`)
	if e.Category != diagnostics.SyntaxError {
		t.Errorf("category: want SyntaxError, got %v", e.Category)
	}
}
