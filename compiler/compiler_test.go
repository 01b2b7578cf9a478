// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

const helloSource = `
contract Hello {
	event Paid: number = "payment received";
	constructor(owner: address) { return; }
	public pay(who: address) {
		emit Paid(who, 1);
	}
}`

func TestCompileContractArtifact(t *testing.T) {
	ctx := NewContext(1000)
	artifacts, err := ctx.Compile("hello.tomb", helloSource)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("want 1 artifact, got %d", len(artifacts))
	}
	a := artifacts[0]
	if a.Kind != KindContract {
		t.Errorf("kind: want Contract, got %q", a.Kind)
	}
	if a.Name != "Hello" {
		t.Errorf("name: want Hello, got %q", a.Name)
	}
	if len(a.Bytecode) == 0 {
		t.Fatal("expected non-empty bytecode")
	}
	if a.ABI == nil || len(a.ABI.Methods) != 2 {
		t.Fatalf("want 2 ABI methods (constructor + pay), got %+v", a.ABI)
	}
	if len(a.ABI.Events) != 1 || a.ABI.Events[0].Name != "Paid" {
		t.Fatalf("unexpected ABI events: %+v", a.ABI.Events)
	}
}

func TestCompileContractMethodOffsetsAreDistinct(t *testing.T) {
	ctx := NewContext(1000)
	artifacts, err := ctx.Compile("hello.tomb", helloSource)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	a := artifacts[0]
	if a.ABI.Methods[0].Offset != 0 {
		t.Errorf("first method offset: want 0, got %d", a.ABI.Methods[0].Offset)
	}
	if a.ABI.Methods[1].Offset == 0 {
		t.Error("second method should not share offset 0 with the constructor")
	}
	if a.SourceLineMap[0] == 0 {
		t.Error("expected a source line recorded for offset 0")
	}
}

func TestCompileIsIdempotent(t *testing.T) {
	ctx1 := NewContext(1000)
	a1, err := ctx1.Compile("hello.tomb", helloSource)
	require.NoError(t, err)
	ctx2 := NewContext(1000)
	a2, err := ctx2.Compile("hello.tomb", helloSource)
	require.NoError(t, err)
	require.Lenf(t, a2, len(a1), "artifact count differs between identical compiles:\n%s\nvs\n%s", spew.Sdump(a1), spew.Sdump(a2))

	for i := range a1 {
		if !bytes.Equal(a1[i].Bytecode, a2[i].Bytecode) {
			t.Errorf("artifact %d: bytecode differs between identical compiles:\n%s\nvs\n%s", i, spew.Sdump(a1[i].Bytecode), spew.Sdump(a2[i].Bytecode))
		}
		if a1[i].ABI != nil && a2[i].ABI != nil {
			require.Equalf(t, len(a1[i].ABI.Methods), len(a2[i].ABI.Methods), "artifact %d: ABI method count differs", i)
			for j := range a1[i].ABI.Methods {
				require.Equalf(t, a1[i].ABI.Methods[j], a2[i].ABI.Methods[j], "artifact %d method %d: ABI differs", i, j)
			}
		}
	}
}

func TestCompileScriptArtifact(t *testing.T) {
	ctx := NewContext(1000)
	artifacts, err := ctx.Compile("sum.tomb", `
script Sum {
	code(a: number, b: number) : number {
		return a + b;
	}
}`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("want 1 artifact, got %d", len(artifacts))
	}
	a := artifacts[0]
	if a.Kind != KindScript {
		t.Errorf("kind: want Script, got %q", a.Kind)
	}
	if len(a.Parameters) != 2 {
		t.Fatalf("want 2 parameters, got %d", len(a.Parameters))
	}
	if a.ReturnType != "number" {
		t.Errorf("return type: want number, got %q", a.ReturnType)
	}
	if len(a.Bytecode) == 0 {
		t.Fatal("expected non-empty bytecode")
	}
}

func TestCompileDescriptionArtifact(t *testing.T) {
	ctx := NewContext(1000)
	artifacts, err := ctx.Compile("welcome.tomb", `
description Welcome {
	code() : string {
		return "hello";
	}
}
contract C {
	event Joined: string = Welcome;
	constructor(owner: address) { return; }
}`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("want 2 artifacts (description + contract), got %d", len(artifacts))
	}
	desc := artifacts[0]
	if desc.Kind != KindDescription {
		t.Fatalf("first artifact should be the Description module, got %q", desc.Kind)
	}
	if len(desc.Bytecode) == 0 {
		t.Fatal("expected non-empty description bytecode")
	}
}

func TestCompileAbortsOnFirstError(t *testing.T) {
	ctx := NewContext(1000)
	_, err := ctx.Compile("bad.tomb", `contract C { constructor() { return; } }`)
	if err == nil {
		t.Fatal("expected a compile error for a zero-arity constructor")
	}
}

func TestCompileStructsSharedAcrossFilesInSameContext(t *testing.T) {
	ctx := NewContext(1000)
	if _, err := ctx.Compile("types.tomb", `struct Point { x: number; y: number; }`); err != nil {
		t.Fatalf("Compile (struct file): %v", err)
	}
	artifacts, err := ctx.Compile("use.tomb", `
contract C {
	constructor(owner: address) { return; }
	public origin(): Point {
		local p: Point;
		return p;
	}
}`)
	if err != nil {
		t.Fatalf("Compile (use file, struct should already be registered): %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("want 1 artifact, got %d", len(artifacts))
	}
}
