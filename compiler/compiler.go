// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package compiler implements spec §6's Program entry API: one function,
// compile(source_text), returning a list of Module artifacts. CompilerContext
// owns the type registry (so struct declarations survive across files
// sharing a session) and the custom event-numeric-value base (spec §3's
// Custom_base); Compile drives lang/parser end to end and assembles its
// per-module results into artifacts.
package compiler

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/sfichera/tomb/diagnostics"
	"github.com/sfichera/tomb/lang/ast"
	"github.com/sfichera/tomb/lang/codegen"
	"github.com/sfichera/tomb/lang/parser"
	"github.com/sfichera/tomb/lang/types"
)

// Kind distinguishes the three module shapes spec §6 names.
type Kind string

const (
	KindContract    Kind = "Contract"
	KindScript      Kind = "Script"
	KindDescription Kind = "Description"
)

// Artifact is one compiled top-level module (spec §6's "Module artifact").
// ABI is populated only for Contract artifacts; Script/Description
// artifacts carry their own bare Parameters/ReturnType instead, since a
// script has neither events nor a public/private method table to render.
type Artifact struct {
	Name       string
	Kind       Kind
	Bytecode   []byte
	ABI        *codegen.ABI
	Parameters []codegen.ABIParam
	ReturnType string

	// Lines holds the pre-assembly text lang/codegen emitted, one method's
	// worth after another. Bytecode concatenates each method's assembled
	// Program.Code, which discards that method's own constant pool — a
	// disassembler fed raw Bytecode alone cannot resolve LOADCONST indices
	// across a method boundary. Lines is what -emit ir and -emit bytecode
	// actually print for that reason.
	Lines []string

	// SourceLineMap maps a byte offset into Bytecode to the source line of
	// the construct that produced it (spec §6 "source_line_map: optional").
	// Granularity is per compiled method/script, not per instruction —
	// lang/codegen does not thread source positions through emission, and
	// the spec's own Non-goals cap debug metadata at line/column, so a
	// finer-grained map would exceed what's asked for.
	SourceLineMap map[int]int

	// DescriptionCompressed holds a snappy-compressed copy of Bytecode when
	// compression actually shrinks it, for a Description artifact only
	// (large inline event descriptions are the one place bytecode size is
	// likely to matter enough to bother). Empty otherwise.
	DescriptionCompressed []byte
}

// CompilerContext is the per-session compilation state: spec §5's "current
// compiler" singleton is deliberately NOT reproduced here — lang/parser
// takes the registry as an explicit constructor argument and lang/codegen
// creates a fresh register pool for each lowered method, instead of either
// reaching for ambient global state, so nothing prevents two CompilerContexts existing concurrently in
// the same process. SessionID exists purely for external tooling to
// correlate a batch of diagnostics back to one Compile call.
type CompilerContext struct {
	SessionID  uuid.UUID
	Registry   *types.Registry
	CustomBase int64
}

// NewContext creates a fresh compiler session. customBase is spec §3's
// Custom_base, the starting numeric_value for a contract's first event.
func NewContext(customBase int64) *CompilerContext {
	return &CompilerContext{
		SessionID:  uuid.New(),
		Registry:   types.NewRegistry(),
		CustomBase: customBase,
	}
}

// Compile parses and lowers one source file into its Module artifacts. Per
// spec §7's propagation policy, the first error aborts the whole call — the
// returned slice is always nil on error, never a partial result.
func (c *CompilerContext) Compile(filename, source string) (artifacts []*Artifact, err error) {
	defer func() {
		if err != nil {
			artifacts = nil
		}
	}()
	defer diagnostics.Recover(&err)

	p, perr := parser.New(filename, source, c.Registry, c.CustomBase)
	if perr != nil {
		return nil, perr
	}
	prog, perr := p.ParseProgram()
	if perr != nil {
		return nil, perr
	}

	var built []*Artifact
	for _, m := range prog.Modules {
		switch mod := m.(type) {
		case *ast.Contract:
			built = append(built, compileContract(mod))
		case *ast.Script:
			built = append(built, compileScript(mod))
		default:
			panic(diagnostics.Internal(mod.Line(), 0, "compiler: unhandled module kind"))
		}
	}
	return built, nil
}

// compileContract concatenates every lowered method's bytecode into one
// blob in declaration order (constructor, methods, tasks, triggers — the
// same order codegen.GenerateContract lowers them in) and back-fills each
// public ABI method's Offset to its position in that blob.
func compileContract(ct *ast.Contract) *Artifact {
	compiled, abi, err := codegen.GenerateContract(ct)
	if err != nil {
		panic(err)
	}

	var bytecode []byte
	var lines []string
	lineMap := make(map[int]int, len(compiled))
	offsetOf := make(map[*ast.MethodInterface]int, len(compiled))
	for _, cm := range compiled {
		off := len(bytecode)
		offsetOf[cm.Method] = off
		lineMap[off] = cm.Method.Line()
		bytecode = append(bytecode, cm.Program.Code...)
		lines = append(lines, fmt.Sprintf("; --- %s %s ---", cm.Method.Kind, cm.Method.Name))
		lines = append(lines, cm.Lines...)
	}
	for i := range abi.Methods {
		for _, cm := range compiled {
			if cm.Method.Name == abi.Methods[i].Name && cm.Method.Kind.String() == abi.Methods[i].Kind {
				abi.Methods[i].Offset = offsetOf[cm.Method]
				break
			}
		}
	}

	return &Artifact{Name: ct.Name, Kind: KindContract, Bytecode: bytecode, Lines: lines, ABI: abi, SourceLineMap: lineMap}
}

// compileScript lowers a script's assembly text (needed for Artifact.Lines
// regardless of kind) and, for a plain script, its bytecode too. A
// description script was already lowered eagerly by the parser per spec
// §4.5 to embed its bytecode in an event, so its canonical Bytecode comes
// from ast.Script.CompiledBytes instead of this second, redundant lowering.
func compileScript(s *ast.Script) *Artifact {
	kind := KindScript
	bytecode := s.CompiledBytes
	prog, lines, err := codegen.LowerScript(s)
	if err != nil {
		panic(err)
	}
	if s.Hidden {
		// The parser already lowered a description script eagerly (spec
		// §4.5) to embed its bytecode in an event; s.CompiledBytes is that
		// result. Re-lowering here is only to recover the assembly text for
		// -emit ir, and is deterministic so it reproduces the same bytecode.
		kind = KindDescription
	} else {
		bytecode = prog.Code
	}

	art := &Artifact{
		Name:          s.Name,
		Kind:          kind,
		Bytecode:      bytecode,
		Lines:         lines,
		Parameters:    scriptParams(s),
		ReturnType:    s.ReturnType.String(),
		SourceLineMap: map[int]int{0: s.Line()},
	}
	if kind == KindDescription {
		art.DescriptionCompressed = compressIfSmaller(bytecode)
	}
	return art
}

func scriptParams(s *ast.Script) []codegen.ABIParam {
	out := make([]codegen.ABIParam, len(s.Parameters))
	for i, p := range s.Parameters {
		out[i] = codegen.ABIParam{Name: p.Name, Type: p.Type.String()}
	}
	return out
}

// compressIfSmaller snappy-encodes b and returns the result only when it's
// actually smaller; callers treat a nil return as "not worth compressing".
func compressIfSmaller(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	enc := snappy.Encode(nil, b)
	if len(enc) < len(b) {
		return enc
	}
	return nil
}
