// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package parser implements a recursive-descent parser for the Tomb
// language: a single cursor over the lexer's token stream, one token of
// lookahead, and semantic resolution interleaved with the grammar (spec
// §4.2) rather than run as a separate pass. Identifier/library resolution,
// generic-library patching, and the expression grammar live in resolve.go;
// this file drives the declaration and statement grammar.
//
// Every parse function panics with a *diagnostics.Error on failure instead
// of threading an error return through the whole call tree; ParseProgram
// recovers once, at the boundary, per spec §7's "callers catch once, at the
// compile() boundary" propagation policy.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sfichera/tomb/diagnostics"
	"github.com/sfichera/tomb/lang/ast"
	"github.com/sfichera/tomb/lang/codegen"
	"github.com/sfichera/tomb/lang/lexer"
	"github.com/sfichera/tomb/lang/library"
	"github.com/sfichera/tomb/lang/scope"
	"github.com/sfichera/tomb/lang/token"
	"github.com/sfichera/tomb/lang/types"
	"github.com/sfichera/tomb/lang/vm"
	"github.com/sfichera/tomb/stdlib/runtime"
)

// Parser holds one source file's parse state.
type Parser struct {
	lex *lexer.Lexer
	cur token.Token

	reg  *types.Registry
	libs map[string]*library.LibraryDeclaration

	// Side-tables recovering a collection VarDecl's key/value types, since
	// scope.Scope stores only the embedded *scope.VarDecl (see scope.go);
	// the outer MapDecl/ListDecl/SetDecl is otherwise unreachable from a
	// plain FindVariable lookup.
	mapDecls  map[*scope.VarDecl]*scope.MapDecl
	listDecls map[*scope.VarDecl]*scope.ListDecl
	setDecls  map[*scope.VarDecl]*scope.SetDecl

	descriptions map[string]*ast.Script // name -> already-compiled description script (spec §4.5)
	triggerNames map[string]bool        // lowercased, union of account/token triggers
	customBase   int64

	curContract *ast.Contract        // non-nil while parsing inside a contract body; gates `emit`
	curMethod   *ast.MethodInterface // back-reference for `return`'s type check
}

// New tokenizes nothing up front — the lexer is driven incrementally so an
// `asm { ... }` block's verbatim capture (lexer.ReadAsmBlock) can be
// triggered at exactly the right cursor position; see parseAsmBlock.
func New(filename, source string, reg *types.Registry, customBase int64) (p *Parser, err error) {
	defer diagnostics.Recover(&err)
	p = &Parser{
		lex:          lexer.New(filename, source),
		reg:          reg,
		libs:         library.Build(reg),
		mapDecls:     make(map[*scope.VarDecl]*scope.MapDecl),
		listDecls:    make(map[*scope.VarDecl]*scope.ListDecl),
		setDecls:     make(map[*scope.VarDecl]*scope.SetDecl),
		descriptions: make(map[string]*ast.Script),
		triggerNames: buildTriggerNameSet(),
		customBase:   customBase,
	}
	p.advance()
	return p, nil
}

func buildTriggerNameSet() map[string]bool {
	set := make(map[string]bool)
	for _, n := range runtime.TriggerNames() {
		set[strings.ToLower(n)] = true
	}
	return set
}

// ---------------------------------------------------------------------------
// Cursor primitives
// ---------------------------------------------------------------------------

func (p *Parser) advance() token.Token {
	t := p.cur
	tok, err := p.lex.NextToken()
	if err != nil {
		panic(err)
	}
	p.cur = tok
	return t
}

func (p *Parser) atEOF() bool { return p.cur.Kind == token.EOF }
func (p *Parser) atKeyword(kw string) bool {
	return p.cur.Kind == token.Identifier && p.cur.Lexeme == kw
}
func (p *Parser) atSeparatorTok(s string) bool {
	return p.cur.Kind == token.Separator && p.cur.Lexeme == s
}
func (p *Parser) atOperatorTok(s string) bool {
	return p.cur.Kind == token.Operator && p.cur.Lexeme == s
}
func (p *Parser) atSelector() bool { return p.cur.Kind == token.Selector }

func (p *Parser) expectKeyword(kw string) token.Token {
	if !p.atKeyword(kw) {
		panic(diagnostics.Syntax(p.cur.Pos.Line, p.cur.Pos.Column, fmt.Sprintf("expected %q, got %q", kw, p.cur.Lexeme)))
	}
	return p.advance()
}

func (p *Parser) expectIdentifierTok() token.Token {
	if p.cur.Kind != token.Identifier {
		panic(diagnostics.Syntax(p.cur.Pos.Line, p.cur.Pos.Column, "expected identifier"))
	}
	return p.advance()
}

func (p *Parser) expectSeparatorTok(s string) token.Token {
	if !p.atSeparatorTok(s) {
		panic(diagnostics.Syntax(p.cur.Pos.Line, p.cur.Pos.Column, fmt.Sprintf("expected %q, got %q", s, p.cur.Lexeme)))
	}
	return p.advance()
}

func (p *Parser) expectOperatorTok(s string) token.Token {
	if !p.atOperatorTok(s) {
		panic(diagnostics.Syntax(p.cur.Pos.Line, p.cur.Pos.Column, fmt.Sprintf("expected %q, got %q", s, p.cur.Lexeme)))
	}
	return p.advance()
}

func (p *Parser) expectSelectorTok() token.Token {
	if !p.atSelector() {
		panic(diagnostics.Syntax(p.cur.Pos.Line, p.cur.Pos.Column, "expected '.'"))
	}
	return p.advance()
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// parseType parses a single (non-collection) type: a primitive Type token
// or a previously-declared struct name.
func (p *Parser) parseType() *types.VarType {
	tok := p.cur
	if tok.Kind == token.Type {
		p.advance()
		vt, ok := p.reg.LookupByName(tok.Lexeme)
		if !ok {
			panic(diagnostics.Internal(tok.Pos.Line, tok.Pos.Column, "unrecognized type token "+tok.Lexeme))
		}
		return vt
	}
	if tok.Kind == token.Identifier {
		p.advance()
		vt, ok := p.reg.LookupStruct(tok.Lexeme)
		if !ok {
			panic(diagnostics.Resolution(tok.Pos.Line, tok.Pos.Column, "unknown type "+tok.Lexeme))
		}
		return vt
	}
	panic(diagnostics.Syntax(tok.Pos.Line, tok.Pos.Column, "expected a type"))
}

// parsedType is the result of parsing a `global`'s type, which (unlike
// every other type position) may carry generic collection parameters.
type parsedType struct {
	Base *types.VarType
	Key  *types.VarType // storage_map only
	Elem *types.VarType // storage_map/list/set
}

func (p *Parser) parseGlobalTypeSpec() parsedType {
	tok := p.cur
	if tok.Kind != token.Type {
		return parsedType{Base: p.parseType()}
	}
	switch strings.ToLower(tok.Lexeme) {
	case "storage_map":
		p.advance()
		p.expectOperatorTok("<")
		key := p.parseType()
		p.expectSeparatorTok(",")
		val := p.parseType()
		p.expectOperatorTok(">")
		return parsedType{Base: p.reg.Primitive(types.KindStorageMap), Key: key, Elem: val}
	case "storage_list", "storage_set":
		p.advance()
		p.expectOperatorTok("<")
		val := p.parseType()
		p.expectOperatorTok(">")
		kind := types.KindStorageList
		if strings.ToLower(tok.Lexeme) == "storage_set" {
			kind = types.KindStorageSet
		}
		return parsedType{Base: p.reg.Primitive(kind), Elem: val}
	default:
		return parsedType{Base: p.parseType()}
	}
}

// parseLiteralValue parses a literal matching t's kind, for `const x: T = ...;`.
func (p *Parser) parseLiteralValue(t *types.VarType) interface{} {
	tok := p.cur
	switch t.Kind() {
	case types.KindNumber:
		if tok.Kind != token.Number {
			panic(diagnostics.Syntax(tok.Pos.Line, tok.Pos.Column, "expected number literal"))
		}
		n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			panic(diagnostics.Syntax(tok.Pos.Line, tok.Pos.Column, "malformed number literal "+tok.Lexeme))
		}
		p.advance()
		return n
	case types.KindBool:
		if tok.Kind != token.Bool {
			panic(diagnostics.Syntax(tok.Pos.Line, tok.Pos.Column, "expected bool literal"))
		}
		p.advance()
		return tok.Lexeme == "true"
	case types.KindString:
		if tok.Kind != token.String {
			panic(diagnostics.Syntax(tok.Pos.Line, tok.Pos.Column, "expected string literal"))
		}
		p.advance()
		return tok.Lexeme
	case types.KindBytes:
		if tok.Kind != token.Bytes {
			panic(diagnostics.Syntax(tok.Pos.Line, tok.Pos.Column, "expected bytes literal"))
		}
		p.advance()
		return []byte(tok.Lexeme)
	case types.KindAddress:
		if tok.Kind != token.Address {
			panic(diagnostics.Syntax(tok.Pos.Line, tok.Pos.Column, "expected address literal"))
		}
		p.advance()
		return []byte(tok.Lexeme)
	case types.KindHash:
		if tok.Kind != token.Hash {
			panic(diagnostics.Syntax(tok.Pos.Line, tok.Pos.Column, "expected hash literal"))
		}
		p.advance()
		return []byte(tok.Lexeme)
	default:
		panic(diagnostics.Shape(tok.Pos.Line, tok.Pos.Column, "unsupported constant type "+t.String()))
	}
}

// ---------------------------------------------------------------------------
// Program / module grammar
// ---------------------------------------------------------------------------

// ParseProgram parses the whole source file. It is the one entry point that
// converts an internal panic back into a returned error.
func (p *Parser) ParseProgram() (prog *ast.Program, err error) {
	defer diagnostics.Recover(&err)
	prog = p.parseProgramImpl()
	return
}

func (p *Parser) parseProgramImpl() *ast.Program {
	prog := &ast.Program{}
	for !p.atEOF() {
		switch {
		case p.atKeyword("struct"):
			prog.Structs = append(prog.Structs, p.parseStruct())
		case p.atKeyword("contract"):
			prog.Modules = append(prog.Modules, p.parseContract())
		case p.atKeyword("script"):
			prog.Modules = append(prog.Modules, p.parseScript(false))
		case p.atKeyword("description"):
			prog.Modules = append(prog.Modules, p.parseScript(true))
		default:
			panic(diagnostics.Syntax(p.cur.Pos.Line, p.cur.Pos.Column,
				fmt.Sprintf("expected struct, contract, script, or description declaration, got %q", p.cur.Lexeme)))
		}
	}
	return prog
}

func (p *Parser) parseStruct() *ast.StructDecl {
	startTok := p.expectKeyword("struct")
	nameTok := p.expectIdentifierTok()
	p.expectSeparatorTok("{")
	var fields []types.StructField
	for !p.atSeparatorTok("}") {
		fnameTok := p.expectIdentifierTok()
		p.expectOperatorTok(":")
		vt := p.parseType()
		p.expectSeparatorTok(";")
		fields = append(fields, types.StructField{Name: fnameTok.Lexeme, Type: vt})
	}
	p.expectSeparatorTok("}")
	decl := &types.StructDeclaration{Name: nameTok.Lexeme, Fields: fields}
	p.reg.DeclareStruct(decl)
	return &ast.StructDecl{LineNo: startTok.Pos.Line, Decl: decl}
}

func (p *Parser) parseContract() *ast.Contract {
	startTok := p.expectKeyword("contract")
	nameTok := p.expectIdentifierTok()
	p.expectSeparatorTok("{")

	sc := scope.New(nil, "")
	c := &ast.Contract{LineNo: startTok.Pos.Line, Name: nameTok.Lexeme, Scope: sc}
	prevContract := p.curContract
	p.curContract = c
	defer func() { p.curContract = prevContract }()

	for !p.atSeparatorTok("}") {
		switch {
		case p.atKeyword("const"):
			c.Constants = append(c.Constants, p.parseConst(sc))
		case p.atKeyword("global"):
			c.Globals = append(c.Globals, p.parseGlobal(sc))
		case p.atKeyword("import"):
			p.parseImport(sc)
		case p.atKeyword("event"):
			c.Events = append(c.Events, p.parseEvent(sc, c))
		case p.atKeyword("constructor"):
			c.Constructor = p.parseConstructor(sc)
		case p.atKeyword("public"), p.atKeyword("private"):
			c.Methods = append(c.Methods, p.parseMethod(sc))
		case p.atKeyword("task"):
			c.Tasks = append(c.Tasks, p.parseTask(sc))
		case p.atKeyword("trigger"):
			c.Triggers = append(c.Triggers, p.parseTrigger(sc))
		default:
			panic(diagnostics.Syntax(p.cur.Pos.Line, p.cur.Pos.Column,
				fmt.Sprintf("unexpected token %q in contract body", p.cur.Lexeme)))
		}
	}
	p.expectSeparatorTok("}")
	return c
}

// parseScript handles both `script` and `description` modules (identical
// grammar; `description` additionally compiles eagerly per spec §4.5 so a
// later `event` in the same file can embed its bytecode).
func (p *Parser) parseScript(hidden bool) *ast.Script {
	kw := "script"
	if hidden {
		kw = "description"
	}
	startTok := p.expectKeyword(kw)
	nameTok := p.expectIdentifierTok()
	p.expectSeparatorTok("{")

	sc := scope.New(nil, "")
	s := &ast.Script{LineNo: startTok.Pos.Line, Name: nameTok.Lexeme, Hidden: hidden, Scope: sc}
	var params []ast.Param
	var retType *types.VarType
	var body *ast.StatementBlock
	haveCode := false

	for !p.atSeparatorTok("}") {
		switch {
		case p.atKeyword("const"):
			p.parseConst(sc)
		case p.atKeyword("global"):
			p.parseGlobal(sc)
		case p.atKeyword("import"):
			p.parseImport(sc)
		case p.atKeyword("code"):
			if haveCode {
				panic(diagnostics.Shape(p.cur.Pos.Line, p.cur.Pos.Column, "script declares more than one code block"))
			}
			paramSc, ps, rt, b := p.parseCode(sc)
			params, retType, body, haveCode = ps, rt, b, true
			s.Scope = paramSc
		default:
			panic(diagnostics.Syntax(p.cur.Pos.Line, p.cur.Pos.Column,
				fmt.Sprintf("unexpected token %q in script body", p.cur.Lexeme)))
		}
	}
	p.expectSeparatorTok("}")
	if !haveCode {
		panic(diagnostics.Shape(startTok.Pos.Line, startTok.Pos.Column, "script "+nameTok.Lexeme+" has no code block"))
	}
	s.Parameters = params
	s.ReturnType = retType
	s.MainBlock = body

	if hidden {
		prog, _, err := codegen.LowerScript(s)
		if err != nil {
			panic(err)
		}
		s.CompiledBytes = prog.Code
		p.descriptions[s.Name] = s
	}
	return s
}

// ---------------------------------------------------------------------------
// Module items
// ---------------------------------------------------------------------------

func (p *Parser) parseConst(sc *scope.Scope) *scope.ConstDecl {
	p.expectKeyword("const")
	nameTok := p.expectIdentifierTok()
	p.expectOperatorTok(":")
	vt := p.parseType()
	p.expectOperatorTok("=")
	lit := p.parseLiteralValue(vt)
	p.expectSeparatorTok(";")
	decl := &scope.ConstDecl{Name: nameTok.Lexeme, Type: vt, LiteralValue: lit}
	sc.DeclareConst(decl)
	return decl
}

func (p *Parser) parseGlobal(sc *scope.Scope) *scope.VarDecl {
	p.expectKeyword("global")
	nameTok := p.expectIdentifierTok()
	p.expectOperatorTok(":")
	spec := p.parseGlobalTypeSpec()
	p.expectSeparatorTok(";")

	switch spec.Base.Kind() {
	case types.KindStorageMap:
		md := &scope.MapDecl{
			VarDecl:   scope.VarDecl{Name: nameTok.Lexeme, Type: spec.Base, Storage: scope.Global},
			KeyType:   spec.Key,
			ValueType: spec.Elem,
		}
		sc.Declare(&md.VarDecl)
		p.mapDecls[&md.VarDecl] = md
		return &md.VarDecl
	case types.KindStorageList:
		ld := &scope.ListDecl{
			VarDecl:   scope.VarDecl{Name: nameTok.Lexeme, Type: spec.Base, Storage: scope.Global},
			ValueType: spec.Elem,
		}
		sc.Declare(&ld.VarDecl)
		p.listDecls[&ld.VarDecl] = ld
		return &ld.VarDecl
	case types.KindStorageSet:
		sd := &scope.SetDecl{
			VarDecl:   scope.VarDecl{Name: nameTok.Lexeme, Type: spec.Base, Storage: scope.Global},
			ValueType: spec.Elem,
		}
		sc.Declare(&sd.VarDecl)
		p.setDecls[&sd.VarDecl] = sd
		return &sd.VarDecl
	default:
		decl := &scope.VarDecl{Name: nameTok.Lexeme, Type: spec.Base, Storage: scope.Global}
		sc.Declare(decl)
		return decl
	}
}

func (p *Parser) parseImport(sc *scope.Scope) {
	p.expectKeyword("import")
	nameTok := p.expectIdentifierTok()
	p.expectSeparatorTok(";")
	lib, ok := p.libs[nameTok.Lexeme]
	if !ok {
		panic(diagnostics.Resolution(nameTok.Pos.Line, nameTok.Pos.Column, "unknown library "+nameTok.Lexeme))
	}
	sc.DeclareLibrary(nameTok.Lexeme, lib)
}

// parseEvent implements `event Name : T = (String|Bytes|IdentOfScript);`.
// numeric_value is Custom_base + the event's index within c (spec §3).
func (p *Parser) parseEvent(sc *scope.Scope, c *ast.Contract) *ast.EventDeclaration {
	startTok := p.expectKeyword("event")
	nameTok := p.expectIdentifierTok()
	p.expectOperatorTok(":")
	payloadType := p.parseType()
	p.expectOperatorTok("=")

	var descBytes []byte
	tok := p.cur
	switch tok.Kind {
	case token.String:
		p.advance()
		prog, _, err := p.compileInlineDescription(startTok.Pos.Line, tok.Lexeme)
		if err != nil {
			panic(err)
		}
		descBytes = prog.Code
	case token.Bytes:
		p.advance()
		descBytes = []byte(tok.Lexeme)
	case token.Identifier:
		p.advance()
		desc, ok := p.descriptions[tok.Lexeme]
		if !ok {
			panic(diagnostics.Shape(tok.Pos.Line, tok.Pos.Column, "invalid event description "+tok.Lexeme))
		}
		descBytes = desc.CompiledBytes
	default:
		panic(diagnostics.Syntax(tok.Pos.Line, tok.Pos.Column, "expected string, bytes literal, or description script name"))
	}
	p.expectSeparatorTok(";")

	return &ast.EventDeclaration{
		LineNo:           startTok.Pos.Line,
		Name:             nameTok.Lexeme,
		NumericValue:     p.customBase + int64(len(c.Events)),
		PayloadType:      payloadType,
		DescriptionBytes: descBytes,
	}
}

// compileInlineDescription builds and lowers the anonymous one-statement
// script an inline string event-description expands to: `return "text";`.
func (p *Parser) compileInlineDescription(line int, text string) (*vm.Program, []string, error) {
	root := scope.New(nil, "")
	blockScope := scope.New(root, "")
	lit := &ast.Literal{LineNo: line, Type: p.reg.Primitive(types.KindString), Value: text}
	ret := &ast.ReturnStmt{Base: ast.Base{LineNo: line, Scope: blockScope}, Value: lit}
	body := &ast.StatementBlock{LineNo: line, Scope: blockScope, Stmts: []ast.Statement{ret}}
	script := &ast.Script{
		LineNo:     line,
		Name:       "<inline-description>",
		Hidden:     true,
		Scope:      root,
		ReturnType: p.reg.Primitive(types.KindString),
		MainBlock:  body,
	}
	return codegen.LowerScript(script)
}

func (p *Parser) parseParams(methodName string, parent *scope.Scope) (*scope.Scope, []ast.Param) {
	sc := scope.New(parent, methodName)
	p.expectSeparatorTok("(")
	var params []ast.Param
	if !p.atSeparatorTok(")") {
		for {
			nameTok := p.expectIdentifierTok()
			p.expectOperatorTok(":")
			vt := p.parseType()
			params = append(params, ast.Param{Name: nameTok.Lexeme, Type: vt})
			sc.Declare(&scope.VarDecl{Name: nameTok.Lexeme, Type: vt, Storage: scope.Argument})
			if p.atSeparatorTok(",") {
				p.advance()
				continue
			}
			break
		}
	}
	p.expectSeparatorTok(")")
	return sc, params
}

func (p *Parser) parseMethodBody(paramScope *scope.Scope, m *ast.MethodInterface) *ast.StatementBlock {
	prev := p.curMethod
	p.curMethod = m
	defer func() { p.curMethod = prev }()
	return p.parseBlock(paramScope, m.Name)
}

// parseConstructor enforces spec §4.2's "constructor must declare exactly
// one parameter of type address" and fixes the method name to "Initialize"
// (spec §8 scenario 1).
func (p *Parser) parseConstructor(parent *scope.Scope) *ast.MethodInterface {
	startTok := p.expectKeyword("constructor")
	sc, params := p.parseParams("Initialize", parent)
	if len(params) != 1 || params[0].Type.Kind() != types.KindAddress {
		panic(diagnostics.Shape(startTok.Pos.Line, startTok.Pos.Column, "constructor must declare exactly one parameter of type address"))
	}
	m := &ast.MethodInterface{
		LineNo:     startTok.Pos.Line,
		Name:       "Initialize",
		IsPublic:   true,
		Kind:       ast.KindConstructor,
		ReturnType: p.reg.Primitive(types.KindNone),
		Parameters: params,
		Scope:      sc,
	}
	m.Body = p.parseMethodBody(sc, m)
	return m
}

func (p *Parser) parseMethod(parent *scope.Scope) *ast.MethodInterface {
	visTok := p.advance() // "public" or "private", already confirmed by the caller's dispatch
	isPublic := visTok.Lexeme == "public"
	nameTok := p.expectIdentifierTok()
	sc, params := p.parseParams(nameTok.Lexeme, parent)
	retType := p.reg.Primitive(types.KindNone)
	if p.atOperatorTok(":") {
		p.advance()
		retType = p.parseType()
	}
	m := &ast.MethodInterface{
		LineNo:     visTok.Pos.Line,
		Name:       nameTok.Lexeme,
		IsPublic:   isPublic,
		Kind:       ast.KindMethod,
		ReturnType: retType,
		Parameters: params,
		Scope:      sc,
	}
	m.Body = p.parseMethodBody(sc, m)
	return m
}

func (p *Parser) parseTask(parent *scope.Scope) *ast.MethodInterface {
	startTok := p.expectKeyword("task")
	nameTok := p.expectIdentifierTok()
	sc, params := p.parseParams(nameTok.Lexeme, parent)
	m := &ast.MethodInterface{
		LineNo:     startTok.Pos.Line,
		Name:       nameTok.Lexeme,
		IsPublic:   true,
		Kind:       ast.KindTask,
		ReturnType: p.reg.Primitive(types.KindNone),
		Parameters: params,
		Scope:      sc,
	}
	m.Body = p.parseMethodBody(sc, m)
	return m
}

// parseTrigger normalizes the trigger name (prepend "on" if missing) and
// validates it case-insensitively against the host runtime's known trigger
// set (spec §4.2).
func (p *Parser) parseTrigger(parent *scope.Scope) *ast.MethodInterface {
	startTok := p.expectKeyword("trigger")
	nameTok := p.expectIdentifierTok()
	normalized := normalizeTriggerName(nameTok.Lexeme)
	if !p.triggerNames[strings.ToLower(normalized)] {
		panic(diagnostics.Resolution(nameTok.Pos.Line, nameTok.Pos.Column, "invalid trigger name "+nameTok.Lexeme))
	}
	sc, params := p.parseParams(normalized, parent)
	m := &ast.MethodInterface{
		LineNo:     startTok.Pos.Line,
		Name:       normalized,
		IsPublic:   false,
		Kind:       ast.KindTrigger,
		ReturnType: p.reg.Primitive(types.KindNone),
		Parameters: params,
		Scope:      sc,
	}
	m.Body = p.parseMethodBody(sc, m)
	return m
}

func normalizeTriggerName(name string) string {
	if len(name) >= 2 && strings.EqualFold(name[:2], "on") {
		return name
	}
	return "on" + name
}

// parseCode implements `code params (':' type)? '{' block '}'`, the single
// executable entry point of a script or description module.
func (p *Parser) parseCode(parent *scope.Scope) (*scope.Scope, []ast.Param, *types.VarType, *ast.StatementBlock) {
	p.expectKeyword("code")
	sc, params := p.parseParams("code", parent)
	retType := p.reg.Primitive(types.KindNone)
	if p.atOperatorTok(":") {
		p.advance()
		retType = p.parseType()
	}
	m := &ast.MethodInterface{Name: "code", Kind: ast.KindMethod, ReturnType: retType, Parameters: params, Scope: sc}
	body := p.parseMethodBody(sc, m)
	return sc, params, retType, body
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseBlock(parent *scope.Scope, methodName string) *ast.StatementBlock {
	startTok := p.expectSeparatorTok("{")
	sc := scope.New(parent, methodName)
	var stmts []ast.Statement
	for !p.atSeparatorTok("}") {
		stmts = append(stmts, p.parseStatement(sc))
	}
	p.expectSeparatorTok("}")
	return &ast.StatementBlock{LineNo: startTok.Pos.Line, Scope: sc, Stmts: stmts}
}

func (p *Parser) parseStatement(sc *scope.Scope) ast.Statement {
	switch {
	case p.atKeyword("return"):
		return p.parseReturn(sc)
	case p.atKeyword("throw"):
		return p.parseThrow(sc)
	case p.atKeyword("emit"):
		return p.parseEmit(sc)
	case p.atKeyword("asm"):
		return p.parseAsmBlock(sc)
	case p.atKeyword("local"):
		return p.parseLocalDecl(sc)
	case p.atKeyword("if"):
		return p.parseIf(sc)
	case p.atKeyword("while"):
		return p.parseWhile(sc)
	case p.atKeyword("do"):
		return p.parseDoWhile(sc)
	case p.cur.Kind == token.Identifier:
		return p.parseIdentStatement(sc)
	default:
		panic(diagnostics.Syntax(p.cur.Pos.Line, p.cur.Pos.Column, fmt.Sprintf("unexpected token %q in statement", p.cur.Lexeme)))
	}
}

func (p *Parser) parseLocalDecl(sc *scope.Scope) ast.Statement {
	startTok := p.expectKeyword("local")
	nameTok := p.expectIdentifierTok()
	p.expectOperatorTok(":")
	vt := p.parseType()
	decl := &scope.VarDecl{Name: nameTok.Lexeme, Type: vt, Storage: scope.Local}
	var init ast.Expression
	if p.atOperatorTok(":=") {
		p.advance()
		init = p.coerceAssign(vt, p.parseExpr(sc), startTok.Pos.Line)
	}
	sc.Declare(decl)
	p.expectSeparatorTok(";")
	return &ast.LocalDeclStmt{Base: ast.Base{LineNo: startTok.Pos.Line, Scope: sc}, Decl: decl, Init: init}
}

func (p *Parser) parseReturn(sc *scope.Scope) ast.Statement {
	startTok := p.expectKeyword("return")
	var value ast.Expression
	if !p.atSeparatorTok(";") {
		value = p.parseExpr(sc)
	}
	p.expectSeparatorTok(";")

	m := p.curMethod
	if m == nil {
		panic(diagnostics.Internal(startTok.Pos.Line, startTok.Pos.Column, "return outside of a method body"))
	}
	if value == nil {
		if m.ReturnType.Kind() != types.KindNone {
			panic(diagnostics.Type(startTok.Pos.Line, startTok.Pos.Column, "missing return value, expected "+m.ReturnType.String()))
		}
	} else {
		value = p.coerceAssign(m.ReturnType, value, startTok.Pos.Line)
	}
	return &ast.ReturnStmt{Base: ast.Base{LineNo: startTok.Pos.Line, Scope: sc}, Value: value, Method: m}
}

func (p *Parser) parseThrow(sc *scope.Scope) ast.Statement {
	startTok := p.expectKeyword("throw")
	if p.cur.Kind != token.String {
		panic(diagnostics.Syntax(p.cur.Pos.Line, p.cur.Pos.Column, "expected string literal after throw"))
	}
	msgTok := p.advance()
	p.expectSeparatorTok(";")
	return &ast.ThrowStmt{Base: ast.Base{LineNo: startTok.Pos.Line, Scope: sc}, Message: msgTok.Lexeme}
}

// parseEmit enforces spec §4.2's emit validity rules: only inside a
// contract, event must be declared, first argument address, second argument
// matching the event's payload type.
func (p *Parser) parseEmit(sc *scope.Scope) ast.Statement {
	startTok := p.expectKeyword("emit")
	if p.curContract == nil {
		panic(diagnostics.Shape(startTok.Pos.Line, startTok.Pos.Column, "emit is only valid inside a contract"))
	}
	nameTok := p.expectIdentifierTok()
	var event *ast.EventDeclaration
	for _, ev := range p.curContract.Events {
		if ev.Name == nameTok.Lexeme {
			event = ev
			break
		}
	}
	if event == nil {
		panic(diagnostics.Resolution(nameTok.Pos.Line, nameTok.Pos.Column, "unknown event "+nameTok.Lexeme))
	}
	p.expectSeparatorTok("(")
	addr := p.parseExpr(sc)
	if addr.ResultType().Kind() != types.KindAddress {
		panic(diagnostics.Type(nameTok.Pos.Line, nameTok.Pos.Column, "emit's first argument must be address"))
	}
	p.expectSeparatorTok(",")
	value := p.parseExpr(sc)
	if value.ResultType() != event.PayloadType {
		panic(diagnostics.Type(nameTok.Pos.Line, nameTok.Pos.Column, "emit's second argument type does not match event payload type"))
	}
	p.expectSeparatorTok(")")
	p.expectSeparatorTok(";")
	return &ast.EmitStmt{Base: ast.Base{LineNo: startTok.Pos.Line, Scope: sc}, Event: event, Addr: addr, Value: value}
}

// parseAsmBlock hands the raw interior off to lexer.ReadAsmBlock at exactly
// the cursor position right after the opening '{' — the normal token
// stream must not be advanced again in between, or the lexer's internal
// position (already sitting on the first interior byte once "{" was
// lexed) would be lost.
func (p *Parser) parseAsmBlock(sc *scope.Scope) ast.Statement {
	startTok := p.expectKeyword("asm")
	if !p.atSeparatorTok("{") {
		panic(diagnostics.Syntax(p.cur.Pos.Line, p.cur.Pos.Column, fmt.Sprintf("expected '{', got %q", p.cur.Lexeme)))
	}
	asmTok, err := p.lex.ReadAsmBlock()
	if err != nil {
		panic(err)
	}
	p.advance() // discards the matched "{", fetches the pending "}" into p.cur
	p.expectSeparatorTok("}")
	return &ast.AsmBlockStmt{Base: ast.Base{LineNo: startTok.Pos.Line, Scope: sc}, Lines: splitAsmLines(asmTok.Lexeme)}
}

func splitAsmLines(raw string) []string {
	var lines []string
	for _, ln := range strings.Split(raw, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

func (p *Parser) parseIf(sc *scope.Scope) ast.Statement {
	startTok := p.expectKeyword("if")
	p.expectSeparatorTok("(")
	cond := p.parseExpr(sc)
	p.expectSeparatorTok(")")
	if cond.ResultType().Kind() != types.KindBool {
		panic(diagnostics.Type(startTok.Pos.Line, startTok.Pos.Column, "if condition must have boolean type"))
	}
	thenBlock := p.parseBlock(sc, sc.MethodName)
	var elseBlock *ast.StatementBlock
	if p.atKeyword("else") {
		p.advance()
		elseBlock = p.parseBlock(sc, sc.MethodName)
	}
	return &ast.IfStmt{Base: ast.Base{LineNo: startTok.Pos.Line, Scope: sc}, Cond: cond, Then: thenBlock, Else: elseBlock}
}

func (p *Parser) parseWhile(sc *scope.Scope) ast.Statement {
	startTok := p.expectKeyword("while")
	p.expectSeparatorTok("(")
	cond := p.parseExpr(sc)
	p.expectSeparatorTok(")")
	if cond.ResultType().Kind() != types.KindBool {
		panic(diagnostics.Type(startTok.Pos.Line, startTok.Pos.Column, "while condition must have boolean type"))
	}
	body := p.parseBlock(sc, sc.MethodName)
	return &ast.WhileStmt{Base: ast.Base{LineNo: startTok.Pos.Line, Scope: sc}, Cond: cond, Body: body}
}

func (p *Parser) parseDoWhile(sc *scope.Scope) ast.Statement {
	startTok := p.expectKeyword("do")
	body := p.parseBlock(sc, sc.MethodName)
	p.expectKeyword("while")
	p.expectSeparatorTok("(")
	cond := p.parseExpr(sc)
	p.expectSeparatorTok(")")
	if cond.ResultType().Kind() != types.KindBool {
		panic(diagnostics.Type(startTok.Pos.Line, startTok.Pos.Column, "do-while condition must have boolean type"))
	}
	p.expectSeparatorTok(";")
	return &ast.DoWhileStmt{Base: ast.Base{LineNo: startTok.Pos.Line, Scope: sc}, Body: body, Cond: cond}
}

// parseIdentStatement handles both statement forms that start with a bare
// identifier: `Ident assignOp expr ;` and `Ident '.' methodCall ;`.
// Compound assignment operators expand to `var := var op rhs` here (spec
// §4.2).
func (p *Parser) parseIdentStatement(sc *scope.Scope) ast.Statement {
	tok := p.advance()
	name := tok.Lexeme

	if p.atSelector() {
		if v, ok := sc.FindVariable(name, false); ok {
			call := p.parseCollectionMethodCall(sc, tok, v)
			p.expectSeparatorTok(";")
			return &ast.MethodCallStmt{Base: ast.Base{LineNo: tok.Pos.Line, Scope: sc}, Call: call}
		}
		if lib, ok := sc.FindLibrary(name); ok {
			libDecl, ok2 := lib.(*library.LibraryDeclaration)
			if !ok2 {
				panic(diagnostics.Internal(tok.Pos.Line, tok.Pos.Column, "library binding has unexpected type"))
			}
			call := p.parseLibraryMethodCall(sc, tok, libDecl, nil)
			p.expectSeparatorTok(";")
			return &ast.MethodCallStmt{Base: ast.Base{LineNo: tok.Pos.Line, Scope: sc}, Call: call}
		}
		panic(diagnostics.Resolution(tok.Pos.Line, tok.Pos.Column, "unknown identifier "+name))
	}

	v, ok := sc.FindVariable(name, false)
	if !ok {
		panic(diagnostics.Resolution(tok.Pos.Line, tok.Pos.Column, "unknown identifier "+name))
	}
	opTok := p.cur
	if opTok.Kind != token.Operator || !isAssignOp(opTok.Lexeme) {
		panic(diagnostics.Syntax(opTok.Pos.Line, opTok.Pos.Column, "expected assignment operator"))
	}
	p.advance()
	rhs := p.parseExpr(sc)

	var value ast.Expression
	if opTok.Lexeme == ":=" {
		value = p.coerceAssign(v.Type, rhs, tok.Pos.Line)
	} else {
		binOp := strings.TrimSuffix(opTok.Lexeme, "=")
		value = p.makeBinary(tok.Pos.Line, binOp, &ast.VarExpr{LineNo: tok.Pos.Line, Decl: v}, rhs)
	}
	p.expectSeparatorTok(";")
	return &ast.AssignStmt{Base: ast.Base{LineNo: tok.Pos.Line, Scope: sc}, Target: v, Value: value}
}

func isAssignOp(s string) bool {
	switch s {
	case ":=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>=":
		return true
	default:
		return false
	}
}

// coerceAssign applies the String-coercion exception to an assignment's
// (or return's) right-hand side when its type does not already match
// target (spec §4.2/§4.3).
func (p *Parser) coerceAssign(target *types.VarType, value ast.Expression, line int) ast.Expression {
	if value.ResultType() == target {
		return value
	}
	if target.Kind() == types.KindString {
		return &ast.CastExpr{LineNo: line, To: target, Inner: value}
	}
	panic(diagnostics.Type(line, 0, fmt.Sprintf("cannot assign %s to %s", value.ResultType(), target)))
}
