// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Identifier/library resolution and the expression grammar (spec §4.2):
// constant-then-variable-then-library lookup order, generic-library
// patching for collection method calls, and `$NAME` macro expansion.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sfichera/tomb/diagnostics"
	"github.com/sfichera/tomb/lang/ast"
	"github.com/sfichera/tomb/lang/library"
	"github.com/sfichera/tomb/lang/scope"
	"github.com/sfichera/tomb/lang/token"
	"github.com/sfichera/tomb/lang/types"
)

// parseExpr parses a flat left-to-right binary chain. Tomb's grammar has no
// operator-precedence table (spec §4.2 gives a single flat BinaryExpr rule),
// so the parser is right-recursive: `a op b op c` groups as `a op (b op c)`.
func (p *Parser) parseExpr(sc *scope.Scope) ast.Expression {
	left := p.parsePrimary(sc)
	if p.atBinaryOp() {
		opTok := p.cur
		p.advance()
		right := p.parseExpr(sc)
		return p.makeBinary(opTok.Pos.Line, opTok.Lexeme, left, right)
	}
	return left
}

func (p *Parser) atBinaryOp() bool {
	if p.cur.Kind != token.Operator {
		return false
	}
	switch p.cur.Lexeme {
	case "+", "-", "*", "/", "%", "&", "|", "^", "<<", ">>", "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

// makeBinary implements spec §4.2's binary expression type rule: operands
// must share a VarType, except String+any (the right side is implicitly
// Cast to String); `!=` lowers to Negation(Equal(L,R)); comparison operators
// produce Bool, everything else produces the shared operand type.
func (p *Parser) makeBinary(line int, op string, left, right ast.Expression) ast.Expression {
	if op == "!=" {
		eq := p.makeBinary(line, "==", left, right)
		return &ast.NegationExpr{LineNo: line, Inner: eq, Type: p.reg.Primitive(types.KindBool)}
	}
	lt, rt := left.ResultType(), right.ResultType()
	if lt != rt {
		if lt.Kind() == types.KindString && op == "+" {
			right = &ast.CastExpr{LineNo: line, To: lt, Inner: right}
			rt = lt
		} else {
			panic(diagnostics.Type(line, 0, fmt.Sprintf("type mismatch in binary expression: %s vs %s", lt, rt)))
		}
	}
	resultType := lt
	if isComparisonOp(op) {
		resultType = p.reg.Primitive(types.KindBool)
	}
	return &ast.BinaryExpr{LineNo: line, Op: op, Left: left, Right: right, Type: resultType}
}

func isComparisonOp(op string) bool {
	switch op {
	case "==", "<", "<=", ">", ">=":
		return true
	}
	return false
}

// parsePrimary parses one operand: a literal, a macro, an identifier
// (variable/constant/library reference, possibly followed by a method
// call), or a parenthesized sub-expression.
//
// Address, Hash, and Bytes literals all keep their raw lexeme text as Value
// rather than hex-decoding it: vm/assembler.go's parseLiteral treats those
// literal kinds the same way when re-assembling a disassembled program, so
// decoding here would desynchronize the two.
func (p *Parser) parsePrimary(sc *scope.Scope) ast.Expression {
	tok := p.cur
	switch tok.Kind {
	case token.Number:
		p.advance()
		n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			panic(diagnostics.Syntax(tok.Pos.Line, tok.Pos.Column, "malformed number literal "+tok.Lexeme))
		}
		return &ast.Literal{LineNo: tok.Pos.Line, Type: p.reg.Primitive(types.KindNumber), Value: n}
	case token.String:
		p.advance()
		return &ast.Literal{LineNo: tok.Pos.Line, Type: p.reg.Primitive(types.KindString), Value: tok.Lexeme}
	case token.Bool:
		p.advance()
		return &ast.Literal{LineNo: tok.Pos.Line, Type: p.reg.Primitive(types.KindBool), Value: tok.Lexeme == "true"}
	case token.Address:
		p.advance()
		return &ast.Literal{LineNo: tok.Pos.Line, Type: p.reg.Primitive(types.KindAddress), Value: []byte(tok.Lexeme)}
	case token.Hash:
		p.advance()
		return &ast.Literal{LineNo: tok.Pos.Line, Type: p.reg.Primitive(types.KindHash), Value: []byte(tok.Lexeme)}
	case token.Bytes:
		p.advance()
		return &ast.Literal{LineNo: tok.Pos.Line, Type: p.reg.Primitive(types.KindBytes), Value: []byte(tok.Lexeme)}
	case token.Macro:
		p.advance()
		return p.expandMacro(sc, tok)
	case token.Identifier:
		return p.parseIdentExpr(sc)
	case token.Separator:
		if tok.Lexeme == "(" {
			p.advance()
			inner := p.parseExpr(sc)
			p.expectSeparatorTok(")")
			return inner
		}
	}
	panic(diagnostics.Syntax(tok.Pos.Line, tok.Pos.Column, fmt.Sprintf("unexpected token %q in expression", tok.Lexeme)))
}

// macroTable is the fixed `$NAME` -> Runtime library call mapping (spec
// §4.2). Unknown macros are a compile error, not silently passed through.
var macroTable = map[string]struct{ Library, Method string }{
	"THIS_ADDRESS": {"Runtime", "thisAddress"},
	"SENDER":       {"Runtime", "sender"},
	"NOW":          {"Runtime", "blockTimestamp"},
	"BLOCK_NUMBER": {"Runtime", "blockNumber"},
}

func (p *Parser) expandMacro(sc *scope.Scope, tok token.Token) ast.Expression {
	entry, ok := macroTable[strings.ToUpper(tok.Lexeme)]
	if !ok {
		panic(diagnostics.Resolution(tok.Pos.Line, tok.Pos.Column, "unknown macro $"+tok.Lexeme))
	}
	libDecl, ok := p.libs[entry.Library]
	if !ok {
		panic(diagnostics.Internal(tok.Pos.Line, tok.Pos.Column, "macro "+tok.Lexeme+" references unknown library "+entry.Library))
	}
	method, ok := libDecl.Lookup(entry.Method)
	if !ok {
		panic(diagnostics.Internal(tok.Pos.Line, tok.Pos.Column, "macro "+tok.Lexeme+" references unknown method"))
	}
	expanded := &ast.MethodExpr{LineNo: tok.Pos.Line, Library: libDecl, Method: method, Type: method.ReturnType}
	return &ast.MacroExpr{LineNo: tok.Pos.Line, Name: tok.Lexeme, Expanded: expanded}
}

// parseIdentExpr implements spec §4.2's resolution order: constant in the
// current scope chain, then variable, then library at the module root.
func (p *Parser) parseIdentExpr(sc *scope.Scope) ast.Expression {
	tok := p.cur
	name := tok.Lexeme
	p.advance()

	if c, ok := sc.FindConst(name); ok {
		if p.atSelector() {
			panic(diagnostics.Shape(tok.Pos.Line, tok.Pos.Column, "cannot call a method on constant "+name))
		}
		return &ast.ConstExpr{LineNo: tok.Pos.Line, Decl: c}
	}
	if v, ok := sc.FindVariable(name, false); ok {
		if p.atSelector() {
			return p.parseCollectionMethodCall(sc, tok, v)
		}
		return &ast.VarExpr{LineNo: tok.Pos.Line, Decl: v}
	}
	if lib, ok := sc.FindLibrary(name); ok {
		libDecl, ok2 := lib.(*library.LibraryDeclaration)
		if !ok2 {
			panic(diagnostics.Internal(tok.Pos.Line, tok.Pos.Column, "library binding has unexpected type"))
		}
		if !p.atSelector() {
			panic(diagnostics.Shape(tok.Pos.Line, tok.Pos.Column, "library "+name+" is not a value"))
		}
		return p.parseLibraryMethodCall(sc, tok, libDecl, nil)
	}
	panic(diagnostics.Resolution(tok.Pos.Line, tok.Pos.Column, "unknown identifier "+name))
}

// parseCollectionMethodCall resolves `x.method(...)` on a storage
// map/list/set variable by patching the matching generic intrinsic library
// to x's declared key/value types (spec §4.2 "Generic-library patching"),
// then delegating to the shared call-site grammar. The call is built with
// Receiver set and WITHOUT the implicit first argument `x`'s name —
// codegen re-derives it from Receiver.
func (p *Parser) parseCollectionMethodCall(sc *scope.Scope, recvTok token.Token, decl *scope.VarDecl) *ast.MethodExpr {
	var patched *library.LibraryDeclaration
	switch decl.Type.Kind() {
	case types.KindStorageMap:
		md := p.mapDecls[decl]
		patched = library.PatchMap(p.libs["Map"], md.KeyType, md.ValueType)
	case types.KindStorageList:
		ld := p.listDecls[decl]
		patched = library.PatchList(p.libs["List"], ld.ValueType)
	case types.KindStorageSet:
		sd := p.setDecls[decl]
		patched = library.PatchSet(p.libs["Set"], sd.ValueType)
	default:
		panic(diagnostics.Shape(recvTok.Pos.Line, recvTok.Pos.Column, "cannot call a method on "+decl.Type.String()+" variable "+decl.Name))
	}
	return p.parseLibraryMethodCall(sc, recvTok, patched, decl)
}

// parseLibraryMethodCall parses `'.' Ident '(' args ')'` against libDecl.
// When receiver is non-nil the declared parameter list's implicit first
// slot (the collection's own name, spec §4.2) is skipped when checking the
// arguments the caller actually wrote.
func (p *Parser) parseLibraryMethodCall(sc *scope.Scope, recvTok token.Token, libDecl *library.LibraryDeclaration, receiver *scope.VarDecl) *ast.MethodExpr {
	p.expectSelectorTok()
	// A method name may lex as a Type token when it spells a type name
	// (e.g. Crypto.hash), so both kinds are accepted here.
	methodTok := p.cur
	if methodTok.Kind != token.Identifier && methodTok.Kind != token.Type {
		panic(diagnostics.Syntax(methodTok.Pos.Line, methodTok.Pos.Column, "expected identifier"))
	}
	p.advance()
	method, ok := libDecl.Lookup(methodTok.Lexeme)
	if !ok {
		panic(diagnostics.Resolution(methodTok.Pos.Line, methodTok.Pos.Column, "unknown method "+methodTok.Lexeme+" on library "+libDecl.Name))
	}
	p.expectSeparatorTok("(")
	var args []ast.Expression
	if !p.atSeparatorTok(")") {
		for {
			args = append(args, p.parseExpr(sc))
			if p.atSeparatorTok(",") {
				p.advance()
				continue
			}
			break
		}
	}
	p.expectSeparatorTok(")")

	declared := method.Parameters
	if receiver != nil && len(declared) > 0 {
		declared = declared[1:] // implicit receiver-name argument, not written by the caller
	}
	if !method.Variadic && len(args) != len(declared) {
		panic(diagnostics.Shape(recvTok.Pos.Line, recvTok.Pos.Column,
			fmt.Sprintf("%s.%s expects %d argument(s), got %d", libDecl.Name, method.Name, len(declared), len(args))))
	}
	for i, arg := range args {
		if i >= len(declared) {
			break // variadic tail
		}
		want := declared[i].Type
		if want != nil && want.Kind() != types.KindAny && want.Kind() != types.KindGeneric && arg.ResultType() != want {
			panic(diagnostics.Type(recvTok.Pos.Line, recvTok.Pos.Column,
				fmt.Sprintf("argument %d to %s.%s: expected %s, got %s", i+1, libDecl.Name, method.Name, want, arg.ResultType())))
		}
	}
	return &ast.MethodExpr{LineNo: recvTok.Pos.Line, Library: libDecl, Method: method, Receiver: receiver, Args: args, Type: method.ReturnType}
}
