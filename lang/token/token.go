// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package token defines the lexical token kinds for the Tomb language.
package token

import "fmt"

// Token is one lexical unit produced by the lexer.
type Token struct {
	Kind   Kind
	Lexeme string
	Pos    Position
}

// Position tracks a source location. Line and Column are 1-based.
type Position struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Kind is the set of token kinds. Unlike the token's lexeme, Kind does not
// distinguish individual keywords or operators — the parser dispatches on
// the lexeme of an Identifier/Operator/Separator token.
type Kind int

const (
	ILLEGAL Kind = iota
	EOF

	Identifier // includes reserved words; parser dispatches on Lexeme
	Type       // identifier matching a VarKind name, case-insensitive
	Number     // -?[0-9]+
	String     // "..."
	Bool       // true | false
	Address    // @base58ish
	Hash       // #hex
	Bytes      // 0xhex
	Macro      // $name
	Asm        // verbatim body of an asm { ... } block
	Operator   // longest-match from the operator set
	Separator  // ( ) { } [ ] , ;
	Selector   // .
)

var kindNames = [...]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",

	Identifier: "Identifier",
	Type:       "Type",
	Number:     "Number",
	String:     "String",
	Bool:       "Bool",
	Address:    "Address",
	Hash:       "Hash",
	Bytes:      "Bytes",
	Macro:      "Macro",
	Asm:        "Asm",
	Operator:   "Operator",
	Separator:  "Separator",
	Selector:   "Selector",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Keywords is the reserved-word set from spec §4.1. A reserved word still
// lexes as Identifier; the parser, not the lexer, dispatches on Lexeme.
var Keywords = map[string]bool{
	"contract": true, "script": true, "description": true, "struct": true,
	"const": true, "global": true, "import": true, "event": true,
	"constructor": true, "public": true, "private": true, "task": true,
	"trigger": true, "code": true, "emit": true, "return": true,
	"throw": true, "local": true, "if": true, "else": true,
	"while": true, "do": true, "asm": true,
}

// IsKeyword reports whether lexeme is a reserved word.
func IsKeyword(lexeme string) bool {
	return Keywords[lexeme]
}

// Operators is the longest-match-first operator table from spec §4.1,
// ordered so that a linear scan tries longer operators before their
// prefixes (e.g. "<<=" before "<<" before "<").
var Operators = []string{
	"<<=", ">>=",
	":=", "==", "!=", "<=", ">=", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"<", ">", "+", "-", "*", "/", "%", "&", "|", "^",
}
