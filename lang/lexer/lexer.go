// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package lexer implements a single-pass, no-backtracking lexer for the
// Tomb language.
package lexer

import (
	"fmt"

	"github.com/sfichera/tomb/diagnostics"
	"github.com/sfichera/tomb/lang/token"
)

// recognizedTypeNames are the VarKind spellings the lexer promotes an
// Identifier to a Type token for (spec §4.1). Meta kinds (Unknown, Any,
// Generic, None) are deliberately excluded — they never appear as source
// syntax, only as internal VarKind values.
var recognizedTypeNames = map[string]bool{
	"number": true, "bool": true, "string": true, "bytes": true,
	"address": true, "hash": true,
	"storage_map": true, "storage_list": true, "storage_set": true,
}

// Lexer holds the state for a single-pass tokenization run.
type Lexer struct {
	filename string
	input    []byte

	pos  int // index of the next unread byte
	line int
	col  int

	ch byte // current character; 0 past end
}

// New creates a new Lexer for the given filename and input text.
func New(filename, input string) *Lexer {
	l := &Lexer{filename: filename, input: []byte(input), line: 1, col: 0}
	l.advance()
	return l
}

func (l *Lexer) advance() {
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	if l.pos >= len(l.input) {
		l.ch = 0
		// Step pos past the end so pos-1 still marks the current position
		// and sliceSince includes the final byte of a lexeme ending at EOF.
		l.pos = len(l.input) + 1
		return
	}
	l.ch = l.input[l.pos]
	l.pos++
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{File: l.filename, Line: l.line, Column: l.col, Offset: l.pos - 1}
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.advance()
		case l.ch == '/' && l.peek() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.advance()
			}
		case l.ch == '/' && l.peek() == '*':
			pos := l.currentPos()
			l.advance() // consume '/'
			l.advance() // consume '*'
			closed := false
			for l.ch != 0 {
				if l.ch == '*' && l.peek() == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return diagnostics.Lex(pos.Line, pos.Column, "unterminated block comment")
			}
		default:
			return nil
		}
	}
}

// NextToken scans and returns the next token, or an error belonging to the
// diagnostics.LexError category.
func (l *Lexer) NextToken() (token.Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return token.Token{}, err
	}

	pos := l.currentPos()
	ch := l.ch

	if ch == 0 {
		return token.Token{Kind: token.EOF, Pos: pos}, nil
	}

	switch {
	case isIdentStart(ch):
		return l.readIdentifier(pos), nil
	case ch == '0' && (l.peekAfter1() == 'x' || l.peekAfter1() == 'X'):
		return l.readBytes(pos)
	case isDigit(ch) || (ch == '-' && isDigit(l.peek())):
		return l.readNumber(pos), nil
	case ch == '"':
		return l.readString(pos)
	case ch == '@':
		return l.readAddress(pos)
	case ch == '#':
		return l.readHash(pos)
	case ch == '$':
		return l.readMacro(pos)
	}

	if tok, ok := l.tryReadOperator(pos); ok {
		return tok, nil
	}

	switch ch {
	case '(', ')', '{', '}', '[', ']', ',', ';':
		l.advance()
		return token.Token{Kind: token.Separator, Lexeme: string(ch), Pos: pos}, nil
	case '.':
		l.advance()
		return token.Token{Kind: token.Selector, Lexeme: ".", Pos: pos}, nil
	case ':':
		l.advance()
		return token.Token{Kind: token.Operator, Lexeme: ":", Pos: pos}, nil
	case '=':
		l.advance()
		return token.Token{Kind: token.Operator, Lexeme: "=", Pos: pos}, nil
	}

	return token.Token{}, diagnostics.Lex(pos.Line, pos.Column, fmt.Sprintf("unexpected character %q", ch))
}

// Tokenize scans the whole input. It stops at the first LexError.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks, nil
		}
	}
}

// peekAfter1 peeks one byte past the current char (i.e. input[pos], one
// byte ahead of pos-1). Used to look past a leading '0' for the "0x" bytes-literal prefix.
func (l *Lexer) peekAfter1() byte {
	return l.peek()
}

func (l *Lexer) readIdentifier(pos token.Position) token.Token {
	start := l.pos - 1
	for isIdentContinue(l.ch) {
		l.advance()
	}
	lit := l.sliceSince(start)

	lower := toLower(lit)
	switch {
	case lit == "true" || lit == "false":
		return token.Token{Kind: token.Bool, Lexeme: lit, Pos: pos}
	case recognizedTypeNames[lower]:
		return token.Token{Kind: token.Type, Lexeme: lit, Pos: pos}
	default:
		return token.Token{Kind: token.Identifier, Lexeme: lit, Pos: pos}
	}
}

// sliceSince returns input[start:cur) where cur is the offset of the
// current unread character (l.pos-1), guarding the end-of-input case.
func (l *Lexer) sliceSince(start int) string {
	end := l.pos - 1
	if end > len(l.input) {
		end = len(l.input)
	}
	if end < start {
		end = start
	}
	return string(l.input[start:end])
}

func (l *Lexer) readBytes(pos token.Position) (token.Token, error) {
	start := l.pos - 1
	l.advance() // consume '0'
	l.advance() // consume 'x'/'X'
	for isHexDigit(l.ch) {
		l.advance()
	}
	lit := l.sliceSince(start)
	if len(lit) <= 2 {
		return token.Token{}, diagnostics.Lex(pos.Line, pos.Column, "bytes literal has no hex digits")
	}
	return token.Token{Kind: token.Bytes, Lexeme: lit, Pos: pos}, nil
}

func (l *Lexer) readNumber(pos token.Position) token.Token {
	start := l.pos - 1
	if l.input[start] == '-' {
		l.advance() // consume leading '-'
	}
	for isDigit(l.ch) {
		l.advance()
	}
	return token.Token{Kind: token.Number, Lexeme: l.sliceSince(start), Pos: pos}
}

func (l *Lexer) readString(pos token.Position) (token.Token, error) {
	l.advance() // consume opening '"'
	var buf []byte
	for {
		switch l.ch {
		case 0:
			return token.Token{}, diagnostics.Lex(pos.Line, pos.Column, "unterminated string literal")
		case '\n':
			if l.peek() == 0 {
				return token.Token{}, diagnostics.Lex(pos.Line, pos.Column, "unterminated string literal")
			}
			// line continuation elision: a bare newline inside the string is
			// dropped rather than ending the literal.
			l.advance()
		case '"':
			l.advance() // consume closing '"'
			return token.Token{Kind: token.String, Lexeme: string(buf), Pos: pos}, nil
		default:
			buf = append(buf, l.ch)
			l.advance()
		}
	}
}

func (l *Lexer) readAddress(pos token.Position) (token.Token, error) {
	l.advance() // consume '@'
	start := l.pos - 1
	for isBase58Char(l.ch) {
		l.advance()
	}
	lit := l.sliceSince(start)
	if lit == "" {
		return token.Token{}, diagnostics.Lex(pos.Line, pos.Column, "empty address literal")
	}
	return token.Token{Kind: token.Address, Lexeme: lit, Pos: pos}, nil
}

func (l *Lexer) readHash(pos token.Position) (token.Token, error) {
	l.advance() // consume '#'
	start := l.pos - 1
	for isHexDigit(l.ch) {
		l.advance()
	}
	lit := l.sliceSince(start)
	if lit == "" {
		return token.Token{}, diagnostics.Lex(pos.Line, pos.Column, "empty hash literal")
	}
	return token.Token{Kind: token.Hash, Lexeme: lit, Pos: pos}, nil
}

func (l *Lexer) readMacro(pos token.Position) (token.Token, error) {
	l.advance() // consume '$'
	start := l.pos - 1
	for isIdentContinue(l.ch) {
		l.advance()
	}
	lit := l.sliceSince(start)
	if lit == "" {
		return token.Token{}, diagnostics.Lex(pos.Line, pos.Column, "empty macro name")
	}
	return token.Token{Kind: token.Macro, Lexeme: lit, Pos: pos}, nil
}

// tryReadOperator attempts the longest-match operator at the current
// position. asm blocks are handled by ReadAsmBlock, called by the parser
// once it sees the "asm" keyword followed by "{".
func (l *Lexer) tryReadOperator(pos token.Position) (token.Token, bool) {
	rest := l.remainderFromCurrent()
	for _, op := range token.Operators {
		if len(rest) >= len(op) && string(rest[:len(op)]) == op {
			for i := 0; i < len(op); i++ {
				l.advance()
			}
			return token.Token{Kind: token.Operator, Lexeme: op, Pos: pos}, true
		}
	}
	return token.Token{}, false
}

// remainderFromCurrent returns the unread input starting at the current
// character (inclusive), bounded to a small window sufficient for the
// longest operator (3 bytes).
func (l *Lexer) remainderFromCurrent() []byte {
	start := l.pos - 1
	end := start + 3
	if end > len(l.input) {
		end = len(l.input)
	}
	if start > len(l.input) {
		start = len(l.input)
	}
	return l.input[start:end]
}

// ReadAsmBlock captures the interior of an `asm { ... }` body verbatim,
// newline-joined, once the parser has consumed the "asm" identifier and the
// opening '{'. The lexer itself returns the closing '}' as a separate
// Separator token, per spec §4.1 ("surrounding braces remain separate
// tokens").
func (l *Lexer) ReadAsmBlock() (token.Token, error) {
	pos := l.currentPos()
	depth := 1
	start := l.pos - 1
	for {
		switch l.ch {
		case 0:
			return token.Token{}, diagnostics.Lex(pos.Line, pos.Column, "unterminated asm block")
		case '{':
			depth++
			l.advance()
		case '}':
			depth--
			if depth == 0 {
				lit := l.sliceSince(start)
				return token.Token{Kind: token.Asm, Lexeme: lit, Pos: pos}, nil
			}
			l.advance()
		default:
			l.advance()
		}
	}
}

// ---------------------------------------------------------------------------
// Character classification
// ---------------------------------------------------------------------------

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isBase58Char(ch byte) bool {
	if ch == '0' || ch == 'O' || ch == 'I' || ch == 'l' {
		return false
	}
	return isDigit(ch) || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentContinue(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
