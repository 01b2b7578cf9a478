// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package diagnostics defines the Tomb compiler's single error taxonomy.
// Every compile-time failure is one of the six categories below, each
// carrying a source position and message (spec §7).
package diagnostics

import (
	"fmt"

	"github.com/go-stack/stack"
)

// Category is one of the six error kinds the compiler can report.
type Category int

const (
	LexError Category = iota
	SyntaxError
	ResolutionError
	TypeError
	ShapeError
	InternalError
)

func (c Category) String() string {
	switch c {
	case LexError:
		return "LexError"
	case SyntaxError:
		return "SyntaxError"
	case ResolutionError:
		return "ResolutionError"
	case TypeError:
		return "TypeError"
	case ShapeError:
		return "ShapeError"
	case InternalError:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// Error is the single error type returned by every compiler stage. Category
// dictates how a caller may react; Line/Column are 1-based.
type Error struct {
	Category Category
	Line     int
	Column   int
	Message  string
	Stack    stack.CallStack // only populated for InternalError
}

func (e *Error) Error() string {
	if e.Line == 0 && e.Column == 0 {
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
	return fmt.Sprintf("%s at %d:%d: %s", e.Category, e.Line, e.Column, e.Message)
}

func Lex(line, col int, msg string) *Error {
	return &Error{Category: LexError, Line: line, Column: col, Message: msg}
}

func Syntax(line, col int, msg string) *Error {
	return &Error{Category: SyntaxError, Line: line, Column: col, Message: msg}
}

func Resolution(line, col int, msg string) *Error {
	return &Error{Category: ResolutionError, Line: line, Column: col, Message: msg}
}

func Type(line, col int, msg string) *Error {
	return &Error{Category: TypeError, Line: line, Column: col, Message: msg}
}

func Shape(line, col int, msg string) *Error {
	return &Error{Category: ShapeError, Line: line, Column: col, Message: msg}
}

// Internal constructs an InternalError and captures the current call stack,
// mirroring go-probe's panic-recovery middleware. InternalErrors represent
// compiler bugs (register leak, double free, pool exhaustion, unexpected
// rewind) — per spec §9 these may still be raised via panic internally and
// are only converted to a returned error at the compile() boundary.
func Internal(line, col int, msg string) *Error {
	return &Error{
		Category: InternalError,
		Line:     line,
		Column:   col,
		Message:  msg,
		Stack:    stack.Trace().TrimRuntime(),
	}
}

// Panic raises an InternalError via panic, for use at call sites with no
// meaningful recovery (spec §9: "the parser/generator may still use panics
// for truly unrecoverable internal invariants").
func Panic(line, col int, msg string) {
	panic(Internal(line, col, msg))
}

// Recover converts a panicked *Error into a returned error, and re-panics
// anything else. Call this in a deferred function at the compile()
// boundary (spec §7: "callers catch once, at the compile() boundary").
func Recover(errp *error) {
	if r := recover(); r != nil {
		if e, ok := r.(*Error); ok {
			*errp = e
			return
		}
		panic(r)
	}
}
