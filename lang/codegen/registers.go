// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package codegen implements the Tomb code generator: a post-order walk
// over each method's statement tree that emits textual VM assembly lines
// (spec §4.4), backed by a fixed-size virtual-register pool whose
// correctness (no double-alloc, no leak, alias uniqueness) gates every
// emitted instruction (spec §3 "Lifetime invariants", §8).
package codegen

import (
	"fmt"

	"github.com/sfichera/tomb/diagnostics"
)

// Register is a handle to an allocated pool slot.
type Register struct {
	Index uint8
	Alias string // "" if the allocation carried no alias
}

type slot struct {
	used  bool
	owner interface{} // the AST node that requested the allocation
	alias string
}

// Pool is the fixed-size virtual-register pool (spec §3, §4.4). Slot 0 is
// reserved by the VM and never handed out.
type Pool struct {
	slots []slot
}

// NewPool creates a pool with n usable registers (1..n); n is normally
// lang/vm.DefaultRegisterCount.
func NewPool(n int) *Pool {
	return &Pool{slots: make([]slot, n+1)}
}

// Alloc scans slots 1..N and claims the first free one. A non-empty alias
// that collides with any other live slot's alias is a fatal ShapeError
// (spec §8 "alias already exists"); pool exhaustion is a fatal
// InternalError.
func (p *Pool) Alloc(owner interface{}, alias string) (*Register, error) {
	if alias != "" {
		for i, s := range p.slots {
			if s.used && s.alias == alias {
				return nil, diagnostics.Shape(0, 0, fmt.Sprintf("alias %q already exists (register r%d)", alias, i))
			}
		}
	}
	for i := 1; i < len(p.slots); i++ {
		if !p.slots[i].used {
			p.slots[i] = slot{used: true, owner: owner, alias: alias}
			return &Register{Index: uint8(i), Alias: alias}, nil
		}
	}
	return nil, diagnostics.Internal(0, 0, "register pool exhausted")
}

// Dealloc frees the slot backing *reg, then nils the caller's handle so a
// second call on the same pointer is caught as a double-free
// (spec §3 "free → allocated → free", §8 scenario 5/6).
func (p *Pool) Dealloc(reg **Register) error {
	if reg == nil || *reg == nil {
		return diagnostics.Internal(0, 0, "double free of already-freed register")
	}
	idx := (*reg).Index
	if int(idx) >= len(p.slots) || !p.slots[idx].used {
		return diagnostics.Internal(0, 0, fmt.Sprintf("double free of register r%d", idx))
	}
	p.slots[idx] = slot{}
	*reg = nil
	return nil
}

// Verify requires every slot to be free (spec §3 "VerifyRegisters"). Called
// once per lowered method; a leak is a fatal InternalError.
func (p *Pool) Verify() error {
	for i, s := range p.slots {
		if s.used {
			return diagnostics.Internal(0, 0, fmt.Sprintf("register r%d not deallocated", i))
		}
	}
	return nil
}

// LabelAllocator hands out jump-target labels from a monotonic counter
// (spec §4.4 "AllocateLabel"). Labels are unique within one allocator only:
// each Generator (one lowered method or script) starts its own at L1, so
// the same label names recur across the methods of a compilation.
type LabelAllocator struct {
	n int
}

// Allocate returns a fresh label name.
func (a *LabelAllocator) Allocate() string {
	a.n++
	return fmt.Sprintf("L%d", a.n)
}
