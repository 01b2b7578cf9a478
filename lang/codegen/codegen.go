// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package codegen continues to implement the Tomb code generator: this
// file walks a method's statement tree and emits the textual VM assembly
// lines (spec §4.4) that lang/vm.Assemble turns into bytecode. registers.go
// holds the register pool the walk is built on.
package codegen

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/sfichera/tomb/diagnostics"
	"github.com/sfichera/tomb/lang/ast"
	"github.com/sfichera/tomb/lang/scope"
	"github.com/sfichera/tomb/lang/types"
	"github.com/sfichera/tomb/lang/vm"
	"github.com/sfichera/tomb/stdlib/crypto"
)

// Generator lowers one method or script body at a time. A fresh Generator
// is used per method (spec §3: the register pool and label counter are
// reset at each Verify boundary).
type Generator struct {
	pool    *Pool
	labels  *LabelAllocator
	lines   []string
	varRegs map[*scope.VarDecl]*Register
}

func newGenerator() *Generator {
	return &Generator{
		pool:    NewPool(vm.DefaultRegisterCount),
		labels:  &LabelAllocator{},
		varRegs: make(map[*scope.VarDecl]*Register),
	}
}

func (g *Generator) emit(format string, args ...interface{}) {
	g.lines = append(g.lines, fmt.Sprintf(format, args...))
}

func (g *Generator) free(r *Register) error {
	return g.pool.Dealloc(&r)
}

// LowerMethod lowers m's body into textual assembly, assembles it, and
// verifies the register pool is fully drained afterward (spec §8). It
// returns the raw lines too, since lang/vm.Disassemble's output is not a
// substitute for what lang/codegen actually emitted (labels/aliases are
// debug-only and do not round-trip through Assemble).
func LowerMethod(m *ast.MethodInterface) (*vm.Program, []string, error) {
	g := newGenerator()
	if err := g.lowerMethod(m); err != nil {
		return nil, nil, err
	}
	prog, err := vm.Assemble(g.lines)
	if err != nil {
		return nil, nil, diagnostics.Internal(m.Line(), 0, "assembler rejected generated code: "+err.Error())
	}
	return prog, g.lines, nil
}

// LowerScript lowers a Script's MainBlock the same way LowerMethod lowers a
// MethodInterface's Body (spec §4.5: scripts, including hidden description
// scripts, compile to the same bytecode shape as a method).
func LowerScript(s *ast.Script) (*vm.Program, []string, error) {
	g := newGenerator()
	if err := g.lowerParams(s.Scope, s.Parameters); err != nil {
		return nil, nil, err
	}
	if err := g.lowerBlock(s.MainBlock); err != nil {
		return nil, nil, err
	}
	if err := g.freeScopeVars(s.Scope); err != nil {
		return nil, nil, err
	}
	if err := g.pool.Verify(); err != nil {
		return nil, nil, err
	}
	prog, err := vm.Assemble(g.lines)
	if err != nil {
		return nil, nil, diagnostics.Internal(s.Line(), 0, "assembler rejected generated code: "+err.Error())
	}
	return prog, g.lines, nil
}

func (g *Generator) lowerMethod(m *ast.MethodInterface) error {
	if err := g.lowerParams(m.Scope, m.Parameters); err != nil {
		return err
	}
	if m.Body != nil {
		if err := g.lowerBlock(m.Body); err != nil {
			return err
		}
	}
	if err := g.freeScopeVars(m.Scope); err != nil {
		return err
	}
	return g.pool.Verify()
}

// lowerParams allocates one aliased register per declared parameter and
// records it against the matching VarDecl so later VarExpr reads resolve
// to it (spec §4.4's "ARG rK idx" / "ALIAS rK $name" directives).
func (g *Generator) lowerParams(sc *scope.Scope, params []ast.Param) error {
	for i, p := range params {
		decl, ok := sc.FindVariable(p.Name, true)
		if !ok {
			return diagnostics.Internal(0, 0, "codegen: parameter "+p.Name+" has no scope binding")
		}
		reg, err := g.pool.Alloc(decl, p.Name)
		if err != nil {
			return err
		}
		g.emit("ARG r%d %d", reg.Index, i)
		g.emit("ALIAS r%d $%s", reg.Index, p.Name)
		g.varRegs[decl] = reg
	}
	return nil
}

// lowerBlock lowers every statement of b in order, then frees whatever
// registers b.Scope's own (non-inherited) variables were holding — the
// lifetime rule that keeps a deeply nested block's locals from leaking into
// its enclosing method (spec §4.3 "a scope destruction implies all inner
// VarDecls are dead").
func (g *Generator) lowerBlock(b *ast.StatementBlock) error {
	for _, s := range b.Stmts {
		if err := g.lowerStmt(s); err != nil {
			return err
		}
	}
	return g.freeScopeVars(b.Scope)
}

// freeScopeVars frees whatever registers sc's own (non-inherited) variables
// are holding. lowerBlock calls this for a statement block's locals;
// lowerMethod/LowerScript call it a second time for a method/script's
// param scope, which lowerBlock never touches since parseParams and
// parseBlock build separate Scope objects (spec §4.3's scope-destruction
// rule applies to both, just at different points in the walk).
func (g *Generator) freeScopeVars(sc *scope.Scope) error {
	for _, v := range sc.Variables() {
		reg, ok := g.varRegs[v]
		if !ok {
			continue
		}
		delete(g.varRegs, v)
		if err := g.free(reg); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) lowerStmt(s ast.Statement) error {
	switch st := s.(type) {
	case *ast.LocalDeclStmt:
		return g.lowerLocalDecl(st)
	case *ast.AssignStmt:
		return g.lowerAssign(st)
	case *ast.IfStmt:
		return g.lowerIf(st)
	case *ast.WhileStmt:
		return g.lowerWhile(st)
	case *ast.DoWhileStmt:
		return g.lowerDoWhile(st)
	case *ast.ReturnStmt:
		return g.lowerReturn(st)
	case *ast.ThrowStmt:
		g.emit("THROW %s", st.Message)
		return nil
	case *ast.EmitStmt:
		return g.lowerEmit(st)
	case *ast.AsmBlockStmt:
		g.lines = append(g.lines, st.Lines...)
		return nil
	case *ast.MethodCallStmt:
		reg, err := g.lowerMethodCall(st.Call)
		if err != nil {
			return err
		}
		if reg != nil {
			return g.free(reg)
		}
		return nil
	default:
		return diagnostics.Internal(s.Line(), 0, fmt.Sprintf("codegen: unhandled statement %T", s))
	}
}

func (g *Generator) lowerLocalDecl(s *ast.LocalDeclStmt) error {
	reg, err := g.pool.Alloc(s.Decl, s.Decl.Name)
	if err != nil {
		return err
	}
	g.emit("ALIAS r%d $%s", reg.Index, s.Decl.Name)
	g.varRegs[s.Decl] = reg
	if s.Init == nil {
		return nil
	}
	val, err := g.lowerExpr(s.Init)
	if err != nil {
		return err
	}
	g.emit("MOVE r%d r%d", reg.Index, val.Index)
	return g.free(val)
}

func (g *Generator) lowerAssign(s *ast.AssignStmt) error {
	val, err := g.lowerExpr(s.Value)
	if err != nil {
		return err
	}
	if s.Target.Storage == scope.Global {
		g.emit("STORE_GLOBAL r%d %s", val.Index, s.Target.Name)
		return g.free(val)
	}
	dst, ok := g.varRegs[s.Target]
	if !ok {
		return diagnostics.Internal(s.Line(), 0, "codegen: assignment to unregistered variable "+s.Target.Name)
	}
	g.emit("MOVE r%d r%d", dst.Index, val.Index)
	return g.free(val)
}

func (g *Generator) lowerIf(s *ast.IfStmt) error {
	cond, err := g.lowerExpr(s.Cond)
	if err != nil {
		return err
	}
	elseLabel := g.labels.Allocate()
	g.emit("JMPIFNOT r%d %s", cond.Index, elseLabel)
	if err := g.free(cond); err != nil {
		return err
	}
	if err := g.lowerBlock(s.Then); err != nil {
		return err
	}
	if s.Else == nil {
		g.emit("LABEL %s", elseLabel)
		return nil
	}
	endLabel := g.labels.Allocate()
	g.emit("JMP %s", endLabel)
	g.emit("LABEL %s", elseLabel)
	if err := g.lowerBlock(s.Else); err != nil {
		return err
	}
	g.emit("LABEL %s", endLabel)
	return nil
}

func (g *Generator) lowerWhile(s *ast.WhileStmt) error {
	top := g.labels.Allocate()
	end := g.labels.Allocate()
	g.emit("LABEL %s", top)
	cond, err := g.lowerExpr(s.Cond)
	if err != nil {
		return err
	}
	g.emit("JMPIFNOT r%d %s", cond.Index, end)
	if err := g.free(cond); err != nil {
		return err
	}
	if err := g.lowerBlock(s.Body); err != nil {
		return err
	}
	g.emit("JMP %s", top)
	g.emit("LABEL %s", end)
	return nil
}

func (g *Generator) lowerDoWhile(s *ast.DoWhileStmt) error {
	top := g.labels.Allocate()
	g.emit("LABEL %s", top)
	if err := g.lowerBlock(s.Body); err != nil {
		return err
	}
	cond, err := g.lowerExpr(s.Cond)
	if err != nil {
		return err
	}
	g.emit("JMPIF r%d %s", cond.Index, top)
	return g.free(cond)
}

func (g *Generator) lowerReturn(s *ast.ReturnStmt) error {
	if s.Value == nil {
		g.emit("RET")
		return nil
	}
	val, err := g.lowerExpr(s.Value)
	if err != nil {
		return err
	}
	g.emit("RET r%d", val.Index)
	return g.free(val)
}

func (g *Generator) lowerEmit(s *ast.EmitStmt) error {
	addr, err := g.lowerExpr(s.Addr)
	if err != nil {
		return err
	}
	g.emit("PUSH r%d", addr.Index)
	if err := g.free(addr); err != nil {
		return err
	}
	val, err := g.lowerExpr(s.Value)
	if err != nil {
		return err
	}
	g.emit("PUSH r%d", val.Index)
	if err := g.free(val); err != nil {
		return err
	}
	g.emit("EMIT %d", s.Event.NumericValue)
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// lowerExpr emits the instructions that compute e's value and returns a
// freshly allocated register holding the result. Every returned register
// is the caller's to free — lowerExpr never hands back a variable's own
// register directly, so freeing a value temporary never double-frees a
// variable binding.
func (g *Generator) lowerExpr(e ast.Expression) (*Register, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return g.lowerLiteral(v)
	case *ast.VarExpr:
		return g.lowerVar(v)
	case *ast.ConstExpr:
		return g.lowerConst(v)
	case *ast.BinaryExpr:
		return g.lowerBinary(v)
	case *ast.NegationExpr:
		return g.lowerNegation(v)
	case *ast.CastExpr:
		return g.lowerCast(v)
	case *ast.MethodExpr:
		return g.lowerMethodCall(v)
	case *ast.MacroExpr:
		return g.lowerExpr(v.Expanded)
	default:
		return nil, diagnostics.Internal(e.Line(), 0, fmt.Sprintf("codegen: unhandled expression %T", e))
	}
}

func (g *Generator) lowerLiteral(l *ast.Literal) (*Register, error) {
	reg, err := g.pool.Alloc(l, "")
	if err != nil {
		return nil, err
	}
	tok, err := literalToken(l.Type, l.Value)
	if err != nil {
		return nil, err
	}
	g.emit("LOAD r%d %s", reg.Index, tok)
	return reg, nil
}

func (g *Generator) lowerVar(v *ast.VarExpr) (*Register, error) {
	if v.Decl.Storage == scope.Global {
		reg, err := g.pool.Alloc(v, "")
		if err != nil {
			return nil, err
		}
		g.emit("LOAD_GLOBAL r%d %s", reg.Index, v.Decl.Name)
		return reg, nil
	}
	src, ok := g.varRegs[v.Decl]
	if !ok {
		return nil, diagnostics.Internal(v.Line(), 0, "codegen: read of unregistered variable "+v.Decl.Name)
	}
	dst, err := g.pool.Alloc(v, "")
	if err != nil {
		return nil, err
	}
	g.emit("MOVE r%d r%d", dst.Index, src.Index)
	return dst, nil
}

func (g *Generator) lowerConst(c *ast.ConstExpr) (*Register, error) {
	reg, err := g.pool.Alloc(c, "")
	if err != nil {
		return nil, err
	}
	tok, err := literalToken(c.Decl.Type, c.Decl.LiteralValue)
	if err != nil {
		return nil, err
	}
	g.emit("LOAD r%d %s", reg.Index, tok)
	return reg, nil
}

var binaryMnemonics = map[string]string{
	"+": "ADD", "-": "SUB", "*": "MUL", "/": "DIV", "%": "MOD",
	"&": "AND", "|": "OR", "^": "XOR", "<<": "SHL", ">>": "SHR",
	"==": "EQ", "<": "LT", "<=": "LTE", ">": "GT", ">=": "GTE",
}

func (g *Generator) lowerBinary(b *ast.BinaryExpr) (*Register, error) {
	if folded, ok := foldConstant(b); ok {
		reg, err := g.pool.Alloc(b, "")
		if err != nil {
			return nil, err
		}
		g.emit("LOAD r%d $num:%d", reg.Index, folded)
		return reg, nil
	}
	mnem, ok := binaryMnemonics[b.Op]
	if !ok {
		return nil, diagnostics.Internal(b.Line(), 0, "codegen: unknown operator "+b.Op)
	}
	lhs, err := g.lowerExpr(b.Left)
	if err != nil {
		return nil, err
	}
	rhs, err := g.lowerExpr(b.Right)
	if err != nil {
		return nil, err
	}
	dst, err := g.pool.Alloc(b, "")
	if err != nil {
		return nil, err
	}
	g.emit("%s r%d r%d r%d", mnem, dst.Index, lhs.Index, rhs.Index)
	if err := g.free(lhs); err != nil {
		return nil, err
	}
	if err := g.free(rhs); err != nil {
		return nil, err
	}
	return dst, nil
}

// foldConstant resolves a binary expression over two literal Number
// operands at compile time (spec §1 Non-goals: "trivial constant literals
// only" — anything else still emits a runtime instruction). Folding bails
// out to the runtime path on any operand too large or too negative for
// uint256's unsigned range, rather than trying to model Tomb's signedness
// rules here.
func foldConstant(b *ast.BinaryExpr) (int64, bool) {
	ll, ok := b.Left.(*ast.Literal)
	if !ok || ll.Type == nil || ll.Type.Kind() != types.KindNumber {
		return 0, false
	}
	rl, ok := b.Right.(*ast.Literal)
	if !ok || rl.Type == nil || rl.Type.Kind() != types.KindNumber {
		return 0, false
	}
	lv, ok := ll.Value.(int64)
	if !ok || lv < 0 {
		return 0, false
	}
	rv, ok := rl.Value.(int64)
	if !ok || rv < 0 {
		return 0, false
	}
	l, r := uint256.NewInt(uint64(lv)), uint256.NewInt(uint64(rv))
	out := new(uint256.Int)
	switch b.Op {
	case "+":
		out.Add(l, r)
	case "-":
		if l.Lt(r) {
			return 0, false
		}
		out.Sub(l, r)
	case "*":
		out.Mul(l, r)
	case "/":
		if r.IsZero() {
			return 0, false
		}
		out.Div(l, r)
	case "%":
		if r.IsZero() {
			return 0, false
		}
		out.Mod(l, r)
	case "&":
		out.And(l, r)
	case "|":
		out.Or(l, r)
	case "^":
		out.Xor(l, r)
	case "<<":
		out.Lsh(l, uint(rv))
	case ">>":
		out.Rsh(l, uint(rv))
	default:
		return 0, false
	}
	if !out.IsUint64() {
		return 0, false
	}
	return int64(out.Uint64()), true
}

// foldCryptoHash resolves a Crypto.hash call whose single argument is a
// literal Bytes value at compile time, loading the digest directly instead
// of pushing an argument and emitting a runtime CALL. ok is false for any
// other call (wrong library/method, non-literal argument), in which case
// the caller falls through to its normal CALL-emitting path.
func (g *Generator) foldCryptoHash(m *ast.MethodExpr) (*Register, bool, error) {
	if m.Library == nil || m.Library.Name != "Crypto" || m.Method.Name != "hash" || len(m.Args) != 1 {
		return nil, false, nil
	}
	lit, ok := m.Args[0].(*ast.Literal)
	if !ok || lit.Type == nil || lit.Type.Kind() != types.KindBytes {
		return nil, false, nil
	}
	data, ok := lit.Value.([]byte)
	if !ok {
		return nil, false, nil
	}
	digest := crypto.Hash(data)
	reg, err := g.pool.Alloc(m, "")
	if err != nil {
		return nil, true, err
	}
	g.emit("LOAD r%d $hash:%s", reg.Index, hex.EncodeToString(digest[:]))
	return reg, true, nil
}

func (g *Generator) lowerNegation(n *ast.NegationExpr) (*Register, error) {
	src, err := g.lowerExpr(n.Inner)
	if err != nil {
		return nil, err
	}
	dst, err := g.pool.Alloc(n, "")
	if err != nil {
		return nil, err
	}
	g.emit("NOT r%d r%d", dst.Index, src.Index)
	if err := g.free(src); err != nil {
		return nil, err
	}
	return dst, nil
}

func (g *Generator) lowerCast(c *ast.CastExpr) (*Register, error) {
	src, err := g.lowerExpr(c.Inner)
	if err != nil {
		return nil, err
	}
	dst, err := g.pool.Alloc(c, "")
	if err != nil {
		return nil, err
	}
	g.emit("CAST r%d r%d", dst.Index, src.Index)
	if err := g.free(src); err != nil {
		return nil, err
	}
	return dst, nil
}

// lowerMethodCall implements spec §4.2's implicit first argument: a
// collection-variable call `x.m(...)` pushes x's name as a String literal
// before the declared arguments, exactly as if the source had written
// `Map.m("x", ...)`.
func (g *Generator) lowerMethodCall(m *ast.MethodExpr) (*Register, error) {
	if reg, ok, err := g.foldCryptoHash(m); ok || err != nil {
		return reg, err
	}
	if m.Receiver != nil {
		reg, err := g.pool.Alloc(m, "")
		if err != nil {
			return nil, err
		}
		g.emit("LOAD r%d $str:%s", reg.Index, m.Receiver.Name)
		g.emit("PUSH r%d", reg.Index)
		if err := g.free(reg); err != nil {
			return nil, err
		}
	}
	for _, arg := range m.Args {
		reg, err := g.lowerExpr(arg)
		if err != nil {
			return nil, err
		}
		g.emit("PUSH r%d", reg.Index)
		if err := g.free(reg); err != nil {
			return nil, err
		}
	}
	g.emit("CALL %s.%s", m.Library.Name, m.Method.Name)
	if m.Type == nil || m.Type.Kind() == types.KindNone {
		return nil, nil
	}
	dst, err := g.pool.Alloc(m, "")
	if err != nil {
		return nil, err
	}
	g.emit("POP r%d", dst.Index)
	return dst, nil
}

// literalToken renders a literal value as the `$kind:value` token
// lang/vm.Assemble's parseLiteral expects.
func literalToken(t *types.VarType, value interface{}) (string, error) {
	switch t.Kind() {
	case types.KindNumber:
		n, _ := value.(int64)
		return fmt.Sprintf("$num:%d", n), nil
	case types.KindBool:
		b, _ := value.(bool)
		return fmt.Sprintf("$bool:%t", b), nil
	case types.KindString:
		s, _ := value.(string)
		return "$str:" + s, nil
	case types.KindAddress:
		b, _ := value.([]byte)
		return "$addr:" + string(b), nil
	case types.KindHash:
		b, _ := value.([]byte)
		return "$hash:" + string(b), nil
	case types.KindBytes:
		b, _ := value.([]byte)
		return "$bytes:" + string(b), nil
	default:
		return "", diagnostics.Internal(0, 0, "codegen: no literal encoding for "+t.String())
	}
}
