// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command tombc is the Tomb compiler's CLI driver. It mirrors go-probe's own
// cmd/gprobe: a urfave/cli.v1 App with a single TOML config file flag whose
// values CLI flags can override, colored diagnostic output, and a
// -emit flag that stops the pipeline at whichever stage the caller wants
// inspected, generalizing probec's own "-emit tokens" convention.
package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/sfichera/tomb/compiler"
	"github.com/sfichera/tomb/config"
	"github.com/sfichera/tomb/diagnostics"
	"github.com/sfichera/tomb/lang/codegen"
	"github.com/sfichera/tomb/lang/lexer"
	"github.com/sfichera/tomb/lang/token"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	emitFlag = cli.StringFlag{
		Name:  "emit",
		Usage: "pipeline stage to print: tokens, ast, ir, bytecode, abi",
	}
	optimizeFlag = cli.BoolFlag{
		Name:  "optimize",
		Usage: "recorded in the options only; codegen always constant-folds",
	}
	verifyFlag = cli.BoolFlag{
		Name:  "verify",
		Usage: "recorded in the options only; codegen always verifies the register pool drains",
	}
	customBaseFlag = cli.Int64Flag{
		Name:  "custom-base",
		Usage: "numeric_value assigned to a contract's first declared event",
	}
	linemapFlag = cli.BoolFlag{
		Name:  "linemap",
		Usage: "alongside -emit bytecode, also print the offset -> source line sidecar",
	}
)

var errOut = colorable.NewColorableStderr()

func init() {
	// stderr piped to a file or another process (CI logs, `| tee`) gets
	// colorable's passthrough writer but no escape codes — matches
	// go-probe's own terminal-detection convention for its log handler.
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "tombc"
	app.Usage = "compile Tomb contracts and scripts to register-VM bytecode"
	app.Flags = []cli.Flag{configFileFlag, emitFlag, optimizeFlag, verifyFlag, customBaseFlag, linemapFlag}
	app.Action = compileAction

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(errOut, color.RedString("fatal: %v", err))
		os.Exit(1)
	}
}

func compileAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("usage: tombc [flags] <source.tomb>", 1)
	}
	source := ctx.Args().Get(0)

	opts := config.Defaults
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := config.Load(file, &opts); err != nil {
			return cli.NewExitError(fmt.Sprintf("config: %v", err), 1)
		}
	}
	if ctx.IsSet(emitFlag.Name) {
		opts.Emit = ctx.String(emitFlag.Name)
	}
	if ctx.IsSet(optimizeFlag.Name) {
		opts.Optimize = ctx.Bool(optimizeFlag.Name)
	}
	if ctx.IsSet(verifyFlag.Name) {
		opts.Verify = ctx.Bool(verifyFlag.Name)
	}
	if ctx.IsSet(customBaseFlag.Name) {
		opts.CustomBase = ctx.Int64(customBaseFlag.Name)
	}
	if ctx.IsSet(linemapFlag.Name) {
		opts.LineMap = ctx.Bool(linemapFlag.Name)
	}

	body, err := ioutil.ReadFile(source)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("reading %s: %v", source, err), 1)
	}

	switch opts.Emit {
	case "tokens":
		return emitTokens(source, string(body))
	case "ast":
		return emitAST(source, string(body), opts)
	default:
		return emitCompiled(source, string(body), opts)
	}
}

func emitTokens(filename, source string) error {
	toks, err := lexer.New(filename, source).Tokenize()
	if err != nil {
		return reportDiagnostic("", err)
	}
	for _, t := range toks {
		if t.Kind == token.EOF {
			continue
		}
		fmt.Printf("%-14s %-10s %q\n", t.Pos.String(), t.Kind.String(), t.Lexeme)
	}
	return nil
}

func emitAST(filename, source string, opts config.Options) error {
	ctx := compiler.NewContext(opts.CustomBase)
	_, err := ctx.Compile(filename, source)
	if err != nil {
		return reportDiagnostic(ctx.SessionID.String(), err)
	}
	fmt.Println(color.CyanString("parsed %s without error (pass -emit bytecode for lowered output)", filename))
	return nil
}

func emitCompiled(filename, source string, opts config.Options) error {
	ctx := compiler.NewContext(opts.CustomBase)
	artifacts, err := ctx.Compile(filename, source)
	if err != nil {
		return reportDiagnostic(ctx.SessionID.String(), err)
	}

	for _, a := range artifacts {
		switch opts.Emit {
		case "abi":
			printABI(a)
		case "ir":
			printIR(a)
		default:
			printBytecode(a, opts.LineMap)
		}
	}
	return nil
}

func printBytecode(a *compiler.Artifact, withLineMap bool) {
	fmt.Printf("=== %s (%s), %d bytes ===\n", a.Name, a.Kind, len(a.Bytecode))
	for _, line := range a.Lines {
		fmt.Println(line)
	}
	if withLineMap {
		offsets := make([]int, 0, len(a.SourceLineMap))
		for off := range a.SourceLineMap {
			offsets = append(offsets, off)
		}
		sort.Ints(offsets)
		fmt.Println("line map:")
		for _, off := range offsets {
			fmt.Printf("  offset %-6d -> line %d\n", off, a.SourceLineMap[off])
		}
	}
	if len(a.DescriptionCompressed) > 0 {
		fmt.Printf("(snappy-compressed description: %d -> %d bytes)\n", len(a.Bytecode), len(a.DescriptionCompressed))
	}
}

func printIR(a *compiler.Artifact) {
	fmt.Printf("=== %s (%s) ===\n", a.Name, a.Kind)
	for _, line := range a.Lines {
		fmt.Println(line)
	}
}

func printABI(a *compiler.Artifact) {
	fmt.Printf("=== %s (%s) ===\n", a.Name, a.Kind)
	if a.ABI == nil {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Parameter", "Type"})
		for _, p := range a.Parameters {
			table.Append([]string{p.Name, p.Type})
		}
		table.Render()
		fmt.Printf("returns: %s\n", a.ReturnType)
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Method", "Kind", "Parameters", "Returns", "Offset"})
	for _, m := range a.ABI.Methods {
		table.Append([]string{m.Name, m.Kind, paramList(m.Parameters), m.ReturnType, fmt.Sprintf("%d", m.Offset)})
	}
	table.Render()

	if len(a.ABI.Events) > 0 {
		evTable := tablewriter.NewWriter(os.Stdout)
		evTable.SetHeader([]string{"Event", "Numeric Value", "Payload Type"})
		for _, ev := range a.ABI.Events {
			evTable.Append([]string{ev.Name, fmt.Sprintf("%d", ev.NumericValue), ev.PayloadType})
		}
		evTable.Render()
	}
}

func paramList(params []codegen.ABIParam) string {
	out := ""
	for i, p := range params {
		if i > 0 {
			out += ", "
		}
		out += p.Name + ": " + p.Type
	}
	return out
}

// reportDiagnostic prints err to errOut, prefixed with the session that
// produced it when one is available, so a batch of diagnostics from one
// Compile call can be correlated back to it externally (sessionID is empty
// for -emit tokens, which lexes without a CompilerContext).
func reportDiagnostic(sessionID string, err error) error {
	prefix := ""
	if sessionID != "" {
		prefix = fmt.Sprintf("[session %s] ", sessionID)
	}
	if de, ok := err.(*diagnostics.Error); ok {
		fmt.Fprintln(errOut, color.RedString("%s%s", prefix, de.Error()))
		if de.Category == diagnostics.InternalError && de.Stack != nil {
			fmt.Fprintf(errOut, "%+v\n", de.Stack)
		}
		return cli.NewExitError("", 1)
	}
	fmt.Fprintln(errOut, color.RedString("%s%v", prefix, err))
	return cli.NewExitError("", 1)
}
