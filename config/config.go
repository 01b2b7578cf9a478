// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package config decodes cmd/tombc's TOML option file, mirroring go-probe's
// own cmd/gprobe/config.go convention: a toml.Config with strict field-name
// matching, and a MissingField hook that turns a typo'd key into an error
// instead of silently ignoring it.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"
)

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Options holds cmd/tombc's compile-time behavior, settable from a TOML
// file and overridable by CLI flags.
type Options struct {
	// Emit selects which pipeline stage to print: tokens, ast, ir,
	// bytecode, or abi.
	Emit string `toml:",omitempty"`
	// Optimize is recorded and decoded like the other options, but
	// lang/codegen does not read it: constant folding always runs.
	Optimize bool
	// Verify is recorded and decoded like the other options, but
	// lang/codegen does not read it: the register pool's leak check
	// always runs after every lowered method.
	Verify bool
	// CustomBase is spec §3's Custom_base: the numeric_value assigned to a
	// contract's first declared event.
	CustomBase int64
	// LineMap additionally emits the offset -> source line sidecar table
	// (spec §6 "source_line_map: optional") alongside -emit bytecode.
	LineMap bool
}

// Defaults mirrors go-probe's exported `probeconfig.Defaults` pattern: a
// zero-value Options is usable, but -emit defaults to the full pipeline's
// last stage and both optimize/verify default on.
var Defaults = Options{
	Emit:       "bytecode",
	Optimize:   true,
	Verify:     true,
	CustomBase: 1000,
}

// Load decodes a TOML file into cfg, starting from cfg's current values
// (callers should seed cfg with Defaults first).
func Load(file string, cfg *Options) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}
