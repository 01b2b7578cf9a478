// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package chain describes the host blockchain's block and transaction
// context that the Tomb compiler's Runtime intrinsic library exposes to
// contract code (spec §6 "Host runtime collaborator"). The runtime's own
// dispatch and on-chain state are out of scope for the compiler (spec §1);
// these two structs exist purely as the field source lang/library reflects
// over to build the Runtime method table, so the set of available
// Runtime.* methods and macro expansions stays in lock-step with what the
// host actually exposes.
package chain

// Block is a blockchain block header.
type Block struct {
	Number    uint64
	Timestamp uint64
	Hash      [32]byte
	Parent    [32]byte
	Validator [20]byte
}

// Transaction is the currently-executing transaction's context.
type Transaction struct {
	Hash     [32]byte
	From     [20]byte
	To       [20]byte
	Value    uint64
	GasPrice uint64
	GasLimit uint64
	Nonce    uint64
}
