// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package crypto backs the Tomb compiler's Crypto intrinsic library
// (lang/library). Signature verification and on-chain hashing belong to
// the VM runtime (spec §1 lists crypto libraries as an out-of-scope
// external collaborator), but the compiler itself needs a real hash
// function to constant-fold a Crypto.hash call whose argument is a literal
// (lang/codegen's folding path) — this package wires the actual algorithm
// rather than leaving it a stub.
package crypto

import "golang.org/x/crypto/sha3"

// Hash computes the SHA3-256 (FIPS 202) digest of data, matching the VM's
// 32-byte Hash value type.
func Hash(data []byte) [32]byte {
	var out [32]byte
	sum := sha3.Sum256(data)
	copy(out[:], sum[:])
	return out
}
