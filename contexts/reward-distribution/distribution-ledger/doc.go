// Package distributionledger implements the batched, multi-token reward
// distribution ledger for the merkledrop monolith.
//
// The module owns all per-token distribution state and exposes HTTP
// command/query handlers plus the outbox relay worker entrypoint. Funds
// are released against Merkle membership proofs; replay prevention uses a
// 256-bit claim word per (beneficiary, token, word index).
package distributionledger
