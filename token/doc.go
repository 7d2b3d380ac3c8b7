// Package token enforces model token budgets. It defines the Codec contract
// (encode/decode against a model's vocabulary), budget helpers built on any
// Codec (counting, tail-keeping truncation, chunking with character bleed)
// and a ristretto-backed count cache for texts that are measured repeatedly.
//
// The bundled SimpleCodec is a lossless word-boundary approximation of
// GPT-family token granularity; deployments that need exact budgets supply a
// Codec matched to their model.
package token
