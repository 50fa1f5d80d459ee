// internal/classifier/programs.go
package classifier

import (
	"github.com/gagliardetto/solana-go"
)

// WSOLMint: wrapped SOL; never treated as the traded asset.
var WSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// DefaultDEXPrograms: программы, вызов которых считается сделкой.
var DefaultDEXPrograms = map[string]string{
	"9xQeWvG816bUx9EPua5xkPy5qqkq3Tz7fvTq9m1bGTbT": "serum",
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": "raydium-amm-v4",
	"RVKd61ztZW9aFRuKnbwh6BqzJ8bDgSUn4tjL9qep8vZ":  "raydium",
	"4ckmDgGzLYLyxnYz5qT9bTDsC6F9no8DyzbX5zGdfB9g": "orca",
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  "orca-whirlpool",
	"JUP4Fb2cqiRUcaTHdrPC8h2gNsA2ETXiPDD33WcGuJB":  "jupiter-v4",
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4":  "jupiter-v6",
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P":  "pump.fun",
	"pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA":  "pumpswap",
}
