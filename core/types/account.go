package types

import "math/big"

// Account tracks the balance and replay counter for a single address. The
// ledger custodies a single fungible settlement token, so one balance field
// is enough.
type Account struct {
	Nonce       uint64   `json:"nonce"`
	BalanceUSDT *big.Int `json:"balanceUSDT"`
}
