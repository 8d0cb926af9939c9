package model

import "strings"

// PoolSnapshot describes a single pool at a point in time.
// Balances and total shares are base-unit integer strings; Amp and SwapFee are
// human decimals (e.g. "100" and "0.001").
type PoolSnapshot struct {
	ID          string      `json:"id"`
	Address     string      `json:"address"`
	PoolType    PoolType    `json:"pool_type"`
	Tokens      []TokenInfo `json:"tokens"`
	Amp         string      `json:"amp,omitempty"`
	SwapFee     string      `json:"swap_fee"`
	TotalShares string      `json:"total_shares"`
	BlockNumber uint64      `json:"block_number,omitempty"`
}

// TokenInfo is one constituent token of a pool.
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals *uint8 `json:"decimals,omitempty"`
	Balance  string `json:"balance"`
	// PriceRate is an 18-decimal integer string; empty means identity.
	PriceRate string `json:"price_rate,omitempty"`
	Weight    string `json:"weight,omitempty"`
	PriceUSD  string `json:"price_usd,omitempty"`
}

// TokenIndex returns the index of address in the pool token list, or -1.
func (p PoolSnapshot) TokenIndex(address string) int {
	for i, token := range p.Tokens {
		if strings.EqualFold(token.Address, address) {
			return i
		}
	}
	return -1
}

// TokenAddresses returns the pool token addresses in snapshot order.
func (p PoolSnapshot) TokenAddresses() []string {
	out := make([]string, len(p.Tokens))
	for i, token := range p.Tokens {
		out[i] = token.Address
	}
	return out
}

// Uint8Ptr is a helper for building TokenInfo literals.
func Uint8Ptr(v uint8) *uint8 {
	return &v
}
