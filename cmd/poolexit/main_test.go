package main

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"poolexit/internal/model"
)

const (
	testDAI  = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	testWETH = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

func testPool() model.PoolSnapshot {
	return model.PoolSnapshot{
		ID: "0x01",
		Tokens: []model.TokenInfo{
			{Address: testWETH, Symbol: "WETH", Balance: "1"},
			{Address: testDAI, Symbol: "DAI", Balance: "1"},
		},
	}
}

func TestSnapshotOrder(t *testing.T) {
	pool := testPool()
	zero := common.Address{}.Hex()

	// sorted order puts DAI first; the zero address stands for WETH
	ordered, err := snapshotOrder(pool, []string{testDAI, zero}, []string{"7", "9"}, testWETH)
	if err != nil {
		t.Fatalf("snapshotOrder: %v", err)
	}
	if ordered[0].String() != "9" || ordered[1].String() != "7" {
		t.Fatalf("ordered = %v", ordered)
	}

	if _, err := snapshotOrder(pool, []string{testDAI}, []string{"1", "2"}, testWETH); !errors.Is(err, model.ErrInputLengthMismatch) {
		t.Fatalf("err = %v, want ErrInputLengthMismatch", err)
	}
	if _, err := snapshotOrder(pool, []string{zero}, []string{"1"}, testDAI+"00"); !errors.Is(err, model.ErrTokenMismatch) {
		t.Fatalf("err = %v, want ErrTokenMismatch", err)
	}
}

func TestApplyPriceOverrides(t *testing.T) {
	pool := testPool()
	original := pool.Tokens

	applyPriceOverrides(&pool, map[string]string{
		"weth":  "3000",
		testDAI: "1",
	})
	if pool.Tokens[0].PriceUSD != "3000" {
		t.Fatalf("WETH price = %q", pool.Tokens[0].PriceUSD)
	}
	if pool.Tokens[1].PriceUSD != "1" {
		t.Fatalf("DAI price = %q", pool.Tokens[1].PriceUSD)
	}
	if original[0].PriceUSD != "" {
		t.Fatalf("overrides leaked into the caller's token slice")
	}
}
