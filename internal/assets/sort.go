// Package assets orders pool assets the way the vault expects them.
package assets

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolexit/internal/model"
)

// AddressKey returns the address as an unsigned integer.
func AddressKey(address common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes20(address.Bytes())
}

// Less reports whether a sorts before b.
func Less(a, b common.Address) bool {
	return AddressKey(a).Lt(AddressKey(b))
}

// Permutation returns the indices that order addresses ascending. Ties keep
// their input order.
func Permutation(addresses []common.Address) []int {
	keys := make([]*uint256.Int, len(addresses))
	for i, address := range addresses {
		keys[i] = AddressKey(address)
	}
	idx := make([]int, len(addresses))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return keys[idx[i]].Lt(keys[idx[j]])
	})
	return idx
}

// Apply returns a new slice holding values reordered by perm.
func Apply[T any](perm []int, values []T) ([]T, error) {
	if len(values) != len(perm) {
		return nil, fmt.Errorf("%w: %d values for %d assets", model.ErrInputLengthMismatch, len(values), len(perm))
	}
	out := make([]T, len(values))
	for i, from := range perm {
		out[i] = values[from]
	}
	return out, nil
}

// SortByAddress orders addresses ascending and permutes every parallel slice
// identically. Inputs are left untouched.
func SortByAddress[T any](addresses []common.Address, parallel ...[]T) ([]common.Address, [][]T, error) {
	perm := Permutation(addresses)
	sorted, err := Apply(perm, addresses)
	if err != nil {
		return nil, nil, err
	}
	out := make([][]T, len(parallel))
	for i, values := range parallel {
		out[i], err = Apply(perm, values)
		if err != nil {
			return nil, nil, err
		}
	}
	return sorted, out, nil
}

// ParseAddresses converts hex strings into addresses.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("%w: invalid address: %s", model.ErrInputOutOfBounds, input)
		}
		out = append(out, common.HexToAddress(input))
	}
	return out, nil
}
