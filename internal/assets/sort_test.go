package assets

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolexit/internal/model"
)

var (
	addrLow  = common.HexToAddress("0x0000000000000000000000000000000000000abc")
	addrMid  = common.HexToAddress("0x7fffffffffffffffffffffffffffffffffffffff")
	addrHigh = common.HexToAddress("0xFFfFfFffFFfffFFfFFfFFFFFffFFFffffFfFFFfF")
)

func TestSortByAddress(t *testing.T) {
	addresses := []common.Address{addrHigh, addrLow, addrMid}
	amounts := []*big.Int{big.NewInt(3), big.NewInt(1), big.NewInt(2)}
	rates := []*big.Int{big.NewInt(30), big.NewInt(10), big.NewInt(20)}

	sorted, parallel, err := SortByAddress(addresses, amounts, rates)
	require.NoError(t, err)

	assert.Equal(t, []common.Address{addrLow, addrMid, addrHigh}, sorted)
	assert.Equal(t, []int64{1, 2, 3}, toInt64(parallel[0]))
	assert.Equal(t, []int64{10, 20, 30}, toInt64(parallel[1]))

	// inputs are not mutated
	assert.Equal(t, addrHigh, addresses[0])
	assert.Equal(t, int64(3), amounts[0].Int64())
}

func TestSortByAddressIdempotent(t *testing.T) {
	addresses := []common.Address{addrMid, addrHigh, addrLow}
	labels := []string{"mid", "high", "low"}

	once, p1, err := SortByAddress(addresses, labels)
	require.NoError(t, err)
	twice, p2, err := SortByAddress(once, p1[0])
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, p1[0], p2[0])
	for i := 1; i < len(twice); i++ {
		assert.True(t, Less(twice[i-1], twice[i]), "not strictly ascending at %d", i)
	}
}

func TestSortIsCaseInsensitive(t *testing.T) {
	lower, err := ParseAddresses([]string{"0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", "0x1000000000000000000000000000000000000000"})
	require.NoError(t, err)
	upper, err := ParseAddresses([]string{"0xABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD", "0x1000000000000000000000000000000000000000"})
	require.NoError(t, err)

	assert.Equal(t, Permutation(lower), Permutation(upper))
	assert.Equal(t, []int{1, 0}, Permutation(lower))
}

func TestSortLengthMismatch(t *testing.T) {
	_, _, err := SortByAddress([]common.Address{addrLow, addrHigh}, []string{"only-one"})
	assert.True(t, errors.Is(err, model.ErrInputLengthMismatch))
}

func TestParseAddressesInvalid(t *testing.T) {
	_, err := ParseAddresses([]string{"0x1234"})
	assert.True(t, errors.Is(err, model.ErrInputOutOfBounds))
}

func toInt64(values []*big.Int) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = v.Int64()
	}
	return out
}
