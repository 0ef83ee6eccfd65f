package market

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestDecodeHouseIDs(t *testing.T) {
	ids, err := decodeHouseIDs([]interface{}{[]*big.Int{big.NewInt(1), big.NewInt(7)}})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 7}, ids)

	ids, err = decodeHouseIDs([]interface{}{[]*big.Int{}})
	require.NoError(t, err)
	require.Empty(t, ids)
	require.NotNil(t, ids)
}

func TestDecodeHouseIDsMalformed(t *testing.T) {
	cases := [][]interface{}{
		{},                              // no return values
		{"not a slice"},                 // wrong type
		{[]*big.Int{nil}},               // nil element
		{[]*big.Int{big.NewInt(-1)}},    // negative id
		{big.NewInt(1), big.NewInt(2)},  // too many values
		{[]*big.Int{overUint64()}},      // out of uint64 range
	}
	for i, out := range cases {
		_, err := decodeHouseIDs(out)
		require.ErrorIs(t, err, ErrMalformedResponse, "case %d", i)
	}
}

func TestDecodeHouseInfo(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000B1")
	info, err := decodeHouseInfo(7, []interface{}{owner, big.NewInt(100), big.NewInt(1700000000), true})
	require.NoError(t, err)
	require.Equal(t, uint64(7), info.HouseID)
	require.Equal(t, owner.Hex(), info.Owner)
	require.Zero(t, info.Price.Cmp(big.NewInt(100)))
	require.Equal(t, uint64(1700000000), info.ListedAt)
	require.True(t, info.IsForSale)
}

func TestDecodeHouseInfoMalformed(t *testing.T) {
	owner := common.HexToAddress("0x1")
	cases := [][]interface{}{
		{owner, big.NewInt(1)},                                // too short
		{"owner", big.NewInt(1), big.NewInt(1), true},         // bad owner
		{owner, "price", big.NewInt(1), true},                 // bad price
		{owner, big.NewInt(1), "when", true},                  // bad timestamp
		{owner, big.NewInt(1), big.NewInt(1), "yes"},          // bad flag
		{owner, (*big.Int)(nil), big.NewInt(1), true},         // nil price
	}
	for i, out := range cases {
		_, err := decodeHouseInfo(7, out)
		require.ErrorIs(t, err, ErrMalformedResponse, "case %d", i)
	}
}

func overUint64() *big.Int {
	v := new(big.Int).SetUint64(^uint64(0))
	return v.Add(v, big.NewInt(1))
}
