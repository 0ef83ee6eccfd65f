package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{"0.000000000000000001", "1"},
		{"100", "100000000000000000000"},
		{".25", "250000000000000000"},
		{"2.", "2000000000000000000"},
		{"-3.5", "-3500000000000000000"},
		// digits past the scale truncate toward zero
		{"0.0000000000000000019", "1"},
	}
	for _, tc := range cases {
		got, err := ToBaseUnits(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got.String(), tc.in)
	}
}

func TestToBaseUnitsRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", ".", "abc", "1.2.3", "1,5", "1e18", "--1", " "} {
		_, err := ToBaseUnits(in)
		require.Error(t, err, "input %q", in)
	}
}

func TestFromBaseUnits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1000000000000000000", "1"},
		{"1500000000000000000", "1.5"},
		{"1", "0.000000000000000001"},
		{"-2500000000000000000", "-2.5"},
	}
	for _, tc := range cases {
		v, ok := new(big.Int).SetString(tc.in, 10)
		require.True(t, ok)
		require.Equal(t, tc.want, FromBaseUnits(v))
	}
}

func TestRoundTripStable(t *testing.T) {
	// For already-quantized values, base -> decimal -> base is the identity.
	for _, in := range []string{"0", "1", "1.5", "0.000000000000000001", "123456.789"} {
		base, err := ToBaseUnits(in)
		require.NoError(t, err)
		again, err := ToBaseUnits(FromBaseUnits(base))
		require.NoError(t, err)
		require.Zero(t, base.Cmp(again), "round trip drifted for %s", in)
	}
}
