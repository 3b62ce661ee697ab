package eth

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGweiToWei(t *testing.T) {
	for _, tt := range []struct {
		desc string
		gwei float64
		wei  *big.Int
		err  bool
	}{
		{desc: "zero", gwei: 0, wei: new(big.Int)},
		{desc: "one-gwei", gwei: 1.0, wei: big.NewInt(1e9)},
		{desc: "two-gwei", gwei: 2.0, wei: big.NewInt(2e9)},
		{desc: "one-ether", gwei: 1e9, wei: big.NewInt(1e18)},
		{desc: "err-negative", gwei: -1, err: true},
		{desc: "err-nan", gwei: math.NaN(), err: true},
		{desc: "err-inf", gwei: math.Inf(1), err: true},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			wei, err := GweiToWei(tt.gwei)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, 0, tt.wei.Cmp(wei))
		})
	}
}

func TestFormatUnits(t *testing.T) {
	oneEther := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	for _, tt := range []struct {
		desc   string
		amount *big.Int
		want   string
	}{
		{desc: "one ether", amount: oneEther, want: "1"},
		{desc: "zero", amount: big.NewInt(0), want: "0"},
		{desc: "nil", amount: nil, want: "0"},
		{desc: "half", amount: big.NewInt(5e17), want: "0.5"},
		{desc: "one wei", amount: big.NewInt(1), want: "0.000000000000000001"},
		{desc: "collateral", amount: big.NewInt(4e15), want: "0.004"},
		{desc: "mixed", amount: new(big.Int).Add(oneEther, big.NewInt(25e16)), want: "1.25"},
		{desc: "negative", amount: big.NewInt(-5e17), want: "-0.5"},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			require.Equal(t, tt.want, FormatUnits(tt.amount, EtherDecimals))
		})
	}
}

func TestParseEther(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want ETH
		err  bool
	}{
		{in: "1", want: OneEther},
		{in: "0", want: ZeroWei},
		{in: "0.001", want: GWei(1_000_000)},
		{in: "0.005", want: GWei(5_000_000)},
		{in: ".5", want: GWei(500_000_000)},
		{in: "1000", want: ThousandEther},
		{in: "0.000000000000000001", want: OneWei},
		{in: "0.0000000000000000001", err: true},
		{in: "", err: true},
		{in: ".", err: true},
		{in: "-1", err: true},
		{in: "1e18", err: true},
		{in: "1.2.3", err: true},
	} {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEther(tt.in)
			if tt.err {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEtherRoundTrip(t *testing.T) {
	for _, v := range []string{"0", "1", "0.004", "12.345678901234567891"} {
		parsed, err := ParseEther(v)
		require.NoError(t, err)
		require.Equal(t, v, parsed.Decimal())
	}
}

func TestDecimalIsInEther(t *testing.T) {
	require.Equal(t, "1", OneEther.Decimal())
	require.Equal(t, "0.000000000000000001", OneWei.Decimal())
	require.Equal(t, "0", ZeroWei.Decimal())
	require.Equal(t, "0.005", GWei(5_000_000).Decimal())
}

func TestETHString(t *testing.T) {
	require.Equal(t, "0 wei", ZeroWei.String())
	require.Equal(t, "1 ether", OneEther.String())
	require.Equal(t, "1,000 ether", ThousandEther.String())
	require.Equal(t, "5,000,000 gwei", MustParseEther("0.005").String())
	require.Equal(t, "1 wei", OneWei.String())
}

func TestWeiBig(t *testing.T) {
	require.Equal(t, OneEther, WeiBig(big.NewInt(1e18)))
	require.Panics(t, func() { WeiBig(big.NewInt(-1)) })
	require.Panics(t, func() { WeiBig(nil) })
}

func TestChainID(t *testing.T) {
	id := ChainIDFromBig(big.NewInt(4))
	require.Equal(t, "4", id.String())
	require.Equal(t, 0, id.Cmp(ChainIDFromUInt64(4)))
	require.False(t, id.IsZero())
	require.Equal(t, int64(4), id.ToBig().Int64())
}
