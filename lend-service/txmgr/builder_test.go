package txmgr

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"
)

func TestBuilderGasIsConstant(t *testing.T) {
	b := NewBuilder()
	lending := common.HexToAddress("0x1234")
	from := common.HexToAddress("0xaa")

	inputs := []struct {
		to    *common.Address
		data  []byte
		value *big.Int
	}{
		{to: &lending, data: []byte{0x01, 0x02, 0x03, 0x04}, value: big.NewInt(1_000_000_000_000_000)},
		{to: &lending, data: nil, value: nil},
		{to: nil, data: make([]byte, 4096), value: big.NewInt(0)},
	}
	for _, in := range inputs {
		c := b.Build(from, in.to, in.data, in.value)
		require.Equal(t, uint64(6_000_000), c.GasLimit)
		require.Equal(t, "2000000000", c.GasPrice.String())
		require.Equal(t, from, c.From)
		require.Equal(t, in.to == nil, c.IsCreation())
		require.NotNil(t, c.Value)
	}
}

func TestBuilderCopiesInputs(t *testing.T) {
	b := NewBuilder()
	to := common.HexToAddress("0x1234")
	data := []byte{0xde, 0xad}
	value := big.NewInt(5)

	c := b.Build(common.Address{}, &to, data, value)
	to[0] = 0xff
	data[0] = 0x00
	value.SetInt64(7)

	require.Equal(t, common.HexToAddress("0x1234"), *c.To)
	require.Equal(t, []byte{0xde, 0xad}, c.TxData)
	require.Equal(t, int64(5), c.Value.Int64())
}

func TestBuilderOptions(t *testing.T) {
	b := NewBuilder(WithGasLimit(100_000), WithGasPrice(big.NewInt(42)))
	c := b.Build(common.Address{}, nil, nil, nil)
	require.Equal(t, uint64(100_000), c.GasLimit)
	require.Equal(t, int64(42), c.GasPrice.Int64())
	require.Zero(t, c.Value.Sign())

	// zero values keep the defaults
	b = NewBuilder(WithGasLimit(0), WithGasPrice(nil))
	require.Equal(t, DefaultGasLimit, b.GasLimit())
	require.Zero(t, DefaultGasPrice.Cmp(b.GasPrice()))
}

func TestConfigFromCLI(t *testing.T) {
	cfg, err := NewConfig(NewCLIConfig(DefaultLendFlagValues))
	require.NoError(t, err)
	require.Zero(t, DefaultGasPrice.Cmp(cfg.GasPrice))
	require.Equal(t, DefaultGasLimit, cfg.GasLimit)
	require.Zero(t, cfg.NetworkTimeout)

	bad := NewCLIConfig(DefaultLendFlagValues)
	bad.GasPriceGwei = 0
	_, err = NewConfig(bad)
	require.Error(t, err)

	bad = NewCLIConfig(DefaultLendFlagValues)
	bad.ReceiptQueryInterval = 0
	require.Error(t, bad.Check())
}
