package eth

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/params"
)

func GweiToWei(gwei float64) (*big.Int, error) {
	if math.IsNaN(gwei) || math.IsInf(gwei, 0) || gwei < 0 {
		return nil, fmt.Errorf("invalid gwei value: %v", gwei)
	}
	wei, _ := new(big.Float).Mul(
		big.NewFloat(gwei),
		big.NewFloat(params.GWei)).
		Int(nil)
	if wei.Cmp(abi.MaxUint256) == 1 {
		return nil, errors.New("gwei value larger than max uint256")
	}
	return wei, nil
}

// EtherDecimals is the number of decimals between wei and ether.
const EtherDecimals = 18

var (
	ThousandEther = Ether(1000)
	HundredEther  = Ether(100)
	OneEther      = Ether(1)
	OneWei        = WeiU64(1)
	ZeroWei       = WeiU64(0)
)

var (
	weiPerGWei = uint256.NewInt(params.GWei)
	weiPerEth  = uint256.NewInt(params.Ether)
)

var ErrInvalidAmount = errors.New("invalid amount")

// ETH is a typed ETH amount, expressed in number of wei.
// Values are passed flat and never mutated in place.
type ETH uint256.Int

// String prints the amount of ETH with thousands comma-separators and a unit.
// Amounts divisible by 1 ether print in ether, divisible by 1 gwei in gwei, everything else in wei.
func (e ETH) String() string {
	vWei := (*uint256.Int)(&e)
	if vWei.Sign() == 0 {
		return "0 wei"
	}
	var vEth, rem uint256.Int
	vEth.DivMod(vWei, weiPerEth, &rem)
	if rem.IsZero() {
		return vEth.PrettyDec(',') + " ether"
	}
	var vGWei uint256.Int
	vGWei.DivMod(vWei, weiPerGWei, &rem)
	if rem.IsZero() {
		return vGWei.PrettyDec(',') + " gwei"
	}
	return vWei.PrettyDec(',') + " wei"
}

// Decimal returns the amount in ether units, without unit suffix and without trailing zeroes.
func (e ETH) Decimal() string {
	return FormatUnits(e.ToBig(), EtherDecimals)
}

// WeiFloat returns the amount as floating point number, in wei (approximate).
func (e ETH) WeiFloat() float64 {
	return (*uint256.Int)(&e).Float64()
}

// ToBig converts to *big.Int, in wei.
func (e ETH) ToBig() *big.Int {
	return (*uint256.Int)(&e).ToBig()
}

// IsZero returns if this equals 0.
func (e ETH) IsZero() bool {
	return (*uint256.Int)(&e).IsZero()
}

// Add adds v and returns the result. Add panics if the computation overflows uint256.
func (e ETH) Add(v ETH) (out ETH) {
	_, overflow := (*uint256.Int)(&out).AddOverflow((*uint256.Int)(&e), (*uint256.Int)(&v))
	if overflow {
		panic(fmt.Errorf("add overflow: %s + %s != %s", e, v, out))
	}
	return
}

// WeiBig turns the given big.Int amount of wei into ETH-typed wei.
// This panics if the amount does not fit in 256 bits, or if it is negative.
func WeiBig(wei *big.Int) (out ETH) {
	if wei == nil {
		panic("nil *big.Int input to ETH constructor")
	}
	if wei.Sign() < 0 {
		panic("negative amounts are not supported")
	}
	if overflow := (*uint256.Int)(&out).SetFromBig(wei); overflow {
		panic("*big.Int input does not fit in uint256")
	}
	return
}

// WeiU64 turns the given uint64 amount of wei into ETH-typed wei.
func WeiU64(wei uint64) (out ETH) {
	(*uint256.Int)(&out).SetUint64(wei)
	return
}

// GWei turns the given amount of GWei into ETH-typed wei.
func GWei(gwei uint64) ETH {
	var x uint256.Int
	x.SetUint64(gwei)
	x.Mul(&x, weiPerGWei)
	return ETH(x)
}

// Ether turns the given amount of ether into ETH-typed wei.
func Ether(ether uint64) ETH {
	var x uint256.Int
	x.SetUint64(ether)
	x.Mul(&x, weiPerEth)
	return ETH(x)
}

// ParseEther parses a decimal ether amount such as "0.005" into wei.
// The conversion is exact: more than 18 fractional digits is an error, not a rounding.
func ParseEther(v string) (ETH, error) {
	wei, err := ParseUnits(v, EtherDecimals)
	if err != nil {
		return ETH{}, err
	}
	var out ETH
	if overflow := (*uint256.Int)(&out).SetFromBig(wei); overflow {
		return ETH{}, fmt.Errorf("%w: %q does not fit in 256 bits", ErrInvalidAmount, v)
	}
	return out, nil
}

// MustParseEther is ParseEther for constants, and panics on error.
func MustParseEther(v string) ETH {
	out, err := ParseEther(v)
	if err != nil {
		panic(err)
	}
	return out
}

// ParseUnits converts a non-negative decimal string into base units, given the number of decimals.
func ParseUnits(v string, decimals uint8) (*big.Int, error) {
	v = strings.TrimSpace(v)
	whole, frac, hasDot := strings.Cut(v, ".")
	if whole == "" && (!hasDot || frac == "") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, v)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, v)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, v, decimals)
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, v)
	}
	return out, nil
}

// FormatUnits converts an amount of base units into its decimal representation, given the number of decimals.
// Trailing fractional zeroes are dropped, so 10^18 with 18 decimals formats as "1".
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Set(amount)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quo, rem := new(big.Int).QuoRem(abs, unit, new(big.Int))
	if rem.Sign() == 0 {
		return sign + quo.String()
	}
	fracStr := rem.String()
	fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	return sign + quo.String() + "." + strings.TrimRight(fracStr, "0")
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
