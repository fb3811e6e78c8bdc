// Package amm owns pool state and the pricing formulas applied to it. All
// reserve and share mutations in the system go through this package's
// Engine; the Formula strategies are what the Hot and Warm routers bind to.
package amm

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/k1lox/coinfair/internal/common"
)

var (
	ErrInsufficientInput     = errors.New("insufficient input amount")
	ErrInsufficientOutput    = errors.New("insufficient output amount")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientShares    = errors.New("insufficient share balance")
	ErrInvariantViolation    = errors.New("constant product invariant violated")
	ErrAlreadyInitialized    = errors.New("pool already initialized")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrPoolLocked            = errors.New("reentrant call into locked pool")
	ErrExcessiveInput        = errors.New("required input exceeds maximum")
)

// Formula prices swaps and liquidity mints. Two implementations ship, bound
// to the Hot and Warm routers at construction; they differ only in rounding
// of the exact-output inverse.
type Formula interface {
	Name() string

	// AmountOut prices an exact-input swap:
	// out = reserveOut * amountInAfterFee / (reserveIn + amountInAfterFee).
	AmountOut(amountIn, reserveIn, reserveOut *uint256.Int, fee uint16) (*uint256.Int, error)

	// AmountIn reverse-prices an exact-output swap.
	AmountIn(amountOut, reserveIn, reserveOut *uint256.Int, fee uint16) (*uint256.Int, error)

	// MintShares computes the liquidity shares issued for a deposit.
	MintShares(amount0, amount1, reserve0, reserve1, totalShares *uint256.Int) (*uint256.Int, error)
}

// AmountInAfterFee deducts the pool fee from a declared input:
// amountIn * (10000 - fee) / 10000.
func AmountInAfterFee(amountIn *uint256.Int, fee uint16) *uint256.Int {
	num := new(uint256.Int).Mul(amountIn, uint256.NewInt(uint64(common.FeeDenominator-int(fee))))
	return num.Div(num, uint256.NewInt(common.FeeDenominator))
}

// Quote returns the counterpart amount preserving the current reserve ratio:
// amountB = amountA * reserveB / reserveA.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if amountA.IsZero() {
		return nil, ErrInsufficientInput
	}
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	out := new(uint256.Int).Mul(amountA, reserveB)
	return out.Div(out, reserveA), nil
}

func checkSwapInputs(amount, reserveIn, reserveOut *uint256.Int) error {
	if amount.IsZero() {
		return ErrInsufficientInput
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return ErrInsufficientLiquidity
	}
	return nil
}

func amountOutConstantProduct(amountIn, reserveIn, reserveOut *uint256.Int, fee uint16) (*uint256.Int, error) {
	if err := checkSwapInputs(amountIn, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	afterFee := AmountInAfterFee(amountIn, fee)
	if afterFee.IsZero() {
		return nil, ErrInsufficientInput
	}
	num := new(uint256.Int).Mul(reserveOut, afterFee)
	den := new(uint256.Int).Add(reserveIn, afterFee)
	out := num.Div(num, den)
	if out.IsZero() {
		return nil, ErrInsufficientOutput
	}
	return out, nil
}

func mintSharesProportional(amount0, amount1, reserve0, reserve1, totalShares *uint256.Int) (*uint256.Int, error) {
	if amount0.IsZero() || amount1.IsZero() {
		return nil, ErrInsufficientInput
	}
	if totalShares.IsZero() {
		product := new(uint256.Int).Mul(amount0, amount1)
		shares := sqrtU256(product)
		minLiq := uint256.NewInt(common.MinimumLiquidity)
		if shares.Cmp(minLiq) <= 0 {
			return nil, ErrInsufficientLiquidity
		}
		return shares.Sub(shares, minLiq), nil
	}
	s0 := new(uint256.Int).Mul(amount0, totalShares)
	s0.Div(s0, reserve0)
	s1 := new(uint256.Int).Mul(amount1, totalShares)
	s1.Div(s1, reserve1)
	shares := s0
	if s1.Cmp(s0) < 0 {
		shares = s1
	}
	if shares.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	return shares.Clone(), nil
}

// HotFormula is the original pricing library: floor division on exact-input,
// classic +1 rounding on the exact-output inverse.
type HotFormula struct{}

func (HotFormula) Name() string { return "hot" }

func (HotFormula) AmountOut(amountIn, reserveIn, reserveOut *uint256.Int, fee uint16) (*uint256.Int, error) {
	return amountOutConstantProduct(amountIn, reserveIn, reserveOut, fee)
}

func (HotFormula) AmountIn(amountOut, reserveIn, reserveOut *uint256.Int, fee uint16) (*uint256.Int, error) {
	if err := checkSwapInputs(amountOut, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, ErrInsufficientLiquidity
	}
	num := new(uint256.Int).Mul(reserveIn, amountOut)
	num.Mul(num, uint256.NewInt(common.FeeDenominator))
	den := new(uint256.Int).Sub(reserveOut, amountOut)
	den.Mul(den, uint256.NewInt(uint64(common.FeeDenominator-int(fee))))
	in := num.Div(num, den)
	return in.Add(in, uint256.NewInt(1)), nil
}

func (HotFormula) MintShares(amount0, amount1, reserve0, reserve1, totalShares *uint256.Int) (*uint256.Int, error) {
	return mintSharesProportional(amount0, amount1, reserve0, reserve1, totalShares)
}

// WarmFormula is the enhanced pricing library: identical exact-input path,
// exact ceiling division on the inverse so it never overcharges by a full
// unit the way the +1 rounding can.
type WarmFormula struct{}

func (WarmFormula) Name() string { return "warm" }

func (WarmFormula) AmountOut(amountIn, reserveIn, reserveOut *uint256.Int, fee uint16) (*uint256.Int, error) {
	return amountOutConstantProduct(amountIn, reserveIn, reserveOut, fee)
}

func (WarmFormula) AmountIn(amountOut, reserveIn, reserveOut *uint256.Int, fee uint16) (*uint256.Int, error) {
	if err := checkSwapInputs(amountOut, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, ErrInsufficientLiquidity
	}
	num := new(uint256.Int).Mul(reserveIn, amountOut)
	num.Mul(num, uint256.NewInt(common.FeeDenominator))
	den := new(uint256.Int).Sub(reserveOut, amountOut)
	den.Mul(den, uint256.NewInt(uint64(common.FeeDenominator-int(fee))))
	return ceilDiv(num, den), nil
}

func (WarmFormula) MintShares(amount0, amount1, reserve0, reserve1, totalShares *uint256.Int) (*uint256.Int, error) {
	return mintSharesProportional(amount0, amount1, reserve0, reserve1, totalShares)
}

func ceilDiv(num, den *uint256.Int) *uint256.Int {
	q := new(uint256.Int).Div(num, den)
	rem := new(uint256.Int).Mod(num, den)
	if !rem.IsZero() {
		q.Add(q, uint256.NewInt(1))
	}
	return q
}

// sqrtU256 is the integer square root, Babylonian method, matching the
// rounding of the original first-mint share issuance.
func sqrtU256(v *uint256.Int) *uint256.Int {
	if v.IsZero() {
		return uint256.NewInt(0)
	}
	three := uint256.NewInt(3)
	if v.Cmp(three) <= 0 {
		return uint256.NewInt(1)
	}
	z := v.Clone()
	x := new(uint256.Int).Div(v, uint256.NewInt(2))
	x.Add(x, uint256.NewInt(1))
	for x.Cmp(z) < 0 {
		z.Set(x)
		t := new(uint256.Int).Div(v, x)
		t.Add(t, x)
		x = t.Div(t, uint256.NewInt(2))
	}
	return z
}
