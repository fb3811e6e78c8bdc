package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type SwapMode string

const (
	SwapModeExactIn  SwapMode = "ExactIn"
	SwapModeExactOut SwapMode = "ExactOut"
)

// HopQuote is the priced outcome of one single-pool leg within a multi-hop
// path.
type HopQuote struct {
	Pool      *Pool
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	FeeAmount *uint256.Int
}

// SwapResult is the settled outcome of a multi-hop swap.
type SwapResult struct {
	Route     []common.Address
	Pools     []common.Address
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	TotalFee  *uint256.Int
}

// LiquidityParams carries the caller-declared deposit bounds for
// addLiquidity.
type LiquidityParams struct {
	AmountToken *uint256.Int
	AmountOther *uint256.Int
	MinToken    *uint256.Int
	MinOther    *uint256.Int
}

// LiquidityResult reports the pool mutation applied by an add or remove.
type LiquidityResult struct {
	Pool    common.Address
	Amount0 *uint256.Int
	Amount1 *uint256.Int
	Shares  *uint256.Int
}
