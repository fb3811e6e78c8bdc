// Package common contains common constants and variables used across services
package common

import (
	"github.com/ethereum/go-ethereum/common"
)

const (
	// FeeDenominator is the base for swap fee rates: fee=10 means the pool
	// keeps amountIn*10/10000 of every input.
	FeeDenominator = 10000

	// BpsDenominator is the base for rebate share configuration.
	BpsDenominator = 10000

	// MinimumLiquidity is burned on the first mint of every pool so that
	// totalShares can never return to zero while reserves are non-empty.
	MinimumLiquidity = 1000

	// MaxHops bounds multi-hop path length (n tokens = n-1 hops).
	MaxHops = 8
)

var (
	// NativeAsset is the sentinel identity for the chain's native coin in
	// swap paths and liquidity calls. The router wraps it at the edge.
	NativeAsset = common.Address{}

	// TreasuryAccount holds extracted referral fees and NFT mint/claim
	// proceeds inside the token bank.
	TreasuryAccount = common.HexToAddress("0x000000000000000000000000000000C01Fa17000")

	// BurnAccount receives the MinimumLiquidity shares locked on first mint.
	BurnAccount = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)
