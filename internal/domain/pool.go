package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type PoolType uint8

const (
	PoolTypeA PoolType = 1
	PoolTypeB PoolType = 2
)

func (p PoolType) String() string {
	switch p {
	case PoolTypeA:
		return "TypeA"
	case PoolTypeB:
		return "TypeB"
	default:
		return "UNKNOWN"
	}
}

func (p PoolType) Valid() bool {
	return p == PoolTypeA || p == PoolTypeB
}

// Pool is one liquidity venue for a canonical token pair at a given
// pool-type/fee tier. Reserves and share balances are mutated only by the amm
// engine; everything else reads through it.
type Pool struct {
	ID     common.Address `json:"id"`
	Token0 common.Address `json:"token0"`
	Token1 common.Address `json:"token1"`
	Type   PoolType       `json:"type"`

	// Fee in FeeDenominator units: amountInAfterFee = amountIn*(10000-Fee)/10000.
	Fee uint16 `json:"fee"`

	Reserve0    *uint256.Int `json:"reserve0"`
	Reserve1    *uint256.Int `json:"reserve1"`
	TotalShares *uint256.Int `json:"totalShares"`

	// Shares maps liquidity providers to their share balance.
	Shares map[common.Address]*uint256.Int `json:"-"`

	// Cumulative price accumulators for time-weighted pricing. Each is the
	// running sum of (counter-reserve << 64) / reserve per elapsed second.
	Price0Cumulative *uint256.Int `json:"-"`
	Price1Cumulative *uint256.Int `json:"-"`
	LastUpdated      int64        `json:"lastUpdated"`

	// Locked fences reentrant calls while a swap or liquidity mutation is in
	// flight for this pool. Managed exclusively by the amm engine.
	Locked bool `json:"-"`
}

// Clone returns a deep read snapshot of the pool. Callers that hand pool
// state out past the engine's locks must hand out a clone; the live struct
// keeps mutating under concurrent swaps. Locked is not carried over, a
// snapshot is not part of any in-flight call.
func (p *Pool) Clone() *Pool {
	cp := &Pool{
		ID:               p.ID,
		Token0:           p.Token0,
		Token1:           p.Token1,
		Type:             p.Type,
		Fee:              p.Fee,
		Reserve0:         p.Reserve0.Clone(),
		Reserve1:         p.Reserve1.Clone(),
		TotalShares:      p.TotalShares.Clone(),
		Shares:           make(map[common.Address]*uint256.Int, len(p.Shares)),
		Price0Cumulative: p.Price0Cumulative.Clone(),
		Price1Cumulative: p.Price1Cumulative.Clone(),
		LastUpdated:      p.LastUpdated,
	}
	for holder, bal := range p.Shares {
		cp.Shares[holder] = bal.Clone()
	}
	return cp
}

// SortTokens returns the pair in canonical order: lower address first.
func SortTokens(a, b common.Address) (common.Address, common.Address, bool) {
	if a.Cmp(b) < 0 {
		return a, b, false
	}
	return b, a, true
}

// ReservesFor returns (reserveIn, reserveOut) for a swap entering with
// tokenIn. The caller guarantees tokenIn is one of the pair.
func (p *Pool) ReservesFor(tokenIn common.Address) (*uint256.Int, *uint256.Int) {
	if tokenIn == p.Token0 {
		return p.Reserve0, p.Reserve1
	}
	return p.Reserve1, p.Reserve0
}

// ShareBalance returns the holder's share balance, zero when absent.
func (p *Pool) ShareBalance(holder common.Address) *uint256.Int {
	if bal, ok := p.Shares[holder]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}
