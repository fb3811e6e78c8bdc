package amm

import (
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/k1lox/coinfair/internal/common"
	"github.com/k1lox/coinfair/internal/domain"
)

// Engine owns every pool's reserves and share ledger. Routers price and
// settle through it; nothing else mutates a pool.
type Engine struct {
	mu    sync.Mutex
	pools *ShardedPoolMap
	nowFn func() int64
}

func NewEngine() *Engine {
	return &Engine{
		pools: NewShardedPoolMap(),
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetClock overrides the accumulator clock. Tests only.
func (e *Engine) SetClock(fn func() int64) {
	e.nowFn = fn
}

// CreatePool initializes a pool under the given identity. Fails with
// ErrAlreadyInitialized when the identity exists.
func (e *Engine) CreatePool(id, token0, token1 ethcommon.Address, poolType domain.PoolType, fee uint16) (*domain.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.pools.Get(id); ok {
		return nil, ErrAlreadyInitialized
	}
	pool := &domain.Pool{
		ID:               id,
		Token0:           token0,
		Token1:           token1,
		Type:             poolType,
		Fee:              fee,
		Reserve0:         uint256.NewInt(0),
		Reserve1:         uint256.NewInt(0),
		TotalShares:      uint256.NewInt(0),
		Shares:           make(map[ethcommon.Address]*uint256.Int),
		Price0Cumulative: uint256.NewInt(0),
		Price1Cumulative: uint256.NewInt(0),
	}
	e.pools.Set(id, pool)
	return pool, nil
}

// Restore inserts a persisted pool verbatim. Startup only.
func (e *Engine) Restore(pool *domain.Pool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pool.Locked = false
	e.pools.Set(pool.ID, pool)
}

func (e *Engine) Get(id ethcommon.Address) (*domain.Pool, bool) {
	return e.pools.Get(id)
}

func (e *Engine) All() []*domain.Pool {
	return e.pools.GetAll()
}

func (e *Engine) Count() int {
	return e.pools.Len()
}

// Acquire fences a pool for the duration of one call. A second Acquire for
// the same pool before Release means a reentrant entry and is rejected.
func (e *Engine) Acquire(id ethcommon.Address) (*domain.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, ok := e.pools.Get(id)
	if !ok {
		return nil, ErrPoolNotFound
	}
	if pool.Locked {
		return nil, ErrPoolLocked
	}
	pool.Locked = true
	return pool, nil
}

func (e *Engine) Release(id ethcommon.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pool, ok := e.pools.Get(id); ok {
		pool.Locked = false
	}
}

// Mint issues liquidity shares for reserves already transferred into the
// pool's bank account. On the first mint, MinimumLiquidity shares are locked
// to the burn account so the share supply can never return to zero.
func (e *Engine) Mint(pool *domain.Pool, formula Formula, amount0, amount1 *uint256.Int, to ethcommon.Address) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	first := pool.TotalShares.IsZero()
	shares, err := formula.MintShares(amount0, amount1, pool.Reserve0, pool.Reserve1, pool.TotalShares)
	if err != nil {
		return nil, err
	}

	e.updateAccumulators(pool)
	pool.Reserve0.Add(pool.Reserve0, amount0)
	pool.Reserve1.Add(pool.Reserve1, amount1)
	pool.TotalShares.Add(pool.TotalShares, shares)
	creditShares(pool, to, shares)
	if first {
		minLiq := uint256.NewInt(common.MinimumLiquidity)
		pool.TotalShares.Add(pool.TotalShares, minLiq)
		creditShares(pool, common.BurnAccount, minLiq)
	}
	return shares.Clone(), nil
}

// Burn redeems shares for a proportional slice of both reserves.
func (e *Engine) Burn(pool *domain.Pool, holder ethcommon.Address, shares *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if shares.IsZero() {
		return nil, nil, ErrInsufficientShares
	}
	held, ok := pool.Shares[holder]
	if !ok || held.Cmp(shares) < 0 {
		return nil, nil, ErrInsufficientShares
	}

	amount0 := new(uint256.Int).Mul(shares, pool.Reserve0)
	amount0.Div(amount0, pool.TotalShares)
	amount1 := new(uint256.Int).Mul(shares, pool.Reserve1)
	amount1.Div(amount1, pool.TotalShares)
	if amount0.IsZero() || amount1.IsZero() {
		return nil, nil, ErrInsufficientLiquidity
	}

	e.updateAccumulators(pool)
	pool.Reserve0.Sub(pool.Reserve0, amount0)
	pool.Reserve1.Sub(pool.Reserve1, amount1)
	pool.TotalShares.Sub(pool.TotalShares, shares)
	held.Sub(held, shares)
	return amount0, amount1, nil
}

// ApplySwap commits one priced hop. amountInToReserves is the realized input
// minus whatever fee portion the treasury extracted; amountInAfterFee is the
// fee-adjusted input the invariant is checked against.
func (e *Engine) ApplySwap(pool *domain.Pool, tokenIn ethcommon.Address, amountInToReserves, amountInAfterFee, amountOut *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	reserveIn, reserveOut := pool.ReservesFor(tokenIn)
	if amountOut.Cmp(reserveOut) >= 0 {
		return ErrInsufficientLiquidity
	}
	if amountInToReserves.Cmp(amountInAfterFee) < 0 {
		return ErrInvariantViolation
	}

	kBefore := reserveIn.ToBig()
	kBefore.Mul(kBefore, reserveOut.ToBig())

	newIn := new(uint256.Int).Add(reserveIn, amountInToReserves)
	newOut := new(uint256.Int).Sub(reserveOut, amountOut)
	kAfter := newIn.ToBig()
	kAfter.Mul(kAfter, newOut.ToBig())
	if kAfter.Cmp(kBefore) < 0 {
		return ErrInvariantViolation
	}

	e.updateAccumulators(pool)
	reserveIn.Set(newIn)
	reserveOut.Set(newOut)
	return nil
}

// updateAccumulators folds the elapsed-time-weighted spot price into the
// cumulative accumulators. Caller holds the engine lock.
func (e *Engine) updateAccumulators(pool *domain.Pool) {
	now := e.nowFn()
	if pool.LastUpdated > 0 && now > pool.LastUpdated && !pool.Reserve0.IsZero() && !pool.Reserve1.IsZero() {
		elapsed := uint256.NewInt(uint64(now - pool.LastUpdated))

		p0 := new(uint256.Int).Lsh(pool.Reserve1, 64)
		p0.Div(p0, pool.Reserve0)
		p0.Mul(p0, elapsed)
		pool.Price0Cumulative.Add(pool.Price0Cumulative, p0)

		p1 := new(uint256.Int).Lsh(pool.Reserve0, 64)
		p1.Div(p1, pool.Reserve1)
		p1.Mul(p1, elapsed)
		pool.Price1Cumulative.Add(pool.Price1Cumulative, p1)
	}
	pool.LastUpdated = now
}

func creditShares(pool *domain.Pool, to ethcommon.Address, shares *uint256.Int) {
	if bal, ok := pool.Shares[to]; ok {
		bal.Add(bal, shares)
	} else {
		pool.Shares[to] = shares.Clone()
	}
}
