// Package router orchestrates multi-hop swaps and liquidity mutations. A
// router owns no state: it prices through its bound Formula, resolves pools
// through the registry, moves funds through the bank and settles fee rebates
// through the treasury. Two instances ship, Hot and Warm, differing only in
// the Formula they are constructed with.
//
// Every entry point is all-or-nothing: the call is fully planned against
// acquired pools first, and state is touched only once the plan is known to
// succeed.
package router

import (
	"errors"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/k1lox/coinfair/internal/common"
	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/services/amm"
	"github.com/k1lox/coinfair/internal/services/registry"
	"github.com/k1lox/coinfair/internal/services/token"
	"github.com/k1lox/coinfair/internal/services/treasury"
)

var (
	ErrSlippageExceeded   = errors.New("amounts fall outside caller minimums")
	ErrInsufficientOutput = errors.New("final output below minimum")
	ErrNoWrappedNative    = errors.New("no wrapped-native token registered")
	ErrPathLengthMismatch = errors.New("pool type and fee paths must have one entry per hop")
)

const (
	HotRouterName  = "hot"
	WarmRouterName = "warm"
)

// DeriveRouterAddress computes the identity callers approve as spender.
func DeriveRouterAddress(name string) ethcommon.Address {
	h := crypto.Keccak256([]byte("coinfair-router-"), []byte(name))
	return ethcommon.BytesToAddress(h[12:])
}

type Router struct {
	name    string
	addr    ethcommon.Address
	formula amm.Formula

	engine   *amm.Engine
	registry *registry.Registry
	treasury *treasury.Treasury
	bank     *token.Bank

	nowFn func() int64
}

func New(name string, formula amm.Formula, engine *amm.Engine, reg *registry.Registry, tre *treasury.Treasury, bank *token.Bank) *Router {
	return &Router{
		name:     name,
		addr:     DeriveRouterAddress(name),
		formula:  formula,
		engine:   engine,
		registry: reg,
		treasury: tre,
		bank:     bank,
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

func NewHotRouter(engine *amm.Engine, reg *registry.Registry, tre *treasury.Treasury, bank *token.Bank) *Router {
	return New(HotRouterName, amm.HotFormula{}, engine, reg, tre, bank)
}

func NewWarmRouter(engine *amm.Engine, reg *registry.Registry, tre *treasury.Treasury, bank *token.Bank) *Router {
	return New(WarmRouterName, amm.WarmFormula{}, engine, reg, tre, bank)
}

func (r *Router) Name() string               { return r.name }
func (r *Router) Address() ethcommon.Address { return r.addr }

// SetClock overrides the deadline clock. Tests only.
func (r *Router) SetClock(fn func() int64) {
	r.nowFn = fn
}

func (r *Router) checkDeadline(deadline int64) error {
	if deadline > 0 && r.nowFn() > deadline {
		return common.ErrExpired
	}
	return nil
}

// resolveAsset maps the native-asset sentinel to the wrapped token.
func (r *Router) resolveAsset(asset ethcommon.Address) (ethcommon.Address, bool, error) {
	if asset != common.NativeAsset {
		return asset, false, nil
	}
	wrapped := r.bank.WrappedNative()
	if wrapped == (ethcommon.Address{}) {
		return ethcommon.Address{}, false, ErrNoWrappedNative
	}
	return wrapped, true, nil
}

// AddLiquidity deposits both assets into the pair's pool, creating the pool
// on first use, and issues liquidity shares to recipient. The native-asset
// sentinel is accepted on either side and wrapped at the edge.
func (r *Router) AddLiquidity(caller, recipient, tokenA, tokenB ethcommon.Address, params domain.LiquidityParams, poolType domain.PoolType, fee uint16, deadline int64) (*domain.LiquidityResult, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, err
	}
	resolvedA, nativeA, err := r.resolveAsset(tokenA)
	if err != nil {
		return nil, err
	}
	resolvedB, nativeB, err := r.resolveAsset(tokenB)
	if err != nil {
		return nil, err
	}

	if err := r.registry.ValidatePool(resolvedA, resolvedB, poolType, fee); err != nil {
		return nil, err
	}

	// An existing pool is fenced for the whole call. A missing pool is
	// planned against zero reserves and created only once every check has
	// passed, so an aborted first deposit never registers an empty pool.
	pool, exists := r.registry.GetPool(resolvedA, resolvedB, poolType, fee)
	if exists {
		if _, err := r.engine.Acquire(pool.ID); err != nil {
			return nil, err
		}
		defer r.engine.Release(pool.ID)
	}

	reserveA, reserveB := uint256.NewInt(0), uint256.NewInt(0)
	reserve0, reserve1 := uint256.NewInt(0), uint256.NewInt(0)
	totalShares := uint256.NewInt(0)
	token0, _, _ := domain.SortTokens(resolvedA, resolvedB)
	if exists {
		reserveA, reserveB = pool.ReservesFor(resolvedA)
		reserve0, reserve1, totalShares = pool.Reserve0, pool.Reserve1, pool.TotalShares
		token0 = pool.Token0
	}
	amountA, amountB, err := plannedDeposit(params, reserveA, reserveB)
	if err != nil {
		return nil, err
	}

	// Funding and share issuance are verified before any state is touched.
	if err := r.checkFunding(caller, resolvedA, nativeA, amountA); err != nil {
		return nil, err
	}
	if err := r.checkFunding(caller, resolvedB, nativeB, amountB); err != nil {
		return nil, err
	}
	realizedA, err := r.bank.PreviewReceived(resolvedA, amountA)
	if err != nil {
		return nil, err
	}
	realizedB, err := r.bank.PreviewReceived(resolvedB, amountB)
	if err != nil {
		return nil, err
	}
	realized0, realized1 := orient(token0, resolvedA, realizedA, realizedB)
	if _, err := r.formula.MintShares(realized0, realized1, reserve0, reserve1, totalShares); err != nil {
		return nil, err
	}

	if !exists {
		created, _, err := r.registry.GetOrCreatePool(resolvedA, resolvedB, poolType, fee)
		if err != nil {
			return nil, err
		}
		pool = created
		if _, err := r.engine.Acquire(pool.ID); err != nil {
			return nil, err
		}
		defer r.engine.Release(pool.ID)
	}

	if err := r.fund(caller, pool.ID, resolvedA, nativeA, amountA); err != nil {
		return nil, err
	}
	if err := r.fund(caller, pool.ID, resolvedB, nativeB, amountB); err != nil {
		return nil, err
	}
	shares, err := r.engine.Mint(pool, r.formula, realized0, realized1, recipient)
	if err != nil {
		return nil, err
	}
	return &domain.LiquidityResult{
		Pool:    pool.ID,
		Amount0: realized0,
		Amount1: realized1,
		Shares:  shares,
	}, nil
}

// RemoveLiquidity burns shares and returns the proportional reserves to
// recipient, unwrapping the native side when the caller addressed it by the
// sentinel.
func (r *Router) RemoveLiquidity(caller, recipient, tokenA, tokenB ethcommon.Address, shares, minA, minB *uint256.Int, poolType domain.PoolType, fee uint16, deadline int64) (*domain.LiquidityResult, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, err
	}
	resolvedA, nativeA, err := r.resolveAsset(tokenA)
	if err != nil {
		return nil, err
	}
	resolvedB, nativeB, err := r.resolveAsset(tokenB)
	if err != nil {
		return nil, err
	}

	pool, ok := r.registry.GetPool(resolvedA, resolvedB, poolType, fee)
	if !ok {
		return nil, amm.ErrPoolNotFound
	}
	if _, err := r.engine.Acquire(pool.ID); err != nil {
		return nil, err
	}
	defer r.engine.Release(pool.ID)

	// Price the redemption before burning so slippage aborts cleanly.
	if pool.TotalShares.IsZero() || pool.ShareBalance(caller).Cmp(shares) < 0 {
		return nil, amm.ErrInsufficientShares
	}
	amount0 := new(uint256.Int).Mul(shares, pool.Reserve0)
	amount0.Div(amount0, pool.TotalShares)
	amount1 := new(uint256.Int).Mul(shares, pool.Reserve1)
	amount1.Div(amount1, pool.TotalShares)
	amountA, amountB := amount0, amount1
	if resolvedA != pool.Token0 {
		amountA, amountB = amount1, amount0
	}
	if amountA.Cmp(minA) < 0 || amountB.Cmp(minB) < 0 {
		return nil, ErrSlippageExceeded
	}

	if _, _, err := r.engine.Burn(pool, caller, shares); err != nil {
		return nil, err
	}
	if err := r.payout(pool.ID, recipient, resolvedA, nativeA, amountA); err != nil {
		return nil, err
	}
	if err := r.payout(pool.ID, recipient, resolvedB, nativeB, amountB); err != nil {
		return nil, err
	}
	return &domain.LiquidityResult{
		Pool:    pool.ID,
		Amount0: amount0,
		Amount1: amount1,
		Shares:  shares.Clone(),
	}, nil
}

func (r *Router) checkFunding(caller, asset ethcommon.Address, native bool, amount *uint256.Int) error {
	if native {
		if r.bank.NativeBalanceOf(caller).Cmp(amount) < 0 {
			return token.ErrInsufficientNative
		}
		return nil
	}
	return r.bank.CheckTransferFrom(asset, caller, r.addr, amount)
}

// fund moves the caller's deposit into a pool account, wrapping native coin
// first when needed.
func (r *Router) fund(caller, poolID, asset ethcommon.Address, native bool, amount *uint256.Int) error {
	if native {
		if err := r.bank.Wrap(caller, amount); err != nil {
			return err
		}
		_, err := r.bank.Transfer(asset, caller, poolID, amount)
		return err
	}
	_, err := r.bank.TransferFrom(asset, caller, r.addr, poolID, amount)
	return err
}

// payout moves pool funds to the recipient, unwrapping when the caller
// addressed the native sentinel.
func (r *Router) payout(poolID, recipient, asset ethcommon.Address, native bool, amount *uint256.Int) error {
	received, err := r.bank.Transfer(asset, poolID, recipient, amount)
	if err != nil {
		return err
	}
	if native {
		return r.bank.Unwrap(recipient, received)
	}
	return nil
}

// plannedDeposit picks the deposit amounts: both desired amounts for an
// empty pool, otherwise the ratio-preserving pairing checked against the
// caller's minimums.
func plannedDeposit(params domain.LiquidityParams, reserveA, reserveB *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if reserveA.IsZero() && reserveB.IsZero() {
		return params.AmountToken.Clone(), params.AmountOther.Clone(), nil
	}
	bOptimal, err := amm.Quote(params.AmountToken, reserveA, reserveB)
	if err != nil {
		return nil, nil, err
	}
	if bOptimal.Cmp(params.AmountOther) <= 0 {
		if bOptimal.Cmp(params.MinOther) < 0 {
			return nil, nil, ErrSlippageExceeded
		}
		return params.AmountToken.Clone(), bOptimal, nil
	}
	aOptimal, err := amm.Quote(params.AmountOther, reserveB, reserveA)
	if err != nil {
		return nil, nil, err
	}
	if aOptimal.Cmp(params.MinToken) < 0 {
		return nil, nil, ErrSlippageExceeded
	}
	return aOptimal, params.AmountOther.Clone(), nil
}

// orient maps (tokenA amounts) onto the canonical (token0, token1) order.
func orient(token0, resolvedA ethcommon.Address, amountA, amountB *uint256.Int) (*uint256.Int, *uint256.Int) {
	if resolvedA == token0 {
		return amountA, amountB
	}
	return amountB, amountA
}
