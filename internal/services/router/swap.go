package router

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/k1lox/coinfair/internal/common"
	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/services/amm"
)

// hopPlan is one fully priced leg of a swap. Every amount a hop will move is
// fixed during planning; the apply phase only replays it.
type hopPlan struct {
	pool     *domain.Pool
	tokenIn  ethcommon.Address
	tokenOut ethcommon.Address

	amountIn     *uint256.Int // declared transfer into the pool
	realizedIn   *uint256.Int // received by the pool after any transfer fee
	afterFee     *uint256.Int // fee-adjusted input the price is quoted on
	feeAmount    *uint256.Int // pool fee retained out of the priced input
	inToReserves *uint256.Int // realizedIn minus the treasury's rebate cut
	amountOut    *uint256.Int // declared transfer out of the pool
}

// SwapExactIn swaps a fixed input along path, enforcing a minimum final
// output. With tolerant set, hops are priced on realized post-transfer-fee
// amounts so fee-on-transfer tokens can trade; without it such tokens abort
// before any state changes.
func (r *Router) SwapExactIn(trader, recipient ethcommon.Address, amountIn, amountOutMin *uint256.Int, path []ethcommon.Address, poolTypes []domain.PoolType, fees []uint16, deadline int64, tolerant bool) (*domain.SwapResult, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, err
	}
	resolved, nativeIn, nativeOut, err := r.resolvePath(path, poolTypes, fees)
	if err != nil {
		return nil, err
	}
	release, plans, err := r.acquirePath(resolved, poolTypes, fees)
	if err != nil {
		return nil, err
	}
	defer release()

	cur := amountIn.Clone()
	for i, p := range plans {
		realized, err := r.bank.PreviewReceived(p.tokenIn, cur)
		if err != nil {
			return nil, err
		}
		priced := cur
		if tolerant {
			priced = realized
		}
		reserveIn, reserveOut := p.pool.ReservesFor(p.tokenIn)
		out, err := r.formula.AmountOut(priced, reserveIn, reserveOut, p.pool.Fee)
		if err != nil {
			return nil, err
		}
		afterFee := amm.AmountInAfterFee(priced, p.pool.Fee)
		p.amountIn = cur
		p.realizedIn = realized
		p.afterFee = afterFee
		p.feeAmount = new(uint256.Int).Sub(priced, afterFee)
		p.amountOut = out
		if err := r.planSettlement(trader, p); err != nil {
			return nil, err
		}
		plans[i] = p
		cur = out
	}
	delivered, err := r.bank.PreviewReceived(plans[len(plans)-1].tokenOut, cur)
	if err != nil {
		return nil, err
	}
	if delivered.Cmp(amountOutMin) < 0 {
		return nil, ErrInsufficientOutput
	}
	if err := r.checkFunding(trader, resolved[0], nativeIn, amountIn); err != nil {
		return nil, err
	}

	return r.applyHops(trader, recipient, plans, nativeIn, nativeOut)
}

// SwapExactOut swaps for a fixed final output along path, enforcing a
// maximum input. Fee-on-transfer tokens in the path abort during planning;
// an exact output cannot be promised through a fee-deducting transfer.
func (r *Router) SwapExactOut(trader, recipient ethcommon.Address, amountOut, amountInMax *uint256.Int, path []ethcommon.Address, poolTypes []domain.PoolType, fees []uint16, deadline int64) (*domain.SwapResult, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, err
	}
	resolved, nativeIn, nativeOut, err := r.resolvePath(path, poolTypes, fees)
	if err != nil {
		return nil, err
	}
	release, plans, err := r.acquirePath(resolved, poolTypes, fees)
	if err != nil {
		return nil, err
	}
	defer release()

	// Backward pass fixes each hop's required input from its required output.
	out := amountOut.Clone()
	for i := len(plans) - 1; i >= 0; i-- {
		p := plans[i]
		reserveIn, reserveOut := p.pool.ReservesFor(p.tokenIn)
		in, err := r.formula.AmountIn(out, reserveIn, reserveOut, p.pool.Fee)
		if err != nil {
			return nil, err
		}
		p.amountIn = in
		p.amountOut = out
		plans[i] = p
		out = in
	}
	required := plans[0].amountIn
	if required.Cmp(amountInMax) > 0 {
		return nil, amm.ErrExcessiveInput
	}

	// Forward pass verifies each hop actually supports the fixed amounts.
	for i, p := range plans {
		realized, err := r.bank.PreviewReceived(p.tokenIn, p.amountIn)
		if err != nil {
			return nil, err
		}
		p.realizedIn = realized
		p.afterFee = amm.AmountInAfterFee(p.amountIn, p.pool.Fee)
		p.feeAmount = new(uint256.Int).Sub(p.amountIn, p.afterFee)
		if err := r.planSettlement(trader, p); err != nil {
			return nil, err
		}
		plans[i] = p
	}
	if err := r.checkFunding(trader, resolved[0], nativeIn, required); err != nil {
		return nil, err
	}

	return r.applyHops(trader, recipient, plans, nativeIn, nativeOut)
}

// planSettlement prices the hop's treasury cut and proves the invariant will
// hold once it is taken. A standard-path fee-on-transfer token fails here:
// the realized input cannot cover the fee-adjusted price.
func (r *Router) planSettlement(trader ethcommon.Address, p *hopPlan) error {
	quote := r.treasury.QuoteSettle(trader, p.pool.ID, p.feeAmount)
	p.inToReserves = new(uint256.Int).Sub(p.realizedIn, quote.Credited)
	if p.realizedIn.Cmp(quote.Credited) < 0 || p.inToReserves.Cmp(p.afterFee) < 0 {
		return amm.ErrInvariantViolation
	}
	return nil
}

// applyHops replays a verified plan against state: fund the first pool, walk
// the hops settling fees and committing reserves, pay the recipient.
func (r *Router) applyHops(trader, recipient ethcommon.Address, plans []*hopPlan, nativeIn, nativeOut bool) (*domain.SwapResult, error) {
	first := plans[0]
	if nativeIn {
		if err := r.bank.Wrap(trader, first.amountIn); err != nil {
			return nil, err
		}
		if _, err := r.bank.Transfer(first.tokenIn, trader, first.pool.ID, first.amountIn); err != nil {
			return nil, err
		}
	} else {
		if _, err := r.bank.TransferFrom(first.tokenIn, trader, r.addr, first.pool.ID, first.amountIn); err != nil {
			return nil, err
		}
	}

	totalFee := uint256.NewInt(0)
	for i, p := range plans {
		if i > 0 {
			if _, err := r.bank.Transfer(p.tokenIn, plans[i-1].pool.ID, p.pool.ID, p.amountIn); err != nil {
				return nil, err
			}
		}
		if _, err := r.treasury.SettleSwapFee(trader, p.pool.ID, p.tokenIn, p.feeAmount); err != nil {
			return nil, err
		}
		if err := r.engine.ApplySwap(p.pool, p.tokenIn, p.inToReserves, p.afterFee, p.amountOut); err != nil {
			return nil, err
		}
		totalFee.Add(totalFee, p.feeAmount)
	}

	last := plans[len(plans)-1]
	delivered, err := r.bank.Transfer(last.tokenOut, last.pool.ID, recipient, last.amountOut)
	if err != nil {
		return nil, err
	}
	if nativeOut {
		if err := r.bank.Unwrap(recipient, delivered); err != nil {
			return nil, err
		}
	}

	route := make([]ethcommon.Address, 0, len(plans)+1)
	pools := make([]ethcommon.Address, 0, len(plans))
	route = append(route, first.tokenIn)
	for _, p := range plans {
		route = append(route, p.tokenOut)
		pools = append(pools, p.pool.ID)
	}
	return &domain.SwapResult{
		Route:     route,
		Pools:     pools,
		AmountIn:  first.amountIn.Clone(),
		AmountOut: delivered,
		TotalFee:  totalFee,
	}, nil
}

// resolvePath validates shape and maps the native sentinel at either end
// onto the wrapped token.
func (r *Router) resolvePath(path []ethcommon.Address, poolTypes []domain.PoolType, fees []uint16) ([]ethcommon.Address, bool, bool, error) {
	if len(path) < 2 || len(path) > common.MaxHops+1 {
		return nil, false, false, common.ErrInvalidPath
	}
	if len(poolTypes) != len(path)-1 || len(fees) != len(path)-1 {
		return nil, false, false, ErrPathLengthMismatch
	}
	resolved := make([]ethcommon.Address, len(path))
	for i, asset := range path {
		addr, _, err := r.resolveAsset(asset)
		if err != nil {
			return nil, false, false, err
		}
		resolved[i] = addr
	}
	for i := 1; i < len(resolved); i++ {
		if resolved[i] == resolved[i-1] {
			return nil, false, false, common.ErrInvalidPath
		}
	}
	nativeIn := path[0] == common.NativeAsset
	nativeOut := path[len(path)-1] == common.NativeAsset
	return resolved, nativeIn, nativeOut, nil
}

// acquirePath fences every pool on the path and seeds the hop plans. A path
// revisiting a pool is a reentrant entry and fails with ErrPoolLocked; the
// release closure undoes exactly the acquisitions that succeeded.
func (r *Router) acquirePath(resolved []ethcommon.Address, poolTypes []domain.PoolType, fees []uint16) (func(), []*hopPlan, error) {
	plans := make([]*hopPlan, 0, len(resolved)-1)
	acquired := make([]ethcommon.Address, 0, len(resolved)-1)
	release := func() {
		for _, id := range acquired {
			r.engine.Release(id)
		}
	}
	for i := 0; i < len(resolved)-1; i++ {
		pool, ok := r.registry.GetPool(resolved[i], resolved[i+1], poolTypes[i], fees[i])
		if !ok {
			release()
			return nil, nil, amm.ErrPoolNotFound
		}
		if _, err := r.engine.Acquire(pool.ID); err != nil {
			release()
			return nil, nil, err
		}
		acquired = append(acquired, pool.ID)
		plans = append(plans, &hopPlan{
			pool:     pool,
			tokenIn:  resolved[i],
			tokenOut: resolved[i+1],
		})
	}
	return release, plans, nil
}
