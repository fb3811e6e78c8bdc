package router

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/services/amm"
)

// QuoteExactIn prices a path hop by hop against current reserves. Pure: no
// fences are taken and no state changes, so a quote can race an execution
// and simply go stale.
func (r *Router) QuoteExactIn(amountIn *uint256.Int, path []ethcommon.Address, poolTypes []domain.PoolType, fees []uint16) ([]domain.HopQuote, error) {
	resolved, _, _, err := r.resolvePath(path, poolTypes, fees)
	if err != nil {
		return nil, err
	}

	quotes := make([]domain.HopQuote, 0, len(resolved)-1)
	cur := amountIn.Clone()
	for i := 0; i < len(resolved)-1; i++ {
		pool, ok := r.registry.GetPool(resolved[i], resolved[i+1], poolTypes[i], fees[i])
		if !ok {
			return nil, amm.ErrPoolNotFound
		}
		reserveIn, reserveOut := pool.ReservesFor(resolved[i])
		out, err := r.formula.AmountOut(cur, reserveIn, reserveOut, pool.Fee)
		if err != nil {
			return nil, err
		}
		afterFee := amm.AmountInAfterFee(cur, pool.Fee)
		quotes = append(quotes, domain.HopQuote{
			Pool:      pool,
			TokenIn:   resolved[i],
			TokenOut:  resolved[i+1],
			AmountIn:  cur,
			AmountOut: out,
			FeeAmount: new(uint256.Int).Sub(cur, afterFee),
		})
		cur = out
	}
	return quotes, nil
}
