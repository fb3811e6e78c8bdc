// Package registry maps (token0, token1, poolType, fee) onto pool
// identities and holds the protocol's active router configuration.
package registry

import (
	"errors"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/k1lox/coinfair/internal/common"
	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/services/amm"
)

var (
	ErrIdenticalTokens = errors.New("identical pair tokens")
	ErrInvalidPoolType = errors.New("invalid pool type")
	ErrInvalidFee      = errors.New("invalid fee rate")
)

// DerivePoolID computes the content-addressed pool identity from the
// canonical pair, pool type and fee. Any caller can derive a pool's identity
// offline without a registry lookup.
func DerivePoolID(tokenA, tokenB ethcommon.Address, poolType domain.PoolType, fee uint16) ethcommon.Address {
	t0, t1, _ := domain.SortTokens(tokenA, tokenB)
	h := crypto.Keccak256(
		t0.Bytes(),
		t1.Bytes(),
		[]byte{byte(poolType)},
		[]byte{byte(fee >> 8), byte(fee)},
	)
	return ethcommon.BytesToAddress(h[12:])
}

// Registry owns pool identities; the amm engine holds the state behind them.
type Registry struct {
	mu        sync.RWMutex
	engine    *amm.Engine
	authority ethcommon.Address

	hotRouter  ethcommon.Address
	warmRouter ethcommon.Address
}

func NewRegistry(engine *amm.Engine, authority ethcommon.Address) *Registry {
	return &Registry{engine: engine, authority: authority}
}

// GetPool resolves an existing pool, in either token order.
func (r *Registry) GetPool(tokenA, tokenB ethcommon.Address, poolType domain.PoolType, fee uint16) (*domain.Pool, bool) {
	return r.engine.Get(DerivePoolID(tokenA, tokenB, poolType, fee))
}

// ValidatePool checks pair coordinates without touching state, so callers
// can front-load validation before deciding to create anything.
func (r *Registry) ValidatePool(tokenA, tokenB ethcommon.Address, poolType domain.PoolType, fee uint16) error {
	if tokenA == tokenB {
		return ErrIdenticalTokens
	}
	if !poolType.Valid() {
		return ErrInvalidPoolType
	}
	if int(fee) >= common.FeeDenominator {
		return ErrInvalidFee
	}
	return nil
}

// GetOrCreatePool canonicalizes the pair, derives the identity and creates
// the pool on first use. Idempotent: an existing identity is returned as-is.
func (r *Registry) GetOrCreatePool(tokenA, tokenB ethcommon.Address, poolType domain.PoolType, fee uint16) (*domain.Pool, bool, error) {
	if err := r.ValidatePool(tokenA, tokenB, poolType, fee); err != nil {
		return nil, false, err
	}

	id := DerivePoolID(tokenA, tokenB, poolType, fee)
	if pool, ok := r.engine.Get(id); ok {
		return pool, false, nil
	}
	t0, t1, _ := domain.SortTokens(tokenA, tokenB)
	pool, err := r.engine.CreatePool(id, t0, t1, poolType, fee)
	if err != nil {
		// Lost a create race for the same identity; the existing pool wins.
		if errors.Is(err, amm.ErrAlreadyInitialized) {
			if existing, ok := r.engine.Get(id); ok {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return pool, true, nil
}

// SetRouterAddresses overwrites the active router pair. Last write wins per
// field; a zero address leaves that field untouched so one router can be
// upgraded without restating the other.
func (r *Registry) SetRouterAddresses(caller, hot, warm ethcommon.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.authority {
		return common.ErrUnauthorized
	}
	if hot != (ethcommon.Address{}) {
		r.hotRouter = hot
	}
	if warm != (ethcommon.Address{}) {
		r.warmRouter = warm
	}
	return nil
}

// GetActiveRouters returns the current (hot, warm) router pair.
func (r *Registry) GetActiveRouters() (ethcommon.Address, ethcommon.Address) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hotRouter, r.warmRouter
}

// RestoreRouters reinstates persisted router configuration. Startup only.
func (r *Registry) RestoreRouters(hot, warm ethcommon.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hotRouter = hot
	r.warmRouter = warm
}
