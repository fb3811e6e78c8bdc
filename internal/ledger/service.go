// Package ledger assembles the full engine behind one DI service: token
// bank, pool engine, registry, referral graph, treasury and the hot/warm
// router pair. Mutating calls are serialized so every operation observes and
// commits a consistent ledger state.
package ledger

import (
	"errors"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/k1lox/coinfair/internal/adapters/persistence"
	"github.com/k1lox/coinfair/internal/common"
	"github.com/k1lox/coinfair/internal/config"
	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/metrics"
	"github.com/k1lox/coinfair/internal/services"
	"github.com/k1lox/coinfair/internal/services/amm"
	"github.com/k1lox/coinfair/internal/services/referral"
	"github.com/k1lox/coinfair/internal/services/registry"
	"github.com/k1lox/coinfair/internal/services/router"
	"github.com/k1lox/coinfair/internal/services/token"
	"github.com/k1lox/coinfair/internal/services/treasury"
)

const LEDGER_SERVICE = "ledger-service"

const (
	wrappedNativeName     = "Wrapped Native"
	wrappedNativeSymbol   = "WNAT"
	wrappedNativeDecimals = 18
)

var ErrUnknownRouter = errors.New("unknown router name")

// Error aliases so handlers depend on one package.
var (
	ErrPoolNotFound      = amm.ErrPoolNotFound
	ErrPoolLocked        = amm.ErrPoolLocked
	ErrSlippageExceeded  = router.ErrSlippageExceeded
	ErrAlreadyClaimed    = referral.ErrAlreadyClaimed
	ErrSelfReferral      = referral.ErrSelfReferral
	ErrNothingToWithdraw = treasury.ErrNothingToWithdraw
)

type Service struct {
	container.BaseDIInstance
	logger *services.ServiceLogger

	// mu serializes every mutating ledger call. Reads take it too; the
	// operations are memory-bound and a torn multi-component read is worse
	// than the contention.
	mu sync.Mutex

	config *config.LedgerConfig

	bank     *token.Bank
	engine   *amm.Engine
	registry *registry.Registry
	graph    *referral.Graph
	treasury *treasury.Treasury
	hot      *router.Router
	warm     *router.Router

	storage *persistence.Storage
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func (svc *Service) ID() string {
	return LEDGER_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.logger = services.NewServiceLogger(svc)
	svc.config = c.GetConfig(config.LEDGER_CONFIG_KEY).(*config.LedgerConfig)

	svc.bank = token.NewBank()
	svc.engine = amm.NewEngine()
	svc.registry = registry.NewRegistry(svc.engine, svc.config.Authority)
	svc.graph = referral.NewGraph(svc.bank, svc.config.MintCost, svc.config.ClaimCost)
	svc.treasury = treasury.NewTreasury(svc.bank, svc.graph, svc.config.Authority, svc.config.ParentShareBps, svc.config.GrandShareBps)
	svc.hot = router.NewHotRouter(svc.engine, svc.registry, svc.treasury, svc.bank)
	svc.warm = router.NewWarmRouter(svc.engine, svc.registry, svc.treasury, svc.bank)
	svc.stopCh = make(chan struct{})
	return nil
}

func (svc *Service) Start() error {
	if svc.config.PersistenceEnabled {
		storage, err := persistence.NewStorage(svc.config.DBPath)
		if err != nil {
			return err
		}
		svc.storage = storage
		if err := svc.restore(); err != nil {
			return err
		}
	}
	if err := svc.bootstrap(); err != nil {
		return err
	}
	metrics.PoolCount.Set(float64(svc.engine.Count()))

	if svc.storage != nil {
		svc.wg.Add(1)
		go svc.snapshotLoop()
	}

	svc.logger.Info().
		Int("pools", svc.engine.Count()).
		Str("authority", svc.config.Authority.Hex()).
		Msg("ledger started")
	return nil
}

func (svc *Service) Stop() error {
	close(svc.stopCh)
	svc.wg.Wait()
	if svc.storage != nil {
		if err := svc.snapshot(); err != nil {
			svc.logger.Error().Err(err).Msg("final snapshot failed")
		}
		return svc.storage.Close()
	}
	return nil
}

// bootstrap registers the wrapped-native token on first run and publishes
// the built-in router pair when none is configured.
func (svc *Service) bootstrap() error {
	if svc.bank.WrappedNative() == (ethcommon.Address{}) {
		if _, err := svc.bank.Register(token.Token{
			Name:          wrappedNativeName,
			Symbol:        wrappedNativeSymbol,
			Decimals:      wrappedNativeDecimals,
			WrappedNative: true,
		}); err != nil {
			return err
		}
	}
	hot, warm := svc.registry.GetActiveRouters()
	if hot == (ethcommon.Address{}) && warm == (ethcommon.Address{}) {
		return svc.registry.SetRouterAddresses(svc.config.Authority, svc.hot.Address(), svc.warm.Address())
	}
	return nil
}

func (svc *Service) restore() error {
	tokens, err := svc.storage.LoadAllTokens()
	if err != nil {
		return err
	}
	for _, t := range tokens {
		if _, err := svc.bank.Register(t); err != nil {
			return err
		}
	}
	book, err := svc.storage.LoadBalanceBook()
	if err != nil {
		return err
	}
	for tokenAddr, holders := range book {
		for holder, amount := range holders {
			if err := svc.bank.SetBalance(tokenAddr, holder, amount); err != nil {
				return err
			}
		}
	}
	native, err := svc.storage.LoadNativeBalances()
	if err != nil {
		return err
	}
	for holder, amount := range native {
		svc.bank.SetNativeBalance(holder, amount)
	}

	pools, err := svc.storage.LoadAllPools()
	if err != nil {
		return err
	}
	for _, pool := range pools {
		svc.engine.Restore(pool)
	}

	edges, minted, err := svc.storage.LoadReferral()
	if err != nil {
		return err
	}
	svc.graph.Restore(edges, minted)

	rebates, policies, err := svc.storage.LoadTreasury()
	if err != nil {
		return err
	}
	svc.treasury.Restore(policies, rebates)

	hot, warm, ok, err := svc.storage.LoadRouters()
	if err != nil {
		return err
	}
	if ok {
		svc.registry.RestoreRouters(hot, warm)
	}
	return nil
}

func (svc *Service) snapshotLoop() {
	defer svc.wg.Done()
	interval := time.Duration(svc.config.PersistInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := svc.snapshot(); err != nil {
				svc.logger.Error().Err(err).Msg("periodic snapshot failed")
			}
		case <-svc.stopCh:
			return
		}
	}
}

// snapshot persists the whole ledger under the call lock, so the saved state
// is one consistent point in time.
func (svc *Service) snapshot() error {
	started := time.Now()
	svc.mu.Lock()

	pools := svc.engine.All()
	tokens := svc.bank.Tokens()
	book := make(map[ethcommon.Address]map[ethcommon.Address]*uint256.Int, len(tokens))
	for _, t := range tokens {
		book[t.Address] = svc.bank.Balances(t.Address)
	}
	native := svc.bank.NativeBalances()
	edges := svc.graph.Edges()
	minted := svc.graph.MintCounts()
	rebates := svc.treasury.Ledger()
	policies := svc.treasury.Policies()
	hot, warm := svc.registry.GetActiveRouters()

	err := svc.storage.SavePoolBatch(pools)
	if err == nil {
		err = svc.storage.SaveTokens(tokens)
	}
	if err == nil {
		err = svc.storage.SaveBalanceBook(book)
	}
	if err == nil {
		err = svc.storage.SaveNativeBalances(native)
	}
	if err == nil {
		err = svc.storage.SaveReferral(edges, minted)
	}
	if err == nil {
		err = svc.storage.SaveTreasury(rebates, policies)
	}
	if err == nil {
		err = svc.storage.SaveRouters(hot, warm)
	}
	svc.mu.Unlock()

	metrics.SnapshotDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.SnapshotSaves.WithLabelValues("error").Inc()
		return err
	}
	metrics.SnapshotSaves.WithLabelValues("ok").Inc()
	return nil
}

// routerFor resolves a swap entry point by name.
func (svc *Service) routerFor(name string) (*router.Router, error) {
	switch name {
	case router.HotRouterName:
		return svc.hot, nil
	case router.WarmRouterName:
		return svc.warm, nil
	default:
		return nil, ErrUnknownRouter
	}
}

// SwapExactIn executes a fixed-input swap through the named router.
func (svc *Service) SwapExactIn(routerName string, trader, recipient ethcommon.Address, amountIn, amountOutMin *uint256.Int, path []ethcommon.Address, poolTypes []domain.PoolType, fees []uint16, deadline int64, tolerant bool) (*domain.SwapResult, error) {
	r, err := svc.routerFor(routerName)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	svc.mu.Lock()
	result, err := r.SwapExactIn(trader, recipient, amountIn, amountOutMin, path, poolTypes, fees, deadline, tolerant)
	svc.mu.Unlock()

	metrics.SwapDuration.WithLabelValues(routerName, string(domain.SwapModeExactIn)).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.SwapRequests.WithLabelValues(routerName, string(domain.SwapModeExactIn), "error").Inc()
		return nil, err
	}
	metrics.SwapRequests.WithLabelValues(routerName, string(domain.SwapModeExactIn), "ok").Inc()
	metrics.SwapHops.Observe(float64(len(result.Pools)))
	return result, nil
}

// SwapExactOut executes a fixed-output swap through the named router.
func (svc *Service) SwapExactOut(routerName string, trader, recipient ethcommon.Address, amountOut, amountInMax *uint256.Int, path []ethcommon.Address, poolTypes []domain.PoolType, fees []uint16, deadline int64) (*domain.SwapResult, error) {
	r, err := svc.routerFor(routerName)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	svc.mu.Lock()
	result, err := r.SwapExactOut(trader, recipient, amountOut, amountInMax, path, poolTypes, fees, deadline)
	svc.mu.Unlock()

	metrics.SwapDuration.WithLabelValues(routerName, string(domain.SwapModeExactOut)).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.SwapRequests.WithLabelValues(routerName, string(domain.SwapModeExactOut), "error").Inc()
		return nil, err
	}
	metrics.SwapRequests.WithLabelValues(routerName, string(domain.SwapModeExactOut), "ok").Inc()
	metrics.SwapHops.Observe(float64(len(result.Pools)))
	return result, nil
}

// QuoteExactIn prices a path hop by hop without executing it.
func (svc *Service) QuoteExactIn(routerName string, amountIn *uint256.Int, path []ethcommon.Address, poolTypes []domain.PoolType, fees []uint16) ([]domain.HopQuote, error) {
	r, err := svc.routerFor(routerName)
	if err != nil {
		return nil, err
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return r.QuoteExactIn(amountIn, path, poolTypes, fees)
}

// AddLiquidity deposits into a pool through the named router.
func (svc *Service) AddLiquidity(routerName string, caller, recipient, tokenA, tokenB ethcommon.Address, params domain.LiquidityParams, poolType domain.PoolType, fee uint16, deadline int64) (*domain.LiquidityResult, error) {
	r, err := svc.routerFor(routerName)
	if err != nil {
		return nil, err
	}
	svc.mu.Lock()
	before := svc.engine.Count()
	result, err := r.AddLiquidity(caller, recipient, tokenA, tokenB, params, poolType, fee, deadline)
	created := svc.engine.Count() - before
	svc.mu.Unlock()

	if err != nil {
		metrics.LiquidityOps.WithLabelValues(routerName, "add", "error").Inc()
		return nil, err
	}
	metrics.LiquidityOps.WithLabelValues(routerName, "add", "ok").Inc()
	if created > 0 {
		metrics.PoolsCreated.Add(float64(created))
		metrics.PoolCount.Set(float64(svc.engine.Count()))
	}
	return result, nil
}

// RemoveLiquidity redeems shares through the named router.
func (svc *Service) RemoveLiquidity(routerName string, caller, recipient, tokenA, tokenB ethcommon.Address, shares, minA, minB *uint256.Int, poolType domain.PoolType, fee uint16, deadline int64) (*domain.LiquidityResult, error) {
	r, err := svc.routerFor(routerName)
	if err != nil {
		return nil, err
	}
	svc.mu.Lock()
	result, err := r.RemoveLiquidity(caller, recipient, tokenA, tokenB, shares, minA, minB, poolType, fee, deadline)
	svc.mu.Unlock()

	if err != nil {
		metrics.LiquidityOps.WithLabelValues(routerName, "remove", "error").Inc()
		return nil, err
	}
	metrics.LiquidityOps.WithLabelValues(routerName, "remove", "ok").Inc()
	return result, nil
}

// Pool resolves a pool by its pair coordinates. Returns a snapshot: the live
// pool keeps mutating under concurrent swaps once the lock is released.
func (svc *Service) Pool(tokenA, tokenB ethcommon.Address, poolType domain.PoolType, fee uint16) (*domain.Pool, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	pool, ok := svc.registry.GetPool(tokenA, tokenB, poolType, fee)
	if !ok {
		return nil, false
	}
	return pool.Clone(), true
}

// PoolByID resolves a pool by identity. Returns a snapshot.
func (svc *Service) PoolByID(id ethcommon.Address) (*domain.Pool, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	pool, ok := svc.engine.Get(id)
	if !ok {
		return nil, false
	}
	return pool.Clone(), true
}

// Pools lists every pool in the ledger. Returns snapshots.
func (svc *Service) Pools() []*domain.Pool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	live := svc.engine.All()
	out := make([]*domain.Pool, len(live))
	for i, pool := range live {
		out[i] = pool.Clone()
	}
	return out
}

// PoolPolicy returns a pool's fee extraction policy.
func (svc *Service) PoolPolicy(pool ethcommon.Address) treasury.PoolPolicy {
	return svc.treasury.Policy(pool)
}

// ShareBalance returns a holder's liquidity shares in a pool.
func (svc *Service) ShareBalance(pool, holder ethcommon.Address) (*uint256.Int, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	p, ok := svc.engine.Get(pool)
	if !ok {
		return nil, amm.ErrPoolNotFound
	}
	return p.ShareBalance(holder), nil
}

// MintReferral mints referral tokens, making owner claimable as a referrer.
func (svc *Service) MintReferral(owner ethcommon.Address, count uint64) error {
	svc.mu.Lock()
	err := svc.graph.Mint(owner, count)
	svc.mu.Unlock()
	if err == nil {
		metrics.ReferralMints.Inc()
	}
	return err
}

// ClaimReferral freezes trader's lineage under referrer.
func (svc *Service) ClaimReferral(trader, referrer ethcommon.Address) error {
	svc.mu.Lock()
	err := svc.graph.Claim(trader, referrer)
	svc.mu.Unlock()
	if err != nil {
		metrics.ReferralClaims.WithLabelValues("error").Inc()
		return err
	}
	metrics.ReferralClaims.WithLabelValues("ok").Inc()
	return nil
}

// Lineage returns trader's frozen referral lineage.
func (svc *Service) Lineage(trader ethcommon.Address) domain.Lineage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.graph.Lineage(trader)
}

// ReferralMinted returns how many referral tokens an address holds.
func (svc *Service) ReferralMinted(owner ethcommon.Address) uint64 {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.graph.Minted(owner)
}

// RebateBalance returns the accrued rebate balance for one asset.
func (svc *Service) RebateBalance(beneficiary, asset ethcommon.Address) *uint256.Int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.treasury.Balance(beneficiary, asset)
}

// WithdrawRebate pays out a beneficiary's accrued balance.
func (svc *Service) WithdrawRebate(beneficiary, asset ethcommon.Address) (*uint256.Int, error) {
	svc.mu.Lock()
	amount, err := svc.treasury.Withdraw(beneficiary, asset)
	svc.mu.Unlock()
	if err != nil {
		metrics.TreasuryWithdrawals.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.TreasuryWithdrawals.WithLabelValues("ok").Inc()
	return amount, nil
}

// SetFeeOn flips a pool's fee extraction gate. Authority only.
func (svc *Service) SetFeeOn(caller, pool ethcommon.Address, feeOn bool) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.treasury.SetFeeOn(caller, pool, feeOn)
}

// SetRollOver flips a pool's roll-over mode. Authority only.
func (svc *Service) SetRollOver(caller, pool ethcommon.Address, rollOver bool) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.treasury.SetRollOver(caller, pool, rollOver)
}

// SetRouterAddresses publishes a new active router pair. Authority only.
func (svc *Service) SetRouterAddresses(caller, hot, warm ethcommon.Address) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.registry.SetRouterAddresses(caller, hot, warm)
}

// ActiveRouters returns the published (hot, warm) router pair.
func (svc *Service) ActiveRouters() (ethcommon.Address, ethcommon.Address) {
	return svc.registry.GetActiveRouters()
}

// RegisterToken adds a token definition to the bank. Authority only.
func (svc *Service) RegisterToken(caller ethcommon.Address, def token.Token) (*token.Token, error) {
	if caller != svc.config.Authority {
		return nil, common.ErrUnauthorized
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.bank.Register(def)
}

// MintToken credits freshly issued token units. Authority only.
func (svc *Service) MintToken(caller, tokenAddr, to ethcommon.Address, amount *uint256.Int) error {
	if caller != svc.config.Authority {
		return common.ErrUnauthorized
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.bank.Mint(tokenAddr, to, amount)
}

// MintNative credits native coin. Authority only.
func (svc *Service) MintNative(caller, to ethcommon.Address, amount *uint256.Int) error {
	if caller != svc.config.Authority {
		return common.ErrUnauthorized
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.bank.MintNative(to, amount)
	return nil
}

// Approve sets a spender allowance on behalf of owner.
func (svc *Service) Approve(tokenAddr, owner, spender ethcommon.Address, amount *uint256.Int) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.bank.Approve(tokenAddr, owner, spender, amount)
}

// Token resolves a registered token definition.
func (svc *Service) Token(addr ethcommon.Address) (*token.Token, bool) {
	return svc.bank.Token(addr)
}

// Tokens lists every registered token.
func (svc *Service) Tokens() []*token.Token {
	return svc.bank.Tokens()
}

// BalanceOf returns a holder's token balance.
func (svc *Service) BalanceOf(tokenAddr, holder ethcommon.Address) *uint256.Int {
	return svc.bank.BalanceOf(tokenAddr, holder)
}

// NativeBalanceOf returns a holder's native-coin balance.
func (svc *Service) NativeBalanceOf(holder ethcommon.Address) *uint256.Int {
	return svc.bank.NativeBalanceOf(holder)
}
