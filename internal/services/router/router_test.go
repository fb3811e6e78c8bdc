package router

import (
	"errors"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/k1lox/coinfair/internal/common"
	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/services/amm"
	"github.com/k1lox/coinfair/internal/services/referral"
	"github.com/k1lox/coinfair/internal/services/registry"
	"github.com/k1lox/coinfair/internal/services/token"
	"github.com/k1lox/coinfair/internal/services/treasury"
)

var (
	authority = ethcommon.HexToAddress("0x00000000000000000000000000000000000000ad")
	lp        = ethcommon.HexToAddress("0x0000000000000000000000000000000000000011")
	trader    = ethcommon.HexToAddress("0x0000000000000000000000000000000000000022")
	parent    = ethcommon.HexToAddress("0x0000000000000000000000000000000000000033")
	grandpa   = ethcommon.HexToAddress("0x0000000000000000000000000000000000000044")
)

type fixture struct {
	bank   *token.Bank
	engine *amm.Engine
	reg    *registry.Registry
	graph  *referral.Graph
	tre    *treasury.Treasury
	hot    *Router
	warm   *Router

	tokenX, tokenY, tokenZ ethcommon.Address
	tokenFot               ethcommon.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bank := token.NewBank()
	register := func(def token.Token) ethcommon.Address {
		tok, err := bank.Register(def)
		if err != nil {
			t.Fatalf("Register(%s) failed: %v", def.Symbol, err)
		}
		return tok.Address
	}

	f := &fixture{
		bank:     bank,
		tokenX:   register(token.Token{Name: "Token X", Symbol: "TKX", Decimals: 18}),
		tokenY:   register(token.Token{Name: "Token Y", Symbol: "TKY", Decimals: 18}),
		tokenZ:   register(token.Token{Name: "Token Z", Symbol: "TKZ", Decimals: 18}),
		tokenFot: register(token.Token{Name: "Fee Token", Symbol: "FOT", Decimals: 18, TransferFeeBps: 200}),
	}
	register(token.Token{Name: "Wrapped Native", Symbol: "WNAT", Decimals: 18, WrappedNative: true})

	f.engine = amm.NewEngine()
	f.reg = registry.NewRegistry(f.engine, authority)
	f.graph = referral.NewGraph(bank, 1000, 100)
	f.tre = treasury.NewTreasury(bank, f.graph, authority, 7000, 3000)
	f.hot = NewHotRouter(f.engine, f.reg, f.tre, bank)
	f.warm = NewWarmRouter(f.engine, f.reg, f.tre, bank)

	unlimited := new(uint256.Int).SetAllOne()
	for _, who := range []ethcommon.Address{lp, trader, parent, grandpa} {
		bank.MintNative(who, uint256.NewInt(10_000_000))
		for _, tok := range []ethcommon.Address{f.tokenX, f.tokenY, f.tokenZ, f.tokenFot} {
			if err := bank.Mint(tok, who, uint256.NewInt(100_000_000)); err != nil {
				t.Fatalf("Mint failed: %v", err)
			}
			for _, r := range []*Router{f.hot, f.warm} {
				if err := bank.Approve(tok, who, r.Address(), unlimited); err != nil {
					t.Fatalf("Approve failed: %v", err)
				}
			}
		}
	}
	return f
}

func (f *fixture) seedPool(t *testing.T, r *Router, tokenA, tokenB ethcommon.Address, amountA, amountB uint64, fee uint16) *domain.Pool {
	t.Helper()
	params := domain.LiquidityParams{
		AmountToken: uint256.NewInt(amountA),
		AmountOther: uint256.NewInt(amountB),
		MinToken:    uint256.NewInt(0),
		MinOther:    uint256.NewInt(0),
	}
	res, err := r.AddLiquidity(lp, lp, tokenA, tokenB, params, domain.PoolTypeA, fee, 0)
	if err != nil {
		t.Fatalf("seed AddLiquidity failed: %v", err)
	}
	pool, ok := f.engine.Get(res.Pool)
	if !ok {
		t.Fatalf("seeded pool %s not found", res.Pool.Hex())
	}
	return pool
}

// claimLineage wires trader -> parent -> grandpa in the referral graph.
func (f *fixture) claimLineage(t *testing.T) {
	t.Helper()
	for _, step := range []func() error{
		func() error { return f.graph.Mint(grandpa, 1) },
		func() error { return f.graph.Mint(parent, 1) },
		func() error { return f.graph.Claim(parent, grandpa) },
		func() error { return f.graph.Claim(trader, parent) },
	} {
		if err := step(); err != nil {
			t.Fatalf("lineage setup failed: %v", err)
		}
	}
}

func TestDeriveRouterAddressDistinct(t *testing.T) {
	hot := DeriveRouterAddress(HotRouterName)
	warm := DeriveRouterAddress(WarmRouterName)
	if hot == warm {
		t.Error("hot and warm routers must have distinct identities")
	}
	if hot != DeriveRouterAddress(HotRouterName) {
		t.Error("derivation must be deterministic")
	}
}

func TestAddRemoveLiquidityRoundTrip(t *testing.T) {
	f := newFixture(t)
	pool := f.seedPool(t, f.hot, f.tokenX, f.tokenY, 1_000_000, 1_000_000, 10)

	if pool.ShareBalance(lp).Uint64() != 999_000 {
		t.Fatalf("expected 999000 shares, got %d", pool.ShareBalance(lp).Uint64())
	}
	if f.bank.BalanceOf(f.tokenX, pool.ID).Uint64() != 1_000_000 {
		t.Errorf("pool should hold 1000000 X, got %d", f.bank.BalanceOf(f.tokenX, pool.ID).Uint64())
	}

	res, err := f.hot.RemoveLiquidity(lp, lp, f.tokenX, f.tokenY,
		uint256.NewInt(499_500), uint256.NewInt(499_500), uint256.NewInt(499_500),
		domain.PoolTypeA, 10, 0)
	if err != nil {
		t.Fatalf("RemoveLiquidity failed: %v", err)
	}
	if res.Amount0.Uint64() != 499_500 || res.Amount1.Uint64() != 499_500 {
		t.Errorf("expected 499500/499500 redeemed, got %s/%s", res.Amount0.Dec(), res.Amount1.Dec())
	}
	if pool.ShareBalance(lp).Uint64() != 499_500 {
		t.Errorf("expected 499500 shares left, got %d", pool.ShareBalance(lp).Uint64())
	}

	// Asking for more than the redemption prices aborts without burning.
	_, err = f.hot.RemoveLiquidity(lp, lp, f.tokenX, f.tokenY,
		uint256.NewInt(100_000), uint256.NewInt(200_000), uint256.NewInt(0),
		domain.PoolTypeA, 10, 0)
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Errorf("expected ErrSlippageExceeded, got %v", err)
	}
}

func TestAddLiquidityRatioPairing(t *testing.T) {
	f := newFixture(t)
	pool := f.seedPool(t, f.hot, f.tokenX, f.tokenY, 1_000_000, 1_000_000, 10)

	// Desired 100k/200k against a 1:1 pool pairs down to 100k/100k.
	params := domain.LiquidityParams{
		AmountToken: uint256.NewInt(100_000),
		AmountOther: uint256.NewInt(200_000),
		MinToken:    uint256.NewInt(0),
		MinOther:    uint256.NewInt(0),
	}
	res, err := f.hot.AddLiquidity(lp, lp, f.tokenX, f.tokenY, params, domain.PoolTypeA, 10, 0)
	if err != nil {
		t.Fatalf("AddLiquidity failed: %v", err)
	}
	if res.Amount0.Uint64() != 100_000 || res.Amount1.Uint64() != 100_000 {
		t.Errorf("expected 100000/100000 deposited, got %s/%s", res.Amount0.Dec(), res.Amount1.Dec())
	}
	if res.Shares.Uint64() != 100_000 {
		t.Errorf("expected 100000 shares, got %d", res.Shares.Uint64())
	}
	if pool.Reserve0.Uint64() != 1_100_000 {
		t.Errorf("reserve0 should be 1100000, got %d", pool.Reserve0.Uint64())
	}

	// The paired other-side amount falling below the caller minimum aborts.
	params.MinOther = uint256.NewInt(150_000)
	if _, err := f.hot.AddLiquidity(lp, lp, f.tokenX, f.tokenY, params, domain.PoolTypeA, 10, 0); !errors.Is(err, ErrSlippageExceeded) {
		t.Errorf("expected ErrSlippageExceeded, got %v", err)
	}
}

// TestAddLiquidityFailureRegistersNoPool covers the all-or-nothing contract
// on the creation path: a first deposit that fails any check must leave the
// registry without the pool, not park an empty pool under its identity.
func TestAddLiquidityFailureRegistersNoPool(t *testing.T) {
	f := newFixture(t)
	params := domain.LiquidityParams{
		AmountToken: uint256.NewInt(1_000_000),
		AmountOther: uint256.NewInt(1_000_000),
		MinToken:    uint256.NewInt(0),
		MinOther:    uint256.NewInt(0),
	}

	// A caller with no balance fails the funding check.
	stranger := ethcommon.HexToAddress("0x0000000000000000000000000000000000000055")
	_, err := f.hot.AddLiquidity(stranger, stranger, f.tokenX, f.tokenY, params, domain.PoolTypeA, 10, 0)
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, ok := f.reg.GetPool(f.tokenX, f.tokenY, domain.PoolTypeA, 10); ok {
		t.Error("aborted first deposit must not register a pool")
	}

	// A funded caller whose deposit is too small to seed shares fails share
	// issuance, still before the pool exists.
	tiny := domain.LiquidityParams{
		AmountToken: uint256.NewInt(1000),
		AmountOther: uint256.NewInt(1000),
		MinToken:    uint256.NewInt(0),
		MinOther:    uint256.NewInt(0),
	}
	_, err = f.hot.AddLiquidity(lp, lp, f.tokenX, f.tokenY, tiny, domain.PoolTypeA, 10, 0)
	if !errors.Is(err, amm.ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if f.engine.Count() != 0 {
		t.Errorf("no pool should exist after rejected deposits, got %d", f.engine.Count())
	}

	// Invalid coordinates are rejected up front.
	_, err = f.hot.AddLiquidity(lp, lp, f.tokenX, f.tokenX, params, domain.PoolTypeA, 10, 0)
	if !errors.Is(err, registry.ErrIdenticalTokens) {
		t.Errorf("expected ErrIdenticalTokens, got %v", err)
	}

	// The same coordinates still seed cleanly afterwards.
	if _, err := f.hot.AddLiquidity(lp, lp, f.tokenX, f.tokenY, params, domain.PoolTypeA, 10, 0); err != nil {
		t.Fatalf("AddLiquidity after rejected attempts failed: %v", err)
	}
	if f.engine.Count() != 1 {
		t.Errorf("expected exactly one pool, got %d", f.engine.Count())
	}
}

func TestSwapExactInSingleHop(t *testing.T) {
	f := newFixture(t)
	pool := f.seedPool(t, f.hot, f.tokenX, f.tokenY, 1_000_000, 1_000_000, 10)

	res, err := f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(9_891),
		[]ethcommon.Address{f.tokenX, f.tokenY},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{10}, 0, false)
	if err != nil {
		t.Fatalf("SwapExactIn failed: %v", err)
	}
	if res.AmountOut.Uint64() != 9_891 {
		t.Errorf("expected out 9891, got %d", res.AmountOut.Uint64())
	}
	if res.TotalFee.Uint64() != 10 {
		t.Errorf("expected fee 10, got %d", res.TotalFee.Uint64())
	}

	if f.bank.BalanceOf(f.tokenY, trader).Uint64() != 100_009_891 {
		t.Errorf("trader Y balance wrong: %d", f.bank.BalanceOf(f.tokenY, trader).Uint64())
	}
	if f.bank.BalanceOf(f.tokenX, trader).Uint64() != 99_990_000 {
		t.Errorf("trader X balance wrong: %d", f.bank.BalanceOf(f.tokenX, trader).Uint64())
	}

	// With rebates off, bank holdings track reserves exactly.
	xReserve, _ := pool.ReservesFor(f.tokenX)
	if f.bank.BalanceOf(f.tokenX, pool.ID).Cmp(xReserve) != 0 {
		t.Errorf("pool bank balance %s diverged from reserve %s",
			f.bank.BalanceOf(f.tokenX, pool.ID).Dec(), xReserve.Dec())
	}
	if xReserve.Uint64() != 1_010_000 {
		t.Errorf("expected in reserve 1010000, got %d", xReserve.Uint64())
	}
}

func TestSwapExactInRebate(t *testing.T) {
	f := newFixture(t)
	pool := f.seedPool(t, f.hot, f.tokenX, f.tokenY, 1_000_000, 1_000_000, 10)
	f.claimLineage(t)
	if err := f.tre.Configure(authority, pool.ID, true, false); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	res, err := f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(0),
		[]ethcommon.Address{f.tokenX, f.tokenY},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{10}, 0, false)
	if err != nil {
		t.Fatalf("SwapExactIn failed: %v", err)
	}
	if res.AmountOut.Uint64() != 9_891 {
		t.Errorf("rebate extraction must not change pricing: got %d", res.AmountOut.Uint64())
	}

	// Fee 10 splits 7 to the parent and 3 to the grandparent, all in the
	// hop's input asset.
	if f.tre.Balance(parent, f.tokenX).Uint64() != 7 {
		t.Errorf("parent rebate should be 7, got %d", f.tre.Balance(parent, f.tokenX).Uint64())
	}
	if f.tre.Balance(grandpa, f.tokenX).Uint64() != 3 {
		t.Errorf("grandparent rebate should be 3, got %d", f.tre.Balance(grandpa, f.tokenX).Uint64())
	}

	// The pool keeps the fee-adjusted input only; the credited 10 moved to
	// the treasury account.
	xReserve, _ := pool.ReservesFor(f.tokenX)
	if xReserve.Uint64() != 1_009_990 {
		t.Errorf("expected in reserve 1009990, got %d", xReserve.Uint64())
	}
	if f.bank.BalanceOf(f.tokenX, pool.ID).Cmp(xReserve) != 0 {
		t.Error("pool bank balance must track reserves after settlement")
	}
	if f.bank.BalanceOf(f.tokenX, common.TreasuryAccount).Uint64() != 10 {
		t.Errorf("treasury account should hold 10, got %d", f.bank.BalanceOf(f.tokenX, common.TreasuryAccount).Uint64())
	}
}

func TestSwapExactInMultiHop(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, f.hot, f.tokenX, f.tokenY, 1_000_000, 1_000_000, 10)
	f.seedPool(t, f.hot, f.tokenY, f.tokenZ, 1_000_000, 1_000_000, 10)

	res, err := f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(0),
		[]ethcommon.Address{f.tokenX, f.tokenY, f.tokenZ},
		[]domain.PoolType{domain.PoolTypeA, domain.PoolTypeA}, []uint16{10, 10}, 0, false)
	if err != nil {
		t.Fatalf("SwapExactIn failed: %v", err)
	}
	// Hop 1: 10000 -> 9891. Hop 2: 9891 -> 9784.
	if res.AmountOut.Uint64() != 9_784 {
		t.Errorf("expected out 9784, got %d", res.AmountOut.Uint64())
	}
	if len(res.Route) != 3 || len(res.Pools) != 2 {
		t.Errorf("expected 3 route entries over 2 pools, got %d/%d", len(res.Route), len(res.Pools))
	}
	if res.TotalFee.Uint64() != 20 {
		t.Errorf("expected total fee 20, got %d", res.TotalFee.Uint64())
	}
	if f.bank.BalanceOf(f.tokenZ, trader).Uint64() != 100_009_784 {
		t.Errorf("trader Z balance wrong: %d", f.bank.BalanceOf(f.tokenZ, trader).Uint64())
	}
}

func TestSwapExactOutHotVsWarm(t *testing.T) {
	tests := []struct {
		name   string
		pick   func(f *fixture) *Router
		wantIn uint64
	}{
		{"hot rounds up twice", func(f *fixture) *Router { return f.hot }, 1_000_001},
		{"warm charges exact", func(f *fixture) *Router { return f.warm }, 1_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r := tt.pick(f)
			f.seedPool(t, r, f.tokenX, f.tokenY, 1_000_000, 1_000_000, 0)

			res, err := r.SwapExactOut(trader, trader,
				uint256.NewInt(500_000), uint256.NewInt(2_000_000),
				[]ethcommon.Address{f.tokenX, f.tokenY},
				[]domain.PoolType{domain.PoolTypeA}, []uint16{0}, 0)
			if err != nil {
				t.Fatalf("SwapExactOut failed: %v", err)
			}
			if res.AmountIn.Uint64() != tt.wantIn {
				t.Errorf("expected in %d, got %d", tt.wantIn, res.AmountIn.Uint64())
			}
			if res.AmountOut.Uint64() != 500_000 {
				t.Errorf("expected out 500000, got %d", res.AmountOut.Uint64())
			}
		})
	}
}

func TestSwapExactOutInputCap(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, f.warm, f.tokenX, f.tokenY, 1_000_000, 1_000_000, 0)

	_, err := f.warm.SwapExactOut(trader, trader,
		uint256.NewInt(500_000), uint256.NewInt(999_999),
		[]ethcommon.Address{f.tokenX, f.tokenY},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{0}, 0)
	if !errors.Is(err, amm.ErrExcessiveInput) {
		t.Errorf("expected ErrExcessiveInput, got %v", err)
	}
}

func TestSwapDeadline(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, f.hot, f.tokenX, f.tokenY, 1_000_000, 1_000_000, 10)
	f.hot.SetClock(func() int64 { return 1000 })

	_, err := f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(0),
		[]ethcommon.Address{f.tokenX, f.tokenY},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{10}, 999, false)
	if !errors.Is(err, common.ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}

	// deadline 0 means no deadline.
	if _, err := f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(0),
		[]ethcommon.Address{f.tokenX, f.tokenY},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{10}, 0, false); err != nil {
		t.Errorf("zero deadline should never expire: %v", err)
	}
}

func TestSwapSlippageLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	pool := f.seedPool(t, f.hot, f.tokenX, f.tokenY, 1_000_000, 1_000_000, 10)
	xBefore := f.bank.BalanceOf(f.tokenX, trader)
	yBefore := f.bank.BalanceOf(f.tokenY, trader)

	_, err := f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(9_892),
		[]ethcommon.Address{f.tokenX, f.tokenY},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{10}, 0, false)
	if !errors.Is(err, ErrInsufficientOutput) {
		t.Fatalf("expected ErrInsufficientOutput, got %v", err)
	}

	if f.bank.BalanceOf(f.tokenX, trader).Cmp(xBefore) != 0 || f.bank.BalanceOf(f.tokenY, trader).Cmp(yBefore) != 0 {
		t.Error("failed swap must not move trader funds")
	}
	if pool.Reserve0.Uint64() != 1_000_000 || pool.Reserve1.Uint64() != 1_000_000 {
		t.Error("failed swap must not move reserves")
	}
	if pool.Locked {
		t.Error("fence must be released after a failed swap")
	}
}

func TestSwapPathRevisitingPool(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, f.hot, f.tokenX, f.tokenY, 1_000_000, 1_000_000, 10)

	// X -> Y -> X through the same (pair, type, fee) identity reenters the
	// pool and is rejected.
	_, err := f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(0),
		[]ethcommon.Address{f.tokenX, f.tokenY, f.tokenX},
		[]domain.PoolType{domain.PoolTypeA, domain.PoolTypeA}, []uint16{10, 10}, 0, false)
	if !errors.Is(err, amm.ErrPoolLocked) {
		t.Fatalf("expected ErrPoolLocked, got %v", err)
	}

	// The partial acquisition was rolled back.
	if _, err := f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(0),
		[]ethcommon.Address{f.tokenX, f.tokenY},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{10}, 0, false); err != nil {
		t.Errorf("pool should be usable after the rejected path: %v", err)
	}
}

func TestSwapFeeOnTransferToken(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, f.hot, f.tokenFot, f.tokenY, 1_000_000, 1_000_000, 10)
	fotBefore := f.bank.BalanceOf(f.tokenFot, trader)

	// Standard path: the pool realizes 9800 of the declared 10000, which
	// cannot cover the 9990 the price was quoted on.
	_, err := f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(0),
		[]ethcommon.Address{f.tokenFot, f.tokenY},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{10}, 0, false)
	if !errors.Is(err, amm.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
	if f.bank.BalanceOf(f.tokenFot, trader).Cmp(fotBefore) != 0 {
		t.Error("rejected swap must not move funds")
	}

	// Tolerant path prices on the realized 9800: afterFee 9790 against
	// reserves 980000/1000000 buys 9890.
	res, err := f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(0),
		[]ethcommon.Address{f.tokenFot, f.tokenY},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{10}, 0, true)
	if err != nil {
		t.Fatalf("tolerant SwapExactIn failed: %v", err)
	}
	if res.AmountOut.Uint64() != 9_890 {
		t.Errorf("expected out 9890, got %d", res.AmountOut.Uint64())
	}
}

func TestSwapNativeSentinel(t *testing.T) {
	f := newFixture(t)

	// Seed a wrapped-native/Y pool through the sentinel itself.
	params := domain.LiquidityParams{
		AmountToken: uint256.NewInt(1_000_000),
		AmountOther: uint256.NewInt(1_000_000),
		MinToken:    uint256.NewInt(0),
		MinOther:    uint256.NewInt(0),
	}
	if _, err := f.hot.AddLiquidity(lp, lp, common.NativeAsset, f.tokenY, params, domain.PoolTypeA, 10, 0); err != nil {
		t.Fatalf("native AddLiquidity failed: %v", err)
	}
	if f.bank.NativeBalanceOf(lp).Uint64() != 9_000_000 {
		t.Errorf("lp native should be debited to 9000000, got %d", f.bank.NativeBalanceOf(lp).Uint64())
	}

	// Native in: coin is wrapped at the edge and swapped as the token.
	res, err := f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(0),
		[]ethcommon.Address{common.NativeAsset, f.tokenY},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{10}, 0, false)
	if err != nil {
		t.Fatalf("native SwapExactIn failed: %v", err)
	}
	if res.AmountOut.Uint64() != 9_891 {
		t.Errorf("expected out 9891, got %d", res.AmountOut.Uint64())
	}
	if f.bank.NativeBalanceOf(trader).Uint64() != 9_990_000 {
		t.Errorf("trader native should be 9990000, got %d", f.bank.NativeBalanceOf(trader).Uint64())
	}

	// Native out: the recipient ends with coin, not the wrapped token.
	nativeBefore := f.bank.NativeBalanceOf(trader)
	res, err = f.hot.SwapExactIn(trader, trader,
		uint256.NewInt(10_000), uint256.NewInt(0),
		[]ethcommon.Address{f.tokenY, common.NativeAsset},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{10}, 0, false)
	if err != nil {
		t.Fatalf("native-out SwapExactIn failed: %v", err)
	}
	wrapped := f.bank.WrappedNative()
	if f.bank.BalanceOf(wrapped, trader).Uint64() != 0 {
		t.Error("recipient must not be left holding the wrapped token")
	}
	want := new(uint256.Int).Add(nativeBefore, res.AmountOut)
	if f.bank.NativeBalanceOf(trader).Cmp(want) != 0 {
		t.Errorf("trader native should be %s, got %s", want.Dec(), f.bank.NativeBalanceOf(trader).Dec())
	}
}

func TestQuoteExactIn(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, f.hot, f.tokenX, f.tokenY, 1_000_000, 1_000_000, 10)
	f.seedPool(t, f.hot, f.tokenY, f.tokenZ, 1_000_000, 1_000_000, 10)

	quotes, err := f.hot.QuoteExactIn(uint256.NewInt(10_000),
		[]ethcommon.Address{f.tokenX, f.tokenY, f.tokenZ},
		[]domain.PoolType{domain.PoolTypeA, domain.PoolTypeA}, []uint16{10, 10})
	if err != nil {
		t.Fatalf("QuoteExactIn failed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 hop quotes, got %d", len(quotes))
	}
	if quotes[0].AmountOut.Uint64() != 9_891 || quotes[1].AmountOut.Uint64() != 9_784 {
		t.Errorf("expected 9891/9784, got %d/%d", quotes[0].AmountOut.Uint64(), quotes[1].AmountOut.Uint64())
	}
	if quotes[0].FeeAmount.Uint64() != 10 {
		t.Errorf("expected hop fee 10, got %d", quotes[0].FeeAmount.Uint64())
	}

	// Quoting is pure.
	pool, _ := f.reg.GetPool(f.tokenX, f.tokenY, domain.PoolTypeA, 10)
	if pool.Reserve0.Uint64() != 1_000_000 {
		t.Error("quote must not move reserves")
	}

	_, err = f.hot.QuoteExactIn(uint256.NewInt(10_000),
		[]ethcommon.Address{f.tokenX},
		nil, nil)
	if !errors.Is(err, common.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}
