package ledger

import (
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/k1lox/coinfair/internal/config"
	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/services"
	"github.com/k1lox/coinfair/internal/services/amm"
	"github.com/k1lox/coinfair/internal/services/referral"
	"github.com/k1lox/coinfair/internal/services/registry"
	"github.com/k1lox/coinfair/internal/services/router"
	"github.com/k1lox/coinfair/internal/services/token"
	"github.com/k1lox/coinfair/internal/services/treasury"
)

var (
	testAuthority = ethcommon.HexToAddress("0x00000000000000000000000000000000000000ad")
	testLP        = ethcommon.HexToAddress("0x0000000000000000000000000000000000000011")
	testTrader    = ethcommon.HexToAddress("0x0000000000000000000000000000000000000022")
)

// newLedger wires a Service the way Configure does, without the container.
func newLedger(t *testing.T) (*Service, ethcommon.Address, ethcommon.Address) {
	t.Helper()
	svc := &Service{
		config: &config.LedgerConfig{
			Authority:      testAuthority,
			ParentShareBps: 7000,
			GrandShareBps:  3000,
			MintCost:       1000,
			ClaimCost:      100,
		},
		stopCh: make(chan struct{}),
	}
	svc.logger = services.NewServiceLogger(svc)
	svc.bank = token.NewBank()
	svc.engine = amm.NewEngine()
	svc.registry = registry.NewRegistry(svc.engine, svc.config.Authority)
	svc.graph = referral.NewGraph(svc.bank, svc.config.MintCost, svc.config.ClaimCost)
	svc.treasury = treasury.NewTreasury(svc.bank, svc.graph, svc.config.Authority, svc.config.ParentShareBps, svc.config.GrandShareBps)
	svc.hot = router.NewHotRouter(svc.engine, svc.registry, svc.treasury, svc.bank)
	svc.warm = router.NewWarmRouter(svc.engine, svc.registry, svc.treasury, svc.bank)

	tokA, err := svc.RegisterToken(testAuthority, token.Token{Name: "Token A", Symbol: "TKA", Decimals: 18})
	if err != nil {
		t.Fatalf("RegisterToken failed: %v", err)
	}
	tokB, err := svc.RegisterToken(testAuthority, token.Token{Name: "Token B", Symbol: "TKB", Decimals: 18})
	if err != nil {
		t.Fatalf("RegisterToken failed: %v", err)
	}
	unlimited := new(uint256.Int).SetAllOne()
	for _, who := range []ethcommon.Address{testLP, testTrader} {
		for _, addr := range []ethcommon.Address{tokA.Address, tokB.Address} {
			if err := svc.MintToken(testAuthority, addr, who, uint256.NewInt(100_000_000)); err != nil {
				t.Fatalf("MintToken failed: %v", err)
			}
			if err := svc.Approve(addr, who, svc.hot.Address(), unlimited); err != nil {
				t.Fatalf("Approve failed: %v", err)
			}
		}
	}
	return svc, tokA.Address, tokB.Address
}

// TestPoolReadsAreSnapshots pins the read contract of the pool accessors:
// what they hand out is decoupled from the live pool, in both directions.
// A caller mutating the returned struct cannot corrupt the ledger, and a
// struct held across later swaps does not change underneath the caller.
func TestPoolReadsAreSnapshots(t *testing.T) {
	svc, tokA, tokB := newLedger(t)
	params := domain.LiquidityParams{
		AmountToken: uint256.NewInt(1_000_000),
		AmountOther: uint256.NewInt(1_000_000),
		MinToken:    uint256.NewInt(0),
		MinOther:    uint256.NewInt(0),
	}
	if _, err := svc.AddLiquidity(router.HotRouterName, testLP, testLP, tokA, tokB, params, domain.PoolTypeA, 10, 0); err != nil {
		t.Fatalf("AddLiquidity failed: %v", err)
	}

	// Writes into a returned pool must not leak back into the ledger.
	snap, ok := svc.Pool(tokA, tokB, domain.PoolTypeA, 10)
	if !ok {
		t.Fatal("pool not found")
	}
	snap.Reserve0.Add(snap.Reserve0, uint256.NewInt(500))
	snap.Shares[testLP].Clear()
	fresh, _ := svc.Pool(tokA, tokB, domain.PoolTypeA, 10)
	if fresh.Reserve0.Uint64() != 1_000_000 {
		t.Errorf("reserve0 should stay 1000000, got %d", fresh.Reserve0.Uint64())
	}
	if fresh.ShareBalance(testLP).Uint64() != 999_000 {
		t.Errorf("lp shares should stay 999000, got %d", fresh.ShareBalance(testLP).Uint64())
	}

	// A pool held across a later swap keeps the reserves it was read with.
	held, ok := svc.PoolByID(snap.ID)
	if !ok {
		t.Fatal("pool not found by id")
	}
	if _, err := svc.SwapExactIn(router.HotRouterName, testTrader, testTrader,
		uint256.NewInt(10_000), uint256.NewInt(0),
		[]ethcommon.Address{tokA, tokB},
		[]domain.PoolType{domain.PoolTypeA}, []uint16{10}, 0, false); err != nil {
		t.Fatalf("SwapExactIn failed: %v", err)
	}
	heldIn, _ := held.ReservesFor(tokA)
	if heldIn.Uint64() != 1_000_000 {
		t.Errorf("held pool moved with a later swap: reserve %d", heldIn.Uint64())
	}
	liveIn, _ := mustPool(t, svc, tokA, tokB).ReservesFor(tokA)
	if liveIn.Uint64() != 1_010_000 {
		t.Errorf("expected live in-reserve 1010000, got %d", liveIn.Uint64())
	}

	// The list accessor hands out decoupled structs too.
	pools := svc.Pools()
	if len(pools) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(pools))
	}
	pools[0].TotalShares.Clear()
	if mustPool(t, svc, tokA, tokB).TotalShares.Uint64() != 1_000_000 {
		t.Error("clearing a listed pool's shares must not touch the ledger")
	}
}

func mustPool(t *testing.T, svc *Service, tokA, tokB ethcommon.Address) *domain.Pool {
	t.Helper()
	pool, ok := svc.Pool(tokA, tokB, domain.PoolTypeA, 10)
	if !ok {
		t.Fatal("pool not found")
	}
	return pool
}
