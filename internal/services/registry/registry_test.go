package registry

import (
	"errors"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/k1lox/coinfair/internal/common"
	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/services/amm"
)

var (
	tokenA    = ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB    = ethcommon.HexToAddress("0x00000000000000000000000000000000000000bb")
	authority = ethcommon.HexToAddress("0x00000000000000000000000000000000000000ad")
	stranger  = ethcommon.HexToAddress("0x00000000000000000000000000000000000000ff")
)

func newTestRegistry() *Registry {
	return NewRegistry(amm.NewEngine(), authority)
}

func TestDerivePoolIDOrderIndependent(t *testing.T) {
	ab := DerivePoolID(tokenA, tokenB, domain.PoolTypeA, 10)
	ba := DerivePoolID(tokenB, tokenA, domain.PoolTypeA, 10)
	if ab != ba {
		t.Errorf("identity must not depend on token order: %s vs %s", ab.Hex(), ba.Hex())
	}
}

func TestDerivePoolIDDistinct(t *testing.T) {
	base := DerivePoolID(tokenA, tokenB, domain.PoolTypeA, 10)
	variants := []ethcommon.Address{
		DerivePoolID(tokenA, tokenB, domain.PoolTypeB, 10),
		DerivePoolID(tokenA, tokenB, domain.PoolTypeA, 30),
		DerivePoolID(tokenA, stranger, domain.PoolTypeA, 10),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with the base identity", i)
		}
	}
}

func TestGetOrCreatePoolIdempotent(t *testing.T) {
	r := newTestRegistry()

	pool, created, err := r.GetOrCreatePool(tokenB, tokenA, domain.PoolTypeA, 10)
	if err != nil {
		t.Fatalf("GetOrCreatePool failed: %v", err)
	}
	if !created {
		t.Error("first call should create")
	}
	if pool.Token0 != tokenA || pool.Token1 != tokenB {
		t.Errorf("pair not canonicalized: %s/%s", pool.Token0.Hex(), pool.Token1.Hex())
	}

	again, created, err := r.GetOrCreatePool(tokenA, tokenB, domain.PoolTypeA, 10)
	if err != nil {
		t.Fatalf("second GetOrCreatePool failed: %v", err)
	}
	if created {
		t.Error("second call must not create")
	}
	if again != pool {
		t.Error("second call must return the same pool instance")
	}

	if _, ok := r.GetPool(tokenB, tokenA, domain.PoolTypeA, 10); !ok {
		t.Error("GetPool should resolve in reversed order")
	}
}

func TestGetOrCreatePoolValidation(t *testing.T) {
	r := newTestRegistry()
	tests := []struct {
		name     string
		a, b     ethcommon.Address
		poolType domain.PoolType
		fee      uint16
		wantErr  error
	}{
		{"identical tokens", tokenA, tokenA, domain.PoolTypeA, 10, ErrIdenticalTokens},
		{"invalid pool type", tokenA, tokenB, domain.PoolType(9), 10, ErrInvalidPoolType},
		{"fee at denominator", tokenA, tokenB, domain.PoolTypeA, 10000, ErrInvalidFee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := r.GetOrCreatePool(tt.a, tt.b, tt.poolType, tt.fee); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSetRouterAddresses(t *testing.T) {
	r := newTestRegistry()
	hot := ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	warm := ethcommon.HexToAddress("0x2222222222222222222222222222222222222222")

	if err := r.SetRouterAddresses(stranger, hot, warm); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if err := r.SetRouterAddresses(authority, hot, warm); err != nil {
		t.Fatalf("SetRouterAddresses failed: %v", err)
	}
	gotHot, gotWarm := r.GetActiveRouters()
	if gotHot != hot || gotWarm != warm {
		t.Errorf("expected %s/%s, got %s/%s", hot.Hex(), warm.Hex(), gotHot.Hex(), gotWarm.Hex())
	}

	// Zero hot leaves the hot slot untouched while warm is overwritten.
	warm2 := ethcommon.HexToAddress("0x3333333333333333333333333333333333333333")
	if err := r.SetRouterAddresses(authority, ethcommon.Address{}, warm2); err != nil {
		t.Fatalf("partial SetRouterAddresses failed: %v", err)
	}
	gotHot, gotWarm = r.GetActiveRouters()
	if gotHot != hot {
		t.Errorf("hot should be unchanged, got %s", gotHot.Hex())
	}
	if gotWarm != warm2 {
		t.Errorf("warm should be %s, got %s", warm2.Hex(), gotWarm.Hex())
	}
}
