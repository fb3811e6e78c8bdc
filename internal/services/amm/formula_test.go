package amm

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

// TestAmountOutExactArithmetic pins the fee-adjusted constant product down
// to the unit: fee=10 keeps 9990/10000 of the input priced.
func TestAmountOutExactArithmetic(t *testing.T) {
	reserveIn := uint256.NewInt(1_000_000)
	reserveOut := uint256.NewInt(1_000_000)
	amountIn := uint256.NewInt(10_000)

	// afterFee = 10000 * 9990 / 10000 = 9990
	// out = 1000000 * 9990 / (1000000 + 9990) = 9891 (floor)
	out, err := HotFormula{}.AmountOut(amountIn, reserveIn, reserveOut, 10)
	if err != nil {
		t.Fatalf("AmountOut failed: %v", err)
	}
	if out.Uint64() != 9891 {
		t.Errorf("expected out=9891, got %d", out.Uint64())
	}

	// Both formulas price exact-input identically.
	warmOut, err := WarmFormula{}.AmountOut(amountIn, reserveIn, reserveOut, 10)
	if err != nil {
		t.Fatalf("warm AmountOut failed: %v", err)
	}
	if !warmOut.Eq(out) {
		t.Errorf("hot and warm exact-input disagree: %d vs %d", out.Uint64(), warmOut.Uint64())
	}
}

func TestAmountOutEdgeCases(t *testing.T) {
	tests := []struct {
		name       string
		amountIn   uint64
		reserveIn  uint64
		reserveOut uint64
		fee        uint16
		wantErr    error
	}{
		{
			name:      "zero input",
			amountIn:  0,
			reserveIn: 1000, reserveOut: 1000,
			fee:     10,
			wantErr: ErrInsufficientInput,
		},
		{
			name:      "empty in reserve",
			amountIn:  100,
			reserveIn: 0, reserveOut: 1000,
			fee:     10,
			wantErr: ErrInsufficientLiquidity,
		},
		{
			name:      "empty out reserve",
			amountIn:  100,
			reserveIn: 1000, reserveOut: 0,
			fee:     10,
			wantErr: ErrInsufficientLiquidity,
		},
		{
			name:      "input rounds to zero after max fee",
			amountIn:  1,
			reserveIn: 1000, reserveOut: 1000,
			fee:     9999,
			wantErr: ErrInsufficientInput,
		},
		{
			name:      "output rounds to zero against deep reserves",
			amountIn:  1000,
			reserveIn: 1_000_000_000, reserveOut: 1,
			fee:     10,
			wantErr: ErrInsufficientOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HotFormula{}.AmountOut(
				uint256.NewInt(tt.amountIn),
				uint256.NewInt(tt.reserveIn),
				uint256.NewInt(tt.reserveOut),
				tt.fee,
			)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestAmountInRounding is the axis the two routers differ on: for an
// exactly-divisible inverse the warm formula charges the exact input while
// the hot formula's +1 rounding overcharges by one unit.
func TestAmountInRounding(t *testing.T) {
	reserveIn := uint256.NewInt(1_000_000)
	reserveOut := uint256.NewInt(1_000_000)
	amountOut := uint256.NewInt(500_000)

	hotIn, err := HotFormula{}.AmountIn(amountOut, reserveIn, reserveOut, 0)
	if err != nil {
		t.Fatalf("hot AmountIn failed: %v", err)
	}
	warmIn, err := WarmFormula{}.AmountIn(amountOut, reserveIn, reserveOut, 0)
	if err != nil {
		t.Fatalf("warm AmountIn failed: %v", err)
	}

	t.Logf("hot in:  %s", hotIn.Dec())
	t.Logf("warm in: %s", warmIn.Dec())

	if warmIn.Uint64() != 1_000_000 {
		t.Errorf("warm should charge the exact 1000000, got %d", warmIn.Uint64())
	}
	if hotIn.Uint64() != 1_000_001 {
		t.Errorf("hot should charge 1000001 with +1 rounding, got %d", hotIn.Uint64())
	}
	if warmIn.Cmp(hotIn) > 0 {
		t.Error("warm must never charge more than hot")
	}
}

// TestAmountInFundsExactOut verifies the property exact-out execution rests
// on: transferring AmountIn(x) in while x goes out never shrinks the constant
// product, for both formulas, and the warm formula never charges more than
// the hot one. Re-quoting AmountOut(AmountIn(x)) can undershoot x by a
// rounding unit, so the naive round trip is NOT the guaranteed property; the
// settled hop moves the fixed (in, out) pair, not a re-derived output.
func TestAmountInFundsExactOut(t *testing.T) {
	cases := []struct {
		reserveIn, reserveOut, amountOut uint64
		fee                              uint16
	}{
		{1_000_000, 1_000_000, 333_333, 10},
		{5_000_000, 1_000, 999, 30},
		{2_000_000, 3_000_000, 1_000_000, 100},
		{1_000_000_000, 2_500_000_000, 100_000_000, 25},
	}

	for _, cse := range cases {
		reserveIn := uint256.NewInt(cse.reserveIn)
		reserveOut := uint256.NewInt(cse.reserveOut)
		amountOut := uint256.NewInt(cse.amountOut)

		ins := make(map[string]*uint256.Int, 2)
		for _, f := range []Formula{HotFormula{}, WarmFormula{}} {
			in, err := f.AmountIn(amountOut, reserveIn, reserveOut, cse.fee)
			if err != nil {
				t.Fatalf("%s AmountIn(%d/%d/%d) failed: %v", f.Name(), cse.amountOut, cse.reserveIn, cse.reserveOut, err)
			}
			ins[f.Name()] = in

			kBefore := new(uint256.Int).Mul(reserveIn, reserveOut)
			newIn := new(uint256.Int).Add(reserveIn, in)
			newOut := new(uint256.Int).Sub(reserveOut, amountOut)
			kAfter := new(uint256.Int).Mul(newIn, newOut)
			if kAfter.Cmp(kBefore) < 0 {
				t.Errorf("%s: k shrinks executing (in=%s, out=%d) on %d/%d", f.Name(), in.Dec(), cse.amountOut, cse.reserveIn, cse.reserveOut)
			}
		}
		warmIn, hotIn := ins["warm"], ins["hot"]
		if warmIn.Cmp(hotIn) > 0 {
			t.Errorf("warm charges more than hot for out=%d on %d/%d", cse.amountOut, cse.reserveIn, cse.reserveOut)
		}
	}
}

func TestAmountInInsufficientLiquidity(t *testing.T) {
	reserve := uint256.NewInt(1000)
	if _, err := (HotFormula{}).AmountIn(uint256.NewInt(1000), reserve, reserve, 10); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("requesting the whole reserve should fail, got %v", err)
	}
}

func TestMintSharesFirstDeposit(t *testing.T) {
	zero := uint256.NewInt(0)

	// sqrt(4e6 * 1e6) = 2e6, minus the locked MinimumLiquidity.
	shares, err := HotFormula{}.MintShares(
		uint256.NewInt(4_000_000), uint256.NewInt(1_000_000),
		zero, zero, zero,
	)
	if err != nil {
		t.Fatalf("MintShares failed: %v", err)
	}
	if shares.Uint64() != 1_999_000 {
		t.Errorf("expected 1999000 shares, got %d", shares.Uint64())
	}

	// A deposit whose geometric mean does not exceed MinimumLiquidity is
	// rejected outright.
	if _, err := (HotFormula{}).MintShares(uint256.NewInt(1000), uint256.NewInt(1000), zero, zero, zero); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestMintSharesProportional(t *testing.T) {
	reserve0 := uint256.NewInt(1_000_000)
	reserve1 := uint256.NewInt(4_000_000)
	total := uint256.NewInt(2_000_000)

	// Balanced deposit: 10% of both sides mints 10% of supply.
	shares, err := WarmFormula{}.MintShares(
		uint256.NewInt(100_000), uint256.NewInt(400_000),
		reserve0, reserve1, total,
	)
	if err != nil {
		t.Fatalf("MintShares failed: %v", err)
	}
	if shares.Uint64() != 200_000 {
		t.Errorf("expected 200000 shares, got %d", shares.Uint64())
	}

	// Lopsided deposit mints on the worse side.
	shares, err = WarmFormula{}.MintShares(
		uint256.NewInt(100_000), uint256.NewInt(4_000_000),
		reserve0, reserve1, total,
	)
	if err != nil {
		t.Fatalf("MintShares failed: %v", err)
	}
	if shares.Uint64() != 200_000 {
		t.Errorf("lopsided deposit should still mint 200000, got %d", shares.Uint64())
	}
}

func TestQuote(t *testing.T) {
	out, err := Quote(uint256.NewInt(500), uint256.NewInt(1000), uint256.NewInt(4000))
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if out.Uint64() != 2000 {
		t.Errorf("expected 2000, got %d", out.Uint64())
	}

	if _, err := Quote(uint256.NewInt(0), uint256.NewInt(1000), uint256.NewInt(4000)); !errors.Is(err, ErrInsufficientInput) {
		t.Errorf("expected ErrInsufficientInput, got %v", err)
	}
	if _, err := Quote(uint256.NewInt(500), uint256.NewInt(0), uint256.NewInt(4000)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestSqrtU256(t *testing.T) {
	tests := []struct {
		in, want uint64
	}{
		{0, 0},
		{1, 1},
		{3, 1},
		{4, 2},
		{99, 9},
		{100, 10},
		{1_000_000_000_000, 1_000_000},
	}
	for _, tt := range tests {
		got := sqrtU256(uint256.NewInt(tt.in))
		if got.Uint64() != tt.want {
			t.Errorf("sqrt(%d): expected %d, got %d", tt.in, tt.want, got.Uint64())
		}
	}
}

func BenchmarkAmountOut(b *testing.B) {
	reserveIn := uint256.NewInt(1_000_000_000)
	reserveOut := uint256.NewInt(2_500_000_000)
	amountIn := uint256.NewInt(1_000_000)
	f := HotFormula{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = f.AmountOut(amountIn, reserveIn, reserveOut, 10)
	}
}
