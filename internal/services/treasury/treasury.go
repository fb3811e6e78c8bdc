// Package treasury holds per-pool fee policy and the accrued-rebate ledger.
// On every fee-on swap the router settles the hop's fee here; the treasury
// resolves the trader's lineage and credits the referrer shares.
package treasury

import (
	"errors"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/k1lox/coinfair/internal/common"
	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/services/token"
)

var ErrNothingToWithdraw = errors.New("nothing to withdraw")

// LineageSource is the referral graph surface the treasury needs.
type LineageSource interface {
	Lineage(trader ethcommon.Address) domain.Lineage
}

// PoolPolicy is a pool's rebate configuration. FeeOn gates extraction
// entirely; RollOver leaves the fee in reserves for liquidity providers
// instead of crediting referrers.
type PoolPolicy struct {
	FeeOn    bool `json:"feeOn"`
	RollOver bool `json:"rollOver"`
}

// Settlement is the priced outcome of settling one hop's fee. Credited is
// the total leaving the pool's reserves.
type Settlement struct {
	Parent       ethcommon.Address
	Grandparent  ethcommon.Address
	ParentAmount *uint256.Int
	GrandAmount  *uint256.Int
	Credited     *uint256.Int
}

type Treasury struct {
	mu        sync.RWMutex
	bank      *token.Bank
	lineage   LineageSource
	authority ethcommon.Address

	parentShareBps uint16
	grandShareBps  uint16

	policies map[ethcommon.Address]PoolPolicy
	ledger   map[ethcommon.Address]map[ethcommon.Address]*uint256.Int
}

func NewTreasury(bank *token.Bank, lineage LineageSource, authority ethcommon.Address, parentShareBps, grandShareBps uint16) *Treasury {
	return &Treasury{
		bank:           bank,
		lineage:        lineage,
		authority:      authority,
		parentShareBps: parentShareBps,
		grandShareBps:  grandShareBps,
		policies:       make(map[ethcommon.Address]PoolPolicy),
		ledger:         make(map[ethcommon.Address]map[ethcommon.Address]*uint256.Int),
	}
}

// Configure overwrites a pool's rebate policy. Authority only.
func (t *Treasury) Configure(caller, pool ethcommon.Address, feeOn, rollOver bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.authority {
		return common.ErrUnauthorized
	}
	t.policies[pool] = PoolPolicy{FeeOn: feeOn, RollOver: rollOver}
	return nil
}

// SetFeeOn flips only the fee gate. Authority only.
func (t *Treasury) SetFeeOn(caller, pool ethcommon.Address, feeOn bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.authority {
		return common.ErrUnauthorized
	}
	p := t.policies[pool]
	p.FeeOn = feeOn
	t.policies[pool] = p
	return nil
}

// SetRollOver flips only the roll-over mode. Authority only.
func (t *Treasury) SetRollOver(caller, pool ethcommon.Address, rollOver bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.authority {
		return common.ErrUnauthorized
	}
	p := t.policies[pool]
	p.RollOver = rollOver
	t.policies[pool] = p
	return nil
}

// Policy returns a pool's rebate policy; unconfigured pools default to
// feeOn=false, rollOver=false.
func (t *Treasury) Policy(pool ethcommon.Address) PoolPolicy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.policies[pool]
}

// QuoteSettle prices a settlement without applying it: which referrers get
// which share of feeAmount under the pool's policy. Levels with no referrer
// degrade to roll-over, so Credited <= feeAmount always.
func (t *Treasury) QuoteSettle(trader, pool ethcommon.Address, feeAmount *uint256.Int) Settlement {
	t.mu.RLock()
	policy := t.policies[pool]
	parentBps := uint64(t.parentShareBps)
	grandBps := uint64(t.grandShareBps)
	t.mu.RUnlock()

	s := Settlement{
		ParentAmount: uint256.NewInt(0),
		GrandAmount:  uint256.NewInt(0),
		Credited:     uint256.NewInt(0),
	}
	if !policy.FeeOn || policy.RollOver || feeAmount.IsZero() {
		return s
	}

	lineage := t.lineage.Lineage(trader)
	if !lineage.HasParent {
		return s
	}
	s.Parent = lineage.Parent
	s.ParentAmount = shareOf(feeAmount, parentBps)
	s.Credited.Add(s.Credited, s.ParentAmount)
	if lineage.HasGrandparent {
		s.Grandparent = lineage.Grandparent
		s.GrandAmount = shareOf(feeAmount, grandBps)
		s.Credited.Add(s.Credited, s.GrandAmount)
	}
	return s
}

// SettleSwapFee applies a settlement: moves the credited shares of feeAsset
// out of the pool's bank account and credits the rebate ledger with the
// realized received amounts. Returns the total deducted from the pool.
func (t *Treasury) SettleSwapFee(trader, pool, feeAsset ethcommon.Address, feeAmount *uint256.Int) (*uint256.Int, error) {
	s := t.QuoteSettle(trader, pool, feeAmount)
	if s.Credited.IsZero() {
		return uint256.NewInt(0), nil
	}

	if !s.ParentAmount.IsZero() {
		received, err := t.bank.Transfer(feeAsset, pool, common.TreasuryAccount, s.ParentAmount)
		if err != nil {
			return nil, err
		}
		t.credit(s.Parent, feeAsset, received)
	}
	if !s.GrandAmount.IsZero() {
		received, err := t.bank.Transfer(feeAsset, pool, common.TreasuryAccount, s.GrandAmount)
		if err != nil {
			return nil, err
		}
		t.credit(s.Grandparent, feeAsset, received)
	}
	return s.Credited, nil
}

// Withdraw zeroes and pays out the beneficiary's accrued balance.
func (t *Treasury) Withdraw(beneficiary, asset ethcommon.Address) (*uint256.Int, error) {
	t.mu.Lock()
	assets, ok := t.ledger[beneficiary]
	var amount *uint256.Int
	if ok {
		if bal, found := assets[asset]; found && !bal.IsZero() {
			amount = bal.Clone()
			bal.Clear()
		}
	}
	t.mu.Unlock()

	if amount == nil {
		return nil, ErrNothingToWithdraw
	}
	if _, err := t.bank.Transfer(asset, common.TreasuryAccount, beneficiary, amount); err != nil {
		// Put the claim back; the ledger entry must survive a failed payout.
		t.credit(beneficiary, asset, amount)
		return nil, err
	}
	return amount, nil
}

// Balance is a pure read of the accrued rebate balance.
func (t *Treasury) Balance(beneficiary, asset ethcommon.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if assets, ok := t.ledger[beneficiary]; ok {
		if bal, found := assets[asset]; found {
			return bal.Clone()
		}
	}
	return uint256.NewInt(0)
}

// Ledger snapshots all accrued balances for persistence.
func (t *Treasury) Ledger() map[ethcommon.Address]map[ethcommon.Address]*uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[ethcommon.Address]map[ethcommon.Address]*uint256.Int, len(t.ledger))
	for beneficiary, assets := range t.ledger {
		cp := make(map[ethcommon.Address]*uint256.Int, len(assets))
		for asset, bal := range assets {
			cp[asset] = bal.Clone()
		}
		out[beneficiary] = cp
	}
	return out
}

// Policies snapshots all pool policies for persistence.
func (t *Treasury) Policies() map[ethcommon.Address]PoolPolicy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[ethcommon.Address]PoolPolicy, len(t.policies))
	for k, v := range t.policies {
		out[k] = v
	}
	return out
}

// Restore reinstates persisted policy and ledger state. Startup only.
func (t *Treasury) Restore(policies map[ethcommon.Address]PoolPolicy, ledger map[ethcommon.Address]map[ethcommon.Address]*uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range policies {
		t.policies[k] = v
	}
	for beneficiary, assets := range ledger {
		cp := make(map[ethcommon.Address]*uint256.Int, len(assets))
		for asset, bal := range assets {
			cp[asset] = bal.Clone()
		}
		t.ledger[beneficiary] = cp
	}
}

func (t *Treasury) credit(beneficiary, asset ethcommon.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	assets, ok := t.ledger[beneficiary]
	if !ok {
		assets = make(map[ethcommon.Address]*uint256.Int)
		t.ledger[beneficiary] = assets
	}
	if bal, ok := assets[asset]; ok {
		bal.Add(bal, amount)
	} else {
		assets[asset] = amount.Clone()
	}
}

func shareOf(amount *uint256.Int, bps uint64) *uint256.Int {
	out := new(uint256.Int).Mul(amount, uint256.NewInt(bps))
	return out.Div(out, uint256.NewInt(common.BpsDenominator))
}
