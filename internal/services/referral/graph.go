// Package referral implements the NFT-backed referral registry: an address
// mints to become claimable, traders claim a referrer once, and the
// (parent, grandparent) lineage is frozen at claim time.
package referral

import (
	"errors"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/k1lox/coinfair/internal/common"
	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/services/token"
)

var (
	ErrAlreadyClaimed    = errors.New("lineage already claimed")
	ErrSelfReferral      = errors.New("cannot claim self as referrer")
	ErrReferrerNotMinted = errors.New("referrer has not minted")
	ErrZeroCount         = errors.New("mint count must be positive")
)

// Graph owns referral edges. Mint and claim charge native-coin costs that
// accrue to the protocol treasury account.
type Graph struct {
	mu        sync.RWMutex
	bank      *token.Bank
	mintCost  *uint256.Int
	claimCost *uint256.Int

	minted   map[ethcommon.Address]uint64
	lineages map[ethcommon.Address]domain.Lineage
}

func NewGraph(bank *token.Bank, mintCost, claimCost uint64) *Graph {
	return &Graph{
		bank:      bank,
		mintCost:  uint256.NewInt(mintCost),
		claimCost: uint256.NewInt(claimCost),
		minted:    make(map[ethcommon.Address]uint64),
		lineages:  make(map[ethcommon.Address]domain.Lineage),
	}
}

func (g *Graph) MintCost() *uint256.Int  { return g.mintCost.Clone() }
func (g *Graph) ClaimCost() *uint256.Int { return g.claimCost.Clone() }

// Mint makes owner claimable as a referrer, charging mintCost per unit.
func (g *Graph) Mint(owner ethcommon.Address, count uint64) error {
	if count == 0 {
		return ErrZeroCount
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	cost := new(uint256.Int).Mul(g.mintCost, uint256.NewInt(count))
	if err := g.bank.TransferNative(owner, common.TreasuryAccount, cost); err != nil {
		return err
	}
	g.minted[owner] += count
	return nil
}

// Minted returns how many referral tokens an address holds.
func (g *Graph) Minted(owner ethcommon.Address) uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.minted[owner]
}

// Claim records trader's lineage: parent = referrer, grandparent =
// referrer's parent at this moment. Exactly once per trader; later changes
// to the referrer's own lineage do not propagate.
func (g *Graph) Claim(trader, referrer ethcommon.Address) error {
	if trader == referrer {
		return ErrSelfReferral
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.lineages[trader]; ok {
		return ErrAlreadyClaimed
	}
	if g.minted[referrer] == 0 {
		return ErrReferrerNotMinted
	}
	if err := g.bank.TransferNative(trader, common.TreasuryAccount, g.claimCost); err != nil {
		return err
	}

	lineage := domain.Lineage{Parent: referrer, HasParent: true}
	if up, ok := g.lineages[referrer]; ok && up.HasParent {
		lineage.Grandparent = up.Parent
		lineage.HasGrandparent = true
	}
	g.lineages[trader] = lineage
	return nil
}

// Lineage is a pure lookup; a trader with no claim has no parent.
func (g *Graph) Lineage(trader ethcommon.Address) domain.Lineage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lineages[trader]
}

// Edges snapshots all lineages for persistence.
func (g *Graph) Edges() map[ethcommon.Address]domain.Lineage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[ethcommon.Address]domain.Lineage, len(g.lineages))
	for k, v := range g.lineages {
		out[k] = v
	}
	return out
}

// MintCounts snapshots minted counts for persistence.
func (g *Graph) MintCounts() map[ethcommon.Address]uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[ethcommon.Address]uint64, len(g.minted))
	for k, v := range g.minted {
		out[k] = v
	}
	return out
}

// Restore reinstates a persisted edge set. Startup only.
func (g *Graph) Restore(lineages map[ethcommon.Address]domain.Lineage, minted map[ethcommon.Address]uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, v := range lineages {
		g.lineages[k] = v
	}
	for k, v := range minted {
		g.minted[k] = v
	}
}
