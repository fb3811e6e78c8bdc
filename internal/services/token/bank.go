// Package token implements the fungible-token bank the ledger settles
// against: standard tokens, transfer-fee-deducting tokens, the wrapped form
// of the native coin, and raw native balances.
package token

import (
	"errors"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/k1lox/coinfair/internal/common"
)

var (
	ErrTokenExists           = errors.New("token already registered")
	ErrTokenNotFound         = errors.New("token not registered")
	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientNative    = errors.New("insufficient native balance")
	ErrZeroAmount            = errors.New("zero amount")
)

// Token describes one registered fungible token.
type Token struct {
	Address  ethcommon.Address `json:"address"`
	Name     string            `json:"name"`
	Symbol   string            `json:"symbol"`
	Decimals uint8             `json:"decimals"`

	// TransferFeeBps is deducted from every transfer of a
	// fee-on-transfer token; the deducted part is burned.
	TransferFeeBps uint16 `json:"transferFeeBps"`

	// WrappedNative marks the deposit/withdraw token backing the native coin.
	WrappedNative bool `json:"wrappedNative"`
}

// Bank tracks balances, allowances and native-coin holdings for all
// registered tokens. It is safe for concurrent use, but atomicity across
// multiple transfers is the caller's job: check first, then apply.
type Bank struct {
	mu            sync.RWMutex
	tokens        map[ethcommon.Address]*Token
	balances      map[ethcommon.Address]map[ethcommon.Address]*uint256.Int
	allowances    map[ethcommon.Address]map[ethcommon.Address]map[ethcommon.Address]*uint256.Int
	native        map[ethcommon.Address]*uint256.Int
	wrappedNative ethcommon.Address
}

func NewBank() *Bank {
	return &Bank{
		tokens:     make(map[ethcommon.Address]*Token),
		balances:   make(map[ethcommon.Address]map[ethcommon.Address]*uint256.Int),
		allowances: make(map[ethcommon.Address]map[ethcommon.Address]map[ethcommon.Address]*uint256.Int),
		native:     make(map[ethcommon.Address]*uint256.Int),
	}
}

// DeriveTokenAddress computes the content-addressed identity a token is
// registered under when the caller does not supply one.
func DeriveTokenAddress(name, symbol string, decimals uint8) ethcommon.Address {
	h := crypto.Keccak256([]byte(name), []byte(symbol), []byte{decimals})
	return ethcommon.BytesToAddress(h[12:])
}

// Register adds a token definition. A zero address is replaced with the
// derived content address. The first token registered with WrappedNative set
// becomes the bank's wrap/unwrap target.
func (b *Bank) Register(def Token) (*Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if def.Address == (ethcommon.Address{}) {
		def.Address = DeriveTokenAddress(def.Name, def.Symbol, def.Decimals)
	}
	if _, ok := b.tokens[def.Address]; ok {
		return nil, ErrTokenExists
	}
	t := def
	b.tokens[t.Address] = &t
	b.balances[t.Address] = make(map[ethcommon.Address]*uint256.Int)
	b.allowances[t.Address] = make(map[ethcommon.Address]map[ethcommon.Address]*uint256.Int)
	if t.WrappedNative && b.wrappedNative == (ethcommon.Address{}) {
		b.wrappedNative = t.Address
	}
	return &t, nil
}

// WrappedNative returns the wrap target, zero when none is registered.
func (b *Bank) WrappedNative() ethcommon.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.wrappedNative
}

func (b *Bank) Token(addr ethcommon.Address) (*Token, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tokens[addr]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (b *Bank) Tokens() []*Token {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Token, 0, len(b.tokens))
	for _, t := range b.tokens {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

func (b *Bank) BalanceOf(token, holder ethcommon.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if holders, ok := b.balances[token]; ok {
		if bal, ok := holders[holder]; ok {
			return bal.Clone()
		}
	}
	return uint256.NewInt(0)
}

func (b *Bank) NativeBalanceOf(holder ethcommon.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.native[holder]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (b *Bank) Allowance(token, owner, spender ethcommon.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if owners, ok := b.allowances[token]; ok {
		if spenders, ok := owners[owner]; ok {
			if a, ok := spenders[spender]; ok {
				return a.Clone()
			}
		}
	}
	return uint256.NewInt(0)
}

// Mint credits freshly issued units, an authority-only bootstrap operation
// gated one level up.
func (b *Bank) Mint(token, to ethcommon.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	holders, ok := b.balances[token]
	if !ok {
		return ErrTokenNotFound
	}
	b.credit(holders, to, amount)
	return nil
}

// MintNative credits native coin, the faucet used by deployment tooling.
func (b *Bank) MintNative(to ethcommon.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bal, ok := b.native[to]; ok {
		bal.Add(bal, amount)
	} else {
		b.native[to] = amount.Clone()
	}
}

func (b *Bank) Approve(token, owner, spender ethcommon.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	owners, ok := b.allowances[token]
	if !ok {
		return ErrTokenNotFound
	}
	spenders, ok := owners[owner]
	if !ok {
		spenders = make(map[ethcommon.Address]*uint256.Int)
		owners[owner] = spenders
	}
	spenders[spender] = amount.Clone()
	return nil
}

// PreviewReceived returns the amount the recipient would actually be
// credited for a transfer of amount, accounting for the token's transfer
// fee. Pure; this is what lets the engine plan a whole call before touching
// state.
func (b *Bank) PreviewReceived(token ethcommon.Address, amount *uint256.Int) (*uint256.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tokens[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return applyTransferFee(t, amount), nil
}

// CheckTransfer verifies the transfer would succeed without applying it.
func (b *Bank) CheckTransfer(token, from ethcommon.Address, amount *uint256.Int) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.checkBalance(token, from, amount)
}

// CheckTransferFrom additionally verifies the spender's allowance.
func (b *Bank) CheckTransferFrom(token, owner, spender ethcommon.Address, amount *uint256.Int) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkBalance(token, owner, amount); err != nil {
		return err
	}
	owners := b.allowances[token]
	if spenders, ok := owners[owner]; ok {
		if a, ok := spenders[spender]; ok && a.Cmp(amount) >= 0 {
			return nil
		}
	}
	return ErrInsufficientAllowance
}

// Transfer moves amount from one holder to another and returns the realized
// received amount, which is lower than amount for fee-on-transfer tokens.
func (b *Bank) Transfer(token, from, to ethcommon.Address, amount *uint256.Int) (*uint256.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transfer(token, from, to, amount)
}

// TransferFrom moves amount out of owner on behalf of spender, consuming
// allowance. Returns the realized received amount.
func (b *Bank) TransferFrom(token, owner, spender, to ethcommon.Address, amount *uint256.Int) (*uint256.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	owners, ok := b.allowances[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	spenders, ok := owners[owner]
	if !ok {
		return nil, ErrInsufficientAllowance
	}
	a, ok := spenders[spender]
	if !ok || a.Cmp(amount) < 0 {
		return nil, ErrInsufficientAllowance
	}

	received, err := b.transfer(token, owner, to, amount)
	if err != nil {
		return nil, err
	}
	a.Sub(a, amount)
	return received, nil
}

// TransferNative moves native coin between holders.
func (b *Bank) TransferNative(from, to ethcommon.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal, ok := b.native[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientNative
	}
	bal.Sub(bal, amount)
	if toBal, ok := b.native[to]; ok {
		toBal.Add(toBal, amount)
	} else {
		b.native[to] = amount.Clone()
	}
	return nil
}

// Wrap converts native coin into the wrapped token 1:1.
func (b *Bank) Wrap(holder ethcommon.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wrappedNative == (ethcommon.Address{}) {
		return ErrTokenNotFound
	}
	bal, ok := b.native[holder]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientNative
	}
	bal.Sub(bal, amount)
	b.credit(b.balances[b.wrappedNative], holder, amount)
	return nil
}

// Unwrap converts wrapped token back to native coin 1:1.
func (b *Bank) Unwrap(holder ethcommon.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wrappedNative == (ethcommon.Address{}) {
		return ErrTokenNotFound
	}
	if err := b.checkBalance(b.wrappedNative, holder, amount); err != nil {
		return err
	}
	holders := b.balances[b.wrappedNative]
	holders[holder].Sub(holders[holder], amount)
	if bal, ok := b.native[holder]; ok {
		bal.Add(bal, amount)
	} else {
		b.native[holder] = amount.Clone()
	}
	return nil
}

// SetBalance overwrites a holder's balance. Persistence restore only.
func (b *Bank) SetBalance(token, holder ethcommon.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	holders, ok := b.balances[token]
	if !ok {
		return ErrTokenNotFound
	}
	holders[holder] = amount.Clone()
	return nil
}

// SetNativeBalance overwrites a holder's native balance. Persistence restore
// only.
func (b *Bank) SetNativeBalance(holder ethcommon.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.native[holder] = amount.Clone()
}

// Balances snapshots all holdings of a token for persistence.
func (b *Bank) Balances(token ethcommon.Address) map[ethcommon.Address]*uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[ethcommon.Address]*uint256.Int)
	for holder, bal := range b.balances[token] {
		out[holder] = bal.Clone()
	}
	return out
}

// NativeBalances snapshots all native holdings for persistence.
func (b *Bank) NativeBalances() map[ethcommon.Address]*uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[ethcommon.Address]*uint256.Int, len(b.native))
	for holder, bal := range b.native {
		out[holder] = bal.Clone()
	}
	return out
}

func (b *Bank) transfer(token, from, to ethcommon.Address, amount *uint256.Int) (*uint256.Int, error) {
	t, ok := b.tokens[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if err := b.checkBalance(token, from, amount); err != nil {
		return nil, err
	}
	holders := b.balances[token]
	holders[from].Sub(holders[from], amount)

	received := applyTransferFee(t, amount)
	b.credit(holders, to, received)
	return received.Clone(), nil
}

func (b *Bank) checkBalance(token, from ethcommon.Address, amount *uint256.Int) error {
	holders, ok := b.balances[token]
	if !ok {
		return ErrTokenNotFound
	}
	bal, ok := holders[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (b *Bank) credit(holders map[ethcommon.Address]*uint256.Int, to ethcommon.Address, amount *uint256.Int) {
	if bal, ok := holders[to]; ok {
		bal.Add(bal, amount)
	} else {
		holders[to] = amount.Clone()
	}
}

func applyTransferFee(t *Token, amount *uint256.Int) *uint256.Int {
	if t.TransferFeeBps == 0 {
		return amount.Clone()
	}
	fee := new(uint256.Int).Mul(amount, uint256.NewInt(uint64(t.TransferFeeBps)))
	fee.Div(fee, uint256.NewInt(common.BpsDenominator))
	return new(uint256.Int).Sub(amount, fee)
}
