// Package persistence snapshots the ledger into boltdb and restores it on
// startup. Amounts are stored as decimal strings; addresses as hex.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"

	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/services/token"
	"github.com/k1lox/coinfair/internal/services/treasury"
)

const (
	PoolsBucket    = "pools"
	TokensBucket   = "tokens"
	BalancesBucket = "balances"
	NativeBucket   = "native_balances"
	ReferralBucket = "referral_edges"
	MintedBucket   = "referral_minted"
	RebatesBucket  = "treasury_rebates"
	PoliciesBucket = "pool_policies"
	ConfigBucket   = "config"

	routersKey = "routers"

	DefaultDBPath = "./data/coinfair.db"
)

type StoredPool struct {
	ID               string            `json:"id"`
	Token0           string            `json:"token0"`
	Token1           string            `json:"token1"`
	Type             uint8             `json:"type"`
	Fee              uint16            `json:"fee"`
	Reserve0         string            `json:"reserve0"`
	Reserve1         string            `json:"reserve1"`
	TotalShares      string            `json:"totalShares"`
	Shares           map[string]string `json:"shares"`
	Price0Cumulative string            `json:"price0Cumulative"`
	Price1Cumulative string            `json:"price1Cumulative"`
	LastUpdated      int64             `json:"lastUpdated"`
}

type StoredToken struct {
	Address        string `json:"address"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	Decimals       uint8  `json:"decimals"`
	TransferFeeBps uint16 `json:"transferFeeBps"`
	WrappedNative  bool   `json:"wrappedNative"`
}

type StoredLineage struct {
	Parent         string `json:"parent"`
	Grandparent    string `json:"grandparent,omitempty"`
	HasGrandparent bool   `json:"hasGrandparent"`
}

type StoredRouters struct {
	Hot  string `json:"hot"`
	Warm string `json:"warm"`
}

type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	os.MkdirAll(filepath.Dir(dbPath), 0755)

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[ledgerStorage] opened database")

	return &Storage{db: db, dbPath: dbPath}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Storage) SavePoolBatch(pools []*domain.Pool) error {
	if len(pools) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	for _, pool := range pools {
		data, err := sonic.Marshal(poolToStored(pool))
		if err != nil {
			return fmt.Errorf("failed to marshal pool %s: %w", pool.ID.Hex(), err)
		}
		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(PoolsBucket),
			Key:    []byte(pool.ID.Hex()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return fmt.Errorf("failed to add pool %s to batch: %w", pool.ID.Hex(), err)
		}
	}
	if err := batch.Execute(); err != nil {
		log.Error().Err(err).Int("count", len(pools)).Msg("[ledgerStorage] FAILED to execute pool batch")
		return err
	}
	return nil
}

func (s *Storage) LoadAllPools() ([]*domain.Pool, error) {
	data, err := s.db.List(PoolsBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	pools := make([]*domain.Pool, 0, len(data))
	failed := 0
	for id, value := range data {
		var stored StoredPool
		if err := sonic.Unmarshal(value, &stored); err != nil {
			log.Error().Str("id", id).Err(err).Msg("[ledgerStorage] failed to unmarshal pool, skipping")
			failed++
			continue
		}
		pool, err := storedToPool(&stored)
		if err != nil {
			log.Error().Str("id", id).Err(err).Msg("[ledgerStorage] failed to convert stored pool, skipping")
			failed++
			continue
		}
		pools = append(pools, pool)
	}

	if failed > 0 {
		log.Error().
			Int("total_in_db", len(data)).
			Int("loaded", len(pools)).
			Int("failed", failed).
			Msg("[ledgerStorage] pool loading completed with errors")
	} else {
		log.Info().
			Int("total_in_db", len(data)).
			Int("loaded", len(pools)).
			Msg("[ledgerStorage] pool loading completed")
	}
	return pools, nil
}

func (s *Storage) SaveTokens(tokens []*token.Token) error {
	if len(tokens) == 0 {
		return nil
	}
	batch := s.db.NewBatch()
	for _, t := range tokens {
		stored := StoredToken{
			Address:        t.Address.Hex(),
			Name:           t.Name,
			Symbol:         t.Symbol,
			Decimals:       t.Decimals,
			TransferFeeBps: t.TransferFeeBps,
			WrappedNative:  t.WrappedNative,
		}
		data, err := sonic.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal token %s: %w", t.Address.Hex(), err)
		}
		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(TokensBucket),
			Key:    []byte(t.Address.Hex()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return err
		}
	}
	return batch.Execute()
}

func (s *Storage) LoadAllTokens() ([]token.Token, error) {
	data, err := s.db.List(TokensBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	tokens := make([]token.Token, 0, len(data))
	for addr, value := range data {
		var stored StoredToken
		if err := sonic.Unmarshal(value, &stored); err != nil {
			log.Warn().Str("address", addr).Err(err).Msg("[ledgerStorage] failed to unmarshal token, skipping")
			continue
		}
		tokens = append(tokens, token.Token{
			Address:        ethcommon.HexToAddress(stored.Address),
			Name:           stored.Name,
			Symbol:         stored.Symbol,
			Decimals:       stored.Decimals,
			TransferFeeBps: stored.TransferFeeBps,
			WrappedNative:  stored.WrappedNative,
		})
	}
	return tokens, nil
}

// SaveBalanceBook persists every token's full holder map, one record per
// token.
func (s *Storage) SaveBalanceBook(book map[ethcommon.Address]map[ethcommon.Address]*uint256.Int) error {
	if len(book) == 0 {
		return nil
	}
	batch := s.db.NewBatch()
	for tokenAddr, holders := range book {
		data, err := sonic.Marshal(amountsToStored(holders))
		if err != nil {
			return fmt.Errorf("failed to marshal balances for %s: %w", tokenAddr.Hex(), err)
		}
		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(BalancesBucket),
			Key:    []byte(tokenAddr.Hex()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return err
		}
	}
	return batch.Execute()
}

func (s *Storage) LoadBalanceBook() (map[ethcommon.Address]map[ethcommon.Address]*uint256.Int, error) {
	data, err := s.db.List(BalancesBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	book := make(map[ethcommon.Address]map[ethcommon.Address]*uint256.Int, len(data))
	for tokenAddr, value := range data {
		var stored map[string]string
		if err := sonic.Unmarshal(value, &stored); err != nil {
			log.Warn().Str("token", tokenAddr).Err(err).Msg("[ledgerStorage] failed to unmarshal balances, skipping")
			continue
		}
		holders, err := storedToAmounts(stored)
		if err != nil {
			log.Warn().Str("token", tokenAddr).Err(err).Msg("[ledgerStorage] invalid balance amounts, skipping")
			continue
		}
		book[ethcommon.HexToAddress(tokenAddr)] = holders
	}
	return book, nil
}

func (s *Storage) SaveNativeBalances(native map[ethcommon.Address]*uint256.Int) error {
	data, err := sonic.Marshal(amountsToStored(native))
	if err != nil {
		return fmt.Errorf("failed to marshal native balances: %w", err)
	}
	return s.db.Set(NativeBucket, []byte("all"), data)
}

func (s *Storage) LoadNativeBalances() (map[ethcommon.Address]*uint256.Int, error) {
	data, err := s.db.List(NativeBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list native balances: %w", err)
	}
	value, ok := data["all"]
	if !ok {
		return map[ethcommon.Address]*uint256.Int{}, nil
	}
	var stored map[string]string
	if err := sonic.Unmarshal(value, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal native balances: %w", err)
	}
	return storedToAmounts(stored)
}

func (s *Storage) SaveReferral(edges map[ethcommon.Address]domain.Lineage, minted map[ethcommon.Address]uint64) error {
	batch := s.db.NewBatch()
	for trader, lineage := range edges {
		if !lineage.HasParent {
			continue
		}
		stored := StoredLineage{
			Parent:         lineage.Parent.Hex(),
			HasGrandparent: lineage.HasGrandparent,
		}
		if lineage.HasGrandparent {
			stored.Grandparent = lineage.Grandparent.Hex()
		}
		data, err := sonic.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal lineage for %s: %w", trader.Hex(), err)
		}
		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(ReferralBucket),
			Key:    []byte(trader.Hex()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return err
		}
	}
	for owner, count := range minted {
		data, err := sonic.Marshal(count)
		if err != nil {
			return err
		}
		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(MintedBucket),
			Key:    []byte(owner.Hex()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return err
		}
	}
	return batch.Execute()
}

func (s *Storage) LoadReferral() (map[ethcommon.Address]domain.Lineage, map[ethcommon.Address]uint64, error) {
	edgeData, err := s.db.List(ReferralBucket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list referral edges: %w", err)
	}
	edges := make(map[ethcommon.Address]domain.Lineage, len(edgeData))
	for trader, value := range edgeData {
		var stored StoredLineage
		if err := sonic.Unmarshal(value, &stored); err != nil {
			log.Warn().Str("trader", trader).Err(err).Msg("[ledgerStorage] failed to unmarshal lineage, skipping")
			continue
		}
		lineage := domain.Lineage{
			Parent:         ethcommon.HexToAddress(stored.Parent),
			HasParent:      true,
			HasGrandparent: stored.HasGrandparent,
		}
		if stored.HasGrandparent {
			lineage.Grandparent = ethcommon.HexToAddress(stored.Grandparent)
		}
		edges[ethcommon.HexToAddress(trader)] = lineage
	}

	mintedData, err := s.db.List(MintedBucket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list mint counts: %w", err)
	}
	minted := make(map[ethcommon.Address]uint64, len(mintedData))
	for owner, value := range mintedData {
		var count uint64
		if err := sonic.Unmarshal(value, &count); err != nil {
			log.Warn().Str("owner", owner).Err(err).Msg("[ledgerStorage] failed to unmarshal mint count, skipping")
			continue
		}
		minted[ethcommon.HexToAddress(owner)] = count
	}
	return edges, minted, nil
}

func (s *Storage) SaveTreasury(ledger map[ethcommon.Address]map[ethcommon.Address]*uint256.Int, policies map[ethcommon.Address]treasury.PoolPolicy) error {
	batch := s.db.NewBatch()
	for beneficiary, assets := range ledger {
		data, err := sonic.Marshal(amountsToStored(assets))
		if err != nil {
			return fmt.Errorf("failed to marshal rebates for %s: %w", beneficiary.Hex(), err)
		}
		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(RebatesBucket),
			Key:    []byte(beneficiary.Hex()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return err
		}
	}
	for pool, policy := range policies {
		data, err := sonic.Marshal(policy)
		if err != nil {
			return err
		}
		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(PoliciesBucket),
			Key:    []byte(pool.Hex()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return err
		}
	}
	return batch.Execute()
}

func (s *Storage) LoadTreasury() (map[ethcommon.Address]map[ethcommon.Address]*uint256.Int, map[ethcommon.Address]treasury.PoolPolicy, error) {
	rebateData, err := s.db.List(RebatesBucket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list rebates: %w", err)
	}
	ledger := make(map[ethcommon.Address]map[ethcommon.Address]*uint256.Int, len(rebateData))
	for beneficiary, value := range rebateData {
		var stored map[string]string
		if err := sonic.Unmarshal(value, &stored); err != nil {
			log.Warn().Str("beneficiary", beneficiary).Err(err).Msg("[ledgerStorage] failed to unmarshal rebates, skipping")
			continue
		}
		assets, err := storedToAmounts(stored)
		if err != nil {
			log.Warn().Str("beneficiary", beneficiary).Err(err).Msg("[ledgerStorage] invalid rebate amounts, skipping")
			continue
		}
		ledger[ethcommon.HexToAddress(beneficiary)] = assets
	}

	policyData, err := s.db.List(PoliciesBucket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list policies: %w", err)
	}
	policies := make(map[ethcommon.Address]treasury.PoolPolicy, len(policyData))
	for pool, value := range policyData {
		var policy treasury.PoolPolicy
		if err := sonic.Unmarshal(value, &policy); err != nil {
			log.Warn().Str("pool", pool).Err(err).Msg("[ledgerStorage] failed to unmarshal policy, skipping")
			continue
		}
		policies[ethcommon.HexToAddress(pool)] = policy
	}
	return ledger, policies, nil
}

func (s *Storage) SaveRouters(hot, warm ethcommon.Address) error {
	data, err := sonic.Marshal(StoredRouters{Hot: hot.Hex(), Warm: warm.Hex()})
	if err != nil {
		return err
	}
	return s.db.Set(ConfigBucket, []byte(routersKey), data)
}

func (s *Storage) LoadRouters() (ethcommon.Address, ethcommon.Address, bool, error) {
	data, err := s.db.List(ConfigBucket)
	if err != nil {
		return ethcommon.Address{}, ethcommon.Address{}, false, fmt.Errorf("failed to list config: %w", err)
	}
	value, ok := data[routersKey]
	if !ok {
		return ethcommon.Address{}, ethcommon.Address{}, false, nil
	}
	var stored StoredRouters
	if err := sonic.Unmarshal(value, &stored); err != nil {
		return ethcommon.Address{}, ethcommon.Address{}, false, fmt.Errorf("failed to unmarshal routers: %w", err)
	}
	return ethcommon.HexToAddress(stored.Hot), ethcommon.HexToAddress(stored.Warm), true, nil
}

func poolToStored(pool *domain.Pool) *StoredPool {
	shares := make(map[string]string, len(pool.Shares))
	for holder, bal := range pool.Shares {
		shares[holder.Hex()] = bal.Dec()
	}
	return &StoredPool{
		ID:               pool.ID.Hex(),
		Token0:           pool.Token0.Hex(),
		Token1:           pool.Token1.Hex(),
		Type:             uint8(pool.Type),
		Fee:              pool.Fee,
		Reserve0:         pool.Reserve0.Dec(),
		Reserve1:         pool.Reserve1.Dec(),
		TotalShares:      pool.TotalShares.Dec(),
		Shares:           shares,
		Price0Cumulative: pool.Price0Cumulative.Dec(),
		Price1Cumulative: pool.Price1Cumulative.Dec(),
		LastUpdated:      pool.LastUpdated,
	}
}

func storedToPool(stored *StoredPool) (*domain.Pool, error) {
	reserve0, err := uint256.FromDecimal(stored.Reserve0)
	if err != nil {
		return nil, fmt.Errorf("invalid reserve0: %w", err)
	}
	reserve1, err := uint256.FromDecimal(stored.Reserve1)
	if err != nil {
		return nil, fmt.Errorf("invalid reserve1: %w", err)
	}
	totalShares, err := uint256.FromDecimal(stored.TotalShares)
	if err != nil {
		return nil, fmt.Errorf("invalid totalShares: %w", err)
	}
	p0, err := uint256.FromDecimal(stored.Price0Cumulative)
	if err != nil {
		return nil, fmt.Errorf("invalid price0Cumulative: %w", err)
	}
	p1, err := uint256.FromDecimal(stored.Price1Cumulative)
	if err != nil {
		return nil, fmt.Errorf("invalid price1Cumulative: %w", err)
	}
	shares := make(map[ethcommon.Address]*uint256.Int, len(stored.Shares))
	for holder, bal := range stored.Shares {
		amount, err := uint256.FromDecimal(bal)
		if err != nil {
			return nil, fmt.Errorf("invalid share balance for %s: %w", holder, err)
		}
		shares[ethcommon.HexToAddress(holder)] = amount
	}
	return &domain.Pool{
		ID:               ethcommon.HexToAddress(stored.ID),
		Token0:           ethcommon.HexToAddress(stored.Token0),
		Token1:           ethcommon.HexToAddress(stored.Token1),
		Type:             domain.PoolType(stored.Type),
		Fee:              stored.Fee,
		Reserve0:         reserve0,
		Reserve1:         reserve1,
		TotalShares:      totalShares,
		Shares:           shares,
		Price0Cumulative: p0,
		Price1Cumulative: p1,
		LastUpdated:      stored.LastUpdated,
	}, nil
}

func amountsToStored(amounts map[ethcommon.Address]*uint256.Int) map[string]string {
	out := make(map[string]string, len(amounts))
	for addr, amount := range amounts {
		out[addr.Hex()] = amount.Dec()
	}
	return out
}

func storedToAmounts(stored map[string]string) (map[ethcommon.Address]*uint256.Int, error) {
	out := make(map[ethcommon.Address]*uint256.Int, len(stored))
	for addr, dec := range stored {
		amount, err := uint256.FromDecimal(dec)
		if err != nil {
			return nil, fmt.Errorf("invalid amount for %s: %w", addr, err)
		}
		out[ethcommon.HexToAddress(addr)] = amount
	}
	return out, nil
}
