package config

import (
	"errors"

	"github.com/andrew-solarstorm/go-packages/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type LedgerConfig struct {
	// Authority may change per-pool fee policy and the active router pair.
	Authority ethcommon.Address

	// ParentShareBps/GrandShareBps split the extracted swap fee between the
	// trader's first and second level referrers. Must sum to <= 10000; any
	// unmatched share stays in the pool's reserves.
	ParentShareBps uint16
	GrandShareBps  uint16

	// MintCost/ClaimCost are charged in native-coin minor units by the
	// referral registry.
	MintCost  uint64
	ClaimCost uint64

	// DBPath is the path to the BoltDB file for ledger persistence.
	DBPath string

	// PersistenceEnabled controls whether state is persisted to disk.
	PersistenceEnabled bool

	// PersistInterval is how often state is batch-saved to disk (in seconds).
	PersistInterval int
}

func (c *LedgerConfig) Key() string {
	return LEDGER_CONFIG_KEY
}

func (c *LedgerConfig) Load() error {
	c.Authority = ethcommon.HexToAddress(common.GetEnvOrDefault("LEDGER_AUTHORITY", "0x0000000000000000000000000000000000000001"))
	c.ParentShareBps = uint16(common.GetEnvOrDefaultInt("LEDGER_PARENT_SHARE_BPS", 7000))
	c.GrandShareBps = uint16(common.GetEnvOrDefaultInt("LEDGER_GRAND_SHARE_BPS", 3000))
	c.MintCost = uint64(common.GetEnvOrDefaultInt("REFERRAL_MINT_COST", 10000000))
	c.ClaimCost = uint64(common.GetEnvOrDefaultInt("REFERRAL_CLAIM_COST", 1000000))
	c.DBPath = common.GetEnvOrDefault("LEDGER_DB_PATH", "./data/coinfair.db")
	c.PersistenceEnabled = common.GetEnvOrDefault("LEDGER_PERSISTENCE_ENABLED", "true") == "true"
	c.PersistInterval = common.GetEnvOrDefaultInt("LEDGER_PERSIST_INTERVAL", 30)
	return c.Validate()
}

func (c *LedgerConfig) Validate() error {
	if int(c.ParentShareBps)+int(c.GrandShareBps) > 10000 {
		return errors.New("referral shares exceed 10000 bps")
	}
	if (c.Authority == ethcommon.Address{}) {
		return errors.New("ledger authority must be set")
	}
	return nil
}
