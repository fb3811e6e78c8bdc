package domain

import "github.com/ethereum/go-ethereum/common"

// Lineage is a trader's fixed (parent, grandparent) referral pair,
// established once at claim time.
type Lineage struct {
	Parent         common.Address `json:"parent"`
	Grandparent    common.Address `json:"grandparent"`
	HasParent      bool           `json:"hasParent"`
	HasGrandparent bool           `json:"hasGrandparent"`
}
