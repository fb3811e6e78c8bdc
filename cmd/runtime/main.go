package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/k1lox/coinfair/internal/common"
	"github.com/k1lox/coinfair/internal/config"
	"github.com/k1lox/coinfair/internal/http"
	"github.com/k1lox/coinfair/internal/ledger"
)

// @title Coinfair Ledger API
// @version 1.0
// @description Deterministic AMM ledger with a two-level referral rebate engine.
// @description
// @description ## - Features
// @description - **Two pricing libraries**: hot router (classic rounding) and warm router (exact ceiling rounding)
// @description - **Multi-hop swaps**: up to 8 hops, atomic end to end
// @description - **Fee rebates**: swap fees split between the trader's first and second level referrers
// @description - **Fee-on-transfer support**: tolerant swap variants price on realized amounts
// @description - **Native coin**: the zero address wraps/unwraps at the router edge
// @description
// @description ## - Usage Tips
// @description - Amounts are decimal strings in the token's minor units
// @description - Approve the active router address (GET /api/v1/routers) before swapping
// @description - Fee rates are out of 10000: fee=10 keeps 9990/10000 of the input priced
// @host localhost:8080
// @BasePath /
// @schemes http
// @tag.name swap
// @tag.description Execute and quote multi-hop swaps
// @tag.name liquidity
// @tag.description Deposit into and redeem from pools
// @tag.name pools
// @tag.description Pool lookup and introspection
// @tag.name referral
// @tag.description Referral token minting and lineage claims
// @tag.name treasury
// @tag.description Rebate balances and withdrawals
// @tag.name tokens
// @tag.description Token registry, balances and allowances
// @tag.name routers
// @tag.description Active router configuration
// @tag.name admin
// @tag.description Authority-only operations

func main() {
	common.InitRuntime()

	// load env
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("no .env file loaded")
	}

	// di container config
	conf := container.NewConf(
		&config.GeneralConfig{},
		&config.LedgerConfig{},
	)

	// di container
	dic, err := container.New(
		conf,

		&ledger.Service{},
		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("runtime stopped with error")
	}

	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop container cleanly")
	}
}
