package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/http/httputil"
	"github.com/k1lox/coinfair/internal/ledger"
	"github.com/k1lox/coinfair/internal/services/registry"
)

type PoolHandler struct {
	ledgerSvc *ledger.Service
}

func NewPoolHandler(ledgerSvc *ledger.Service) *PoolHandler {
	return &PoolHandler{ledgerSvc: ledgerSvc}
}

func (h *PoolHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/list", h.listPools)
	pub.GET("/derive", h.derivePoolID)
	pub.GET("/:id", h.getPool)
	pub.GET("/:id/shares/:holder", h.getShares)
}

func (h *PoolHandler) Root() string {
	return "/pools"
}

// PoolInfo is the public view of one pool.
type PoolInfo struct {
	ID               string `json:"id"`
	Token0           string `json:"token0"`
	Token1           string `json:"token1"`
	Type             uint8  `json:"type" example:"1"`
	Fee              uint16 `json:"fee" example:"10"`
	Reserve0         string `json:"reserve0"`
	Reserve1         string `json:"reserve1"`
	TotalShares      string `json:"totalShares"`
	Price0Cumulative string `json:"price0Cumulative"`
	Price1Cumulative string `json:"price1Cumulative"`
	LastUpdated      int64  `json:"lastUpdated"`
	FeeOn            bool   `json:"feeOn"`
	RollOver         bool   `json:"rollOver"`
}

func (h *PoolHandler) poolInfo(pool *domain.Pool) PoolInfo {
	policy := h.ledgerSvc.PoolPolicy(pool.ID)
	return PoolInfo{
		ID:               pool.ID.Hex(),
		Token0:           pool.Token0.Hex(),
		Token1:           pool.Token1.Hex(),
		Type:             uint8(pool.Type),
		Fee:              pool.Fee,
		Reserve0:         pool.Reserve0.Dec(),
		Reserve1:         pool.Reserve1.Dec(),
		TotalShares:      pool.TotalShares.Dec(),
		Price0Cumulative: pool.Price0Cumulative.Dec(),
		Price1Cumulative: pool.Price1Cumulative.Dec(),
		LastUpdated:      pool.LastUpdated,
		FeeOn:            policy.FeeOn,
		RollOver:         policy.RollOver,
	}
}

type PoolListResponse struct {
	Pools []PoolInfo `json:"pools"`
	Total int        `json:"total" example:"12"`
}

// @Summary List pools
// @Description List every pool in the ledger with reserves and fee policy.
// @Tags pools
// @Produce json
// @Success 200 {object} httputil.Response{data=PoolListResponse}
// @Router /api/v1/pools/list [get]
func (h *PoolHandler) listPools(c *gin.Context) {
	pools := h.ledgerSvc.Pools()
	infos := make([]PoolInfo, len(pools))
	for i, pool := range pools {
		infos[i] = h.poolInfo(pool)
	}
	httputil.Success(c, PoolListResponse{Pools: infos, Total: len(infos)})
}

// @Summary Get pool
// @Description Look up one pool by its identity.
// @Tags pools
// @Produce json
// @Param id path string true "Pool identity"
// @Success 200 {object} httputil.Response{data=PoolInfo}
// @Failure 404 {object} httputil.Response
// @Router /api/v1/pools/{id} [get]
func (h *PoolHandler) getPool(c *gin.Context) {
	id, err := parseAddress("pool", c.Param("id"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	pool, ok := h.ledgerSvc.PoolByID(id)
	if !ok {
		httputil.NotFound(c, "pool not found")
		return
	}
	httputil.Success(c, h.poolInfo(pool))
}

type ShareBalanceResponse struct {
	Pool   string `json:"pool"`
	Holder string `json:"holder"`
	Shares string `json:"shares"`
}

// @Summary Get share balance
// @Description Look up a holder's liquidity shares in one pool.
// @Tags pools
// @Produce json
// @Param id path string true "Pool identity"
// @Param holder path string true "Holder address"
// @Success 200 {object} httputil.Response{data=ShareBalanceResponse}
// @Failure 404 {object} httputil.Response
// @Router /api/v1/pools/{id}/shares/{holder} [get]
func (h *PoolHandler) getShares(c *gin.Context) {
	id, err := parseAddress("pool", c.Param("id"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	holder, err := parseAddress("holder", c.Param("holder"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	shares, err := h.ledgerSvc.ShareBalance(id, holder)
	if err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, ShareBalanceResponse{
		Pool:   id.Hex(),
		Holder: holder.Hex(),
		Shares: shares.Dec(),
	})
}

type DerivePoolResponse struct {
	ID     string `json:"id"`
	Exists bool   `json:"exists"`
}

// @Summary Derive pool identity
// @Description Compute the content-addressed identity for a pair without creating the pool.
// @Tags pools
// @Produce json
// @Param tokenA query string true "First token"
// @Param tokenB query string true "Second token"
// @Param poolType query int true "Pool type: 1 or 2"
// @Param fee query int true "Fee rate out of 10000"
// @Success 200 {object} httputil.Response{data=DerivePoolResponse}
// @Router /api/v1/pools/derive [get]
func (h *PoolHandler) derivePoolID(c *gin.Context) {
	tokenA, err := parseAddress("tokenA", c.Query("tokenA"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	tokenB, err := parseAddress("tokenB", c.Query("tokenB"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	poolTypeRaw, err := strconv.ParseUint(c.Query("poolType"), 10, 8)
	if err != nil || !domain.PoolType(poolTypeRaw).Valid() {
		httputil.BadRequest(c, "invalid poolType")
		return
	}
	fee, err := strconv.ParseUint(c.Query("fee"), 10, 16)
	if err != nil {
		httputil.BadRequest(c, "invalid fee")
		return
	}

	id := registry.DerivePoolID(tokenA, tokenB, domain.PoolType(poolTypeRaw), uint16(fee))
	_, exists := h.ledgerSvc.PoolByID(id)
	httputil.Success(c, DerivePoolResponse{ID: id.Hex(), Exists: exists})
}
