package http

import (
	"github.com/gin-gonic/gin"

	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/http/httputil"
	"github.com/k1lox/coinfair/internal/ledger"
)

type LiquidityHandler struct {
	ledgerSvc *ledger.Service
}

func NewLiquidityHandler(ledgerSvc *ledger.Service) *LiquidityHandler {
	return &LiquidityHandler{ledgerSvc: ledgerSvc}
}

func (h *LiquidityHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.POST("/add", h.addLiquidity)
	pub.POST("/remove", h.removeLiquidity)
}

func (h *LiquidityHandler) Root() string {
	return "/liquidity"
}

type AddLiquidityRequest struct {
	Router    string `json:"router" binding:"required" enums:"hot,warm" example:"hot"`
	Caller    string `json:"caller" binding:"required"`
	Recipient string `json:"recipient"`
	TokenA    string `json:"tokenA" binding:"required"`
	TokenB    string `json:"tokenB" binding:"required"`

	// Desired deposit amounts; the router scales one side down to the pool's
	// current ratio
	AmountADesired string `json:"amountADesired" binding:"required" example:"1000000000"`
	AmountBDesired string `json:"amountBDesired" binding:"required" example:"4000000000"`

	// Lower bounds the scaled amounts must still satisfy
	AmountAMin string `json:"amountAMin" binding:"required" example:"990000000"`
	AmountBMin string `json:"amountBMin" binding:"required" example:"3960000000"`

	PoolType uint8  `json:"poolType" binding:"required" example:"1"`
	Fee      uint16 `json:"fee" example:"10"`
	Deadline int64  `json:"deadline" example:"1767225600"`
}

type LiquidityResponse struct {
	Pool    string `json:"pool"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
	Shares  string `json:"shares"`
}

// @Summary Add liquidity
// @Description Deposit both pair assets into a pool, creating it on first use, and receive liquidity shares.
// @Tags liquidity
// @Accept json
// @Produce json
// @Param request body AddLiquidityRequest true "Deposit parameters"
// @Success 200 {object} httputil.Response{data=LiquidityResponse}
// @Failure 400 {object} httputil.Response
// @Failure 422 {object} httputil.Response
// @Router /api/v1/liquidity/add [post]
func (h *LiquidityHandler) addLiquidity(c *gin.Context) {
	var req AddLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	recipient := caller
	if req.Recipient != "" {
		if recipient, err = parseAddress("recipient", req.Recipient); err != nil {
			httputil.BadRequest(c, err.Error())
			return
		}
	}
	tokenA, err := parseAddress("tokenA", req.TokenA)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	tokenB, err := parseAddress("tokenB", req.TokenB)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	params := domain.LiquidityParams{}
	if params.AmountToken, err = parseAmount("amountADesired", req.AmountADesired); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if params.AmountOther, err = parseAmount("amountBDesired", req.AmountBDesired); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if params.MinToken, err = parseAmount("amountAMin", req.AmountAMin); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if params.MinOther, err = parseAmount("amountBMin", req.AmountBMin); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	result, err := h.ledgerSvc.AddLiquidity(req.Router, caller, recipient, tokenA, tokenB, params, domain.PoolType(req.PoolType), req.Fee, req.Deadline)
	if err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, LiquidityResponse{
		Pool:    result.Pool.Hex(),
		Amount0: result.Amount0.Dec(),
		Amount1: result.Amount1.Dec(),
		Shares:  result.Shares.Dec(),
	})
}

type RemoveLiquidityRequest struct {
	Router    string `json:"router" binding:"required" enums:"hot,warm" example:"hot"`
	Caller    string `json:"caller" binding:"required"`
	Recipient string `json:"recipient"`
	TokenA    string `json:"tokenA" binding:"required"`
	TokenB    string `json:"tokenB" binding:"required"`

	// Shares to burn
	Shares string `json:"shares" binding:"required" example:"1000000"`

	// Lower bounds on the redeemed amounts
	AmountAMin string `json:"amountAMin" binding:"required" example:"0"`
	AmountBMin string `json:"amountBMin" binding:"required" example:"0"`

	PoolType uint8  `json:"poolType" binding:"required" example:"1"`
	Fee      uint16 `json:"fee" example:"10"`
	Deadline int64  `json:"deadline" example:"1767225600"`
}

// @Summary Remove liquidity
// @Description Burn liquidity shares and redeem the proportional slice of both reserves.
// @Tags liquidity
// @Accept json
// @Produce json
// @Param request body RemoveLiquidityRequest true "Redemption parameters"
// @Success 200 {object} httputil.Response{data=LiquidityResponse}
// @Failure 400 {object} httputil.Response
// @Failure 422 {object} httputil.Response
// @Router /api/v1/liquidity/remove [post]
func (h *LiquidityHandler) removeLiquidity(c *gin.Context) {
	var req RemoveLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	recipient := caller
	if req.Recipient != "" {
		if recipient, err = parseAddress("recipient", req.Recipient); err != nil {
			httputil.BadRequest(c, err.Error())
			return
		}
	}
	tokenA, err := parseAddress("tokenA", req.TokenA)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	tokenB, err := parseAddress("tokenB", req.TokenB)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	shares, err := parseAmount("shares", req.Shares)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	minA, err := parseAmount("amountAMin", req.AmountAMin)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	minB, err := parseAmount("amountBMin", req.AmountBMin)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	result, err := h.ledgerSvc.RemoveLiquidity(req.Router, caller, recipient, tokenA, tokenB, shares, minA, minB, domain.PoolType(req.PoolType), req.Fee, req.Deadline)
	if err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, LiquidityResponse{
		Pool:    result.Pool.Hex(),
		Amount0: result.Amount0.Dec(),
		Amount1: result.Amount1.Dec(),
		Shares:  result.Shares.Dec(),
	})
}
