package http

import (
	"github.com/gin-gonic/gin"

	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/http/httputil"
	"github.com/k1lox/coinfair/internal/ledger"
)

type SwapHandler struct {
	ledgerSvc *ledger.Service
}

func NewSwapHandler(ledgerSvc *ledger.Service) *SwapHandler {
	return &SwapHandler{ledgerSvc: ledgerSvc}
}

func (h *SwapHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.POST("", h.executeSwap)
	pub.POST("/quote", h.quote)
}

func (h *SwapHandler) Root() string {
	return "/swap"
}

// SwapRequest is one swap execution. Amount and Limit are decimal strings in
// the token's minor units; the zero address in Path stands for the native
// coin and is wrapped/unwrapped at the edges.
type SwapRequest struct {
	// Router to execute through: "hot" or "warm"
	Router string `json:"router" binding:"required" enums:"hot,warm" example:"hot"`

	// Trader account funding the swap
	Trader string `json:"trader" binding:"required" example:"0x1a9C8182C09F50C8318d769245beA52c32BE35BC"`

	// Recipient of the output; defaults to the trader
	Recipient string `json:"recipient" example:"0x1a9C8182C09F50C8318d769245beA52c32BE35BC"`

	// Swap mode: "ExactIn" (fixed input) or "ExactOut" (fixed output)
	SwapMode string `json:"swapMode" binding:"required" enums:"ExactIn,ExactOut" example:"ExactIn"`

	// Fixed amount: input for ExactIn, output for ExactOut
	Amount string `json:"amount" binding:"required" example:"1000000000"`

	// Bound on the free leg: minimum output for ExactIn, maximum input for
	// ExactOut
	Limit string `json:"limit" binding:"required" example:"990000000"`

	// Token path, one address per waypoint
	Path []string `json:"path" binding:"required"`

	// Pool type per hop: 1 or 2
	PoolTypes []uint8 `json:"poolTypes" binding:"required"`

	// Fee rate per hop, as a fraction of 10000
	Fees []uint16 `json:"fees" binding:"required"`

	// Unix seconds after which the swap is rejected; 0 disables the check
	Deadline int64 `json:"deadline" example:"1767225600"`

	// Price hops on realized post-transfer-fee amounts so fee-on-transfer
	// tokens can trade (ExactIn only)
	FeeOnTransferTolerant bool `json:"feeOnTransferTolerant" example:"false"`
}

type SwapResponse struct {
	Route     []string `json:"route"`
	Pools     []string `json:"pools"`
	HopCount  int      `json:"hopCount" example:"2"`
	AmountIn  string   `json:"amountIn" example:"1000000000"`
	AmountOut string   `json:"amountOut" example:"996503988"`
	TotalFee  string   `json:"totalFee" example:"1000000"`
}

// @Summary Execute swap
// @Description Execute a multi-hop swap through the hot or warm router. The whole call is atomic: it either settles every hop or leaves the ledger untouched.
// @Tags swap
// @Accept json
// @Produce json
// @Param request body SwapRequest true "Swap parameters"
// @Success 200 {object} httputil.Response{data=SwapResponse}
// @Failure 400 {object} httputil.Response
// @Failure 422 {object} httputil.Response
// @Router /api/v1/swap [post]
func (h *SwapHandler) executeSwap(c *gin.Context) {
	var req SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	trader, err := parseAddress("trader", req.Trader)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	recipient := trader
	if req.Recipient != "" {
		if recipient, err = parseAddress("recipient", req.Recipient); err != nil {
			httputil.BadRequest(c, err.Error())
			return
		}
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	limit, err := parseAmount("limit", req.Limit)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	path, err := parsePath(req.Path)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	poolTypes, err := parsePoolTypes(req.PoolTypes)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	var result *domain.SwapResult
	switch domain.SwapMode(req.SwapMode) {
	case domain.SwapModeExactIn:
		result, err = h.ledgerSvc.SwapExactIn(req.Router, trader, recipient, amount, limit, path, poolTypes, req.Fees, req.Deadline, req.FeeOnTransferTolerant)
	case domain.SwapModeExactOut:
		result, err = h.ledgerSvc.SwapExactOut(req.Router, trader, recipient, amount, limit, path, poolTypes, req.Fees, req.Deadline)
	default:
		httputil.BadRequest(c, "swapMode must be ExactIn or ExactOut")
		return
	}
	if err != nil {
		handleDomainError(c, err)
		return
	}

	route := make([]string, len(result.Route))
	for i, a := range result.Route {
		route[i] = a.Hex()
	}
	pools := make([]string, len(result.Pools))
	for i, a := range result.Pools {
		pools[i] = a.Hex()
	}
	httputil.Success(c, SwapResponse{
		Route:     route,
		Pools:     pools,
		HopCount:  len(pools),
		AmountIn:  result.AmountIn.Dec(),
		AmountOut: result.AmountOut.Dec(),
		TotalFee:  result.TotalFee.Dec(),
	})
}

type QuoteRequest struct {
	Router    string   `json:"router" binding:"required" enums:"hot,warm" example:"hot"`
	AmountIn  string   `json:"amountIn" binding:"required" example:"1000000000"`
	Path      []string `json:"path" binding:"required"`
	PoolTypes []uint8  `json:"poolTypes" binding:"required"`
	Fees      []uint16 `json:"fees" binding:"required"`
}

type HopQuoteInfo struct {
	Pool      string `json:"pool"`
	TokenIn   string `json:"tokenIn"`
	TokenOut  string `json:"tokenOut"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	FeeAmount string `json:"feeAmount"`
}

type QuoteResponse struct {
	Hops      []HopQuoteInfo `json:"hops"`
	AmountOut string         `json:"amountOut"`
}

// @Summary Quote swap
// @Description Price an exact-input path against current reserves without executing it.
// @Tags swap
// @Accept json
// @Produce json
// @Param request body QuoteRequest true "Quote parameters"
// @Success 200 {object} httputil.Response{data=QuoteResponse}
// @Failure 400 {object} httputil.Response
// @Router /api/v1/swap/quote [post]
func (h *SwapHandler) quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	amountIn, err := parseAmount("amountIn", req.AmountIn)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	path, err := parsePath(req.Path)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	poolTypes, err := parsePoolTypes(req.PoolTypes)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	hops, err := h.ledgerSvc.QuoteExactIn(req.Router, amountIn, path, poolTypes, req.Fees)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	infos := make([]HopQuoteInfo, len(hops))
	for i, hop := range hops {
		infos[i] = HopQuoteInfo{
			Pool:      hop.Pool.ID.Hex(),
			TokenIn:   hop.TokenIn.Hex(),
			TokenOut:  hop.TokenOut.Hex(),
			AmountIn:  hop.AmountIn.Dec(),
			AmountOut: hop.AmountOut.Dec(),
			FeeAmount: hop.FeeAmount.Dec(),
		}
	}
	httputil.Success(c, QuoteResponse{
		Hops:      infos,
		AmountOut: hops[len(hops)-1].AmountOut.Dec(),
	})
}
