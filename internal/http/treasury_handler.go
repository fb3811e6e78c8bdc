package http

import (
	"github.com/gin-gonic/gin"

	"github.com/k1lox/coinfair/internal/http/httputil"
	"github.com/k1lox/coinfair/internal/ledger"
)

type TreasuryHandler struct {
	ledgerSvc *ledger.Service
}

func NewTreasuryHandler(ledgerSvc *ledger.Service) *TreasuryHandler {
	return &TreasuryHandler{ledgerSvc: ledgerSvc}
}

func (h *TreasuryHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/:beneficiary/:asset", h.getBalance)
	pub.POST("/withdraw", h.withdraw)
	admin.POST("/fee-on", h.setFeeOn)
	admin.POST("/roll-over", h.setRollOver)
}

func (h *TreasuryHandler) Root() string {
	return "/treasury"
}

type RebateBalanceResponse struct {
	Beneficiary string `json:"beneficiary"`
	Asset       string `json:"asset"`
	Balance     string `json:"balance" example:"700000"`
}

// @Summary Get rebate balance
// @Description Look up a referrer's accrued rebate balance for one asset.
// @Tags treasury
// @Produce json
// @Param beneficiary path string true "Beneficiary address"
// @Param asset path string true "Asset address"
// @Success 200 {object} httputil.Response{data=RebateBalanceResponse}
// @Router /api/v1/treasury/{beneficiary}/{asset} [get]
func (h *TreasuryHandler) getBalance(c *gin.Context) {
	beneficiary, err := parseAddress("beneficiary", c.Param("beneficiary"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	asset, err := parseAddress("asset", c.Param("asset"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	balance := h.ledgerSvc.RebateBalance(beneficiary, asset)
	httputil.Success(c, RebateBalanceResponse{
		Beneficiary: beneficiary.Hex(),
		Asset:       asset.Hex(),
		Balance:     balance.Dec(),
	})
}

type WithdrawRequest struct {
	Beneficiary string `json:"beneficiary" binding:"required"`
	Asset       string `json:"asset" binding:"required"`
}

// @Summary Withdraw rebates
// @Description Pay out the beneficiary's full accrued rebate balance for one asset.
// @Tags treasury
// @Accept json
// @Produce json
// @Param request body WithdrawRequest true "Withdrawal parameters"
// @Success 200 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/treasury/withdraw [post]
func (h *TreasuryHandler) withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	beneficiary, err := parseAddress("beneficiary", req.Beneficiary)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	amount, err := h.ledgerSvc.WithdrawRebate(beneficiary, asset)
	if err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, gin.H{"withdrawn": amount.Dec()})
}

type SetFeeOnRequest struct {
	Caller string `json:"caller" binding:"required"`
	Pool   string `json:"pool" binding:"required"`
	FeeOn  *bool  `json:"feeOn" binding:"required"`
}

// @Summary Set pool fee gate
// @Description Enable or disable fee extraction for one pool. Authority only.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body SetFeeOnRequest true "Policy parameters"
// @Success 200 {object} httputil.Response
// @Failure 401 {object} httputil.Response
// @Router /api/v1/admin/treasury/fee-on [post]
func (h *TreasuryHandler) setFeeOn(c *gin.Context) {
	var req SetFeeOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	pool, err := parseAddress("pool", req.Pool)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if err := h.ledgerSvc.SetFeeOn(caller, pool, *req.FeeOn); err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, nil)
}

type SetRollOverRequest struct {
	Caller   string `json:"caller" binding:"required"`
	Pool     string `json:"pool" binding:"required"`
	RollOver *bool  `json:"rollOver" binding:"required"`
}

// @Summary Set pool roll-over mode
// @Description Leave extracted fees in the pool's reserves instead of crediting referrers. Authority only.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body SetRollOverRequest true "Policy parameters"
// @Success 200 {object} httputil.Response
// @Failure 401 {object} httputil.Response
// @Router /api/v1/admin/treasury/roll-over [post]
func (h *TreasuryHandler) setRollOver(c *gin.Context) {
	var req SetRollOverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	pool, err := parseAddress("pool", req.Pool)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if err := h.ledgerSvc.SetRollOver(caller, pool, *req.RollOver); err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, nil)
}
