package http

import (
	"github.com/gin-gonic/gin"

	"github.com/k1lox/coinfair/internal/http/httputil"
	"github.com/k1lox/coinfair/internal/ledger"
	"github.com/k1lox/coinfair/internal/services/token"
)

type TokenHandler struct {
	ledgerSvc *ledger.Service
}

func NewTokenHandler(ledgerSvc *ledger.Service) *TokenHandler {
	return &TokenHandler{ledgerSvc: ledgerSvc}
}

func (h *TokenHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/list", h.listTokens)
	pub.GET("/:address/balance/:holder", h.getBalance)
	pub.GET("/native/:holder", h.getNativeBalance)
	pub.POST("/approve", h.approve)
	admin.POST("", h.register)
	admin.POST("/mint", h.mint)
	admin.POST("/mint-native", h.mintNative)
}

func (h *TokenHandler) Root() string {
	return "/tokens"
}

type TokenInfo struct {
	Address        string `json:"address"`
	Name           string `json:"name" example:"Wrapped Native"`
	Symbol         string `json:"symbol" example:"WNAT"`
	Decimals       uint8  `json:"decimals" example:"18"`
	TransferFeeBps uint16 `json:"transferFeeBps" example:"0"`
	WrappedNative  bool   `json:"wrappedNative" example:"true"`
}

func tokenInfo(t *token.Token) TokenInfo {
	return TokenInfo{
		Address:        t.Address.Hex(),
		Name:           t.Name,
		Symbol:         t.Symbol,
		Decimals:       t.Decimals,
		TransferFeeBps: t.TransferFeeBps,
		WrappedNative:  t.WrappedNative,
	}
}

// @Summary List tokens
// @Description List every registered token.
// @Tags tokens
// @Produce json
// @Success 200 {object} httputil.Response{data=[]TokenInfo}
// @Router /api/v1/tokens/list [get]
func (h *TokenHandler) listTokens(c *gin.Context) {
	tokens := h.ledgerSvc.Tokens()
	infos := make([]TokenInfo, len(tokens))
	for i, t := range tokens {
		infos[i] = tokenInfo(t)
	}
	httputil.Success(c, infos)
}

// @Summary Get token balance
// @Description Look up a holder's balance of one token.
// @Tags tokens
// @Produce json
// @Param address path string true "Token address"
// @Param holder path string true "Holder address"
// @Success 200 {object} httputil.Response
// @Router /api/v1/tokens/{address}/balance/{holder} [get]
func (h *TokenHandler) getBalance(c *gin.Context) {
	addr, err := parseAddress("token", c.Param("address"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	holder, err := parseAddress("holder", c.Param("holder"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if _, ok := h.ledgerSvc.Token(addr); !ok {
		httputil.NotFound(c, "token not registered")
		return
	}
	httputil.Success(c, gin.H{"balance": h.ledgerSvc.BalanceOf(addr, holder).Dec()})
}

// @Summary Get native balance
// @Description Look up a holder's native-coin balance.
// @Tags tokens
// @Produce json
// @Param holder path string true "Holder address"
// @Success 200 {object} httputil.Response
// @Router /api/v1/tokens/native/{holder} [get]
func (h *TokenHandler) getNativeBalance(c *gin.Context) {
	holder, err := parseAddress("holder", c.Param("holder"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	httputil.Success(c, gin.H{"balance": h.ledgerSvc.NativeBalanceOf(holder).Dec()})
}

type ApproveRequest struct {
	Token   string `json:"token" binding:"required"`
	Owner   string `json:"owner" binding:"required"`
	Spender string `json:"spender" binding:"required"`
	Amount  string `json:"amount" binding:"required" example:"1000000000"`
}

// @Summary Approve spender
// @Description Set a spender allowance. Swaps and deposits spend through the active router address, so callers approve that.
// @Tags tokens
// @Accept json
// @Produce json
// @Param request body ApproveRequest true "Allowance parameters"
// @Success 200 {object} httputil.Response
// @Router /api/v1/tokens/approve [post]
func (h *TokenHandler) approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	tokenAddr, err := parseAddress("token", req.Token)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if err := h.ledgerSvc.Approve(tokenAddr, owner, spender, amount); err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, nil)
}

type RegisterTokenRequest struct {
	Caller string `json:"caller" binding:"required"`

	// Address may be empty; the bank derives a content address from
	// (name, symbol, decimals)
	Address        string `json:"address"`
	Name           string `json:"name" binding:"required" example:"Example Token"`
	Symbol         string `json:"symbol" binding:"required" example:"EXT"`
	Decimals       uint8  `json:"decimals" example:"18"`
	TransferFeeBps uint16 `json:"transferFeeBps" example:"0"`
}

// @Summary Register token
// @Description Register a token definition. Authority only.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body RegisterTokenRequest true "Token definition"
// @Success 200 {object} httputil.Response{data=TokenInfo}
// @Failure 401 {object} httputil.Response
// @Failure 409 {object} httputil.Response
// @Router /api/v1/admin/tokens [post]
func (h *TokenHandler) register(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	def := token.Token{
		Name:           req.Name,
		Symbol:         req.Symbol,
		Decimals:       req.Decimals,
		TransferFeeBps: req.TransferFeeBps,
	}
	if req.Address != "" {
		if def.Address, err = parseAddress("token", req.Address); err != nil {
			httputil.BadRequest(c, err.Error())
			return
		}
	}
	registered, err := h.ledgerSvc.RegisterToken(caller, def)
	if err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, tokenInfo(registered))
}

type MintTokenRequest struct {
	Caller string `json:"caller" binding:"required"`
	Token  string `json:"token" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required" example:"1000000000"`
}

// @Summary Mint token units
// @Description Credit freshly issued token units. Authority only.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body MintTokenRequest true "Mint parameters"
// @Success 200 {object} httputil.Response
// @Failure 401 {object} httputil.Response
// @Router /api/v1/admin/tokens/mint [post]
func (h *TokenHandler) mint(c *gin.Context) {
	var req MintTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	tokenAddr, err := parseAddress("token", req.Token)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if err := h.ledgerSvc.MintToken(caller, tokenAddr, to, amount); err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, nil)
}

type MintNativeRequest struct {
	Caller string `json:"caller" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required" example:"1000000000"`
}

// @Summary Mint native coin
// @Description Credit native coin to an account. Authority only.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body MintNativeRequest true "Mint parameters"
// @Success 200 {object} httputil.Response
// @Failure 401 {object} httputil.Response
// @Router /api/v1/admin/tokens/mint-native [post]
func (h *TokenHandler) mintNative(c *gin.Context) {
	var req MintNativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if err := h.ledgerSvc.MintNative(caller, to, amount); err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, nil)
}
