package http

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/k1lox/coinfair/internal/http/httputil"
	"github.com/k1lox/coinfair/internal/ledger"
)

type RouterConfigHandler struct {
	ledgerSvc *ledger.Service
}

func NewRouterConfigHandler(ledgerSvc *ledger.Service) *RouterConfigHandler {
	return &RouterConfigHandler{ledgerSvc: ledgerSvc}
}

func (h *RouterConfigHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getRouters)
	admin.POST("", h.setRouters)
}

func (h *RouterConfigHandler) Root() string {
	return "/routers"
}

type RoutersResponse struct {
	Hot  string `json:"hot"`
	Warm string `json:"warm"`
}

// @Summary Get active routers
// @Description Return the published (hot, warm) router address pair. Callers approve these addresses as spenders.
// @Tags routers
// @Produce json
// @Success 200 {object} httputil.Response{data=RoutersResponse}
// @Router /api/v1/routers [get]
func (h *RouterConfigHandler) getRouters(c *gin.Context) {
	hot, warm := h.ledgerSvc.ActiveRouters()
	httputil.Success(c, RoutersResponse{Hot: hot.Hex(), Warm: warm.Hex()})
}

type SetRoutersRequest struct {
	Caller string `json:"caller" binding:"required"`

	// Zero or empty address leaves that field unchanged
	Hot  string `json:"hot"`
	Warm string `json:"warm"`
}

// @Summary Set active routers
// @Description Overwrite the active router pair, last write wins per field. Authority only.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body SetRoutersRequest true "Router pair"
// @Success 200 {object} httputil.Response
// @Failure 401 {object} httputil.Response
// @Router /api/v1/admin/routers [post]
func (h *RouterConfigHandler) setRouters(c *gin.Context) {
	var req SetRoutersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	var hot, warm ethcommon.Address
	if req.Hot != "" {
		if hot, err = parseAddress("hot", req.Hot); err != nil {
			httputil.BadRequest(c, err.Error())
			return
		}
	}
	if req.Warm != "" {
		if warm, err = parseAddress("warm", req.Warm); err != nil {
			httputil.BadRequest(c, err.Error())
			return
		}
	}
	if err := h.ledgerSvc.SetRouterAddresses(caller, hot, warm); err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, nil)
}
