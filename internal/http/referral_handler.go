package http

import (
	"github.com/gin-gonic/gin"

	"github.com/k1lox/coinfair/internal/http/httputil"
	"github.com/k1lox/coinfair/internal/ledger"
)

type ReferralHandler struct {
	ledgerSvc *ledger.Service
}

func NewReferralHandler(ledgerSvc *ledger.Service) *ReferralHandler {
	return &ReferralHandler{ledgerSvc: ledgerSvc}
}

func (h *ReferralHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.POST("/mint", h.mint)
	pub.POST("/claim", h.claim)
	pub.GET("/:address", h.getLineage)
}

func (h *ReferralHandler) Root() string {
	return "/referral"
}

type MintReferralRequest struct {
	// Owner paying the mint cost and becoming claimable as a referrer
	Owner string `json:"owner" binding:"required"`

	// Number of referral tokens to mint
	Count uint64 `json:"count" binding:"required" example:"1"`
}

// @Summary Mint referral tokens
// @Description Mint referral tokens, making the owner claimable as a referrer. The mint cost is charged in native coin.
// @Tags referral
// @Accept json
// @Produce json
// @Param request body MintReferralRequest true "Mint parameters"
// @Success 200 {object} httputil.Response
// @Failure 422 {object} httputil.Response
// @Router /api/v1/referral/mint [post]
func (h *ReferralHandler) mint(c *gin.Context) {
	var req MintReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if err := h.ledgerSvc.MintReferral(owner, req.Count); err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, gin.H{"minted": h.ledgerSvc.ReferralMinted(owner)})
}

type ClaimReferralRequest struct {
	// Trader claiming a referrer; one claim per trader, ever
	Trader string `json:"trader" binding:"required"`

	// Referrer being claimed; must have minted at least one referral token
	Referrer string `json:"referrer" binding:"required"`
}

// @Summary Claim referrer
// @Description Freeze the trader's two-level lineage: parent is the referrer, grandparent is the referrer's parent at this moment. The claim cost is charged in native coin.
// @Tags referral
// @Accept json
// @Produce json
// @Param request body ClaimReferralRequest true "Claim parameters"
// @Success 200 {object} httputil.Response
// @Failure 409 {object} httputil.Response
// @Failure 422 {object} httputil.Response
// @Router /api/v1/referral/claim [post]
func (h *ReferralHandler) claim(c *gin.Context) {
	var req ClaimReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	trader, err := parseAddress("trader", req.Trader)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	referrer, err := parseAddress("referrer", req.Referrer)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	if err := h.ledgerSvc.ClaimReferral(trader, referrer); err != nil {
		handleDomainError(c, err)
		return
	}
	httputil.Success(c, nil)
}

type LineageResponse struct {
	Address     string `json:"address"`
	Minted      uint64 `json:"minted" example:"1"`
	Parent      string `json:"parent,omitempty"`
	Grandparent string `json:"grandparent,omitempty"`
}

// @Summary Get lineage
// @Description Look up an address's frozen referral lineage and mint count.
// @Tags referral
// @Produce json
// @Param address path string true "Trader address"
// @Success 200 {object} httputil.Response{data=LineageResponse}
// @Router /api/v1/referral/{address} [get]
func (h *ReferralHandler) getLineage(c *gin.Context) {
	addr, err := parseAddress("address", c.Param("address"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	lineage := h.ledgerSvc.Lineage(addr)
	resp := LineageResponse{
		Address: addr.Hex(),
		Minted:  h.ledgerSvc.ReferralMinted(addr),
	}
	if lineage.HasParent {
		resp.Parent = lineage.Parent.Hex()
	}
	if lineage.HasGrandparent {
		resp.Grandparent = lineage.Grandparent.Hex()
	}
	httputil.Success(c, resp)
}
