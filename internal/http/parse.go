package http

import (
	"errors"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"github.com/k1lox/coinfair/internal/common"
	"github.com/k1lox/coinfair/internal/domain"
	"github.com/k1lox/coinfair/internal/http/httputil"
	"github.com/k1lox/coinfair/internal/ledger"
	"github.com/k1lox/coinfair/internal/services/amm"
	"github.com/k1lox/coinfair/internal/services/referral"
	"github.com/k1lox/coinfair/internal/services/registry"
	"github.com/k1lox/coinfair/internal/services/router"
	"github.com/k1lox/coinfair/internal/services/token"
	"github.com/k1lox/coinfair/internal/services/treasury"
)

func parseAddress(field, s string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, fmt.Errorf("invalid %s address: %s", field, s)
	}
	return ethcommon.HexToAddress(s), nil
}

func parseAmount(field, s string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s amount: %s", field, s)
	}
	return amount, nil
}

func parsePath(path []string) ([]ethcommon.Address, error) {
	out := make([]ethcommon.Address, len(path))
	for i, s := range path {
		addr, err := parseAddress("path", s)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func parsePoolTypes(raw []uint8) ([]domain.PoolType, error) {
	out := make([]domain.PoolType, len(raw))
	for i, v := range raw {
		pt := domain.PoolType(v)
		if !pt.Valid() {
			return nil, fmt.Errorf("invalid pool type: %d", v)
		}
		out[i] = pt
	}
	return out, nil
}

// handleDomainError maps ledger errors onto HTTP statuses. Anything
// unrecognized is a 500.
func handleDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		httputil.Unauthorized(c, err.Error())

	case errors.Is(err, amm.ErrPoolNotFound),
		errors.Is(err, token.ErrTokenNotFound),
		errors.Is(err, treasury.ErrNothingToWithdraw):
		httputil.NotFound(c, err.Error())

	case errors.Is(err, amm.ErrPoolLocked),
		errors.Is(err, amm.ErrAlreadyInitialized),
		errors.Is(err, token.ErrTokenExists),
		errors.Is(err, referral.ErrAlreadyClaimed):
		httputil.Conflict(c, err.Error())

	case errors.Is(err, common.ErrInvalidPath),
		errors.Is(err, registry.ErrIdenticalTokens),
		errors.Is(err, registry.ErrInvalidPoolType),
		errors.Is(err, registry.ErrInvalidFee),
		errors.Is(err, router.ErrPathLengthMismatch),
		errors.Is(err, router.ErrNoWrappedNative),
		errors.Is(err, referral.ErrSelfReferral),
		errors.Is(err, referral.ErrZeroCount),
		errors.Is(err, ledger.ErrUnknownRouter):
		httputil.BadRequest(c, err.Error())

	case errors.Is(err, common.ErrExpired),
		errors.Is(err, router.ErrSlippageExceeded),
		errors.Is(err, router.ErrInsufficientOutput),
		errors.Is(err, amm.ErrExcessiveInput),
		errors.Is(err, amm.ErrInsufficientInput),
		errors.Is(err, amm.ErrInsufficientOutput),
		errors.Is(err, amm.ErrInsufficientLiquidity),
		errors.Is(err, amm.ErrInsufficientShares),
		errors.Is(err, amm.ErrInvariantViolation),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrInsufficientNative),
		errors.Is(err, token.ErrZeroAmount),
		errors.Is(err, referral.ErrReferrerNotMinted):
		httputil.Unprocessable(c, err.Error())

	default:
		httputil.InternalError(c, err.Error())
	}
}
