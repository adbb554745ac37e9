package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/checkout"
	"github.com/xenking/foodcart/internal/domain/coupon"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/payment"
	"github.com/xenking/foodcart/internal/domain/review"
	"github.com/xenking/foodcart/internal/domain/session"
)

// apiError is the body of every non-2xx response.
type apiError struct {
	status  int
	message string
	reason  string
	extra   func(e *jx.Encoder)
}

var statusByError = []struct {
	target error
	status int
	reason string
}{
	{session.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{session.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{session.ErrForbidden, http.StatusForbidden, "forbidden"},

	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{cart.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{cart.ErrBranchMismatch, http.StatusBadRequest, "branch_mismatch"},
	{checkout.ErrIncompleteContact, http.StatusBadRequest, "incomplete_contact"},
	{catalog.ErrInvalidFood, http.StatusBadRequest, "invalid_food"},
	{coupon.ErrInvalidCoupon, http.StatusBadRequest, "invalid_coupon"},
	{review.ErrInvalidReview, http.StatusBadRequest, "invalid_review"},
	{order.ErrEmptyItems, http.StatusBadRequest, "empty_items"},
	{order.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{order.ErrMissingContact, http.StatusBadRequest, "incomplete_contact"},
	{order.ErrUnknownStatus, http.StatusBadRequest, "unknown_status"},
	{payment.ErrAmountMismatch, http.StatusBadRequest, "amount_mismatch"},

	{cart.ErrConflict, http.StatusConflict, "branch_conflict"},
	{order.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{order.ErrStatusChanged, http.StatusConflict, "status_changed"},
	{coupon.ErrDuplicateCode, http.StatusConflict, "duplicate_code"},
	{review.ErrAlreadyReviewed, http.StatusConflict, "already_reviewed"},

	{cart.ErrNotFound, http.StatusNotFound, "not_found"},
	{catalog.ErrFoodNotFound, http.StatusNotFound, "not_found"},
	{catalog.ErrBranchNotFound, http.StatusNotFound, "not_found"},
	{order.ErrNotFound, http.StatusNotFound, "not_found"},

	{order.ErrReviewNotAllowed, http.StatusUnprocessableEntity, "review_not_allowed"},
}

func classify(err error) apiError {
	var rejected *coupon.RejectedError
	if errors.As(err, &rejected) {
		return apiError{
			status:  http.StatusUnprocessableEntity,
			message: rejected.Error(),
			reason:  string(rejected.Reason),
		}
	}
	var missingFood *order.FoodNotFoundError
	if errors.As(err, &missingFood) {
		return apiError{
			status:  http.StatusUnprocessableEntity,
			message: missingFood.Error(),
			reason:  "food_not_found",
			extra: func(e *jx.Encoder) {
				intField(e, "food_id", missingFood.FoodID)
			},
		}
	}

	for _, m := range statusByError {
		if !errors.Is(err, m.target) {
			continue
		}
		ae := apiError{status: m.status, message: err.Error(), reason: m.reason}

		var conflict *cart.BranchConflictError
		var contact *checkout.IncompleteContactInfoError
		var illegal *order.IllegalTransitionError
		switch {
		case errors.As(err, &conflict):
			ae.extra = func(e *jx.Encoder) {
				intField(e, "cart_branch_id", conflict.CartBranch)
				intField(e, "candidate_branch_id", conflict.CandidateBranch)
			}
		case errors.As(err, &contact):
			ae.extra = func(e *jx.Encoder) {
				e.Field("missing", func(e *jx.Encoder) {
					encodeArray(e, contact.Missing, func(e *jx.Encoder, v string) { e.Str(v) })
				})
			}
		case errors.As(err, &illegal):
			ae.extra = func(e *jx.Encoder) {
				strField(e, "from", string(illegal.From))
				strField(e, "to", string(illegal.To))
			}
		}
		return ae
	}

	return apiError{status: http.StatusInternalServerError, message: "internal error"}
}

// writeError maps err to a status code and writes the error body. Unknown
// errors are logged and hidden behind a 500.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	ae := classify(err)
	if ae.status == http.StatusInternalServerError {
		zctx.From(ctx).Error("Request failed", zap.Error(err))
	}

	writeJSON(w, ae.status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			intField(e, "code", int64(ae.status))
			strField(e, "message", ae.message)
			if ae.reason != "" {
				strField(e, "reason", ae.reason)
			}
			if ae.extra != nil {
				ae.extra(e)
			}
		})
	})
}
