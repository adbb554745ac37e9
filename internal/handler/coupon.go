package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/foodcart/internal/domain/coupon"
)

func encodeCoupon(e *jx.Encoder, c coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "id", c.ID)
		strField(e, "code", c.Code)
		intField(e, "discount_percent", int64(c.DiscountPercent))
		intField(e, "branch_id", c.BranchID)
		e.Field("global", func(e *jx.Encoder) { e.Bool(c.Global()) })
		timeField(e, "valid_from", c.ValidFrom)
		timeField(e, "valid_until", c.ValidUntil)
		e.Field("active", func(e *jx.Encoder) { e.Bool(c.Active) })
	})
}

// verifyCoupon checks a code against a branch without touching the cart.
// Anonymous callers are verified without the per-customer redemption check.
func (h *Handler) verifyCoupon(w http.ResponseWriter, r *http.Request) {
	var (
		code     string
		branchID int64
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "code":
			code, err = d.Str()
		case "branch_id":
			branchID, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var userID int64
	if sess := sessionFrom(r); sess != nil && !sess.IsSeller() {
		userID = sess.UserID
	}
	c, err := h.Verifier.Verify(r.Context(), code, branchID, userID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCoupon(e, *c) })
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.Coupons.List(r.Context(), sessionFrom(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeArray(e, list, encodeCoupon) })
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var in coupon.CreateInput
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "code":
			in.Code, err = d.Str()
		case "discount_percent":
			in.DiscountPercent, err = d.Int()
		case "valid_from":
			in.ValidFrom, err = decodeTime(d)
		case "valid_until":
			in.ValidUntil, err = decodeTime(d)
		case "global":
			in.Global, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	c, err := h.Coupons.Create(r.Context(), sessionFrom(r), in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, *c) })
}
