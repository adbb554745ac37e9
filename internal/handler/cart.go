package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/money"
)

func encodeCartLine(e *jx.Encoder, l cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "food_id", l.FoodID)
		intField(e, "branch_id", l.BranchID)
		intField(e, "quantity", int64(l.Quantity))
		decField(e, "unit_price", l.UnitPrice)
		strField(e, "name", l.Name)
		strField(e, "image_url", l.ImageRef)
		e.Field("unavailable", func(e *jx.Encoder) { e.Bool(l.Unavailable) })
	})
}

func encodeCart(e *jx.Encoder, v *cart.View) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "branch_id", v.BranchID)
		e.Field("items", func(e *jx.Encoder) { encodeArray(e, v.Lines, encodeCartLine) })
		e.Field("coupon", func(e *jx.Encoder) {
			if v.Coupon == nil {
				e.Null()
				return
			}
			e.Obj(func(e *jx.Encoder) {
				strField(e, "code", v.Coupon.Code)
				intField(e, "discount_percent", int64(v.Coupon.DiscountPercent))
			})
		})
		decField(e, "subtotal", v.Quote.Subtotal)
		decField(e, "discount", v.Quote.Discount)
		decField(e, "total", v.Quote.Total)
		strField(e, "total_formatted", money.Format(v.Quote.Total))
	})
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, v *cart.View, err error) {
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, v) })
}

func decodeEntry(w http.ResponseWriter, r *http.Request) (cart.Entry, error) {
	var in cart.Entry
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "food_id":
			in.FoodID, err = d.Int64()
		case "branch_id":
			in.BranchID, err = d.Int64()
		case "quantity":
			in.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && in.FoodID <= 0 {
		err = badRequest("food_id required")
	}
	return in, err
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.Carts.Get(r.Context(), sessionFrom(r))
	h.respondCart(w, r, v, err)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	in, err := decodeEntry(w, r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	v, err := h.Carts.AddItem(r.Context(), sessionFrom(r), in)
	h.respondCart(w, r, v, err)
}

// replaceCart discards the current cart in favour of one line, resolving a
// branch conflict.
func (h *Handler) replaceCart(w http.ResponseWriter, r *http.Request) {
	in, err := decodeEntry(w, r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	v, err := h.Carts.ReplaceWith(r.Context(), sessionFrom(r), in)
	h.respondCart(w, r, v, err)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	foodID, err := pathID(r, "foodID")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	qty := -1
	err = decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "quantity" {
			qty, err = d.Int()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	v, err := h.Carts.UpdateQuantity(r.Context(), sessionFrom(r), foodID, qty)
	h.respondCart(w, r, v, err)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	foodID, err := pathID(r, "foodID")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	v, err := h.Carts.RemoveItem(r.Context(), sessionFrom(r), foodID)
	h.respondCart(w, r, v, err)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.Carts.Clear(r.Context(), sessionFrom(r))
	h.respondCart(w, r, v, err)
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var code string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "code" {
			code, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	v, err := h.Carts.ApplyCoupon(r.Context(), sessionFrom(r), code)
	h.respondCart(w, r, v, err)
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	v, err := h.Carts.RemoveCoupon(r.Context(), sessionFrom(r))
	h.respondCart(w, r, v, err)
}
