package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/checkout"
	"github.com/xenking/foodcart/internal/domain/money"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/payment"
	"github.com/xenking/foodcart/internal/domain/review"
)

func encodeOrderItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "food_id", it.FoodID)
		strField(e, "name", it.Name)
		decField(e, "price", it.Price)
		intField(e, "quantity", int64(it.Quantity))
		strField(e, "image_url", it.ImageURL)
	})
}

// encodeOrder writes o together with the statuses the caller may move it to,
// so clients gate their buttons on the same table the server enforces.
func encodeOrder(e *jx.Encoder, o order.Order, actor order.Actor) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "id", o.ID)
		intField(e, "user_id", o.UserID)
		intField(e, "branch_id", o.BranchID)
		strField(e, "status", string(o.Status))
		e.Field("customer", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				strField(e, "name", o.Customer.Name)
				strField(e, "phone", o.Customer.Phone)
				strField(e, "address", o.Customer.Address)
				strField(e, "note", o.Customer.Note)
			})
		})
		e.Field("items", func(e *jx.Encoder) { encodeArray(e, o.Items, encodeOrderItem) })
		strField(e, "coupon_code", o.CouponCode)
		decField(e, "subtotal", o.Subtotal)
		decField(e, "discount", o.Discount)
		decField(e, "total_price", o.Total)
		strField(e, "total_formatted", money.Format(o.Total))
		timeField(e, "created_at", o.CreatedAt)
		timeField(e, "updated_at", o.UpdatedAt)
		e.Field("allowed_actions", func(e *jx.Encoder) {
			encodeArray(e, order.AllowedNext(o.Status, actor), func(e *jx.Encoder, s order.Status) {
				e.Str(string(s))
			})
		})
	})
}

func (h *Handler) respondOrder(w http.ResponseWriter, r *http.Request, status int, o *order.Order, err error) {
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	actor := order.ActorFor(sessionFrom(r))
	writeJSON(w, status, func(e *jx.Encoder) { encodeOrder(e, *o, actor) })
}

func (h *Handler) respondOrders(w http.ResponseWriter, r *http.Request, list []order.Order, err error) {
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	actor := order.ActorFor(sessionFrom(r))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeArray(e, list, func(e *jx.Encoder, o order.Order) { encodeOrder(e, o, actor) })
	})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var c checkout.Contact
	err := decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			c.Name, err = d.Str()
		case "phone":
			c.Phone, err = d.Str()
		case "address":
			c.Address, err = d.Str()
		case "note":
			c.Note, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.Checkout.Checkout(r.Context(), sessionFrom(r), c)
	h.respondOrder(w, r, http.StatusCreated, o, err)
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.ListMine(r.Context(), sessionFrom(r))
	h.respondOrders(w, r, list, err)
}

func (h *Handler) listBranchOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.ListBranch(r.Context(), sessionFrom(r))
	h.respondOrders(w, r, list, err)
}

func (h *Handler) branchEvents(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := sess.RequireSeller(0); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if err := h.Events.ServeBranch(w, r, sess.BranchID); err != nil {
		zctx.From(r.Context()).Debug("Branch event stream ended", zap.Error(err))
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.Orders.Get(r.Context(), sessionFrom(r), id)
	h.respondOrder(w, r, http.StatusOK, o, err)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	var raw string
	err = decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "status" {
			raw, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	to, err := order.ParseStatus(raw)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.Orders.Transition(r.Context(), sessionFrom(r), id, to)
	h.respondOrder(w, r, http.StatusOK, o, err)
}

func encodePayment(e *jx.Encoder, p *payment.Payment) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "id", p.ID)
		intField(e, "order_id", p.OrderID)
		decField(e, "amount", p.Amount)
		strField(e, "transaction_id", p.TransactionID)
		strField(e, "status", p.Status)
		timeField(e, "created_at", p.CreatedAt)
	})
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	var (
		amount decimal.Decimal
		seen   bool
	)
	err = decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "amount" {
			seen = true
			amount, err = decodeDecimal(d)
			return err
		}
		return d.Skip()
	})
	if err == nil && !seen {
		err = badRequest("amount required")
	}
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	p, err := h.Payments.Pay(r.Context(), sessionFrom(r), id, amount)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePayment(e, p) })
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Payments.History(r.Context(), sessionFrom(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeArray(e, list, func(e *jx.Encoder, p payment.Payment) { encodePayment(e, &p) })
	})
}

func decodeItemScore(d *jx.Decoder) (review.ItemScore, error) {
	var s review.ItemScore
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "food_id":
			s.FoodID, err = d.Int64()
		case "score":
			s.Score, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return s, err
}

func (h *Handler) reviewOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	in := review.Input{OrderID: id}
	err = decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "rating":
			in.Rating, err = d.Int()
		case "comment":
			in.Comment, err = d.Str()
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := decodeItemScore(d)
				if err != nil {
					return err
				}
				in.Items = append(in.Items, s)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	rv, err := h.Reviews.Create(r.Context(), sessionFrom(r), in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			intField(e, "id", rv.ID)
			intField(e, "order_id", rv.OrderID)
			intField(e, "rating", int64(rv.Rating))
			strField(e, "comment", rv.Comment)
			timeField(e, "created_at", rv.CreatedAt)
		})
	})
}
