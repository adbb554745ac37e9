package client

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/order"
)

// Order is an order as the API reports it, with the statuses the caller may
// move it to.
type Order struct {
	order.Order
	AllowedActions []order.Status
}

// CartItem is one cart line.
type CartItem struct {
	FoodID      int64
	BranchID    int64
	Quantity    int
	UnitPrice   decimal.Decimal
	Name        string
	ImageURL    string
	Unavailable bool
}

// CartCoupon is the coupon applied to a cart.
type CartCoupon struct {
	Code            string
	DiscountPercent int
}

// Cart is the priced cart of the session's customer.
type Cart struct {
	BranchID       int64
	Items          []CartItem
	Coupon         *CartCoupon
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	TotalFormatted string
}

// record decodes one JSON object and remembers which fields it saw.
type record struct {
	op   string
	seen map[string]bool
}

func newRecord(op string) *record {
	return &record{op: op, seen: make(map[string]bool)}
}

func (r *record) decode(d *jx.Decoder, fn func(d *jx.Decoder, key string) error) error {
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		k := string(key)
		if d.Next() == jx.Null {
			return d.Null()
		}
		r.seen[k] = true
		if err := fn(d, k); err != nil {
			var nested *MalformedResponseError
			if errors.As(err, &nested) {
				return nested
			}
			return &MalformedResponseError{Op: r.op, Field: k, Err: err}
		}
		return nil
	})
	if err != nil {
		var malformed *MalformedResponseError
		if errors.As(err, &malformed) {
			return malformed
		}
		return &MalformedResponseError{Op: r.op, Err: err}
	}
	return nil
}

func (r *record) require(fields ...string) error {
	for _, f := range fields {
		if !r.seen[f] {
			return &MalformedResponseError{Op: r.op, Field: f, Err: errors.New("missing")}
		}
	}
	return nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, s)
}

func decodeStatus(d *jx.Decoder) (order.Status, error) {
	s, err := d.Str()
	if err != nil {
		return "", err
	}
	return order.ParseStatus(s)
}

func decodeOrderItem(op string, d *jx.Decoder) (order.Item, error) {
	var it order.Item
	r := newRecord(op + ": item")
	err := r.decode(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "food_id":
			it.FoodID, err = d.Int64()
		case "name":
			it.Name, err = d.Str()
		case "price":
			it.Price, err = decodeDecimal(d)
		case "quantity":
			it.Quantity, err = d.Int()
		case "image_url":
			it.ImageURL, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return it, err
	}
	return it, r.require("food_id", "price", "quantity")
}

func decodeCustomer(d *jx.Decoder, c *order.Customer) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
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
}

func decodeOrder(op string, d *jx.Decoder) (Order, error) {
	var o Order
	r := newRecord(op)
	err := r.decode(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			o.ID, err = d.Int64()
		case "user_id":
			o.UserID, err = d.Int64()
		case "branch_id":
			o.BranchID, err = d.Int64()
		case "status":
			o.Status, err = decodeStatus(d)
		case "customer":
			err = decodeCustomer(d, &o.Customer)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeOrderItem(op, d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, it)
				return nil
			})
		case "coupon_code":
			o.CouponCode, err = d.Str()
		case "subtotal":
			o.Subtotal, err = decodeDecimal(d)
		case "discount":
			o.Discount, err = decodeDecimal(d)
		case "total_price":
			o.Total, err = decodeDecimal(d)
		case "created_at":
			o.CreatedAt, err = decodeTime(d)
		case "updated_at":
			o.UpdatedAt, err = decodeTime(d)
		case "allowed_actions":
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := decodeStatus(d)
				if err != nil {
					return err
				}
				o.AllowedActions = append(o.AllowedActions, s)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return o, err
	}
	return o, r.require("id", "branch_id", "status", "items", "total_price")
}

func decodeCartItem(op string, d *jx.Decoder) (CartItem, error) {
	var it CartItem
	r := newRecord(op + ": item")
	err := r.decode(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "food_id":
			it.FoodID, err = d.Int64()
		case "branch_id":
			it.BranchID, err = d.Int64()
		case "quantity":
			it.Quantity, err = d.Int()
		case "unit_price":
			it.UnitPrice, err = decodeDecimal(d)
		case "name":
			it.Name, err = d.Str()
		case "image_url":
			it.ImageURL, err = d.Str()
		case "unavailable":
			it.Unavailable, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return it, err
	}
	return it, r.require("food_id", "quantity", "unit_price")
}

func decodeCart(op string, d *jx.Decoder) (Cart, error) {
	var c Cart
	r := newRecord(op)
	err := r.decode(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "branch_id":
			c.BranchID, err = d.Int64()
		case "items":
			c.Items = []CartItem{}
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeCartItem(op, d)
				if err != nil {
					return err
				}
				c.Items = append(c.Items, it)
				return nil
			})
		case "coupon":
			c.Coupon = &CartCoupon{}
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
				switch string(key) {
				case "code":
					c.Coupon.Code, err = d.Str()
				case "discount_percent":
					c.Coupon.DiscountPercent, err = d.Int()
				default:
					err = d.Skip()
				}
				return err
			})
		case "subtotal":
			c.Subtotal, err = decodeDecimal(d)
		case "discount":
			c.Discount, err = decodeDecimal(d)
		case "total":
			c.Total, err = decodeDecimal(d)
		case "total_formatted":
			c.TotalFormatted, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return c, err
	}
	return c, r.require("items", "subtotal", "discount", "total")
}
