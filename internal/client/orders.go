package client

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/foodcart/internal/domain/order"
)

func decodeOrders(op string, data []byte) ([]Order, error) {
	out := []Order{}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		o, err := decodeOrder(op, d)
		if err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, asMalformed(op, err)
	}
	return out, nil
}

func decodeOne[T any](op string, data []byte, fn func(op string, d *jx.Decoder) (T, error)) (*T, error) {
	v, err := fn(op, jx.DecodeBytes(data))
	if err != nil {
		return nil, asMalformed(op, err)
	}
	return &v, nil
}

func asMalformed(op string, err error) error {
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return malformed
	}
	return &MalformedResponseError{Op: op, Err: err}
}

// ListBranchOrders returns the orders of the seller's branch.
func (c *Client) ListBranchOrders(ctx context.Context) ([]Order, error) {
	const op = "list branch orders"
	data, err := c.do(ctx, op, http.MethodGet, "/api/branch/orders", nil)
	if err != nil {
		return nil, err
	}
	return decodeOrders(op, data)
}

// ListMyOrders returns the customer's orders.
func (c *Client) ListMyOrders(ctx context.Context) ([]Order, error) {
	const op = "list my orders"
	data, err := c.do(ctx, op, http.MethodGet, "/api/orders", nil)
	if err != nil {
		return nil, err
	}
	return decodeOrders(op, data)
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*Order, error) {
	const op = "get order"
	data, err := c.do(ctx, op, http.MethodGet, "/api/orders/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, err
	}
	return decodeOne(op, data, decodeOrder)
}

// UpdateStatus asks the server to move order id to status.
func (c *Client) UpdateStatus(ctx context.Context, id int64, status order.Status) (*Order, error) {
	const op = "update order status"
	path := "/api/orders/" + strconv.FormatInt(id, 10) + "/status"
	data, err := c.do(ctx, op, http.MethodPatch, path, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) { e.Str(string(status)) })
		})
	})
	if err != nil {
		return nil, err
	}
	return decodeOne(op, data, decodeOrder)
}

// GetCart returns the customer's priced cart.
func (c *Client) GetCart(ctx context.Context) (*Cart, error) {
	const op = "get cart"
	data, err := c.do(ctx, op, http.MethodGet, "/api/cart", nil)
	if err != nil {
		return nil, err
	}
	return decodeOne(op, data, decodeCart)
}
