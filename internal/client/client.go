// Package client is a typed HTTP client for the food ordering API.
//
// Responses are decoded into explicit records at the boundary: a missing
// required field or an unknown order status fails the call with
// *MalformedResponseError instead of leaking zero values into callers.
package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrMalformedResponse matches every *MalformedResponseError.
var ErrMalformedResponse = errors.New("malformed response")

// MalformedResponseError reports a response that does not match the
// expected record.
type MalformedResponseError struct {
	Op    string
	Field string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	msg := e.Op + ": malformed response"
	if e.Field != "" {
		msg += ": field " + strconv.Quote(e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return ErrMalformedResponse }

// APIError is a well-formed error response.
type APIError struct {
	Status  int
	Code    int
	Message string
	Reason  string
}

func (e *APIError) Error() string {
	msg := strconv.Itoa(e.Status) + " " + e.Message
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Client calls the API on behalf of one session.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// New creates a Client. A nil hc uses http.DefaultClient.
func New(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  hc,
	}
}

// do sends the request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, path string, body func(e *jx.Encoder)) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		body(e)
		reader = bytes.NewReader(e.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read body", op)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(op, resp.StatusCode, data)
	}
	return data, nil
}

func decodeAPIError(op string, status int, data []byte) error {
	apiErr := &APIError{Status: status, Code: status, Message: http.StatusText(status)}
	if len(data) == 0 {
		return apiErr
	}
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "code":
			apiErr.Code, err = d.Int()
		case "message":
			apiErr.Message, err = d.Str()
		case "reason":
			apiErr.Reason, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return &MalformedResponseError{Op: op, Err: err}
	}
	return apiErr
}
