package order

import (
	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusShipping       Status = "SHIPPING"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPendingPayment,
	StatusPaid,
	StatusShipping,
	StatusCompleted,
	StatusCancelled,
}

// ErrUnknownStatus is returned by ParseStatus.
var ErrUnknownStatus = errors.New("unknown order status")

// ParseStatus converts s to a Status, rejecting anything outside the enum.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownStatus, "%q", s)
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Actor is whoever triggers a transition.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorSeller   Actor = "seller"
	// ActorPayment is the external payment confirmation.
	ActorPayment Actor = "payment"
)

type edge struct {
	from, to Status
}

var transitions = map[edge][]Actor{
	{StatusPendingPayment, StatusPaid}:      {ActorPayment},
	{StatusPaid, StatusShipping}:            {ActorSeller},
	{StatusShipping, StatusCompleted}:       {ActorSeller},
	{StatusPendingPayment, StatusCancelled}: {ActorCustomer, ActorSeller},
	{StatusPaid, StatusCancelled}:           {ActorCustomer, ActorSeller},
}

func allowed(e edge, a Actor) bool {
	for _, x := range transitions[e] {
		if x == a {
			return true
		}
	}
	return false
}

// ErrIllegalTransition matches every *IllegalTransitionError.
var ErrIllegalTransition = errors.New("illegal order transition")

// IllegalTransitionError is returned for a transition outside the table.
type IllegalTransitionError struct {
	From  Status
	To    Status
	Actor Actor
}

func (e *IllegalTransitionError) Error() string {
	return "illegal transition " + string(e.From) + " -> " + string(e.To) + " by " + string(e.Actor)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// CanTransition returns nil when actor may move an order from one status to
// another. Asking for the status the order is already in succeeds when the
// actor could have made that move, so cancel and complete are idempotent.
func CanTransition(from, to Status, actor Actor) error {
	if from == to {
		for e := range transitions {
			if e.to == to && allowed(e, actor) {
				return nil
			}
		}
	} else if allowed(edge{from, to}, actor) {
		return nil
	}
	return &IllegalTransitionError{From: from, To: to, Actor: actor}
}

// AllowedNext lists the statuses actor may move an order in status s to.
func AllowedNext(s Status, actor Actor) []Status {
	var out []Status
	for _, to := range Statuses {
		if to != s && allowed(edge{s, to}, actor) {
			out = append(out, to)
		}
	}
	return out
}

// ErrReviewNotAllowed matches every *ReviewNotAllowedError.
var ErrReviewNotAllowed = errors.New("review not allowed")

// ReviewNotAllowedError is returned when reviewing an order that is not
// completed.
type ReviewNotAllowedError struct {
	OrderID int64
	Status  Status
}

func (e *ReviewNotAllowedError) Error() string {
	return "order is " + string(e.Status) + ", only completed orders can be reviewed"
}

func (e *ReviewNotAllowedError) Unwrap() error { return ErrReviewNotAllowed }

// CanReview returns nil when o may receive a customer review.
func CanReview(o *Order) error {
	if o.Status != StatusCompleted {
		return &ReviewNotAllowedError{OrderID: o.ID, Status: o.Status}
	}
	return nil
}
