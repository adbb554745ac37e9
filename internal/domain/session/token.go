package session

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a bearer token cannot be verified.
var ErrInvalidToken = errors.New("invalid session token")

type claims struct {
	Role       Role       `json:"role"`
	SellerMode SellerMode `json:"seller_mode,omitempty"`
	BranchID   int64      `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer returns an Issuer signing with secret.
func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret, now: time.Now}
}

// Mint signs a token for s that expires after ttl.
func (i *Issuer) Mint(s Session, ttl time.Duration) (string, error) {
	now := i.now()
	c := claims{
		Role:       s.Role,
		SellerMode: s.SellerMode,
		BranchID:   s.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(s.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return token, nil
}

// Parse verifies token and returns the session it describes.
func (i *Issuer) Parse(token string) (*Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, errors.Wrap(ErrInvalidToken, "subject is not a user id")
	}
	switch c.Role {
	case RoleCustomer:
	case RoleSeller:
		if c.SellerMode != ModeOwner && c.SellerMode != ModeStaff {
			return nil, errors.Wrap(ErrInvalidToken, "unknown seller mode")
		}
	default:
		return nil, errors.Wrap(ErrInvalidToken, "unknown role")
	}

	return &Session{
		Token:      token,
		UserID:     userID,
		Role:       c.Role,
		SellerMode: c.SellerMode,
		BranchID:   c.BranchID,
	}, nil
}
