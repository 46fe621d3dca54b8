package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingKey    = errors.New("capture ticket signing key not configured")
	ErrInvalidTicket = errors.New("invalid capture ticket")
)

// Claims is the payload of a capture ticket.
type Claims struct {
	RollNo string `json:"roll_no"`
	jwt.RegisteredClaims
}

// Tickets issues and validates capture tickets. A ticket proves that a
// registration just happened and names the student whose face comes next.
type Tickets struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTickets creates a ticket issuer signing with HS256.
func NewTickets(signingKey, issuer string, ttl time.Duration) (*Tickets, error) {
	if signingKey == "" {
		return nil, ErrMissingKey
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Tickets{key: []byte(signingKey), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed ticket for rollNo and its expiry.
func (t *Tickets) Issue(rollNo string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := Claims{
		RollNo: rollNo,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   rollNo,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Parse validates a ticket and returns its claims.
func (t *Tickets) Parse(tokenStr string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	}, opts...)
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidTicket, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.RollNo == "" {
		return Claims{}, ErrInvalidTicket
	}
	return *claims, nil
}
