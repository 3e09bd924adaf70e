package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"recipecost/models"
	"recipecost/pkg/config"
)

const (
	issuerName     = "recipecost"
	purposeRefresh = "refresh"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// Identity is the authenticated caller as asserted by an access token.
type Identity struct {
	ID   uint
	Role models.Role
	Name string
}

func (i Identity) IsAdmin() bool { return i.Role.IsAdmin() }

// AccessClaims are carried by access tokens.
type AccessClaims struct {
	Role models.Role `json:"role"`
	Name string      `json:"name"`
	jwt.RegisteredClaims
}

// RefreshClaims are carried by refresh tokens.
type RefreshClaims struct {
	Purpose string `json:"purpose"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into a user id.
func (c *RefreshClaims) UserID() (uint, error) {
	return parseSubject(c.Subject)
}

// Issuer signs and verifies access and refresh tokens. The two kinds use
// distinct secrets.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.JWTAccessSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     cfg.JWTAccessExpires,
		refreshTTL:    cfg.JWTRefreshExpires,
		now:           time.Now,
	}
}

// WithClock returns a copy of the issuer reading time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) registered(userID uint, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		Issuer:    issuerName,
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

// IssueAccess signs a short-lived token asserting the user's id, role and name.
func (i *Issuer) IssueAccess(u models.User) (string, error) {
	claims := AccessClaims{
		Role:             u.Role,
		Name:             u.Name,
		RegisteredClaims: i.registered(u.ID, i.accessTTL),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return s, nil
}

// IssueRefresh signs a long-lived token usable only to mint access tokens.
func (i *Issuer) IssueRefresh(u models.User) (string, error) {
	claims := RefreshClaims{
		Purpose:          purposeRefresh,
		Version:          u.TokenVersion,
		RegisteredClaims: i.registered(u.ID, i.refreshTTL),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return s, nil
}

func (i *Issuer) parser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(i.now),
	)
}

func (i *Issuer) parse(token string, claims jwt.Claims, secret []byte) error {
	_, err := i.parser().ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

// VerifyAccess checks signature and expiry of an access token and returns
// the identity it asserts.
func (i *Issuer) VerifyAccess(token string) (Identity, error) {
	var claims AccessClaims
	if err := i.parse(token, &claims, i.accessSecret); err != nil {
		return Identity{}, err
	}
	id, err := parseSubject(claims.Subject)
	if err != nil {
		return Identity{}, err
	}
	if !claims.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown role %d", ErrTokenInvalid, claims.Role)
	}
	return Identity{ID: id, Role: claims.Role, Name: claims.Name}, nil
}

// VerifyRefresh checks signature, expiry and purpose of a refresh token.
func (i *Issuer) VerifyRefresh(token string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.parse(token, &claims, i.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Purpose != purposeRefresh {
		return nil, fmt.Errorf("%w: purpose %q", ErrTokenInvalid, claims.Purpose)
	}
	if _, err := parseSubject(claims.Subject); err != nil {
		return nil, err
	}
	return &claims, nil
}

func parseSubject(sub string) (uint, error) {
	n, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	return uint(n), nil
}
