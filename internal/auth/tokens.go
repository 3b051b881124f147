package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Both token kinds are stateless HS256 JWTs. There is no server-side
// revocation list: validation never touches the database.

const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrWrongTokenKind = errors.New("wrong token kind")
)

// TokenClaims is the validated subset of a parsed token.
type TokenClaims struct {
	Subject string
	Email   string
	Role    string
	Kind    string
}

type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Issue mints a fresh access/refresh pair for the principal.
func (i *Issuer) Issue(principal Principal) (TokenPair, error) {
	access, err := i.sign(principal, TokenKindAccess, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := i.sign(principal, TokenKindRefresh, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(i.accessTTL.Seconds()),
	}, nil
}

func (i *Issuer) sign(principal Principal, kind string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   principal.ID,
		"email": principal.Email,
		"role":  principal.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"typ":   kind,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}

	return encoded, nil
}

// Parse validates raw and requires it to be of wantKind. An access token
// handed to the refresh endpoint (or the reverse) fails with
// ErrWrongTokenKind even when the signature and expiry are fine.
func (i *Issuer) Parse(raw, wantKind string) (TokenClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, ErrTokenInvalid
	}
	if !token.Valid {
		return TokenClaims{}, ErrTokenInvalid
	}

	kind, _ := claims["typ"].(string)
	if kind != wantKind {
		return TokenClaims{}, ErrWrongTokenKind
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return TokenClaims{}, ErrTokenInvalid
	}

	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return TokenClaims{
		Subject: subject,
		Email:   email,
		Role:    role,
		Kind:    kind,
	}, nil
}
