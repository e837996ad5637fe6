package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type scopewardClaims struct {
	jwt.RegisteredClaims
	UserID      string       `json:"uid"`
	Username    string       `json:"name,omitempty"`
	Roles       []string     `json:"roles,omitempty"`
	Permissions []Permission `json:"perms,omitempty"`
	TokenType   string       `json:"type"`
}

// TokenService handles JWT creation and validation. Access tokens carry the
// principal's full permission snapshot so authorization checks need no store
// round trip.
type TokenService struct {
	signingKey         []byte
	issuer             string
	expiryHours        int
	refreshExpiryHours int
}

func NewTokenService(signingKey, issuer string, expiryHours, refreshExpiryHours int) *TokenService {
	return &TokenService{
		signingKey:         []byte(signingKey),
		issuer:             issuer,
		expiryHours:        expiryHours,
		refreshExpiryHours: refreshExpiryHours,
	}
}

func (s *TokenService) CreateAccessToken(authn *Authentication) (string, error) {
	return s.createToken(authn, "access", s.expiryHours)
}

func (s *TokenService) CreateRefreshToken(authn *Authentication) (string, error) {
	return s.createToken(authn, "refresh", s.refreshExpiryHours)
}

func (s *TokenService) createToken(authn *Authentication, tokenType string, expiryHours int) (string, error) {
	now := time.Now()

	claims := scopewardClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   authn.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expiryHours) * time.Hour)),
		},
		UserID:      authn.UserID,
		Username:    authn.Username,
		Roles:       authn.Roles,
		Permissions: authn.Permissions,
		TokenType:   tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a JWT and returns the principal it describes.
func (s *TokenService) ValidateToken(tokenString string) (*Authentication, error) {
	var claims scopewardClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	return &Authentication{
		UserID:      claims.UserID,
		Username:    claims.Username,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		TokenType:   claims.TokenType,
	}, nil
}
