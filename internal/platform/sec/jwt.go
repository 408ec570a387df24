// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing, Grants) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via narrow interfaces.
package sec

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// # Token Kinds

// TokenKind distinguishes the two token families. Each kind is signed with its own secret.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

var (
	// ErrTokenExpired is returned when an otherwise valid token is past its expiry.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenInvalid is returned for any signature, issuer, audience, kind or format failure.
	ErrTokenInvalid = errors.New("sec: token invalid")
)

// Claims represents the payload embedded inside both token kinds.
//
// Custom application claims are abbreviated to keep the JWT payload small.
// Refresh tokens carry only the principal id and email.
type Claims struct {
	jwt.RegisteredClaims

	PrincipalID string `json:"uid"`
	Email       string `json:"eml"`
	Role        string `json:"rol,omitempty"`
	Department  string `json:"dep,omitempty"`
	Kind        string `json:"typ"`
}

// Grant rebuilds the [Grant] carried by an access token.
func (claims *Claims) Grant() (Grant, error) {
	return ParseGrant(claims.Role, claims.Department)
}

// # Token Service

// TokenConfig holds the deployment-wide signing parameters.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Now overrides the clock, mainly for tests. Defaults to [time.Now].
	Now func() time.Time
}

// TokenService handles generation and verification of HS256 JWT tokens.
type TokenService struct {
	config TokenConfig
}

// NewTokenService creates a new TokenService after validating its configuration.
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if len(config.AccessSecret) == 0 || len(config.RefreshSecret) == 0 {
		return nil, errors.New("sec: access and refresh secrets are required")
	}
	if bytes.Equal(config.AccessSecret, config.RefreshSecret) {
		return nil, errors.New("sec: access and refresh secrets must differ")
	}
	if config.AccessTTL <= 0 || config.RefreshTTL <= 0 {
		return nil, errors.New("sec: token lifetimes must be positive")
	}
	if config.Issuer == "" || config.Audience == "" {
		return nil, errors.New("sec: issuer and audience are required")
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &TokenService{config: config}, nil
}

// AccessTTL returns the lifetime of access tokens.
func (service *TokenService) AccessTTL() time.Duration { return service.config.AccessTTL }

// GenerateAccessToken creates a signed access token carrying the principal's grant.
func (service *TokenService) GenerateAccessToken(principalID, email string, grant Grant) (string, time.Time, error) {
	claims := service.baseClaims(principalID, email, TokenAccess, service.config.AccessTTL)
	claims.Role = string(grant.Role())
	if department, ok := grant.Department(); ok {
		claims.Department = string(department)
	}

	return service.sign(claims, TokenAccess)
}

// GenerateRefreshToken creates a signed refresh token carrying only identity claims.
func (service *TokenService) GenerateRefreshToken(principalID, email string) (string, time.Time, error) {
	claims := service.baseClaims(principalID, email, TokenRefresh, service.config.RefreshTTL)
	return service.sign(claims, TokenRefresh)
}

// VerifyAccess verifies an access token. It satisfies the middleware's TokenVerifier.
func (service *TokenService) VerifyAccess(tokenString string) (*Claims, error) {
	return service.Verify(tokenString, TokenAccess)
}

// VerifyRefresh verifies a refresh token.
func (service *TokenService) VerifyRefresh(tokenString string) (*Claims, error) {
	return service.Verify(tokenString, TokenRefresh)
}

// Verify checks signature, issuer, audience, expiry and kind of a JWT string.
//
// It never consults storage. Expired tokens yield [ErrTokenExpired]; every
// other failure yields [ErrTokenInvalid].
func (service *TokenService) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	secret, err := service.secretFor(kind)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(service.config.Issuer),
		jwt.WithAudience(service.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(service.config.Now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid || claims.Kind != string(kind) || claims.PrincipalID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// baseClaims fills the registered claims shared by both token kinds.
func (service *TokenService) baseClaims(principalID, email string, kind TokenKind, timeToLive time.Duration) *Claims {
	currentTime := service.config.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   principalID,
			Issuer:    service.config.Issuer,
			Audience:  jwt.ClaimStrings{service.config.Audience},
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		PrincipalID: principalID,
		Email:       email,
		Kind:        string(kind),
	}
}

// sign serialises claims with the secret of kind.
func (service *TokenService) sign(claims *Claims, kind TokenKind) (string, time.Time, error) {
	secret, err := service.secretFor(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sec: failed to sign %s token: %w", kind, err)
	}

	return signedToken, claims.ExpiresAt.Time, nil
}

func (service *TokenService) secretFor(kind TokenKind) ([]byte, error) {
	switch kind {
	case TokenAccess:
		return service.config.AccessSecret, nil
	case TokenRefresh:
		return service.config.RefreshSecret, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrTokenInvalid, kind)
	}
}
