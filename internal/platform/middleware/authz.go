// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package middleware provides the HTTP middleware chain for the Sugarmill API server.
//
// # Architecture
//
// Middleware intercepts incoming HTTP requests to apply global policies
// before they reach the domain handlers. This includes cross-cutting concerns
// like Logging, AuthN/AuthZ, Rate Limiting, and CORS.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/constants"
	"github.com/taibuivan/sugarmill/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/sugarmill/internal/platform/request"
	"github.com/taibuivan/sugarmill/internal/platform/respond"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify access tokens in middleware.
//
// # Why an interface?
//
// Defining TokenVerifier here decouples the middleware from the token service
// implementation, allowing us to easily inject fakes during unit testing.
type TokenVerifier interface {
	VerifyAccess(tokenStr string) (*sec.Claims, error)
}

// IdentityResolver loads the principal behind verified claims and decides whether
// the account is usable (exists, active, not locked).
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, principalID string) (*sec.Identity, error)
}

// # Authentication Gate

// Authenticate requires a valid bearer access token on every request.
//
// # Flow
//  1. Extract 'Authorization: Bearer <token>'; absent or malformed is 401.
//  2. Verify the token; expired is 401 TOKEN_EXPIRED, anything else 401 TOKEN_INVALID.
//  3. Resolve the principal (401 unknown, 403 not active, 423 locked).
//  4. Inject [*sec.Identity] into the request context for downstream use.
func Authenticate(verifier TokenVerifier, resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			identity, err := authenticate(request, verifier, resolver)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			ctx := ctxutil.WithIdentity(request.Context(), identity)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// OptionalAuthenticate runs the same checks as [Authenticate] but never rejects.
//
// Any failure leaves the request anonymous, for routes that behave differently
// for anonymous and authenticated callers.
func OptionalAuthenticate(verifier TokenVerifier, resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			identity, err := authenticate(request, verifier, resolver)
			if err != nil {
				next.ServeHTTP(writer, request)
				return
			}

			ctx := ctxutil.WithIdentity(request.Context(), identity)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// authenticate performs the gate sequence and returns the identity or a client-safe error.
func authenticate(request *http.Request, verifier TokenVerifier, resolver IdentityResolver) (*sec.Identity, error) {

	// ── 1. Bearer Extraction ──────────────────────────────────────────
	token, err := BearerToken(request)
	if err != nil {
		return nil, err
	}

	// ── 2. Token Verification ─────────────────────────────────────────
	claims, err := verifier.VerifyAccess(token)
	if err != nil {
		if errors.Is(err, sec.ErrTokenExpired) {
			return nil, apperr.TokenExpired()
		}
		return nil, apperr.TokenInvalid("Invalid access token")
	}

	// ── 3. Principal Resolution ───────────────────────────────────────
	return resolver.ResolveIdentity(request.Context(), claims.PrincipalID)
}

// BearerToken extracts the token from a standard 'Authorization: Bearer' header.
func BearerToken(request *http.Request) (string, error) {
	authHeader := request.Header.Get(constants.HeaderAuthorization)
	if authHeader == "" {
		return "", apperr.Unauthorized("Authentication required")
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", apperr.Unauthorized("Invalid authorization format")
	}

	return parts[1], nil
}

// # Authorization Guards

// RequireAuth blocks requests that carry no identity.
//
// Useful after [OptionalAuthenticate] on routes that need a caller.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if GetIdentity(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole blocks requests whose principal role is not in roles.
//
// The 403 payload names the required roles and the actual role.
func RequireRole(roles ...sec.Role) func(http.Handler) http.Handler {
	required := make([]string, len(roles))
	for i, role := range roles {
		required[i] = string(role)
	}

	return guard(func(identity *sec.Identity, _ *http.Request) error {
		if !identity.Grant.Is(roles...) {
			return apperr.InsufficientRole(required, string(identity.Role()))
		}
		return nil
	})
}

// RequireDepartment blocks requests unless the principal is staff in one of departments.
func RequireDepartment(departments ...sec.Department) func(http.Handler) http.Handler {
	return guard(func(identity *sec.Identity, _ *http.Request) error {
		department, isStaff := identity.Department()
		if !isStaff {
			return apperr.Forbidden("Staff access required")
		}

		for _, allowed := range departments {
			if department == allowed {
				return nil
			}
		}

		return apperr.Forbidden("Department access denied",
			apperr.FieldError{Field: "department", Message: string(department)},
		)
	})
}

// RequireOwnerOrRole allows the principal whose id equals the request field
// resourceIDField (URL parameter, else query parameter), or any principal with role.
func RequireOwnerOrRole(resourceIDField string, role sec.Role) func(http.Handler) http.Handler {
	return guard(func(identity *sec.Identity, request *http.Request) error {
		if identity.Grant.Is(role) {
			return nil
		}

		ownerID := requestutil.ParamOrQuery(request, resourceIDField)
		if ownerID != "" && ownerID == identity.PrincipalID {
			return nil
		}

		return apperr.Forbidden("You can only access your own resources")
	})
}

// RequireEmailVerified blocks principals whose email is not verified yet.
func RequireEmailVerified(next http.Handler) http.Handler {
	return guard(func(identity *sec.Identity, _ *http.Request) error {
		if !identity.EmailVerified {
			return apperr.EmailNotVerified()
		}
		return nil
	})(next)
}

// guard adapts a predicate over the attached identity into middleware.
// A missing identity is always 401.
func guard(check func(identity *sec.Identity, request *http.Request) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			identity := GetIdentity(request.Context())
			if identity == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			if err := check(identity, request); err != nil {
				respond.Error(writer, request, err)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// GetIdentity retrieves the [*sec.Identity] from the [context.Context].
//
// # Returns
//   - A pointer to [*sec.Identity] if the principal is authenticated.
//   - nil if the request is anonymous.
func GetIdentity(ctx context.Context) *sec.Identity {
	return ctxutil.GetIdentity(ctx)
}
