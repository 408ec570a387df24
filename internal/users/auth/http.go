// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/sugarmill/internal/platform/middleware"
	"github.com/taibuivan/sugarmill/internal/platform/ratelimit"
	requestutil "github.com/taibuivan/sugarmill/internal/platform/request"
	"github.com/taibuivan/sugarmill/internal/platform/respond"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/internal/platform/validate"
	"github.com/taibuivan/sugarmill/pkg/pagination"
	"github.com/taibuivan/sugarmill/pkg/slice"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// Registration, login, token refresh, logout, email verification, password
// recovery and the admin approval queue.
type Handler struct {
	authService  *Service
	authenticate func(http.Handler) http.Handler
	rateLimit    func(http.Handler) http.Handler
}

// NewHandler constructs a new [Handler].
//
// The service doubles as the gate's identity resolver. A nil limiter disables throttling.
func NewHandler(service *Service, verifier middleware.TokenVerifier, limiter ratelimit.Limiter) *Handler {
	rateLimit := func(next http.Handler) http.Handler { return next }
	if limiter != nil {
		rateLimit = middleware.RateLimit(limiter)
	}

	return &Handler{
		authService:  service,
		authenticate: middleware.Authenticate(verifier, service),
		rateLimit:    rateLimit,
	}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register, /login, /refresh, /forgot-password, /reset-password
//   - GET  /verify-email/{token}
//   - POST /logout, /resend-verification, /change-password; GET /me (access token)
//   - GET  /pending-approvals; POST /approve/{userId}, /reject/{userId} (admin)
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints, throttled per client IP
	router.Group(func(r chi.Router) {
		r.Use(handler.rateLimit)
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
		r.Post("/refresh", handler.refresh)
		r.Get("/verify-email/{token}", handler.verifyEmail)
		r.Post("/forgot-password", handler.forgotPassword)
		r.Post("/reset-password", handler.resetPassword)
	})

	// Protected endpoints, throttled per principal
	router.Group(func(r chi.Router) {
		r.Use(handler.authenticate)
		r.Use(handler.rateLimit)
		r.Post("/logout", handler.logout)
		r.Post("/resend-verification", handler.resendVerification)
		r.Post("/change-password", handler.changePassword)
		r.Get("/me", handler.me)

		// Approval queue
		r.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireRole(sec.RoleAdmin))
			admin.Get("/pending-approvals", handler.pendingApprovals)
			admin.Post("/approve/{userId}", handler.approve)
			admin.Post("/reject/{userId}", handler.reject)
		})
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	MobileNumber    string `json:"mobileNumber"`
	Role            string `json:"role"`
	Department      string `json:"department"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// # Response Payloads

type loginResponse struct {
	*TokenPair
	Principal View `json:"principal"`
}

type messageResponse struct {
	Message string `json:"message"`
}

/*
Register handles the creation of a new principal.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Name, Email, Password, ConfirmPassword, MobileNumber, Role, Department)

Response:
  - 201: View: Created principal with status=pending
  - 400: VALIDATION_ERROR or DUPLICATE_IDENTITY
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).
		MaxLen(FieldName, input.Name, 100).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, MinPasswordLength).
		MaxLen(FieldPassword, input.Password, MaxPasswordLength).
		MaxBytes(FieldPassword, input.Password, MaxPasswordBytes).
		Matches(FieldConfirmPassword, input.ConfirmPassword, input.Password, "Passwords do not match").
		Required(FieldMobileNumber, input.MobileNumber).
		Mobile(FieldMobileNumber, input.MobileNumber).
		Required(FieldRole, input.Role).
		OneOf(FieldRole, input.Role, roleNames()...)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	principal, err := handler.authService.Register(request.Context(), RegisterInput{
		Name:         input.Name,
		Email:        input.Email,
		Password:     input.Password,
		MobileNumber: input.MobileNumber,
		Role:         input.Role,
		Department:   input.Department,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, principal.View())
}

/*
Login authenticates a principal and issues a token pair.

POST /api/v1/auth/login

Request:
  - Body: loginRequest (Email, Password, optional Role and Department hints)

Response:
  - 200: loginResponse: Tokens and principal
  - 401: INVALID_CREDENTIALS, ROLE_MISMATCH, DEPARTMENT_MISMATCH
  - 403: PENDING_APPROVAL, ACCOUNT_SUSPENDED, ACCOUNT_REJECTED
  - 423: ACCOUNT_LOCKED
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), LoginInput{
		Email:      input.Email,
		Password:   input.Password,
		Role:       input.Role,
		Department: input.Department,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, loginResponse{TokenPair: result.Tokens, Principal: result.Principal.View()})
}

/*
Refresh exchanges the current refresh token for a new pair.

POST /api/v1/auth/refresh

Response:
  - 200: TokenPair
  - 401: TOKEN_INVALID (unknown, expired or rotated-out token)
  - 403: Account not active
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.RefreshToken == "" {
		respond.Error(writer, request, validate.RequiredError(FieldRefreshToken, "This field is required"))
		return
	}

	tokens, err := handler.authService.Refresh(request.Context(), input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, tokens)
}

/*
Logout ends the caller's session by emptying the refresh slot.

POST /api/v1/auth/logout
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), identity.PrincipalID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, messageResponse{Message: "Logged out successfully"})
}

/*
VerifyEmail consumes a single-use verification token.

GET /api/v1/auth/verify-email/{token}

Response:
  - 200: Email verified
  - 400: Invalid or expired token
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	token := requestutil.Param(request, FieldToken)
	if token == "" {
		respond.Error(writer, request, validate.RequiredError(FieldToken, "This field is required"))
		return
	}

	principal, err := handler.authService.VerifyEmail(request.Context(), token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal.View())
}

/*
ResendVerification issues a fresh verification token to the caller.

POST /api/v1/auth/resend-verification
*/
func (handler *Handler) resendVerification(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResendVerification(request.Context(), identity.PrincipalID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, messageResponse{Message: "Verification email sent"})
}

/*
ForgotPassword initiates the password recovery flow.

POST /api/v1/auth/forgot-password

Response:
  - 200: Generic message whether or not the email is registered
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.RequestPasswordReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, messageResponse{Message: "If this email is registered, a reset link has been sent."})
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, MinPasswordLength).
		MaxLen(FieldPassword, input.Password, MaxPasswordLength).
		MaxBytes(FieldPassword, input.Password, MaxPasswordBytes).
		Matches(FieldConfirmPassword, input.ConfirmPassword, input.Password, "Passwords do not match")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, messageResponse{Message: "Password updated successfully"})
}

/*
ChangePassword updates the caller's password and returns a fresh token pair.

POST /api/v1/auth/change-password
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, MinPasswordLength).
		MaxLen(FieldNewPassword, input.NewPassword, MaxPasswordLength).
		MaxBytes(FieldNewPassword, input.NewPassword, MaxPasswordBytes)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	tokens, err := handler.authService.ChangePassword(request.Context(), identity.PrincipalID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, tokens)
}

/*
Me returns the caller's principal without secrets.

GET /api/v1/auth/me
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	principal, err := handler.authService.Profile(request.Context(), identity.PrincipalID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal.View())
}

/*
PendingApprovals lists principals awaiting approval, newest first.

GET /api/v1/auth/pending-approvals?role=&page=&limit=
*/
func (handler *Handler) pendingApprovals(writer http.ResponseWriter, request *http.Request) {
	page := pagination.FromRequest(request)

	principals, total, err := handler.authService.ListPending(request.Context(), request.URL.Query().Get(FieldRole), page)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, Views(principals), pagination.NewMeta(page, total))
}

/*
Approve activates a pending principal.

POST /api/v1/auth/approve/{userId}

Response:
  - 200: View: Updated principal
  - 404: Principal not found
  - 400: INVALID_TRANSITION
*/
func (handler *Handler) approve(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	principalID, err := requestutil.IDParam(request, FieldUserID, resourcePrincipal)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	principal, err := handler.authService.Approve(request.Context(), principalID, identity.PrincipalID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal.View())
}

/*
Reject refuses a pending principal.

POST /api/v1/auth/reject/{userId}

Response:
  - 200: View: Updated principal
  - 404: Principal not found
  - 400: INVALID_TRANSITION or missing reason
*/
func (handler *Handler) reject(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	principalID, err := requestutil.IDParam(request, FieldUserID, resourcePrincipal)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input rejectRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	principal, err := handler.authService.Reject(request.Context(), principalID, identity.PrincipalID, input.Reason)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal.View())
}

// roleNames lists the accepted role strings for validation messages.
func roleNames() []string {
	return slice.Map(sec.Roles(), func(role sec.Role) string { return string(role) })
}
