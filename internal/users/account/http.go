// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/sugarmill/internal/platform/middleware"
	requestutil "github.com/taibuivan/sugarmill/internal/platform/request"
	"github.com/taibuivan/sugarmill/internal/platform/respond"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/internal/platform/validate"
	"github.com/taibuivan/sugarmill/internal/users/auth"
)

// Handler implements the HTTP layer for account management.
//
// # Security
//
// Every endpoint sits behind the authentication gate supplied at construction.
type Handler struct {
	accountService *Service
	authenticate   func(http.Handler) http.Handler
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service, authenticate func(http.Handler) http.Handler) *Handler {
	return &Handler{accountService: service, authenticate: authenticate}
}

// Routes returns a [chi.Router] configured with the account domain's endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(handler.authenticate)

	// Self-service
	router.Get("/profile", handler.getProfile)
	router.Patch("/profile", handler.updateProfile)

	// Owner or administrator
	router.With(middleware.RequireOwnerOrRole(auth.FieldUserID, sec.RoleAdmin)).
		Get("/{userId}", handler.getPrincipal)

	// Administration
	router.With(middleware.RequireRole(sec.RoleAdmin)).
		Post("/{userId}/suspend", handler.suspend)

	return router
}

// # Profile Endpoints

/*
GET /api/v1/account/profile.

Description: Retrieves the profile of the authenticated principal.

Response:
  - 200: auth.View
  - 401: Authentication required
*/
func (handler *Handler) getProfile(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	principal, err := handler.accountService.GetProfile(request.Context(), identity.PrincipalID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal.View())
}

// updateProfileRequest defines the expected JSON payload for profile updates.
type updateProfileRequest struct {
	Name         *string `json:"name"`
	MobileNumber *string `json:"mobileNumber"`
}

/*
PATCH /api/v1/account/profile.

Description: Applies partial updates to the authenticated principal's profile.

Request:
  - body: updateProfileRequest (Partial JSON)

Response:
  - 200: auth.View: The updated profile
  - 400: Validation or duplicate mobile number
  - 401: Authentication required
*/
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateProfileRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	if input.Name != nil {
		v.Required(auth.FieldName, *input.Name).MaxLen(auth.FieldName, *input.Name, 100)
	}
	if input.MobileNumber != nil {
		v.Required(auth.FieldMobileNumber, *input.MobileNumber).Mobile(auth.FieldMobileNumber, *input.MobileNumber)
	}

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	principal, err := handler.accountService.UpdateProfile(request.Context(), identity.PrincipalID, ProfileChanges{
		Name:         input.Name,
		MobileNumber: input.MobileNumber,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal.View())
}

/*
GET /api/v1/account/{userId}.

Description: Retrieves a principal. Only the principal itself or an admin may call it.

Response:
  - 200: auth.View
  - 403: Neither owner nor admin
  - 404: Principal not found
*/
func (handler *Handler) getPrincipal(writer http.ResponseWriter, request *http.Request) {
	principalID, err := requestutil.IDParam(request, auth.FieldUserID, resourcePrincipal)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	principal, err := handler.accountService.GetProfile(request.Context(), principalID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal.View())
}

// # Administration Endpoints

// suspendRequest carries the optional reason forwarded to the principal.
type suspendRequest struct {
	Reason string `json:"reason"`
}

/*
POST /api/v1/account/{userId}/suspend.

Description: Suspends an active principal and ends its refresh session.

Response:
  - 200: auth.View: The suspended principal
  - 400: INVALID_TRANSITION
  - 403: Caller is not an admin
  - 404: Principal not found
*/
func (handler *Handler) suspend(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	principalID, err := requestutil.IDParam(request, auth.FieldUserID, resourcePrincipal)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input suspendRequest
	if request.ContentLength != 0 {
		if err := requestutil.DecodeJSON(request, &input); err != nil {
			respond.Error(writer, request, validate.ErrInvalidJSON)
			return
		}
	}

	principal, err := handler.accountService.Suspend(request.Context(), principalID, identity.PrincipalID, input.Reason)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal.View())
}
