// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package requestutil provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/ctxutil"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/internal/platform/validate"
	"github.com/taibuivan/sugarmill/pkg/uuid"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, request.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
IDParam retrieves a named URL parameter that must hold a UUID.

Description: A malformed id cannot name any record, so it is reported as a
missing resource before it reaches storage.

Parameters:
  - request: *http.Request
  - name: string
  - resource: string (used in the NotFound message)

Returns:
  - string: The raw id
  - error: apperr.NotFound if the value is not a UUID
*/
func IDParam(request *http.Request, name, resource string) (string, error) {
	value := chi.URLParam(request, name)
	if !uuid.IsValid(value) {
		return "", apperr.NotFound(resource)
	}
	return value, nil
}

/*
ParamOrQuery retrieves a named URL parameter, falling back to the query string.
*/
func ParamOrQuery(request *http.Request, name string) string {
	if value := chi.URLParam(request, name); value != "" {
		return value
	}
	return request.URL.Query().Get(name)
}

/*
RequiredIdentity ensures the request is authenticated and returns the principal.

Returns:
  - *sec.Identity: The authenticated principal
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredIdentity(request *http.Request) (*sec.Identity, error) {

	// Get the attached identity
	identity := ctxutil.GetIdentity(request.Context())

	// If the principal is not authenticated, return an error
	if identity == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	return identity, nil
}
