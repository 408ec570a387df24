// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/sugarmill/internal/platform/respond"
)

// probeTimeout bounds every readiness probe.
const probeTimeout = 2 * time.Second

// Probe checks one dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthHandler struct {
	probes []Probe
	logger *slog.Logger
}

type probeResult struct {
	Name string `json:"name"`
	IsOK bool   `json:"ok"`
}

// NewHealthHandlers creates the /health and /ready http.HandlerFuncs.
//
// Readiness runs every probe and answers 503 if any fails. Failure details are
// logged, never returned.
func NewHealthHandlers(probes []Probe, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	handler := &healthHandler{probes: probes, logger: logger}
	return handler.liveness, handler.readiness
}

// liveness handles GET /health (Liveness probe).
func (handler *healthHandler) liveness(writer http.ResponseWriter, _ *http.Request) {
	respond.OK(writer, map[string]string{"status": "ok"})
}

// readiness handles GET /ready (Readiness probe).
func (handler *healthHandler) readiness(writer http.ResponseWriter, request *http.Request) {
	results := make([]probeResult, 0, len(handler.probes))
	isReady := true

	for _, probe := range handler.probes {
		ctx, cancel := context.WithTimeout(request.Context(), probeTimeout)
		err := probe.Check(ctx)
		cancel()

		if err != nil {
			isReady = false
			handler.logger.ErrorContext(request.Context(), "readiness_check_failed",
				slog.String("dependency", probe.Name),
				slog.String("error", err.Error()),
			)
		}
		results = append(results, probeResult{Name: probe.Name, IsOK: err == nil})
	}

	status, httpStatus := "ready", http.StatusOK
	if !isReady {
		status, httpStatus = "degraded", http.StatusServiceUnavailable
	}

	respond.JSON(writer, httpStatus, respond.SuccessEnvelope{
		Success: isReady,
		Data:    map[string]any{"status": status, "checks": results},
	})
}
