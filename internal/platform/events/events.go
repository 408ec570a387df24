// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package events defines the messages the identity core emits for other services
and the publishers that deliver them.

Delivery of the resulting emails is owned by a downstream consumer; the core only
announces that an account decision happened or that a single-use email token was issued.
*/
package events

import (
	"context"
	"log/slog"
	"time"
)

// # Payloads

// Decision names the administrative action taken on an account.
type Decision string

const (
	DecisionApproved  Decision = "approved"
	DecisionRejected  Decision = "rejected"
	DecisionSuspended Decision = "suspended"
)

// AccountDecision is published when an administrator approves, rejects or suspends a principal.
// It carries enough information for a mailer to notify the principal without querying the core.
type AccountDecision struct {
	PrincipalID string    `json:"principal_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Decision    Decision  `json:"decision"`
	Reason      string    `json:"reason,omitempty"`
	DecidedBy   string    `json:"decided_by"`
	DecidedAt   time.Time `json:"decided_at"`
}

// TokenPurpose names what a single-use email token is for.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify_email"
	PurposeResetPassword TokenPurpose = "reset_password"
)

// EmailToken is published when the core issues a single-use token that must reach
// the principal's mailbox. The raw token only ever travels on this queue.
type EmailToken struct {
	PrincipalID string       `json:"principal_id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	Purpose     TokenPurpose `json:"purpose"`
	Token       string       `json:"token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// # Publishers

// LogPublisher records decisions in the structured log. It is used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a [LogPublisher].
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// PublishAccountDecision logs the event and never fails.
func (publisher *LogPublisher) PublishAccountDecision(ctx context.Context, event AccountDecision) error {
	publisher.logger.InfoContext(ctx, "account_decision_unpublished",
		slog.String("principal_id", event.PrincipalID),
		slog.String("decision", string(event.Decision)),
		slog.String("decided_by", event.DecidedBy),
	)
	return nil
}

// PublishEmailToken logs the event without the token itself and never fails.
func (publisher *LogPublisher) PublishEmailToken(ctx context.Context, event EmailToken) error {
	publisher.logger.InfoContext(ctx, "email_token_unpublished",
		slog.String("principal_id", event.PrincipalID),
		slog.String("purpose", string(event.Purpose)),
		slog.Time("expires_at", event.ExpiresAt),
	)
	return nil
}
