// Package logging provides structured logging for Mechaway's execution
// substrate: JSON by default (Pretty for text), with WithWorkflowID,
// WithExecutionID, WithNodeID, WithNodeKind, WithProjectSlug, WithField and
// WithError fluent helpers returning a derived logger. Built on log/slog.
//
// Secrets and resolved binding plaintext must never be passed as log fields.
package logging
