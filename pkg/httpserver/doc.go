// Package httpserver is Mechaway's trigger surface and management API: it
// exposes project-scoped REST routes (gorilla/mux) for CRUD on workflow
// definitions and for firing a Webhook-trigger node directly, wrapped in
// CORS (github.com/gorilla/handlers) and a request-ID middleware in the
// same style the pack's REST examples use.
package httpserver
