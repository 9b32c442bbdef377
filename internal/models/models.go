// Package models holds the API request and response shapes.
package models

import "github.com/appforge/appforge/internal/ui"

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Description string `json:"description"`
	Mode        string `json:"mode"`
}

// GenerateResponse returns the freshly generated code.
type GenerateResponse struct {
	Code string `json:"code"`
}

// RunResponse returns the widget document a run rendered.
type RunResponse struct {
	Document *ui.Document `json:"document"`
}

// SessionResponse describes the session's current code slot.
type SessionResponse struct {
	Code string `json:"code"`
	Mode string `json:"mode,omitempty"`
}

// ErrorResponse carries a user-visible error or warning.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports liveness for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}
