// Package finder discovers a deliverable address for a person by probing
// generated candidates against a verification service.
package finder

import (
	"context"
)

// NoValidEmail is reported in Result.EmailFound when no candidate was accepted.
const NoValidEmail = "no valid email"

// NoCandidatesError is reported when a person yields no candidates at all.
const NoCandidatesError = "No pattern returned as valid"

// Verification status codes that do not come from the verification service.
const (
	StatusRequestError = "request_error"
	StatusJSONError    = "json_error"
)

// Person is the input to one discovery.
type Person struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	CompanyWebsite string `json:"company_website"`
}

// ProbeResult is the outcome of verifying a single candidate.
//
// IsValid is derived from StatusCode: a well-formed "invalid" answer is a
// successful probe with IsValid false.
type ProbeResult struct {
	Email      string
	IsValid    bool
	StatusCode string
	// Details is the full verification payload. Nil when the probe failed
	// before a payload could be decoded.
	Details map[string]any
	// Error is empty unless StatusCode is StatusRequestError or StatusJSONError.
	Error string
}

// Result is the outcome of one discovery, serialized as a flat record.
// Nil pointers and maps encode as JSON null.
type Result struct {
	EmailFound       string         `json:"email_found"`
	StatusCode       *string        `json:"status_code"`
	ValidationResult map[string]any `json:"validation_result"`
	TotalCreditsUsed int            `json:"total_credits_used"`
	Error            *string        `json:"error"`
}

// Found reports whether a candidate was accepted.
func (r Result) Found() bool {
	return r.EmailFound != "" && r.EmailFound != NoValidEmail
}

// Verifier checks one address with exactly one external call.
type Verifier interface {
	Verify(ctx context.Context, email string) ProbeResult
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, email string) ProbeResult

func (f VerifierFunc) Verify(ctx context.Context, email string) ProbeResult {
	return f(ctx, email)
}

// IsDeliverable reports whether a verification status code counts as a hit.
// Catch-all domains are accepted.
func IsDeliverable(statusCode string) bool {
	switch statusCode {
	case "ok", "catch_all", "catchall":
		return true
	default:
		return false
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
