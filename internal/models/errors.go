package models

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound          = status.Errorf(codes.NotFound, "not found")
	ErrUnauthenticated   = status.Errorf(codes.Unauthenticated, "missing or malformed credential")
	ErrInvalidCredential = status.Errorf(codes.Unauthenticated, "invalid credential, please sign in again")
	ErrNotAMember        = status.Errorf(codes.PermissionDenied, "not a member of this room")
	ErrForbidden         = status.Errorf(codes.PermissionDenied, "forbidden")
	ErrValidation        = status.Errorf(codes.InvalidArgument, "invalid input")
)

// Upstream failures from the AI provider or the GitHub API. The AI bridge
// retries these internally before surfacing a terminal GenerationError.
var (
	ErrUpstreamTimeout     = status.Errorf(codes.DeadlineExceeded, "upstream call timed out")
	ErrUpstreamRateLimited = status.Errorf(codes.ResourceExhausted, "upstream rate limited")
	ErrUpstreamAuthFailed  = status.Errorf(codes.Unauthenticated, "upstream authentication failed")
	ErrUpstreamError       = status.Errorf(codes.Unavailable, "upstream error")
)

// GenerationError is the terminal failure of the AI bridge after the whole
// fallback ladder has been exhausted. It lists every model that was attempted
// so the error message delivered to the room names them.
type GenerationError struct {
	Provider        string
	AttemptedModels []string
	Cause           error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed on %s after trying [%s]: %v",
		e.Provider, strings.Join(e.AttemptedModels, ", "), e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
