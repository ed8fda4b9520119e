package server

import (
	"errors"
	"net/http"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/labstack/echo/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	pkgmdw "github.com/SnippyKid/OmegaChat-sub000/internal/server/middleware"
)

// errorHandler maps the error taxonomy onto HTTP statuses. Domain errors
// carry grpc codes; everything unclassified is a 500.
func errorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := &pkgmdw.ResponseError{
			Status:       http.StatusInternalServerError,
			Err:          err,
			ErrorMessage: "internal error",
		}

		var he *echo.HTTPError
		var genErr *models.GenerationError
		switch {
		case errors.As(err, &he):
			resp.Status = he.Code
			resp.ErrorMessage = http.StatusText(he.Code)
			if msg, ok := he.Message.(string); ok {
				resp.ErrorMessage = msg
			}
		case errors.As(err, &genErr):
			resp.Status = http.StatusBadGateway
			resp.ErrorCode = "generation_failed"
			resp.ErrorMessage = genErr.Error()
		default:
			if st, ok := status.FromError(err); ok {
				resp.Status = httpStatus(st.Code())
				resp.ErrorCode = st.Code().String()
				resp.ErrorMessage = err.Error()
			}
		}

		if resp.Status >= http.StatusInternalServerError {
			log.Errorw(c.Request().Context(), "request failed", "error", err)
		}
		if err := c.JSON(resp.Status, resp); err != nil {
			log.Errorw(c.Request().Context(), "write error response", "error", err)
		}
	}
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
