package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	"github.com/SnippyKid/OmegaChat-sub000/internal/usecase"
)

// JWTAuth verifies the bearer credential and stores the resolved user in the
// echo context. It runs before any room-specific logic.
func JWTAuth(authUsecase usecase.AuthUsecase) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
			}

			ctx := c.Request().Context()
			user, err := authUsecase.ValidateToken(ctx, tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set("user", user)
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user stored by JWTAuth, or nil.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get("user").(*models.User)
	return user
}

// GetUserID returns the authenticated user id as hex, or "".
func GetUserID(c echo.Context) string {
	if user := CurrentUser(c); user != nil {
		return user.ID.Hex()
	}
	return ""
}
