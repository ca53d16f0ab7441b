package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
)

// Identity is the authenticated user as supplied by the identity
// provider: an integer account id plus the display name captured on
// messages. Chat treats both as read-only for the life of a session.
type Identity struct {
	UserID   int64
	Username string
}

type AuthMiddleware struct {
	authClient *auth.Client
}

func NewAuthMiddleware(authClient *auth.Client) *AuthMiddleware {
	return &AuthMiddleware{
		authClient: authClient,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		identity, err := m.IdentityFromToken(c.Request().Context(), parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set("user_id", identity.UserID)
		c.Set("username", identity.Username)

		return next(c)
	}
}

// IdentityFromToken verifies a Firebase ID token and extracts the
// marketplace account id and username set as custom claims by the
// account service.
func (m *AuthMiddleware) IdentityFromToken(ctx context.Context, idToken string) (Identity, error) {
	token, err := m.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Identity{}, err
	}

	userID, ok := token.Claims["user_id"].(float64)
	if !ok {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "Token has no user_id claim")
	}

	username, _ := token.Claims["username"].(string)

	return Identity{
		UserID:   int64(userID),
		Username: username,
	}, nil
}
