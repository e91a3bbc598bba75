package webserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	userContextKey = "user"
)

// Claims carried by api tokens. Subject is the decimal user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID int64
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// JWTConfig validates HS256 tokens signed with secret.
func JWTConfig(secret string) echojwt.Config {
	return echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: echojwt.AlgorithmHS256,
		ContextKey:    userContextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"message": "Missing or invalid token",
			})
		},
	}
}

// SignToken issues a token for userID. Used by operator tooling and tests.
func SignToken(secret string, userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// CurrentPrincipal extracts the caller from the validated token.
func CurrentPrincipal(c echo.Context) (Principal, error) {
	token, ok := c.Get(userContextKey).(*jwt.Token)
	if !ok || token == nil {
		return Principal{}, errors.New("no token in context")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Principal{}, errors.New("unexpected claims type")
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Principal{}, errors.Errorf("invalid subject %q", claims.Subject)
	}
	return Principal{UserID: userID, Role: claims.Role}, nil
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := CurrentPrincipal(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "Missing or invalid token"})
		}
		if !p.IsAdmin() {
			return c.JSON(http.StatusForbidden, map[string]interface{}{"success": false, "message": "Administrator role required"})
		}
		return next(c)
	}
}
