package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"heritage-gallery-backend/internal/config"
	"heritage-gallery-backend/internal/models"
)

const UserIDKey = "user_id"

// AuthMiddleware verifies the Supabase HS256 access token and stores its
// "sub" claim under UserIDKey. Browsers cannot set headers on an
// EventSource, so GET requests may pass the token as access_token.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if err != nil {
			abort(c, err.Error(), "")
			return
		}

		// Try URL decoding in case the token was URL-encoded
		if decoded, err := url.QueryUnescape(tokenString); err == nil {
			tokenString = decoded
		}

		if strings.Count(tokenString, ".") != 2 {
			abort(c, "invalid token format", "JWT token must have 3 parts separated by dots")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if cfg.SupabaseJWTSecret == "" {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.SupabaseJWTSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			abort(c, "invalid token", tokenErrorMessage(err))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			abort(c, "invalid token claims", "")
			return
		}

		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			abort(c, "missing user id in token", "")
			return
		}

		c.Set(UserIDKey, sub)
		c.Next()
	}
}

// UserID returns the authenticated owner id.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if c.Request.Method == http.MethodGet {
			if token := c.Query("access_token"); token != "" {
				return token, nil
			}
		}
		return "", errors.New("missing authorization header")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" {
		return "", errors.New("invalid authorization header format")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "token signature is invalid - check JWT secret"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token is malformed - ensure you're using a valid Supabase JWT token"
	}
	return err.Error()
}

func abort(c *gin.Context, msg, detail string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: msg, Message: detail})
}
