// Package middleware provides request-scoped middleware: authentication,
// logging, rate limiting, metrics and tracing.
package middleware

import (
	"context"
	"errors"
	"strings"

	"pulse/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var errNoToken = errors.New("no bearer token")

// Authenticator verifies bearer tokens issued by the external identity
// service. The token subject is the voter id.
type Authenticator struct {
	secret []byte
	redis  *redis.Client
}

// NewAuthenticator returns an Authenticator for HMAC-signed tokens. rdb may be
// nil, in which case revocation is not checked.
func NewAuthenticator(secret string, rdb *redis.Client) *Authenticator {
	return &Authenticator{secret: []byte(secret), redis: rdb}
}

// VoterID returns the authenticated voter stored by Required or Optional.
func VoterID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals("voterID").(string)
	return id, ok && id != ""
}

// Required rejects requests without a valid bearer token.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		voterID, err := a.authenticate(c)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, errNoToken) {
				msg = "Authorization required"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}
		a.store(c, voterID)
		return c.Next()
	}
}

// Optional records the voter when a valid token is present and otherwise
// lets the request through anonymously.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if voterID, err := a.authenticate(c); err == nil {
			a.store(c, voterID)
		}
		return c.Next()
	}
}

func (a *Authenticator) store(c *fiber.Ctx, voterID string) {
	c.Locals("voterID", voterID)
	c.SetUserContext(context.WithValue(c.UserContext(), VoterIDKey, voterID))
}

func (a *Authenticator) authenticate(c *fiber.Ctx) (string, error) {
	tokenString := bearerToken(c.Get("Authorization"))
	if tokenString == "" && strings.HasPrefix(c.Path(), "/api/ws") {
		// browsers cannot set headers on websocket upgrades
		tokenString = c.Query("token")
	}
	if tokenString == "" {
		return "", errNoToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" || len(sub) > models.MaxVoterIDLength {
		return "", errors.New("invalid subject claim")
	}

	if jti, _ := claims["jti"].(string); jti != "" && a.redis != nil {
		revoked, err := a.redis.Exists(c.Context(), "blacklist:"+jti).Result()
		if err == nil && revoked > 0 {
			return "", errors.New("token revoked")
		}
	}

	return sub, nil
}

func bearerToken(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
