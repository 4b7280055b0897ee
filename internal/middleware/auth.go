package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"clinic-notify/internal/domain"
)

const ActorContextKey = "actor"

// Claims is the token shape minted by the main clinic API. This service only
// validates; it never issues tokens.
type Claims struct {
	UserID   uuid.UUID  `json:"user_id"`
	Role     string     `json:"role"`
	BranchID *uuid.UUID `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthRequired validates the bearer token and stores the acting user on the
// request. Websocket clients cannot set headers from the browser, so a
// "token" query parameter is accepted as a fallback.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ""

		authHeader := c.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return Unauthorized("Invalid authorization header format")
			}
			token = parts[1]
		} else {
			token = c.Query("token")
		}

		if token == "" {
			return Unauthorized("Missing authorization token")
		}

		claims := &Claims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid {
			return Unauthorized("Invalid or expired token")
		}
		if claims.UserID == uuid.Nil {
			return Unauthorized("Token carries no user")
		}

		c.Locals(ActorContextKey, domain.Actor{
			ID:       claims.UserID,
			Role:     claims.Role,
			BranchID: claims.BranchID,
		})

		return c.Next()
	}
}

func GetActor(c *fiber.Ctx) domain.Actor {
	actor, ok := c.Locals(ActorContextKey).(domain.Actor)
	if !ok {
		return domain.Actor{}
	}
	return actor
}
