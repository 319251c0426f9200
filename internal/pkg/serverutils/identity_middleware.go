package serverutils

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ownerIdLocal = "owner_id"

// IdentityMiddleware resolves the caller into an optional owner id. A valid
// bearer token binds the request to its subject; no token means an anonymous
// session, which is a first-class citizen here, not an error. Only a token
// that is present but invalid is rejected.
func IdentityMiddleware(ctx *fiber.Ctx) error {
	authHeader := ctx.Get("Authorization")
	if authHeader == "" {
		return ctx.Next()
	}

	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenStr == authHeader {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Malformed Authorization header"))
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Invalid or expired token"))
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Token has no subject"))
	}
	ownerId, err := uuid.Parse(subject)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Token subject is not a valid id"))
	}

	ctx.Locals(ownerIdLocal, ownerId)
	return ctx.Next()
}

// OwnerFromContext returns the authenticated owner, or nil for anonymous
// requests.
func OwnerFromContext(ctx *fiber.Ctx) *uuid.UUID {
	if v, ok := ctx.Locals(ownerIdLocal).(uuid.UUID); ok {
		return &v
	}
	return nil
}
