package serverutils

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the display data the identity provider puts in the token.
// It is copied onto memberships and chat messages as-is.
type Identity struct {
	UserId    string
	Name      string
	Photo     string
	IsAdmin   bool
	IsPremium bool
}

var errInvalidToken = errors.New("invalid token")

// JwtMiddleware reads the token from the Authorization header, falling back
// to the ?token= query parameter since browsers cannot set headers on
// websocket upgrades.
func JwtMiddleware(ctx *fiber.Ctx) error {
	tokenStr := ctx.Query("token")
	if authHeader := ctx.Get("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		tokenStr = authHeader[7:]
	}
	if tokenStr == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
	}

	identity, err := ParseToken(tokenStr)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	storeIdentity(ctx, identity)
	return ctx.Next()
}

func ParseToken(tokenStr string) (*Identity, error) {
	if tokenStr == "" {
		return nil, errInvalidToken
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken
	}

	userId, _ := claims["user_id"].(string)
	if userId == "" {
		return nil, errInvalidToken
	}
	name, _ := claims["name"].(string)
	photo, _ := claims["photo"].(string)
	isAdmin, _ := claims["is_admin"].(bool)
	isPremium, _ := claims["is_premium"].(bool)

	return &Identity{UserId: userId, Name: name, Photo: photo, IsAdmin: isAdmin, IsPremium: isPremium}, nil
}

func storeIdentity(ctx *fiber.Ctx, identity *Identity) {
	ctx.Locals("user_id", identity.UserId)
	ctx.Locals("user_name", identity.Name)
	ctx.Locals("user_photo", identity.Photo)
	ctx.Locals("user_is_admin", identity.IsAdmin)
	ctx.Locals("user_is_premium", identity.IsPremium)
}

// CurrentIdentity reads what JwtMiddleware stored.
func CurrentIdentity(ctx *fiber.Ctx) Identity {
	userId, _ := ctx.Locals("user_id").(string)
	name, _ := ctx.Locals("user_name").(string)
	photo, _ := ctx.Locals("user_photo").(string)
	isAdmin, _ := ctx.Locals("user_is_admin").(bool)
	isPremium, _ := ctx.Locals("user_is_premium").(bool)
	return Identity{UserId: userId, Name: name, Photo: photo, IsAdmin: isAdmin, IsPremium: isPremium}
}
