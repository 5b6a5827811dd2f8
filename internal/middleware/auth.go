package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/auth"
	"github.com/peerdesk/backend/internal/banguard"
	"github.com/peerdesk/backend/internal/config"
	"go.uber.org/zap"
)

const (
	CtxUserID         = "user_id"
	CtxTelegramUserID = "telegram_user_id"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxTelegramUserID, claims.TelegramUserID)

		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxUserID).(uuid.UUID)
	return id
}

func GetTelegramUserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(CtxTelegramUserID).(int64)
	return id
}

// AdminMiddleware restricts a route group to configured admin accounts.
func AdminMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		telegramID := GetTelegramUserID(c)
		if !cfg.IsAdmin(telegramID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
		}
		return c.Next()
	}
}

// BanGuardMiddleware gates mutating routes on account standing. Reads stay
// open to banned accounts; only writes are denied.
func BanGuardMiddleware(guard *banguard.Guard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision := guard.CheckAccess(c.UserContext(), GetUserID(c))
		if !decision.Allowed {
			resp := fiber.Map{"error": "account is banned"}
			if decision.Reason != "" {
				resp["reason"] = decision.Reason
			}
			if decision.ExpiresAt != nil {
				resp["ban_expires_at"] = decision.ExpiresAt
			}
			return c.Status(fiber.StatusForbidden).JSON(resp)
		}
		return c.Next()
	}
}
