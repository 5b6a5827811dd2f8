package banguard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/events"
	"github.com/peerdesk/backend/internal/models"
	"go.uber.org/zap"
)

// Decision is the outcome of an access check. Denied carries the stored ban
// details so callers can surface them without another lookup.
type Decision struct {
	Allowed   bool
	Reason    string
	BanType   string
	ExpiresAt *time.Time
}

var allowed = Decision{Allowed: true}

// Evaluate decides access from ban state alone. expired reports that a
// temporary ban has lapsed and should be cleared; the write is the caller's
// job, keeping this function pure.
func Evaluate(u *models.User, now time.Time) (Decision, bool) {
	if !u.IsBanned {
		return allowed, false
	}

	if u.BanType != nil && *u.BanType == models.BanTypeTemporary &&
		u.BanExpiresAt != nil && now.After(*u.BanExpiresAt) {
		return allowed, true
	}

	d := Decision{Allowed: false}
	if u.BanReason != nil {
		d.Reason = *u.BanReason
	}
	if u.BanType != nil {
		d.BanType = *u.BanType
	}
	d.ExpiresAt = u.BanExpiresAt
	return d, false
}

// UserStore is the slice of UserRepo the guard needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ClearBan(ctx context.Context, id uuid.UUID) error
}

// Auditor records guard outcomes that need operator eyes.
type Auditor interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// Guard gates every mutating operation on account standing.
type Guard struct {
	userRepo  UserStore
	auditRepo Auditor
	publisher events.Publisher // optional
	log       *zap.Logger
}

func NewGuard(userRepo UserStore, auditRepo Auditor, publisher events.Publisher, log *zap.Logger) *Guard {
	return &Guard{userRepo: userRepo, auditRepo: auditRepo, publisher: publisher, log: log}
}

// CheckAccess evaluates the user's ban state, clearing an expired temporary
// ban in passing (self-healing; no background sweep needed).
//
// Lookup failures fail open: blocking all activity on a degraded store is
// worse than letting a banned user through one request. Every such failure is
// audit-logged so operators can see it happening.
func (g *Guard) CheckAccess(ctx context.Context, userID uuid.UUID) Decision {
	u, err := g.userRepo.GetByID(ctx, userID)
	if err != nil {
		g.log.Error("ban check failed, allowing access",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		_ = g.auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "ban_check_failed_open",
			EntityType: "user",
			EntityID:   &userID,
			Meta:       map[string]any{"error": err.Error()},
		})
		return allowed
	}

	decision, expired := Evaluate(u, time.Now())

	if expired {
		if err := g.userRepo.ClearBan(ctx, userID); err != nil {
			g.log.Error("failed to clear expired ban", zap.String("user_id", userID.String()), zap.Error(err))
		} else {
			_ = g.auditRepo.Log(ctx, models.AuditLog{
				ActorType:  "system",
				Action:     "ban_expired_cleared",
				EntityType: "user",
				EntityID:   &userID,
			})
		}
	}

	if !decision.Allowed {
		g.log.Info("access denied: banned account",
			zap.String("user_id", userID.String()),
			zap.String("ban_type", decision.BanType),
		)
		if g.publisher != nil {
			_ = g.publisher.Publish(ctx, events.StreamTrades, events.Event{
				Type: events.EventBanDenied,
				Payload: map[string]any{
					"user_id":  userID.String(),
					"ban_type": decision.BanType,
				},
			})
		}
	}

	return decision
}
