package banguard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func TestEvaluateNotBanned(t *testing.T) {
	d, expired := Evaluate(&models.User{}, time.Now())
	assert.True(t, d.Allowed)
	assert.False(t, expired)
}

func TestEvaluatePermanentBan(t *testing.T) {
	u := &models.User{
		IsBanned:  true,
		BanType:   strPtr(models.BanTypePermanent),
		BanReason: strPtr("fraudulent activity"),
	}
	d, expired := Evaluate(u, time.Now())
	assert.False(t, d.Allowed)
	assert.False(t, expired)
	assert.Equal(t, models.BanTypePermanent, d.BanType)
	assert.Equal(t, "fraudulent activity", d.Reason)
}

func TestEvaluateActiveTemporaryBan(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	u := &models.User{
		IsBanned:     true,
		BanType:      strPtr(models.BanTypeTemporary),
		BanExpiresAt: &expires,
		BanReason:    strPtr("spamming offers"),
	}
	d, expired := Evaluate(u, time.Now())
	assert.False(t, d.Allowed)
	assert.False(t, expired)
	assert.NotNil(t, d.ExpiresAt)
	assert.Equal(t, expires, *d.ExpiresAt)
}

// An expired temporary ban allows access and signals the clear.
func TestEvaluateExpiredTemporaryBan(t *testing.T) {
	expires := time.Now().Add(-time.Minute)
	u := &models.User{
		IsBanned:     true,
		BanType:      strPtr(models.BanTypeTemporary),
		BanExpiresAt: &expires,
	}
	d, expired := Evaluate(u, time.Now())
	assert.True(t, d.Allowed)
	assert.True(t, expired)
}

// A temporary ban without an expiry never self-heals.
func TestEvaluateTemporaryBanWithoutExpiry(t *testing.T) {
	u := &models.User{
		IsBanned: true,
		BanType:  strPtr(models.BanTypeTemporary),
	}
	d, expired := Evaluate(u, time.Now())
	assert.False(t, d.Allowed)
	assert.False(t, expired)
}

type fakeUserStore struct {
	users      map[uuid.UUID]*models.User
	lookupErr  error
	clearCalls int
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("no such user")
	}
	return u, nil
}

func (f *fakeUserStore) ClearBan(_ context.Context, id uuid.UUID) error {
	f.clearCalls++
	u := f.users[id]
	u.IsBanned = false
	u.BanType = nil
	u.BanExpiresAt = nil
	u.BanReason = nil
	return nil
}

type fakeAuditor struct{ entries []models.AuditLog }

func (f *fakeAuditor) Log(_ context.Context, entry models.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditor) actions() []string {
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

func newTestGuard(store *fakeUserStore) (*Guard, *fakeAuditor) {
	audit := &fakeAuditor{}
	return NewGuard(store, audit, nil, zap.NewNop()), audit
}

// A lapsed temporary ban is cleared on first access and stays cleared: the
// write is persisted, so subsequent reads see an unbanned account.
func TestCheckAccessClearsExpiredBan(t *testing.T) {
	id := uuid.New()
	expires := time.Now().Add(-time.Minute)
	store := &fakeUserStore{users: map[uuid.UUID]*models.User{
		id: {
			ID:           id,
			IsBanned:     true,
			BanType:      strPtr(models.BanTypeTemporary),
			BanExpiresAt: &expires,
			BanReason:    strPtr("spamming offers"),
		},
	}}
	guard, audit := newTestGuard(store)

	d := guard.CheckAccess(context.Background(), id)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, store.clearCalls)
	assert.Contains(t, audit.actions(), "ban_expired_cleared")

	u, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, u.IsBanned)
	assert.Nil(t, u.BanType)

	// Already healed; no second clear.
	d = guard.CheckAccess(context.Background(), id)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, store.clearCalls)
}

func TestCheckAccessDeniesActiveBan(t *testing.T) {
	id := uuid.New()
	store := &fakeUserStore{users: map[uuid.UUID]*models.User{
		id: {
			ID:        id,
			IsBanned:  true,
			BanType:   strPtr(models.BanTypePermanent),
			BanReason: strPtr("fraudulent activity"),
		},
	}}
	guard, _ := newTestGuard(store)

	d := guard.CheckAccess(context.Background(), id)
	assert.False(t, d.Allowed)
	assert.Equal(t, "fraudulent activity", d.Reason)
	assert.Zero(t, store.clearCalls)
}

// Lookup failures allow access but leave an audit trail.
func TestCheckAccessFailsOpen(t *testing.T) {
	store := &fakeUserStore{lookupErr: errors.New("connection refused")}
	guard, audit := newTestGuard(store)

	d := guard.CheckAccess(context.Background(), uuid.New())
	assert.True(t, d.Allowed)
	assert.Contains(t, audit.actions(), "ban_check_failed_open")
}
