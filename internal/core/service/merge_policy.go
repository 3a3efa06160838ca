package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// MergePolicy folds a guest session cart into the user's persistent cart at login.
// A product present in both keeps the larger quantity.
type MergePolicy struct {
	session    port.CartRepository
	persistent port.CartRepository
	log        *zap.Logger
}

func NewMergePolicy(session, persistent port.CartRepository, log *zap.Logger) *MergePolicy {
	return &MergePolicy{session: session, persistent: persistent, log: log}
}

func (m *MergePolicy) HandleLogin(ctx context.Context, event domain.LoginEvent) error {
	return m.Merge(ctx, event.SessionID, event.UserID)
}

// Merge stops at the first failing line and leaves the session cart in place, so the
// whole merge can be retried.
func (m *MergePolicy) Merge(ctx context.Context, sessionID string, userID int64) error {
	from := domain.SessionOwner(sessionID)
	to := domain.UserOwner(userID)
	if !from.Valid() || !to.Valid() {
		return ErrInvalidOwner
	}

	lines, err := m.session.Lines(ctx, from)
	if err != nil {
		return fmt.Errorf("load session cart: %w", err)
	}

	for _, l := range lines {
		if err := m.persistent.MergeMax(ctx, to, l.ProductID, l.Quantity); err != nil {
			return fmt.Errorf("merge product %d: %w", l.ProductID, err)
		}
	}

	if err := m.session.Clear(ctx, from); err != nil {
		return fmt.Errorf("clear session cart: %w", err)
	}

	m.log.Info("merged session cart",
		zap.String("session_id", sessionID),
		zap.Int64("user_id", userID),
		zap.Int("lines", len(lines)),
	)
	return nil
}
