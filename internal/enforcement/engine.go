// Package enforcement keeps the paid group membership honest: members whose
// subscription lapsed get a warning, a grace window to renew, then removal.
package enforcement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clubbot/internal/messenger"
	"clubbot/internal/models"
)

const DefaultGrace = 30 * time.Minute

const (
	warningText = "⚠️ Твоя подписка истекла. Продли её в течение 30 минут, иначе доступ к группе будет закрыт."
	removedText = "Доступ к группе закрыт: подписка не была продлена. Продли подписку, чтобы вернуться в братство."
	renewalText = "🔔 Твоя подписка заканчивается через несколько дней. Продли её заранее, чтобы не потерять доступ."
)

type Store interface {
	UsersInGroup(ctx context.Context) ([]models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetWarnedAt(ctx context.Context, userID uuid.UUID, at time.Time) error
	ClearWarnedAt(ctx context.Context, userID uuid.UUID) error
	MarkKicked(ctx context.Context, userID uuid.UUID) error
	MarkRejoined(ctx context.Context, userID uuid.UUID, at time.Time) error
	UsersWithSubscriptionEnding(ctx context.Context, from, until time.Time) ([]models.User, error)
}

// Engine walks the group on a timer instead of arming a timer per warned
// user, so warnings survive restarts. The warned_at column is the only
// state it keeps.
type Engine struct {
	store   Store
	msgr    messenger.Messenger
	logger  *zap.Logger
	groupID int64
	grace   time.Duration
}

func NewEngine(s Store, m messenger.Messenger, logger *zap.Logger, groupID int64, grace time.Duration) *Engine {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Engine{store: s, msgr: m, logger: logger, groupID: groupID, grace: grace}
}

func compliant(u *models.User, now time.Time) bool {
	return u.Status == models.StatusActive &&
		u.IsPremium &&
		u.SubscriptionUntil != nil &&
		u.SubscriptionUntil.After(now)
}

// Sweep checks every group member once. Per-user failures are logged and
// the sweep moves on.
func (e *Engine) Sweep(ctx context.Context, now time.Time) error {
	users, err := e.store.UsersInGroup(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	for i := range users {
		if err := e.checkUser(ctx, &users[i], now); err != nil {
			e.logger.Error("compliance check failed",
				zap.Int64("telegram_id", users[i].TelegramID),
				zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) checkUser(ctx context.Context, u *models.User, now time.Time) error {
	if compliant(u, now) {
		if u.WarnedAt != nil {
			e.logger.Info("warning lifted", zap.Int64("telegram_id", u.TelegramID))
			return e.store.ClearWarnedAt(ctx, u.ID)
		}
		return nil
	}

	if u.WarnedAt == nil {
		// The warning is recorded even when delivery fails, so the grace
		// clock starts from the first sweep that saw the lapse.
		if err := e.msgr.SendMessage(ctx, u.TelegramID, warningText); err != nil {
			e.logger.Warn("warning delivery failed",
				zap.Int64("telegram_id", u.TelegramID),
				zap.Error(err))
		}
		e.logger.Info("member warned", zap.Int64("telegram_id", u.TelegramID))
		return e.store.SetWarnedAt(ctx, u.ID, now)
	}

	if now.Before(u.WarnedAt.Add(e.grace)) {
		return nil
	}

	// Grace expired. Re-read before acting: the subscription may have been
	// renewed since this sweep loaded the user list.
	fresh, err := e.store.UserByID(ctx, u.ID)
	if err != nil {
		return err
	}
	if compliant(fresh, now) {
		return e.store.ClearWarnedAt(ctx, u.ID)
	}

	if err := e.msgr.RemoveFromGroup(ctx, e.groupID, u.TelegramID); err != nil {
		return fmt.Errorf("remove from group: %w", err)
	}
	if err := e.store.MarkKicked(ctx, u.ID); err != nil {
		return err
	}
	e.logger.Info("member removed", zap.Int64("telegram_id", u.TelegramID))
	if err := e.msgr.SendMessage(ctx, u.TelegramID, removedText); err != nil {
		e.logger.Warn("removal notice failed",
			zap.Int64("telegram_id", u.TelegramID),
			zap.Error(err))
	}
	return nil
}

// RestoreUser lifts a previous removal and records the re-entry.
func (e *Engine) RestoreUser(ctx context.Context, userID uuid.UUID, now time.Time) error {
	u, err := e.store.UserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("restore user: %w", err)
	}
	if err := e.msgr.RestoreToGroup(ctx, e.groupID, u.TelegramID); err != nil {
		return fmt.Errorf("restore user: %w", err)
	}
	if err := e.store.MarkRejoined(ctx, userID, now); err != nil {
		return fmt.Errorf("restore user: %w", err)
	}
	e.logger.Info("member restored", zap.Int64("telegram_id", u.TelegramID))
	return nil
}

// SendRenewalReminders nudges members whose subscription ends within the
// next three days.
func (e *Engine) SendRenewalReminders(ctx context.Context, now time.Time) error {
	users, err := e.store.UsersWithSubscriptionEnding(ctx, now, now.Add(72*time.Hour))
	if err != nil {
		return fmt.Errorf("renewal reminders: %w", err)
	}
	for i := range users {
		if err := e.msgr.SendMessage(ctx, users[i].TelegramID, renewalText); err != nil {
			e.logger.Warn("renewal reminder failed",
				zap.Int64("telegram_id", users[i].TelegramID),
				zap.Error(err))
		}
	}
	return nil
}
