package ritual

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clubbot/internal/messenger"
	"clubbot/internal/models"
)

const sendConcurrency = 8

// DispatchStore is the slice of storage the dispatcher needs.
type DispatchStore interface {
	ActiveDefinitions(ctx context.Context) ([]models.RitualDefinition, error)
	EligibleStates(ctx context.Context, ritualID uuid.UUID) ([]models.RitualTarget, error)
	MarkSent(ctx context.Context, stateID uuid.UUID, at time.Time) error
}

// Engine decides, every tick, which members are due a ritual prompt and
// delivers it. A state row is due once its user-local clock has passed the
// ritual's send time for the current period and the last dispatch happened
// in an earlier period, so a missed tick is caught up on the next one.
type Engine struct {
	store  DispatchStore
	msgr   messenger.Messenger
	logger *zap.Logger
}

func NewEngine(s DispatchStore, m messenger.Messenger, logger *zap.Logger) *Engine {
	return &Engine{store: s, msgr: m, logger: logger}
}

// Tick runs one dispatch round at the given instant. Send failures are
// logged per user and never block the rest of the round.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	defs, err := e.store.ActiveDefinitions(ctx)
	if err != nil {
		return err
	}
	for i := range defs {
		if err := e.dispatchRitual(ctx, &defs[i], now); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) dispatchRitual(ctx context.Context, def *models.RitualDefinition, now time.Time) error {
	targets, err := e.store.EligibleStates(ctx, def.ID)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sendConcurrency)
	for _, t := range targets {
		t := t
		if def.RequiresSubscription && !hasSubscription(&t.User, now) {
			continue
		}
		if !shouldSend(def, &t.State, now) {
			continue
		}
		g.Go(func() error {
			e.sendTo(ctx, def, &t, now)
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) sendTo(ctx context.Context, def *models.RitualDefinition, t *models.RitualTarget, now time.Time) {
	msg, err := RenderMessage(def, t.State.ID)
	if err != nil {
		e.logger.Error("render ritual", zap.String("kind", string(def.Kind)), zap.Error(err))
		return
	}
	if err := e.msgr.SendWithButtons(ctx, t.User.TelegramID, msg.Text(), msg.Buttons); err != nil {
		e.logger.Warn("ritual send failed",
			zap.String("kind", string(def.Kind)),
			zap.Int64("telegram_id", t.User.TelegramID),
			zap.Error(err))
		return
	}
	// Only a confirmed delivery advances last_sent_at; a failed send is
	// retried on the next tick.
	if err := e.store.MarkSent(ctx, t.State.ID, now); err != nil {
		e.logger.Error("mark sent",
			zap.String("state_id", t.State.ID.String()),
			zap.Error(err))
	}
}

func hasSubscription(u *models.User, now time.Time) bool {
	return u.IsPremium && u.SubscriptionUntil != nil && u.SubscriptionUntil.After(now)
}

// userLocal shifts the instant into the member's wall clock. Offsets are
// whole hours from UTC.
func userLocal(now time.Time, tzOffset int) time.Time {
	return now.UTC().Add(time.Duration(tzOffset) * time.Hour)
}

func weekdayMon0(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time) time.Time {
	return startOfDay(t.AddDate(0, 0, -weekdayMon0(t)))
}

func shouldSend(def *models.RitualDefinition, st *models.UserRitualState, now time.Time) bool {
	local := userLocal(now, st.TimezoneOffset)
	due := time.Date(local.Year(), local.Month(), local.Day(),
		def.SendHour, def.SendMinute, 0, 0, local.Location())
	if local.Before(due) {
		return false
	}
	if def.Cadence == models.CadenceWeekly {
		if def.Weekday == nil || weekdayMon0(local) != *def.Weekday {
			return false
		}
	}
	if st.LastSentAt == nil {
		return true
	}
	last := userLocal(*st.LastSentAt, st.TimezoneOffset)
	switch def.Cadence {
	case models.CadenceDaily:
		return last.Before(startOfDay(local))
	case models.CadenceWeekly:
		return last.Before(startOfWeek(local))
	case models.CadenceMonthly:
		return last.Year() != local.Year() || last.Month() != local.Month()
	}
	return false
}
