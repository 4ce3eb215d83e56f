// Package report drives the daily free-text check-in: a reminder at each
// member's chosen time, the submission, and the missed sweep.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clubbot/internal/crypto"
	"clubbot/internal/messenger"
	"clubbot/internal/models"
	"clubbot/internal/store"
)

const reminderText = "📝 Время ежедневного отчёта. Напиши, что сделал сегодня для движения к цели."

const missedCutoff = 24 * time.Hour

type Store interface {
	UsersDueReportReminder(ctx context.Context, hour, minute int) ([]models.User, error)
	ReportByUserDate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.ReportRequest, error)
	CreateReportRequest(ctx context.Context, r *models.ReportRequest) error
	SubmitReport(ctx context.Context, userID uuid.UUID, date time.Time, text string, at time.Time) error
	MarkMissedReports(ctx context.Context, cutoff time.Time) (int64, error)
}

type Service struct {
	store     Store
	msgr      messenger.Messenger
	crypt     *crypto.Service
	logger    *zap.Logger
	refOffset int
}

func NewService(s Store, m messenger.Messenger, crypt *crypto.Service, logger *zap.Logger, refOffset int) *Service {
	return &Service{store: s, msgr: m, crypt: crypt, logger: logger, refOffset: refOffset}
}

func (s *Service) refLocal(now time.Time) time.Time {
	return now.UTC().Add(time.Duration(s.refOffset) * time.Hour)
}

func (s *Service) refDate(now time.Time) time.Time {
	local := s.refLocal(now)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// ReminderTick asks members whose report time matches the current minute
// for their daily report and opens a pending request for the day.
func (s *Service) ReminderTick(ctx context.Context, now time.Time) error {
	local := s.refLocal(now)
	users, err := s.store.UsersDueReportReminder(ctx, local.Hour(), local.Minute())
	if err != nil {
		return fmt.Errorf("report reminders: %w", err)
	}
	date := s.refDate(now)
	for i := range users {
		u := &users[i]
		if _, err := s.store.ReportByUserDate(ctx, u.ID, date); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("report reminders: %w", err)
		}
		req := &models.ReportRequest{
			UserID:      u.ID,
			ReportDate:  date,
			Status:      models.ReportPending,
			RequestedAt: now,
		}
		if err := s.store.CreateReportRequest(ctx, req); err != nil {
			return fmt.Errorf("report reminders: %w", err)
		}
		if err := s.msgr.SendMessage(ctx, u.TelegramID, reminderText); err != nil {
			s.logger.Warn("report reminder failed",
				zap.Int64("telegram_id", u.TelegramID),
				zap.Error(err))
		}
	}
	return nil
}

// Submit records the member's report for today. A report sent without a
// prior reminder still counts; the request is opened on the fly.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, text string, now time.Time) error {
	date := s.refDate(now)
	stored, err := s.crypt.Encrypt(text)
	if err != nil {
		return fmt.Errorf("submit report: %w", err)
	}

	err = s.store.SubmitReport(ctx, userID, date, stored, now)
	if errors.Is(err, store.ErrNotFound) {
		req := &models.ReportRequest{
			UserID:      userID,
			ReportDate:  date,
			Status:      models.ReportPending,
			RequestedAt: now,
		}
		if err := s.store.CreateReportRequest(ctx, req); err != nil {
			return fmt.Errorf("submit report: %w", err)
		}
		err = s.store.SubmitReport(ctx, userID, date, stored, now)
	}
	if err != nil {
		return fmt.Errorf("submit report: %w", err)
	}
	return nil
}

// MarkMissed closes requests that stayed pending for a full day.
func (s *Service) MarkMissed(ctx context.Context, now time.Time) error {
	n, err := s.store.MarkMissedReports(ctx, now.Add(-missedCutoff))
	if err != nil {
		return fmt.Errorf("mark missed: %w", err)
	}
	if n > 0 {
		s.logger.Info("reports marked missed", zap.Int64("count", n))
	}
	return nil
}
