package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clubbot/internal/models"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (id, telegram_id, username, first_name, status, is_premium, subscription_until, is_in_group, report_hour, report_minute)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.TelegramID, u.Username, u.FirstName, u.Status, u.IsPremium,
		u.SubscriptionUntil, u.IsInGroup, u.ReportHour, u.ReportMinute)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.DB.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user by id: %w", err)
	}
	return &u, nil
}

func (s *Store) UserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	err := s.DB.GetContext(ctx, &u, `SELECT * FROM users WHERE telegram_id = $1`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user by telegram id: %w", err)
	}
	return &u, nil
}

// UsersInGroup returns everyone currently inside the group, whatever their
// subscription state. The compliance sweep decides who stays.
func (s *Store) UsersInGroup(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.DB.SelectContext(ctx, &users, `SELECT * FROM users WHERE is_in_group = true ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("users in group: %w", err)
	}
	return users, nil
}

func (s *Store) CountInGroup(ctx context.Context) (int, error) {
	var n int
	err := s.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE is_in_group = true`)
	if err != nil {
		return 0, fmt.Errorf("count in group: %w", err)
	}
	return n, nil
}

func (s *Store) SetWarnedAt(ctx context.Context, userID uuid.UUID, at time.Time) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE users SET warned_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("set warned_at: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ClearWarnedAt(ctx context.Context, userID uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE users SET warned_at = NULL WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear warned_at: %w", err)
	}
	return nil
}

// MarkKicked records a removal from the group. The warning timestamp is
// cleared so a later re-entry starts from a clean slate.
func (s *Store) MarkKicked(ctx context.Context, userID uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE users SET is_in_group = false, status = 'pending', warned_at = NULL
		WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("mark kicked: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkRejoined(ctx context.Context, userID uuid.UUID, at time.Time) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE users SET is_in_group = true, status = 'active', warned_at = NULL, joined_group_at = $2
		WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("mark rejoined: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UsersWithSubscriptionEnding returns active members whose subscription
// expires within the window, for renewal reminders.
func (s *Store) UsersWithSubscriptionEnding(ctx context.Context, from, until time.Time) ([]models.User, error) {
	var users []models.User
	err := s.DB.SelectContext(ctx, &users, `
		SELECT * FROM users
		WHERE status = 'active' AND is_premium = true
		  AND subscription_until IS NOT NULL
		  AND subscription_until > $1 AND subscription_until <= $2
		ORDER BY subscription_until`, from, until)
	if err != nil {
		return nil, fmt.Errorf("users with subscription ending: %w", err)
	}
	return users, nil
}

// SubscriptionHealth is a small admin projection over the member base.
type SubscriptionHealth struct {
	Total    int `db:"total" json:"total"`
	Active   int `db:"active" json:"active"`
	InGroup  int `db:"in_group" json:"in_group"`
	Warned   int `db:"warned" json:"warned"`
	Expiring int `db:"expiring" json:"expiring"`
}

func (s *Store) SubscriptionHealth(ctx context.Context, now time.Time) (*SubscriptionHealth, error) {
	var h SubscriptionHealth
	err := s.DB.GetContext(ctx, &h, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'active') AS active,
			COUNT(*) FILTER (WHERE is_in_group) AS in_group,
			COUNT(*) FILTER (WHERE warned_at IS NOT NULL) AS warned,
			COUNT(*) FILTER (WHERE subscription_until IS NOT NULL AND subscription_until <= $1 + INTERVAL '3 days' AND subscription_until > $1) AS expiring
		FROM users`, now)
	if err != nil {
		return nil, fmt.Errorf("subscription health: %w", err)
	}
	return &h, nil
}

func (s *Store) SetReportTime(ctx context.Context, userID uuid.UUID, hour, minute int) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE users SET report_hour = $2, report_minute = $3 WHERE id = $1`,
		userID, hour, minute)
	if err != nil {
		return fmt.Errorf("set report time: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
