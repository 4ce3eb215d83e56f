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

// UsersDueReportReminder returns active in-group members whose personal
// report time falls at the given hour and minute.
func (s *Store) UsersDueReportReminder(ctx context.Context, hour, minute int) ([]models.User, error) {
	var users []models.User
	err := s.DB.SelectContext(ctx, &users, `
		SELECT * FROM users
		WHERE status = 'active' AND is_in_group = true
		  AND report_hour = $1 AND report_minute = $2`, hour, minute)
	if err != nil {
		return nil, fmt.Errorf("users due report reminder: %w", err)
	}
	return users, nil
}

func (s *Store) ReportByUserDate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.ReportRequest, error) {
	var r models.ReportRequest
	err := s.DB.GetContext(ctx, &r, `
		SELECT * FROM report_requests WHERE user_id = $1 AND report_date = $2`, userID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("report by user/date: %w", err)
	}
	return &r, nil
}

func (s *Store) CreateReportRequest(ctx context.Context, r *models.ReportRequest) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO report_requests (id, user_id, report_date, status, requested_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, report_date) DO NOTHING`,
		r.ID, r.UserID, r.ReportDate, r.Status, r.RequestedAt)
	if err != nil {
		return fmt.Errorf("create report request: %w", err)
	}
	return nil
}

func (s *Store) SubmitReport(ctx context.Context, userID uuid.UUID, date time.Time, text string, at time.Time) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE report_requests SET status = 'sent', report_text = $3, submitted_at = $4
		WHERE user_id = $1 AND report_date = $2 AND status = 'pending'`,
		userID, date, text, at)
	if err != nil {
		return fmt.Errorf("submit report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkMissedReports flips pending requests older than the cutoff to missed
// and returns how many rows changed.
func (s *Store) MarkMissedReports(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE report_requests SET status = 'missed'
		WHERE status = 'pending' AND requested_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark missed reports: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
