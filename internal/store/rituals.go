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

func (s *Store) CreateDefinition(ctx context.Context, def *models.RitualDefinition) error {
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO rituals (id, kind, cadence, send_hour, send_minute, weekday, title, body, response_buttons, active, requires_subscription, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		def.ID, def.Kind, def.Cadence, def.SendHour, def.SendMinute, def.Weekday,
		def.Title, def.Body, def.ResponseButtons, def.Active, def.RequiresSubscription, def.SortOrder)
	if err != nil {
		return fmt.Errorf("create ritual: %w", err)
	}
	return nil
}

func (s *Store) DefinitionByKindTitle(ctx context.Context, kind models.RitualKind, title string) (*models.RitualDefinition, error) {
	var def models.RitualDefinition
	err := s.DB.GetContext(ctx, &def, `SELECT * FROM rituals WHERE kind = $1 AND title = $2`, kind, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ritual by kind/title: %w", err)
	}
	return &def, nil
}

func (s *Store) DefinitionByID(ctx context.Context, id uuid.UUID) (*models.RitualDefinition, error) {
	var def models.RitualDefinition
	err := s.DB.GetContext(ctx, &def, `SELECT * FROM rituals WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ritual by id: %w", err)
	}
	return &def, nil
}

func (s *Store) ActiveDefinitions(ctx context.Context) ([]models.RitualDefinition, error) {
	var defs []models.RitualDefinition
	err := s.DB.SelectContext(ctx, &defs, `SELECT * FROM rituals WHERE active = true ORDER BY sort_order, created_at`)
	if err != nil {
		return nil, fmt.Errorf("active rituals: %w", err)
	}
	return defs, nil
}

func (s *Store) SetDefinitionActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE rituals SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set ritual active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RegisterUserRituals creates missing state rows binding the user to every
// active ritual. Existing rows keep their counters and last_sent_at.
func (s *Store) RegisterUserRituals(ctx context.Context, userID uuid.UUID, tzOffset int) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO user_rituals (id, user_id, ritual_id, timezone_offset)
		SELECT gen_random_uuid(), $1, r.id, $2
		FROM rituals r
		WHERE r.active = true
		ON CONFLICT (user_id, ritual_id) DO NOTHING`, userID, tzOffset)
	if err != nil {
		return fmt.Errorf("register user rituals: %w", err)
	}
	return nil
}

// EligibleStates returns every enabled state row for the given ritual whose
// owner is an active, in-group member, joined with the owning user. Time
// based eligibility is decided by the caller.
func (s *Store) EligibleStates(ctx context.Context, ritualID uuid.UUID) ([]models.RitualTarget, error) {
	rows, err := s.DB.QueryxContext(ctx, `
		SELECT
			ur.id AS state_id, ur.user_id, ur.ritual_id, ur.last_sent_at, ur.timezone_offset,
			ur.enabled, ur.total_sent, ur.total_responses, ur.total_completed, ur.total_skipped,
			u.id, u.telegram_id, u.username, u.first_name, u.status, u.is_premium,
			u.subscription_until, u.is_in_group, u.joined_group_at, u.warned_at,
			u.report_hour, u.report_minute, u.created_at
		FROM user_rituals ur
		JOIN users u ON u.id = ur.user_id
		WHERE ur.ritual_id = $1 AND ur.enabled = true
		  AND u.status = 'active' AND u.is_in_group = true`, ritualID)
	if err != nil {
		return nil, fmt.Errorf("eligible states: %w", err)
	}
	defer rows.Close()

	var targets []models.RitualTarget
	for rows.Next() {
		var t models.RitualTarget
		err := rows.Scan(
			&t.State.ID, &t.State.UserID, &t.State.RitualID, &t.State.LastSentAt, &t.State.TimezoneOffset,
			&t.State.Enabled, &t.State.TotalSent, &t.State.TotalResponses, &t.State.TotalCompleted, &t.State.TotalSkipped,
			&t.User.ID, &t.User.TelegramID, &t.User.Username, &t.User.FirstName, &t.User.Status, &t.User.IsPremium,
			&t.User.SubscriptionUntil, &t.User.IsInGroup, &t.User.JoinedGroupAt, &t.User.WarnedAt,
			&t.User.ReportHour, &t.User.ReportMinute, &t.User.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan eligible state: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (s *Store) StateByID(ctx context.Context, stateID uuid.UUID) (*models.UserRitualState, error) {
	var st models.UserRitualState
	err := s.DB.GetContext(ctx, &st, `SELECT * FROM user_rituals WHERE id = $1`, stateID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("state by id: %w", err)
	}
	return &st, nil
}

func (s *Store) SetStateEnabled(ctx context.Context, stateID uuid.UUID, enabled bool) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE user_rituals SET enabled = $2 WHERE id = $1`, stateID, enabled)
	if err != nil {
		return fmt.Errorf("set state enabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkSent(ctx context.Context, stateID uuid.UUID, at time.Time) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE user_rituals SET last_sent_at = $2, total_sent = total_sent + 1
		WHERE id = $1`, stateID, at)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordResponse appends the response row and bumps the state counters in
// one transaction.
func (s *Store) RecordResponse(ctx context.Context, resp *models.RitualResponse) error {
	if resp.ID == uuid.Nil {
		resp.ID = uuid.New()
	}
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record response: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ritual_responses (id, user_ritual_id, ritual_id, outcome, response_text, button_clicked, sent_at, responded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		resp.ID, resp.UserRitualID, resp.RitualID, resp.Outcome,
		resp.ResponseText, resp.ButtonClicked, resp.SentAt, resp.RespondedAt)
	if err != nil {
		return fmt.Errorf("record response: insert: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE user_rituals SET
			total_responses = total_responses + 1,
			total_completed = total_completed + CASE WHEN $2 = 'completed' THEN 1 ELSE 0 END,
			total_skipped = total_skipped + CASE WHEN $2 = 'skipped' THEN 1 ELSE 0 END
		WHERE id = $1`, resp.UserRitualID, string(resp.Outcome))
	if err != nil {
		return fmt.Errorf("record response: counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// RitualStats is the admin projection over one ritual's engagement.
type RitualStats struct {
	RitualID       uuid.UUID `db:"ritual_id" json:"ritual_id"`
	Title          string    `db:"title" json:"title"`
	Subscribers    int       `db:"subscribers" json:"subscribers"`
	TotalSent      int       `db:"total_sent" json:"total_sent"`
	TotalResponses int       `db:"total_responses" json:"total_responses"`
	TotalCompleted int       `db:"total_completed" json:"total_completed"`
	TotalSkipped   int       `db:"total_skipped" json:"total_skipped"`
}

func (s *Store) RitualStatsAll(ctx context.Context) ([]RitualStats, error) {
	var stats []RitualStats
	err := s.DB.SelectContext(ctx, &stats, `
		SELECT r.id AS ritual_id, r.title,
			COUNT(ur.id) AS subscribers,
			COALESCE(SUM(ur.total_sent), 0) AS total_sent,
			COALESCE(SUM(ur.total_responses), 0) AS total_responses,
			COALESCE(SUM(ur.total_completed), 0) AS total_completed,
			COALESCE(SUM(ur.total_skipped), 0) AS total_skipped
		FROM rituals r
		LEFT JOIN user_rituals ur ON ur.ritual_id = r.id
		GROUP BY r.id, r.title
		ORDER BY r.sort_order, r.title`)
	if err != nil {
		return nil, fmt.Errorf("ritual stats: %w", err)
	}
	return stats, nil
}
