package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clubbot/internal/models"
)

func (s *Store) InsertActivity(ctx context.Context, a *models.ChatActivity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO chat_activities (id, user_id, chat_id, message_id, activity_type, message_length, activity_date, activity_hour, is_reply, is_forward)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, a.ChatID, a.MessageID, a.Type, a.MessageLength,
		a.ActivityDate, a.ActivityHour, a.IsReply, a.IsForward)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// RawStats aggregates one user's raw chat events over [from, to].
type RawStats struct {
	TotalMessages  int           `db:"total_messages"`
	TextMessages   int           `db:"text_messages"`
	MediaMessages  int           `db:"media_messages"`
	TotalChars     int           `db:"total_characters"`
	RepliesSent    int           `db:"replies_sent"`
	ForwardsSent   int           `db:"forwards_sent"`
	MostActiveHour sql.NullInt64 `db:"most_active_hour"`
}

func (s *Store) RawStatsFor(ctx context.Context, userID uuid.UUID, from, to time.Time) (*RawStats, error) {
	var st RawStats
	err := s.DB.GetContext(ctx, &st, `
		SELECT
			COUNT(*) AS total_messages,
			COUNT(*) FILTER (WHERE activity_type = 'message') AS text_messages,
			COUNT(*) FILTER (WHERE activity_type IN ('photo', 'video', 'voice', 'document', 'sticker')) AS media_messages,
			COALESCE(SUM(message_length), 0) AS total_characters,
			COUNT(*) FILTER (WHERE is_reply) AS replies_sent,
			COUNT(*) FILTER (WHERE is_forward) AS forwards_sent,
			MODE() WITHIN GROUP (ORDER BY activity_hour) AS most_active_hour
		FROM chat_activities
		WHERE user_id = $1 AND activity_date >= $2 AND activity_date <= $3`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("raw stats: %w", err)
	}
	return &st, nil
}

// TypeCounts returns per-type event counts for one user over [from, to].
func (s *Store) TypeCounts(ctx context.Context, userID uuid.UUID, from, to time.Time) (map[models.ActivityType]int, error) {
	rows, err := s.DB.QueryxContext(ctx, `
		SELECT activity_type, COUNT(*)
		FROM chat_activities
		WHERE user_id = $1 AND activity_date >= $2 AND activity_date <= $3
		GROUP BY activity_type`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("type counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ActivityType]int)
	for rows.Next() {
		var t models.ActivityType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// ActiveUserIDs lists users with at least one event over [from, to].
func (s *Store) ActiveUserIDs(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.DB.SelectContext(ctx, &ids, `
		SELECT DISTINCT user_id FROM chat_activities
		WHERE activity_date >= $1 AND activity_date <= $2`, from, to)
	if err != nil {
		return nil, fmt.Errorf("active user ids: %w", err)
	}
	return ids, nil
}

func (s *Store) UpsertUserActivity(ctx context.Context, a *models.UserActivity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO user_activities (id, user_id, period_type, period_date, total_messages, text_messages, media_messages, total_characters, replies_sent, forwards_sent, most_active_hour, activity_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, period_type, period_date) DO UPDATE SET
			total_messages = EXCLUDED.total_messages,
			text_messages = EXCLUDED.text_messages,
			media_messages = EXCLUDED.media_messages,
			total_characters = EXCLUDED.total_characters,
			replies_sent = EXCLUDED.replies_sent,
			forwards_sent = EXCLUDED.forwards_sent,
			most_active_hour = EXCLUDED.most_active_hour,
			activity_score = EXCLUDED.activity_score`,
		a.ID, a.UserID, a.PeriodType, a.PeriodDate, a.TotalMessages, a.TextMessages,
		a.MediaMessages, a.TotalChars, a.RepliesSent, a.ForwardsSent, a.MostActiveHour, a.ActivityScore)
	if err != nil {
		return fmt.Errorf("upsert user activity: %w", err)
	}
	return nil
}

// TopUsersForPeriod returns the leaderboard for one period, highest score
// first, users without messages excluded.
func (s *Store) TopUsersForPeriod(ctx context.Context, period models.Period, periodDate time.Time, limit int) ([]models.TopUser, error) {
	rows, err := s.DB.QueryxContext(ctx, `
		SELECT ua.user_id, u.telegram_id, u.username, u.first_name, ua.total_messages, ua.activity_score
		FROM user_activities ua
		JOIN users u ON u.id = ua.user_id
		WHERE ua.period_type = $1 AND ua.period_date = $2 AND ua.total_messages > 0
		ORDER BY ua.activity_score DESC, ua.total_messages DESC
		LIMIT $3`, period, periodDate, limit)
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	defer rows.Close()

	var top []models.TopUser
	rank := 0
	for rows.Next() {
		var t models.TopUser
		err := rows.Scan(&t.UserID, &t.TelegramID, &t.Username, &t.FirstName, &t.TotalMessages, &t.ActivityScore)
		if err != nil {
			return nil, fmt.Errorf("scan top user: %w", err)
		}
		rank++
		t.Rank = rank
		top = append(top, t)
	}
	return top, rows.Err()
}

// ConnectingUsers returns quiet members of the period, people with some
// messages but fewer than the threshold, skipping those already ranked.
func (s *Store) ConnectingUsers(ctx context.Context, period models.Period, periodDate time.Time, maxMessages, limit int, exclude []uuid.UUID) ([]models.TopUser, error) {
	skip := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	rows, err := s.DB.QueryxContext(ctx, `
		SELECT ua.user_id, u.telegram_id, u.username, u.first_name, ua.total_messages, ua.activity_score
		FROM user_activities ua
		JOIN users u ON u.id = ua.user_id
		WHERE ua.period_type = $1 AND ua.period_date = $2
		  AND ua.total_messages > 0 AND ua.total_messages < $3
		ORDER BY ua.total_messages ASC`, period, periodDate, maxMessages)
	if err != nil {
		return nil, fmt.Errorf("connecting users: %w", err)
	}
	defer rows.Close()

	var out []models.TopUser
	for rows.Next() {
		var t models.TopUser
		err := rows.Scan(&t.UserID, &t.TelegramID, &t.Username, &t.FirstName, &t.TotalMessages, &t.ActivityScore)
		if err != nil {
			return nil, fmt.Errorf("scan connecting user: %w", err)
		}
		if skip[t.UserID] {
			continue
		}
		out = append(out, t)
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

func (s *Store) UpdateRank(ctx context.Context, userID uuid.UUID, period models.Period, periodDate time.Time, rank int) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE user_activities SET period_rank = $4
		WHERE user_id = $1 AND period_type = $2 AND period_date = $3`,
		userID, period, periodDate, rank)
	if err != nil {
		return fmt.Errorf("update rank: %w", err)
	}
	return nil
}

func (s *Store) InsertWeeklyReport(ctx context.Context, r *models.WeeklyReport) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO weekly_reports (id, week_start, week_end, top_users, connecting_users, participants, active_count, activity_percent, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (week_start) DO UPDATE SET
			week_end = EXCLUDED.week_end,
			top_users = EXCLUDED.top_users,
			connecting_users = EXCLUDED.connecting_users,
			participants = EXCLUDED.participants,
			active_count = EXCLUDED.active_count,
			activity_percent = EXCLUDED.activity_percent,
			message = EXCLUDED.message`,
		r.ID, r.WeekStart, r.WeekEnd, r.TopUsers, r.ConnectingUsers,
		r.Participants, r.ActiveCount, r.ActivityPercent, r.Message)
	if err != nil {
		return fmt.Errorf("insert weekly report: %w", err)
	}
	return nil
}

func (s *Store) UnpublishedReports(ctx context.Context) ([]models.WeeklyReport, error) {
	var reports []models.WeeklyReport
	err := s.DB.SelectContext(ctx, &reports, `
		SELECT * FROM weekly_reports WHERE is_published = false ORDER BY week_start`)
	if err != nil {
		return nil, fmt.Errorf("unpublished reports: %w", err)
	}
	return reports, nil
}

func (s *Store) MarkReportPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE weekly_reports SET is_published = true, published_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark report published: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ActivityForDate(ctx context.Context, period models.Period, periodDate time.Time) ([]models.UserActivity, error) {
	var acts []models.UserActivity
	err := s.DB.SelectContext(ctx, &acts, `
		SELECT * FROM user_activities
		WHERE period_type = $1 AND period_date = $2
		ORDER BY activity_score DESC`, period, periodDate)
	if err != nil {
		return nil, fmt.Errorf("activity for date: %w", err)
	}
	return acts, nil
}
