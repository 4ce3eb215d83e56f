// Package activity turns raw chat events into per-period summaries, a
// score per member and the weekly group report.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clubbot/internal/messenger"
	"clubbot/internal/models"
	"clubbot/internal/store"
)

const (
	topUserLimit        = 3
	connectingLimit     = 3
	connectingThreshold = 10
)

// typeWeights holds the per-type bonus. Types missing from the table count
// as 1.
var typeWeights = map[models.ActivityType]int{
	models.ActivityMessage:  1,
	models.ActivityPhoto:    2,
	models.ActivityVideo:    3,
	models.ActivityVoice:    3,
	models.ActivityDocument: 2,
	models.ActivitySticker:  1,
	models.ActivityPoll:     5,
}

// Score ranks a member's period. Every message counts once, length adds a
// point per hundred characters, replies count double, and every event type
// adds its bonus on top.
func Score(totalMessages, totalChars, replies int, counts map[models.ActivityType]int) int {
	score := totalMessages + totalChars/100 + replies*2
	for typ, n := range counts {
		w, ok := typeWeights[typ]
		if !ok {
			w = 1
		}
		score += n * w
	}
	return score
}

type Store interface {
	ActiveUserIDs(ctx context.Context, from, to time.Time) ([]uuid.UUID, error)
	RawStatsFor(ctx context.Context, userID uuid.UUID, from, to time.Time) (*store.RawStats, error)
	TypeCounts(ctx context.Context, userID uuid.UUID, from, to time.Time) (map[models.ActivityType]int, error)
	UpsertUserActivity(ctx context.Context, a *models.UserActivity) error
	TopUsersForPeriod(ctx context.Context, period models.Period, periodDate time.Time, limit int) ([]models.TopUser, error)
	ConnectingUsers(ctx context.Context, period models.Period, periodDate time.Time, maxMessages, limit int, exclude []uuid.UUID) ([]models.TopUser, error)
	UpdateRank(ctx context.Context, userID uuid.UUID, period models.Period, periodDate time.Time, rank int) error
	InsertWeeklyReport(ctx context.Context, r *models.WeeklyReport) error
	UnpublishedReports(ctx context.Context) ([]models.WeeklyReport, error)
	MarkReportPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	CountInGroup(ctx context.Context) (int, error)
}

type Aggregator struct {
	store     Store
	msgr      messenger.Messenger
	logger    *zap.Logger
	groupID   int64
	refOffset int
}

func NewAggregator(s Store, m messenger.Messenger, logger *zap.Logger, groupID int64, refOffset int) *Aggregator {
	return &Aggregator{store: s, msgr: m, logger: logger, groupID: groupID, refOffset: refOffset}
}

// refDate is the calendar date on the club's reference clock.
func (a *Aggregator) refDate(now time.Time) time.Time {
	local := now.UTC().Add(time.Duration(a.refOffset) * time.Hour)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func mondayOf(date time.Time) time.Time {
	back := (int(date.Weekday()) + 6) % 7
	return date.AddDate(0, 0, -back)
}

func (a *Aggregator) rollup(ctx context.Context, period models.Period, periodDate, from, to time.Time) error {
	ids, err := a.store.ActiveUserIDs(ctx, from, to)
	if err != nil {
		return err
	}
	for _, id := range ids {
		raw, err := a.store.RawStatsFor(ctx, id, from, to)
		if err != nil {
			return err
		}
		counts, err := a.store.TypeCounts(ctx, id, from, to)
		if err != nil {
			return err
		}
		ua := &models.UserActivity{
			UserID:        id,
			PeriodType:    period,
			PeriodDate:    periodDate,
			TotalMessages: raw.TotalMessages,
			TextMessages:  raw.TextMessages,
			MediaMessages: raw.MediaMessages,
			TotalChars:    raw.TotalChars,
			RepliesSent:   raw.RepliesSent,
			ForwardsSent:  raw.ForwardsSent,
			ActivityScore: Score(raw.TotalMessages, raw.TotalChars, raw.RepliesSent, counts),
		}
		if raw.MostActiveHour.Valid {
			hour := int(raw.MostActiveHour.Int64)
			ua.MostActiveHour = &hour
		}
		if err := a.store.UpsertUserActivity(ctx, ua); err != nil {
			return err
		}
	}
	return nil
}

// ProcessDaily rolls up yesterday's raw events into daily summaries.
func (a *Aggregator) ProcessDaily(ctx context.Context, now time.Time) error {
	day := a.refDate(now).AddDate(0, 0, -1)
	if err := a.rollup(ctx, models.PeriodDaily, day, day, day); err != nil {
		return fmt.Errorf("daily rollup: %w", err)
	}
	return nil
}

// BuildWeeklyReport rolls up the current week and stores an unpublished
// report for it. Safe to rerun; the latest run wins.
func (a *Aggregator) BuildWeeklyReport(ctx context.Context, now time.Time) error {
	weekStart := mondayOf(a.refDate(now))
	weekEnd := weekStart.AddDate(0, 0, 6)

	if err := a.rollup(ctx, models.PeriodWeekly, weekStart, weekStart, weekEnd); err != nil {
		return fmt.Errorf("weekly rollup: %w", err)
	}

	top, err := a.store.TopUsersForPeriod(ctx, models.PeriodWeekly, weekStart, topUserLimit)
	if err != nil {
		return fmt.Errorf("weekly report: %w", err)
	}
	exclude := make([]uuid.UUID, 0, len(top))
	for _, t := range top {
		exclude = append(exclude, t.UserID)
		if err := a.store.UpdateRank(ctx, t.UserID, models.PeriodWeekly, weekStart, t.Rank); err != nil {
			return fmt.Errorf("weekly report: %w", err)
		}
	}
	connecting, err := a.store.ConnectingUsers(ctx, models.PeriodWeekly, weekStart, connectingThreshold, connectingLimit, exclude)
	if err != nil {
		return fmt.Errorf("weekly report: %w", err)
	}

	ids, err := a.store.ActiveUserIDs(ctx, weekStart, weekEnd)
	if err != nil {
		return fmt.Errorf("weekly report: %w", err)
	}
	groupSize, err := a.store.CountInGroup(ctx)
	if err != nil {
		return fmt.Errorf("weekly report: %w", err)
	}
	percent := 0
	if groupSize > 0 {
		percent = len(ids) * 100 / groupSize
	}

	topJSON, err := json.Marshal(top)
	if err != nil {
		return fmt.Errorf("weekly report: %w", err)
	}
	connJSON, err := json.Marshal(connecting)
	if err != nil {
		return fmt.Errorf("weekly report: %w", err)
	}

	report := &models.WeeklyReport{
		WeekStart:       weekStart,
		WeekEnd:         weekEnd,
		TopUsers:        string(topJSON),
		ConnectingUsers: string(connJSON),
		Participants:    len(ids),
		ActiveCount:     groupSize,
		ActivityPercent: percent,
		Message:         formatWeeklyReport(weekStart, weekEnd, top, connecting, len(ids), percent),
	}
	if err := a.store.InsertWeeklyReport(ctx, report); err != nil {
		return fmt.Errorf("weekly report: %w", err)
	}
	a.logger.Info("weekly report built",
		zap.Time("week_start", weekStart),
		zap.Int("participants", len(ids)))
	return nil
}

// PublishWeeklyReports posts every unpublished report to the group.
func (a *Aggregator) PublishWeeklyReports(ctx context.Context, now time.Time) error {
	reports, err := a.store.UnpublishedReports(ctx)
	if err != nil {
		return fmt.Errorf("publish reports: %w", err)
	}
	for _, r := range reports {
		if err := a.msgr.SendToGroup(ctx, a.groupID, r.Message); err != nil {
			a.logger.Warn("report publish failed",
				zap.Time("week_start", r.WeekStart),
				zap.Error(err))
			continue
		}
		if err := a.store.MarkReportPublished(ctx, r.ID, now); err != nil {
			return fmt.Errorf("publish reports: %w", err)
		}
	}
	return nil
}

func displayName(u models.TopUser) string {
	if u.Username != nil && *u.Username != "" {
		return "@" + *u.Username
	}
	if u.FirstName != nil && *u.FirstName != "" {
		return *u.FirstName
	}
	return fmt.Sprintf("участник %d", u.TelegramID)
}

var medals = []string{"🥇", "🥈", "🥉"}

func formatWeeklyReport(weekStart, weekEnd time.Time, top, connecting []models.TopUser, participants, percent int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>📊 Итоги недели %s — %s</b>\n\n",
		weekStart.Format("02.01"), weekEnd.Format("02.01"))

	if len(top) > 0 {
		b.WriteString("<b>Самые активные братья:</b>\n")
		for i, u := range top {
			medal := "▪️"
			if i < len(medals) {
				medal = medals[i]
			}
			fmt.Fprintf(&b, "%s %s — %d сообщений\n", medal, displayName(u), u.TotalMessages)
		}
		b.WriteString("\n")
	}

	if len(connecting) > 0 {
		b.WriteString("<b>Подключаются к движению:</b>\n")
		for _, u := range connecting {
			fmt.Fprintf(&b, "🤝 %s\n", displayName(u))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "В движении участвовали: %d человек (%d%%)\n", participants, percent)
	b.WriteString("Новая неделя — новые вершины. Вперёд! 💪")
	return b.String()
}
