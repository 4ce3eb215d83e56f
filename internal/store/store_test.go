package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"clubbot/internal/db"
	"clubbot/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping store tests")
	}
	conn, err := sqlx.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.Ping(); err != nil {
		t.Fatalf("ping db: %v", err)
	}
	if err := db.RunMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() {
		conn.Exec(`TRUNCATE users, rituals, user_rituals, ritual_responses,
			chat_activities, user_activities, weekly_reports, report_requests CASCADE`)
		conn.Close()
	})
	return New(conn)
}

func TestUserLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	until := time.Now().Add(30 * 24 * time.Hour).UTC()
	u := &models.User{
		TelegramID:        111222,
		Status:            models.StatusActive,
		IsPremium:         true,
		SubscriptionUntil: &until,
		IsInGroup:         true,
		ReportHour:        21,
	}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := s.UserByTelegramID(ctx, 111222)
	if err != nil {
		t.Fatalf("user by telegram id: %v", err)
	}
	if got.ID != u.ID || got.Status != models.StatusActive {
		t.Fatalf("got user %+v", got)
	}

	warned := time.Now().UTC().Truncate(time.Second)
	if err := s.SetWarnedAt(ctx, u.ID, warned); err != nil {
		t.Fatalf("set warned_at: %v", err)
	}
	got, _ = s.UserByID(ctx, u.ID)
	if got.WarnedAt == nil || !got.WarnedAt.Equal(warned) {
		t.Fatal("warned_at not persisted")
	}

	if err := s.MarkKicked(ctx, u.ID); err != nil {
		t.Fatalf("mark kicked: %v", err)
	}
	got, _ = s.UserByID(ctx, u.ID)
	if got.IsInGroup || got.Status != models.StatusPending || got.WarnedAt != nil {
		t.Fatalf("kicked user state: %+v", got)
	}

	rejoined := time.Now().UTC().Truncate(time.Second)
	if err := s.MarkRejoined(ctx, u.ID, rejoined); err != nil {
		t.Fatalf("mark rejoined: %v", err)
	}
	got, _ = s.UserByID(ctx, u.ID)
	if !got.IsInGroup || got.Status != models.StatusActive {
		t.Fatalf("rejoined user state: %+v", got)
	}

	if _, err := s.UserByTelegramID(ctx, 999999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRitualStateFlow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	def := &models.RitualDefinition{
		Kind:            models.KindMorning,
		Cadence:         models.CadenceDaily,
		SendHour:        6,
		SendMinute:      30,
		Title:           "test morning",
		Body:            "up and at it",
		ResponseButtons: `[{"label":"ok","token":"ready","outcome":"completed"}]`,
		Active:          true,
	}
	if err := s.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create definition: %v", err)
	}

	until := time.Now().Add(30 * 24 * time.Hour).UTC()
	u := &models.User{
		TelegramID:        333444,
		Status:            models.StatusActive,
		IsPremium:         true,
		SubscriptionUntil: &until,
		IsInGroup:         true,
	}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := s.RegisterUserRituals(ctx, u.ID, 3); err != nil {
		t.Fatalf("register rituals: %v", err)
	}
	// Registering twice must not duplicate state rows.
	if err := s.RegisterUserRituals(ctx, u.ID, 3); err != nil {
		t.Fatalf("register rituals again: %v", err)
	}

	targets, err := s.EligibleStates(ctx, def.ID)
	if err != nil {
		t.Fatalf("eligible states: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(targets))
	}
	target := targets[0]
	if target.User.TelegramID != 333444 || target.State.TimezoneOffset != 3 {
		t.Fatalf("target: %+v", target)
	}

	sentAt := time.Now().UTC().Truncate(time.Second)
	if err := s.MarkSent(ctx, target.State.ID, sentAt); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	st, err := s.StateByID(ctx, target.State.ID)
	if err != nil {
		t.Fatalf("state by id: %v", err)
	}
	if st.TotalSent != 1 || st.LastSentAt == nil || !st.LastSentAt.Equal(sentAt) {
		t.Fatalf("state after send: %+v", st)
	}

	token := "ready"
	resp := &models.RitualResponse{
		UserRitualID:  st.ID,
		RitualID:      def.ID,
		Outcome:       models.OutcomeCompleted,
		ButtonClicked: &token,
		SentAt:        st.LastSentAt,
		RespondedAt:   time.Now().UTC(),
	}
	if err := s.RecordResponse(ctx, resp); err != nil {
		t.Fatalf("record response: %v", err)
	}
	st, _ = s.StateByID(ctx, st.ID)
	if st.TotalResponses != 1 || st.TotalCompleted != 1 || st.TotalSkipped != 0 {
		t.Fatalf("counters after response: %+v", st)
	}
}

func TestReportRequests(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u := &models.User{TelegramID: 555666, Status: models.StatusActive, IsInGroup: true, ReportHour: 21}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	due, err := s.UsersDueReportReminder(ctx, 21, 0)
	if err != nil {
		t.Fatalf("users due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("got %d due users, want 1", len(due))
	}

	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	req := &models.ReportRequest{
		UserID:      u.ID,
		ReportDate:  date,
		Status:      models.ReportPending,
		RequestedAt: time.Now().UTC().Add(-25 * time.Hour),
	}
	if err := s.CreateReportRequest(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}

	n, err := s.MarkMissedReports(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("mark missed: %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d missed, want 1", n)
	}
	got, err := s.ReportByUserDate(ctx, u.ID, date)
	if err != nil {
		t.Fatalf("report by date: %v", err)
	}
	if got.Status != models.ReportMissed {
		t.Fatalf("status: got %s, want missed", got.Status)
	}
}
