package report

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clubbot/internal/messenger"
	"clubbot/internal/models"
	"clubbot/internal/store"
)

type reportKey struct {
	userID uuid.UUID
	date   time.Time
}

type fakeReportStore struct {
	due      []models.User
	requests map[reportKey]*models.ReportRequest
	missed   int64
	cutoff   time.Time
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{requests: make(map[reportKey]*models.ReportRequest)}
}

func (f *fakeReportStore) UsersDueReportReminder(_ context.Context, hour, minute int) ([]models.User, error) {
	var out []models.User
	for _, u := range f.due {
		if u.ReportHour == hour && u.ReportMinute == minute {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeReportStore) ReportByUserDate(_ context.Context, userID uuid.UUID, date time.Time) (*models.ReportRequest, error) {
	r, ok := f.requests[reportKey{userID, date}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeReportStore) CreateReportRequest(_ context.Context, r *models.ReportRequest) error {
	key := reportKey{r.UserID, r.ReportDate}
	if _, ok := f.requests[key]; ok {
		return nil
	}
	f.requests[key] = r
	return nil
}

func (f *fakeReportStore) SubmitReport(_ context.Context, userID uuid.UUID, date time.Time, text string, at time.Time) error {
	r, ok := f.requests[reportKey{userID, date}]
	if !ok || r.Status != models.ReportPending {
		return store.ErrNotFound
	}
	r.Status = models.ReportSent
	r.Text = &text
	r.SubmittedAt = &at
	return nil
}

func (f *fakeReportStore) MarkMissedReports(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.missed, nil
}

type fakeSender struct {
	sent map[int64]int
}

func (m *fakeSender) SendMessage(_ context.Context, chatID int64, _ string) error {
	if m.sent == nil {
		m.sent = make(map[int64]int)
	}
	m.sent[chatID]++
	return nil
}
func (m *fakeSender) SendWithButtons(context.Context, int64, string, []messenger.Button) error {
	return nil
}
func (m *fakeSender) SendToGroup(context.Context, int64, string) error { return nil }
func (m *fakeSender) CheckChannelMembership(context.Context, int64) (bool, error) {
	return true, nil
}
func (m *fakeSender) RemoveFromGroup(context.Context, int64, int64) error { return nil }
func (m *fakeSender) RestoreToGroup(context.Context, int64, int64) error  { return nil }

func TestReminderTick(t *testing.T) {
	fs := newFakeReportStore()
	due := models.User{ID: uuid.New(), TelegramID: 100, ReportHour: 21, ReportMinute: 0}
	notDue := models.User{ID: uuid.New(), TelegramID: 200, ReportHour: 22, ReportMinute: 30}
	fs.due = []models.User{due, notDue}

	msgr := &fakeSender{}
	svc := NewService(fs, msgr, nil, zap.NewNop(), 3)

	// 18:00 UTC is 21:00 on the reference clock.
	now := time.Date(2026, 8, 24, 18, 0, 0, 0, time.UTC)
	if err := svc.ReminderTick(context.Background(), now); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if msgr.sent[100] != 1 {
		t.Fatalf("due member: got %d reminders, want 1", msgr.sent[100])
	}
	if msgr.sent[200] != 0 {
		t.Fatal("member with another report time must not be reminded")
	}

	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	req, ok := fs.requests[reportKey{due.ID, date}]
	if !ok {
		t.Fatal("no pending request opened for the day")
	}
	if req.Status != models.ReportPending {
		t.Errorf("status: got %s, want pending", req.Status)
	}

	// A second tick in the same minute must not double the reminder.
	if err := svc.ReminderTick(context.Background(), now.Add(10*time.Second)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if msgr.sent[100] != 1 {
		t.Fatalf("got %d reminders after repeat tick, want 1", msgr.sent[100])
	}
}

func TestSubmitAnswersPendingRequest(t *testing.T) {
	fs := newFakeReportStore()
	userID := uuid.New()
	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	fs.requests[reportKey{userID, date}] = &models.ReportRequest{
		UserID: userID, ReportDate: date, Status: models.ReportPending,
	}

	svc := NewService(fs, &fakeSender{}, nil, zap.NewNop(), 3)
	now := time.Date(2026, 8, 24, 19, 30, 0, 0, time.UTC)
	if err := svc.Submit(context.Background(), userID, "тренировка и чтение", now); err != nil {
		t.Fatalf("submit: %v", err)
	}

	r := fs.requests[reportKey{userID, date}]
	if r.Status != models.ReportSent {
		t.Errorf("status: got %s, want sent", r.Status)
	}
	if r.Text == nil || *r.Text != "тренировка и чтение" {
		t.Error("report text not stored")
	}
	if r.SubmittedAt == nil || !r.SubmittedAt.Equal(now) {
		t.Error("submission time not stored")
	}
}

func TestSubmitWithoutReminderOpensRequest(t *testing.T) {
	fs := newFakeReportStore()
	userID := uuid.New()

	svc := NewService(fs, &fakeSender{}, nil, zap.NewNop(), 3)
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	if err := svc.Submit(context.Background(), userID, "ранний отчёт", now); err != nil {
		t.Fatalf("submit: %v", err)
	}

	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	r, ok := fs.requests[reportKey{userID, date}]
	if !ok {
		t.Fatal("unsolicited report must open its own request")
	}
	if r.Status != models.ReportSent {
		t.Errorf("status: got %s, want sent", r.Status)
	}
}

func TestMarkMissedUsesDayCutoff(t *testing.T) {
	fs := newFakeReportStore()
	fs.missed = 2

	svc := NewService(fs, &fakeSender{}, nil, zap.NewNop(), 3)
	now := time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC)
	if err := svc.MarkMissed(context.Background(), now); err != nil {
		t.Fatalf("mark missed: %v", err)
	}
	if !fs.cutoff.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("cutoff: got %s", fs.cutoff)
	}
}
