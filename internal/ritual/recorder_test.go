package ritual

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clubbot/internal/models"
	"clubbot/internal/store"
)

type fakeRecorderStore struct {
	states    map[uuid.UUID]*models.UserRitualState
	responses []*models.RitualResponse
}

func newFakeRecorderStore() *fakeRecorderStore {
	return &fakeRecorderStore{states: make(map[uuid.UUID]*models.UserRitualState)}
}

func (f *fakeRecorderStore) StateByID(_ context.Context, id uuid.UUID) (*models.UserRitualState, error) {
	st, ok := f.states[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *st
	return &copied, nil
}

func (f *fakeRecorderStore) RecordResponse(_ context.Context, resp *models.RitualResponse) error {
	f.responses = append(f.responses, resp)
	st := f.states[resp.UserRitualID]
	st.TotalResponses++
	switch resp.Outcome {
	case models.OutcomeCompleted:
		st.TotalCompleted++
	case models.OutcomeSkipped:
		st.TotalSkipped++
	}
	return nil
}

func TestRecordButtonOutcomes(t *testing.T) {
	cases := []struct {
		token string
		want  models.Outcome
	}{
		{"ready", models.OutcomeCompleted},
		{"reported", models.OutcomeCompleted},
		{"sleepy", models.OutcomeSkipped},
		{"private", models.OutcomeSkipped},
		{"maybe", models.OutcomeSkipped},
		{"planning", models.OutcomePartial},
		{"surprise", models.OutcomeCompleted},
	}

	for _, tc := range cases {
		fs := newFakeRecorderStore()
		sentAt := time.Date(2026, 8, 24, 3, 31, 0, 0, time.UTC)
		st := &models.UserRitualState{
			ID:         uuid.New(),
			RitualID:   uuid.New(),
			LastSentAt: &sentAt,
		}
		fs.states[st.ID] = st

		rec := NewRecorder(fs, nil, zap.NewNop())
		cb := &Callback{StateID: st.ID, RitualID: st.RitualID, Token: tc.token}
		got, err := rec.RecordButton(context.Background(), cb, sentAt.Add(10*time.Minute))
		if err != nil {
			t.Fatalf("%s: %v", tc.token, err)
		}
		if got != tc.want {
			t.Errorf("%s: got outcome %s, want %s", tc.token, got, tc.want)
		}

		if len(fs.responses) != 1 {
			t.Fatalf("%s: got %d responses, want 1", tc.token, len(fs.responses))
		}
		resp := fs.responses[0]
		if resp.ButtonClicked == nil || *resp.ButtonClicked != tc.token {
			t.Errorf("%s: button token not recorded", tc.token)
		}
		if resp.SentAt == nil || !resp.SentAt.Equal(sentAt) {
			t.Errorf("%s: response not tied to the dispatch time", tc.token)
		}
	}
}

func TestRecordButtonCounters(t *testing.T) {
	fs := newFakeRecorderStore()
	st := &models.UserRitualState{ID: uuid.New(), RitualID: uuid.New()}
	fs.states[st.ID] = st

	rec := NewRecorder(fs, nil, zap.NewNop())
	now := time.Date(2026, 8, 24, 19, 0, 0, 0, time.UTC)
	for _, token := range []string{"reported", "private", "planning"} {
		cb := &Callback{StateID: st.ID, RitualID: st.RitualID, Token: token}
		if _, err := rec.RecordButton(context.Background(), cb, now); err != nil {
			t.Fatalf("%s: %v", token, err)
		}
	}

	if st.TotalResponses != 3 {
		t.Errorf("total responses: got %d, want 3", st.TotalResponses)
	}
	if st.TotalCompleted != 1 {
		t.Errorf("total completed: got %d, want 1", st.TotalCompleted)
	}
	if st.TotalSkipped != 1 {
		t.Errorf("total skipped: got %d, want 1", st.TotalSkipped)
	}
}

func TestRecordButtonUnknownState(t *testing.T) {
	rec := NewRecorder(newFakeRecorderStore(), nil, zap.NewNop())
	cb := &Callback{StateID: uuid.New(), RitualID: uuid.New(), Token: "ready"}
	if _, err := rec.RecordButton(context.Background(), cb, time.Now()); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestRecordTextPlain(t *testing.T) {
	fs := newFakeRecorderStore()
	st := &models.UserRitualState{ID: uuid.New(), RitualID: uuid.New()}
	fs.states[st.ID] = st

	rec := NewRecorder(fs, nil, zap.NewNop())
	if err := rec.RecordText(context.Background(), st.ID, "сделал зарядку", time.Now()); err != nil {
		t.Fatalf("record text: %v", err)
	}

	resp := fs.responses[0]
	if resp.Outcome != models.OutcomeText {
		t.Errorf("outcome: got %s, want %s", resp.Outcome, models.OutcomeText)
	}
	if resp.ResponseText == nil || *resp.ResponseText != "сделал зарядку" {
		t.Error("text not stored as-is without an encryption key")
	}
}

func TestParseCallbackRoundTrip(t *testing.T) {
	def := dailyDef(6, 30)
	stateID := uuid.New()

	msg, err := RenderMessage(&def, stateID)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(msg.Buttons) != 1 {
		t.Fatalf("got %d buttons, want 1", len(msg.Buttons))
	}

	cb, err := ParseCallback(msg.Buttons[0].Data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.StateID != stateID {
		t.Errorf("state id: got %s, want %s", cb.StateID, stateID)
	}
	if cb.RitualID != def.ID {
		t.Errorf("ritual id: got %s, want %s", cb.RitualID, def.ID)
	}
	if cb.Token != "ready" {
		t.Errorf("token: got %q, want %q", cb.Token, "ready")
	}
}

func TestParseCallbackRejectsGarbage(t *testing.T) {
	for _, data := range []string{"", "other:payload", "rit:not-a-uuid:x:ready", "rit:only:three"} {
		if _, err := ParseCallback(data); err == nil {
			t.Errorf("%q: expected error", data)
		}
	}
}
