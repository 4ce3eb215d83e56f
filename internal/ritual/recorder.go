package ritual

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clubbot/internal/crypto"
	"clubbot/internal/models"
)

type RecorderStore interface {
	StateByID(ctx context.Context, stateID uuid.UUID) (*models.UserRitualState, error)
	RecordResponse(ctx context.Context, resp *models.RitualResponse) error
}

// Recorder turns button presses and free-text answers into response rows.
type Recorder struct {
	store  RecorderStore
	crypt  *crypto.Service
	logger *zap.Logger
}

func NewRecorder(s RecorderStore, crypt *crypto.Service, logger *zap.Logger) *Recorder {
	return &Recorder{store: s, crypt: crypt, logger: logger}
}

// RecordButton resolves a pressed button into an outcome and appends the
// response. The state's last_sent_at is captured so later reads can tell
// which dispatch the reply answered.
func (r *Recorder) RecordButton(ctx context.Context, cb *Callback, now time.Time) (models.Outcome, error) {
	st, err := r.store.StateByID(ctx, cb.StateID)
	if err != nil {
		return "", fmt.Errorf("record button: %w", err)
	}

	outcome := OutcomeForToken(cb.Token)
	token := cb.Token
	resp := &models.RitualResponse{
		UserRitualID:  st.ID,
		RitualID:      cb.RitualID,
		Outcome:       outcome,
		ButtonClicked: &token,
		SentAt:        st.LastSentAt,
		RespondedAt:   now,
	}
	if err := r.store.RecordResponse(ctx, resp); err != nil {
		return "", fmt.Errorf("record button: %w", err)
	}
	r.logger.Info("ritual response",
		zap.String("state_id", st.ID.String()),
		zap.String("token", cb.Token),
		zap.String("outcome", string(outcome)))
	return outcome, nil
}

// RecordText stores a free-text answer against the state. Text is
// encrypted when an encryption key is configured.
func (r *Recorder) RecordText(ctx context.Context, stateID uuid.UUID, text string, now time.Time) error {
	st, err := r.store.StateByID(ctx, stateID)
	if err != nil {
		return fmt.Errorf("record text: %w", err)
	}

	stored, err := r.crypt.Encrypt(text)
	if err != nil {
		return fmt.Errorf("record text: %w", err)
	}
	resp := &models.RitualResponse{
		UserRitualID: st.ID,
		RitualID:     st.RitualID,
		Outcome:      models.OutcomeText,
		ResponseText: &stored,
		SentAt:       st.LastSentAt,
		RespondedAt:  now,
	}
	if err := r.store.RecordResponse(ctx, resp); err != nil {
		return fmt.Errorf("record text: %w", err)
	}
	return nil
}
