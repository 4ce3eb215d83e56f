package ritual

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"clubbot/internal/messenger"
	"clubbot/internal/models"
)

const callbackPrefix = "rit"

// RenderMessage turns a catalog entry into a deliverable message for one
// state row. Button callback data is keyed by the state id so a reply can
// be attributed without guessing which dispatch it answers.
func RenderMessage(def *models.RitualDefinition, stateID uuid.UUID) (messenger.Message, error) {
	var opts []models.ResponseOption
	if err := json.Unmarshal([]byte(def.ResponseButtons), &opts); err != nil {
		return messenger.Message{}, fmt.Errorf("render %s: %w", def.Kind, err)
	}

	msg := messenger.Message{
		Title: "<b>" + def.Title + "</b>",
		Body:  def.Body,
	}
	for _, opt := range opts {
		msg.Buttons = append(msg.Buttons, messenger.Button{
			Label: opt.Label,
			Data:  fmt.Sprintf("%s:%s:%s:%s", callbackPrefix, stateID, def.ID, opt.Token),
		})
	}
	return msg, nil
}

// Callback is the decoded payload of a pressed ritual button.
type Callback struct {
	StateID  uuid.UUID
	RitualID uuid.UUID
	Token    string
}

func ParseCallback(data string) (*Callback, error) {
	parts := strings.SplitN(data, ":", 4)
	if len(parts) != 4 || parts[0] != callbackPrefix {
		return nil, fmt.Errorf("not a ritual callback: %q", data)
	}
	stateID, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, fmt.Errorf("callback state id: %w", err)
	}
	ritualID, err := uuid.Parse(parts[2])
	if err != nil {
		return nil, fmt.Errorf("callback ritual id: %w", err)
	}
	if parts[3] == "" {
		return nil, fmt.Errorf("callback token is empty")
	}
	return &Callback{StateID: stateID, RitualID: ritualID, Token: parts[3]}, nil
}
