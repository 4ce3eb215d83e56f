package ritual

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"clubbot/internal/models"
	"clubbot/internal/store"
)

// outcomeByToken maps the bare button tokens to recorded outcomes.
// Tokens the table does not know are treated as confirmations.
var outcomeByToken = map[string]models.Outcome{
	"ready":      models.OutcomeCompleted,
	"reported":   models.OutcomeCompleted,
	"accepted":   models.OutcomeCompleted,
	"set":        models.OutcomeCompleted,
	"successful": models.OutcomeCompleted,
	"sleepy":     models.OutcomeSkipped,
	"private":    models.OutcomeSkipped,
	"maybe":      models.OutcomeSkipped,
	"planning":   models.OutcomePartial,
	"improving":  models.OutcomePartial,
}

func OutcomeForToken(token string) models.Outcome {
	if o, ok := outcomeByToken[token]; ok {
		return o
	}
	return models.OutcomeCompleted
}

// ValidateDefinition rejects catalog entries the dispatcher could not act
// on. Weekly rituals need a weekday; other cadences must not carry one.
func ValidateDefinition(def *models.RitualDefinition) error {
	if def.Title == "" {
		return errors.New("ritual title is required")
	}
	if def.SendHour < 0 || def.SendHour > 23 {
		return fmt.Errorf("send hour %d out of range", def.SendHour)
	}
	if def.SendMinute < 0 || def.SendMinute > 59 {
		return fmt.Errorf("send minute %d out of range", def.SendMinute)
	}
	switch def.Cadence {
	case models.CadenceWeekly:
		if def.Weekday == nil {
			return errors.New("weekly ritual needs a weekday")
		}
		if *def.Weekday < 0 || *def.Weekday > 6 {
			return fmt.Errorf("weekday %d out of range", *def.Weekday)
		}
	case models.CadenceDaily, models.CadenceMonthly:
		if def.Weekday != nil {
			return fmt.Errorf("%s ritual must not set a weekday", def.Cadence)
		}
	default:
		return fmt.Errorf("unknown cadence %q", def.Cadence)
	}
	var opts []models.ResponseOption
	if err := json.Unmarshal([]byte(def.ResponseButtons), &opts); err != nil {
		return fmt.Errorf("response buttons: %w", err)
	}
	return nil
}

func weekdayPtr(d int) *int { return &d }

func mustButtons(opts []models.ResponseOption) string {
	b, err := json.Marshal(opts)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func defaultDefinitions() []models.RitualDefinition {
	return []models.RitualDefinition{
		{
			Kind: models.KindMorning, Cadence: models.CadenceDaily,
			SendHour: 6, SendMinute: 30,
			Title: "Доброе утро, воин!",
			Body:  "Новый день — новые возможности. Начни его с холодного душа и зарядки. Готов?",
			ResponseButtons: mustButtons([]models.ResponseOption{
				{Label: "Я проснулся! 💪", Token: "ready", Outcome: models.OutcomeCompleted},
				{Label: "Ещё сплю 😴", Token: "sleepy", Outcome: models.OutcomeSkipped},
			}),
			Active: true, SortOrder: 1,
		},
		{
			Kind: models.KindEvening, Cadence: models.CadenceDaily,
			SendHour: 21, SendMinute: 0,
			Title: "Время вечернего отчёта",
			Body:  "Как прошёл день? Поделись результатами с братством или отметь день для себя.",
			ResponseButtons: mustButtons([]models.ResponseOption{
				{Label: "Отчитался ✅", Token: "reported", Outcome: models.OutcomeCompleted},
				{Label: "Личное 🔒", Token: "private", Outcome: models.OutcomeSkipped},
			}),
			Active: true, SortOrder: 2,
		},
		{
			Kind: models.KindWeeklyChallenge, Cadence: models.CadenceWeekly,
			SendHour: 9, SendMinute: 0, Weekday: weekdayPtr(0),
			Title: "Вызов недели",
			Body:  "Новая неделя — новый вызов. Принимаешь?",
			ResponseButtons: mustButtons([]models.ResponseOption{
				{Label: "Принимаю вызов 🔥", Token: "accepted", Outcome: models.OutcomeCompleted},
				{Label: "Подумаю 🤔", Token: "maybe", Outcome: models.OutcomeSkipped},
			}),
			Active: true, SortOrder: 3,
		},
		{
			Kind: models.KindWeeklyGoals, Cadence: models.CadenceWeekly,
			SendHour: 18, SendMinute: 0, Weekday: weekdayPtr(6),
			Title: "Цели на неделю",
			Body:  "Воскресенье — время подвести итоги и поставить цели на следующую неделю.",
			ResponseButtons: mustButtons([]models.ResponseOption{
				{Label: "Цели поставлены 🎯", Token: "set", Outcome: models.OutcomeCompleted},
				{Label: "Планирую 📝", Token: "planning", Outcome: models.OutcomePartial},
			}),
			Active: true, SortOrder: 4,
		},
		{
			Kind: models.KindFridayCycle, Cadence: models.CadenceWeekly,
			SendHour: 17, SendMinute: 0, Weekday: weekdayPtr(4),
			Title: "Пятничный цикл",
			Body:  "Неделя подходит к концу. Какой она была?",
			ResponseButtons: mustButtons([]models.ResponseOption{
				{Label: "Успешной 🏆", Token: "successful", Outcome: models.OutcomeCompleted},
				{Label: "Есть что улучшить 📈", Token: "improving", Outcome: models.OutcomePartial},
			}),
			Active: true, SortOrder: 5,
		},
	}
}

// SeedCatalog inserts the default rituals that are not in the catalog yet.
// Safe to run at every boot.
func SeedCatalog(ctx context.Context, s *store.Store, logger *zap.Logger) error {
	for _, def := range defaultDefinitions() {
		def := def
		if err := ValidateDefinition(&def); err != nil {
			return fmt.Errorf("seed %s: %w", def.Kind, err)
		}
		_, err := s.DefinitionByKindTitle(ctx, def.Kind, def.Title)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("seed %s: %w", def.Kind, err)
		}
		if err := s.CreateDefinition(ctx, &def); err != nil {
			return fmt.Errorf("seed %s: %w", def.Kind, err)
		}
		logger.Info("seeded ritual", zap.String("kind", string(def.Kind)), zap.String("title", def.Title))
	}
	return nil
}
